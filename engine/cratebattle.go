package engine

import (
	"fmt"
	"sort"

	"crateclash/models"
)

// resolveCrateBattle opens the configured crate sequence for every seat in
// arrival order. Each opening consumes one fresh derived value to pick from
// the crate's weighted drop table; the highest total item value takes the pot
// minus fee. Ties fall to a further derived tiebreak roll, or split the pot
// when the game is configured for splitting.
func resolveCrateBattle(cfg *Config, ledger *models.FrozenLedger, params models.GameParams, derive DeriveFunc) (*models.Outcome, error) {
	participants := ledger.ParticipantIDs()
	if len(participants) < 2 {
		return nil, fmt.Errorf("crate battle requires at least 2 participants, got %d", len(participants))
	}
	if len(params.Crates) == 0 {
		return nil, fmt.Errorf("crate battle has no crates configured")
	}

	// openings consume stream indices from 1; index 0 is the headline roll
	var openings []models.CrateOpening
	totals := make(map[int64]int64, len(participants))
	next := 1
	for _, participantID := range participants {
		for _, crateID := range params.Crates {
			crate, err := cfg.Crate(crateID)
			if err != nil {
				return nil, err
			}
			roll := derive(next)
			item := crate.Pick(roll)
			openings = append(openings, models.CrateOpening{
				Index:         next,
				ParticipantID: participantID,
				CrateID:       crateID,
				ItemName:      item.Name,
				ItemValue:     item.Value,
				Roll:          roll,
			})
			totals[participantID] += item.Value
			next++
		}
	}

	ranked := rankByTotal(participants, totals)
	leaders := leadingGroup(ranked, totals)

	fee := cfg.Fee(models.GameKindCrateBattle, ledger.TotalValue)
	pot := ledger.TotalValue - fee
	payouts := make(map[int64]int64, len(participants))
	for _, id := range participants {
		payouts[id] = 0
	}

	tieBroken := false
	if len(leaders) > 1 && params.TieMode == models.TieModeSplit {
		// equal split, remainder to the earliest-joined leader
		share := pot / int64(len(leaders))
		for _, id := range leaders {
			payouts[id] = share
		}
		payouts[leaders[0]] += pot - share*int64(len(leaders))
	} else {
		winnerID := leaders[0]
		if len(leaders) > 1 {
			tieBroken = true
			winnerID = leaders[int(derive(next)*float64(len(leaders)))]
			// move the tiebreak winner to the front of the ranking
			ranked = promote(ranked, winnerID)
		}
		payouts[winnerID] = pot
	}

	return &models.Outcome{
		WinnerIDs: ranked,
		Payouts:   payouts,
		Fee:       fee,
		Detail: models.OutcomeDetail{
			Openings:  openings,
			TieBroken: tieBroken,
		},
	}, nil
}

// rankByTotal orders participants by total item value descending, arrival
// order breaking equal totals for a stable ranking.
func rankByTotal(participants []int64, totals map[int64]int64) []int64 {
	ranked := make([]int64, len(participants))
	copy(ranked, participants)
	sort.SliceStable(ranked, func(i, j int) bool {
		return totals[ranked[i]] > totals[ranked[j]]
	})
	return ranked
}

// leadingGroup returns every participant tied for the highest total, in
// arrival order.
func leadingGroup(ranked []int64, totals map[int64]int64) []int64 {
	top := totals[ranked[0]]
	var leaders []int64
	for _, id := range ranked {
		if totals[id] == top {
			leaders = append(leaders, id)
		}
	}
	return leaders
}

func promote(ranked []int64, winnerID int64) []int64 {
	out := []int64{winnerID}
	for _, id := range ranked {
		if id != winnerID {
			out = append(out, id)
		}
	}
	return out
}
