package engine

import (
	"fmt"

	"crateclash/models"
)

// resolveMinefield settles a single-player minefield round. The mine layout
// is derived from the seed stream; the player's ordered picks are walked
// against it. Each safe reveal steps the multiplier up per the odds table,
// the first mine ends the round with zero payout. The outcome fee is the
// house side of the value identity and goes negative when the player cashes
// out above the stake.
func resolveMinefield(cfg *Config, ledger *models.FrozenLedger, params *models.MinefieldParams, derive DeriveFunc) (*models.Outcome, error) {
	if params == nil {
		return nil, fmt.Errorf("minefield game has no parameters")
	}
	if len(ledger.Stakes) != 1 {
		return nil, fmt.Errorf("minefield requires exactly 1 stake, got %d", len(ledger.Stakes))
	}
	if params.MineCount <= 0 || params.MineCount >= params.TotalCells {
		return nil, fmt.Errorf("mine count %d must be in (0, %d)", params.MineCount, params.TotalCells)
	}
	if err := validatePicks(params); err != nil {
		return nil, err
	}

	stake := ledger.Stakes[0]
	mines := MineLayout(params.TotalCells, params.MineCount, derive)
	mineSet := make(map[int]bool, len(mines))
	for _, cell := range mines {
		mineSet[cell] = true
	}

	var (
		revealed   []int
		hitMine    bool
		multiplier float64
	)
	for _, pick := range params.Picks {
		if mineSet[pick] {
			hitMine = true
			break
		}
		revealed = append(revealed, pick)
		multiplier = cfg.MultiplierAt(params.TotalCells, params.MineCount, len(revealed))
	}

	var payout int64
	if !hitMine && len(revealed) > 0 {
		payout = int64(float64(stake.Amount) * multiplier)
	}
	if hitMine {
		multiplier = 0
	}

	payouts := map[int64]int64{stake.ParticipantID: payout}
	return &models.Outcome{
		WinnerIDs: winnersIf(!hitMine && payout > 0, stake.ParticipantID),
		Payouts:   payouts,
		Fee:       ledger.TotalValue - payout,
		Detail: models.OutcomeDetail{
			MineCells:     mines,
			RevealedCells: revealed,
			HitMine:       hitMine,
			Multiplier:    multiplier,
		},
	}, nil
}

func validatePicks(params *models.MinefieldParams) error {
	seen := make(map[int]bool, len(params.Picks))
	for _, pick := range params.Picks {
		if pick < 0 || pick >= params.TotalCells {
			return fmt.Errorf("pick %d outside cell range [0, %d)", pick, params.TotalCells)
		}
		if seen[pick] {
			return fmt.Errorf("duplicate pick %d", pick)
		}
		seen[pick] = true
	}
	return nil
}

func winnersIf(won bool, id int64) []int64 {
	if won {
		return []int64{id}
	}
	return nil
}

// MineLayout selects mineCount distinct cells out of totalCells without
// replacement, consuming one derived value per selection. Deterministic for
// a fixed derivation stream, so verifiers can reproduce the layout.
func MineLayout(totalCells, mineCount int, derive DeriveFunc) []int {
	remaining := make([]int, totalCells)
	for i := range remaining {
		remaining[i] = i
	}

	mines := make([]int, 0, mineCount)
	for k := 0; k < mineCount; k++ {
		j := int(derive(k) * float64(len(remaining)))
		mines = append(mines, remaining[j])
		remaining = append(remaining[:j], remaining[j+1:]...)
	}
	return mines
}

// MultiplierAt returns the payout multiplier after revealing the given number
// of safe cells. An explicit table entry wins; otherwise the fair odds
// product is shaved by the configured edge.
func (c *Config) MultiplierAt(totalCells, mineCount, revealed int) float64 {
	if m, ok := c.MinefieldTable[MultiplierKey{totalCells, mineCount, revealed}]; ok {
		return m
	}
	multiplier := 1.0
	for i := 0; i < revealed; i++ {
		multiplier *= float64(totalCells-i) / float64(totalCells-mineCount-i)
	}
	return multiplier * (1 - c.MinefieldEdge)
}
