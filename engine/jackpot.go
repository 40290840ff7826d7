package engine

import (
	"fmt"

	"crateclash/models"
)

// resolveJackpot assigns each stake a contiguous ticket range of length equal
// to its amount, in arrival order, then draws the winning ticket from the
// roll. The ranges partition [0, totalValue) exactly, which is why arrival
// order must survive the freeze.
func resolveJackpot(cfg *Config, ledger *models.FrozenLedger, derive DeriveFunc) (*models.Outcome, error) {
	if len(ledger.Stakes) == 0 {
		return nil, fmt.Errorf("jackpot requires at least one stake")
	}
	if ledger.TotalValue <= 0 {
		return nil, fmt.Errorf("jackpot total value must be positive, got %d", ledger.TotalValue)
	}

	ranges := TicketRanges(ledger)
	roll := derive(0)
	winningTicket := int64(roll * float64(ledger.TotalValue))

	var winnerID int64 = -1
	for _, r := range ranges {
		if r.Contains(winningTicket) {
			winnerID = r.ParticipantID
			break
		}
	}
	if winnerID < 0 {
		return nil, fmt.Errorf("winning ticket %d outside ledger ranges", winningTicket)
	}

	fee := cfg.Fee(models.GameKindJackpot, ledger.TotalValue)
	payouts := make(map[int64]int64)
	for _, id := range ledger.ParticipantIDs() {
		payouts[id] = 0
	}
	payouts[winnerID] = ledger.TotalValue - fee

	return &models.Outcome{
		WinnerIDs: []int64{winnerID},
		Payouts:   payouts,
		Fee:       fee,
		Detail: models.OutcomeDetail{
			WinningTicket: &winningTicket,
			TicketRanges:  ranges,
		},
	}, nil
}

// TicketRanges computes the per-stake ticket ranges in arrival order. Each
// range starts at the cumulative sum of all prior amounts; together they
// cover [0, totalValue) with no gaps or overlaps.
func TicketRanges(ledger *models.FrozenLedger) []models.TicketRange {
	ranges := make([]models.TicketRange, 0, len(ledger.Stakes))
	var cursor int64
	for _, s := range ledger.Stakes {
		ranges = append(ranges, models.TicketRange{
			ParticipantID: s.ParticipantID,
			Start:         cursor,
			End:           cursor + s.Amount,
		})
		cursor += s.Amount
	}
	return ranges
}
