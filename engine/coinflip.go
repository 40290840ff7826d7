package engine

import (
	"fmt"

	"crateclash/models"
)

// resolveCoinflip settles a two-stake coinflip. The first-declared side wins
// when the roll falls below the threshold; a configured house edge shifts the
// threshold away from an even 0.5. The winner takes the pot minus fee.
func resolveCoinflip(cfg *Config, ledger *models.FrozenLedger, derive DeriveFunc) (*models.Outcome, error) {
	if len(ledger.Stakes) != 2 {
		return nil, fmt.Errorf("coinflip requires exactly 2 stakes, got %d", len(ledger.Stakes))
	}
	first, second := ledger.Stakes[0], ledger.Stakes[1]
	if first.Side == "" || second.Side == "" {
		return nil, fmt.Errorf("coinflip stakes must declare a side")
	}
	if first.Side == second.Side {
		return nil, fmt.Errorf("coinflip stakes declare the same side %q", first.Side)
	}

	roll := derive(0)
	threshold := 0.5 - cfg.CoinflipEdge/2

	winningSide := first.Side
	if roll >= threshold {
		winningSide = first.Side.Opposite()
	}

	winner, loser := first, second
	if second.Side == winningSide {
		winner, loser = second, first
	}

	fee := cfg.Fee(models.GameKindCoinflip, ledger.TotalValue)
	return &models.Outcome{
		WinnerIDs: []int64{winner.ParticipantID},
		Payouts: map[int64]int64{
			winner.ParticipantID: ledger.TotalValue - fee,
			loser.ParticipantID:  0,
		},
		Fee: fee,
		Detail: models.OutcomeDetail{
			WinningSide: winningSide,
		},
	}, nil
}
