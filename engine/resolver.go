// Package engine contains the pure outcome resolvers. Given a frozen ledger
// and a deterministic derivation stream, each resolver produces the winners,
// the payout distribution and the kind-specific audit detail. Resolvers never
// touch storage and re-running one on the same inputs yields an identical
// outcome.
package engine

import (
	"fmt"

	"crateclash/models"
)

// DeriveFunc yields the index-th uniform float in [0, 1) of a game's
// derivation stream. Index 0 is the headline rngOutput retained for audit.
type DeriveFunc func(index int) float64

// Config carries the house configuration the resolvers are parameterized
// over: fee schedule, coinflip edge, minefield odds and the crate catalog.
// The source does not fix these, so they are supplied rather than inferred.
type Config struct {
	FeeBps         map[models.GameKind]int64 // fee in basis points of total value
	CoinflipEdge   float64                   // shifts the 0.5 threshold toward the second side
	MinefieldEdge  float64                   // shaved off the fair multiplier
	MinefieldTable map[MultiplierKey]float64 // explicit overrides of the computed odds
	Crates         map[string]*models.Crate
}

// MultiplierKey identifies one minefield odds table entry
type MultiplierKey struct {
	TotalCells int
	MineCount  int
	Revealed   int
}

// Fee returns the configured house fee for a kind, in whole units
func (c *Config) Fee(kind models.GameKind, totalValue int64) int64 {
	return totalValue * c.FeeBps[kind] / 10000
}

// Crate looks up a crate by ID
func (c *Config) Crate(id string) (*models.Crate, error) {
	crate, ok := c.Crates[id]
	if !ok {
		return nil, fmt.Errorf("unknown crate %q", id)
	}
	return crate, nil
}

// Resolve dispatches to the kind-specific resolver. The returned outcome's
// payouts always satisfy sum(payouts) == totalValue - fee with no negative
// entries; for minefield the fee is the house's side of the identity and may
// be negative when the player cashes out above the stake.
func Resolve(cfg *Config, game *models.Game, ledger *models.FrozenLedger, derive DeriveFunc) (*models.Outcome, error) {
	var (
		outcome *models.Outcome
		err     error
	)

	switch game.Kind {
	case models.GameKindCoinflip:
		outcome, err = resolveCoinflip(cfg, ledger, derive)
	case models.GameKindJackpot:
		outcome, err = resolveJackpot(cfg, ledger, derive)
	case models.GameKindMinefield:
		outcome, err = resolveMinefield(cfg, ledger, game.Params.Minefield, derive)
	case models.GameKindCrateBattle:
		outcome, err = resolveCrateBattle(cfg, ledger, game.Params, derive)
	default:
		return nil, fmt.Errorf("no resolver for game kind %q", game.Kind)
	}
	if err != nil {
		return nil, err
	}

	outcome.GameID = game.ID
	outcome.RNGOutput = derive(0)
	return outcome, nil
}
