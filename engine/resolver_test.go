package engine

import (
	"fmt"
	"testing"

	"crateclash/fair"
	"crateclash/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedDerive returns a derivation stream with the given values, repeating
// the last one for any further index.
func fixedDerive(values ...float64) DeriveFunc {
	return func(index int) float64 {
		if index < len(values) {
			return values[index]
		}
		return values[len(values)-1]
	}
}

// seededDerive is the production derivation stream for a throwaway seed
func seededDerive(t *testing.T, game *models.Game, ledger *models.FrozenLedger) DeriveFunc {
	t.Helper()
	seed, err := fair.GenerateSeed()
	require.NoError(t, err)
	digest := ledger.Digest()
	return func(index int) float64 {
		return fair.DeriveFloat(seed, game.ID.String(), digest, index)
	}
}

func zeroFeeConfig() *Config {
	return &Config{
		FeeBps: map[models.GameKind]int64{},
		Crates: map[string]*models.Crate{
			"basic": {
				ID:   "basic",
				Name: "Basic Crate",
				Items: []models.CrateItem{
					{Name: "Scrap", Value: 50, DropChance: 0.8},
					{Name: "Plating", Value: 500, DropChance: 0.2},
				},
			},
		},
	}
}

func coinflipLedger(amount int64) (*models.Game, *models.FrozenLedger) {
	gameID := uuid.New()
	game := &models.Game{
		ID:     gameID,
		Kind:   models.GameKindCoinflip,
		Status: models.GameStatusLocked,
		Params: models.GameParams{Seats: 2},
	}
	ledger := &models.FrozenLedger{
		GameID: gameID,
		Stakes: []*models.Stake{
			{GameID: gameID, ParticipantID: 1, Amount: amount, EntryKind: models.EntryKindBalance, Side: models.CoinSideHeads, Position: 0},
			{GameID: gameID, ParticipantID: 2, Amount: amount, EntryKind: models.EntryKindBalance, Side: models.CoinSideTails, Position: 1},
		},
		TotalValue: 2 * amount,
	}
	game.TotalValue = ledger.TotalValue
	return game, ledger
}

func TestResolveCoinflip_FirstSideWinsBelowThreshold(t *testing.T) {
	game, ledger := coinflipLedger(100)

	outcome, err := Resolve(zeroFeeConfig(), game, ledger, fixedDerive(0.37))

	require.NoError(t, err)
	assert.Equal(t, []int64{1}, outcome.WinnerIDs)
	assert.Equal(t, int64(200), outcome.Payouts[1])
	assert.Equal(t, int64(0), outcome.Payouts[2])
	assert.Equal(t, int64(0), outcome.Fee)
	assert.Equal(t, models.CoinSideHeads, outcome.Detail.WinningSide)
	assert.Equal(t, 0.37, outcome.RNGOutput)
}

func TestResolveCoinflip_SecondSideWinsAboveThreshold(t *testing.T) {
	game, ledger := coinflipLedger(100)

	outcome, err := Resolve(zeroFeeConfig(), game, ledger, fixedDerive(0.5))

	require.NoError(t, err)
	assert.Equal(t, []int64{2}, outcome.WinnerIDs)
	assert.Equal(t, int64(200), outcome.Payouts[2])
	assert.Equal(t, models.CoinSideTails, outcome.Detail.WinningSide)
}

func TestResolveCoinflip_EdgeShiftsThreshold(t *testing.T) {
	cfg := zeroFeeConfig()
	cfg.CoinflipEdge = 0.04 // threshold 0.48

	game, ledger := coinflipLedger(100)

	outcome, err := Resolve(cfg, game, ledger, fixedDerive(0.49))

	require.NoError(t, err)
	assert.Equal(t, []int64{2}, outcome.WinnerIDs)
}

func TestResolveCoinflip_RejectsSameSide(t *testing.T) {
	game, ledger := coinflipLedger(100)
	ledger.Stakes[1].Side = models.CoinSideHeads

	_, err := Resolve(zeroFeeConfig(), game, ledger, fixedDerive(0.5))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "same side")
}

func TestResolveJackpot_TicketFallsInSecondRange(t *testing.T) {
	gameID := uuid.New()
	game := &models.Game{ID: gameID, Kind: models.GameKindJackpot, TotalValue: 100}
	ledger := &models.FrozenLedger{
		GameID: gameID,
		Stakes: []*models.Stake{
			{GameID: gameID, ParticipantID: 1, Amount: 30, EntryKind: models.EntryKindBalance, Position: 0},
			{GameID: gameID, ParticipantID: 2, Amount: 70, EntryKind: models.EntryKindBalance, Position: 1},
		},
		TotalValue: 100,
	}

	cfg := zeroFeeConfig()
	cfg.FeeBps[models.GameKindJackpot] = 500

	outcome, err := Resolve(cfg, game, ledger, fixedDerive(0.95))

	require.NoError(t, err)
	// ticket 95 falls in [30, 100), participant 2's range
	assert.Equal(t, []int64{2}, outcome.WinnerIDs)
	require.NotNil(t, outcome.Detail.WinningTicket)
	assert.Equal(t, int64(95), *outcome.Detail.WinningTicket)
	assert.Equal(t, int64(5), outcome.Fee)
	assert.Equal(t, int64(95), outcome.Payouts[2])
	assert.Equal(t, int64(0), outcome.Payouts[1])
}

func TestResolveJackpot_RangesPartitionPot(t *testing.T) {
	gameID := uuid.New()
	ledger := &models.FrozenLedger{
		GameID: gameID,
		Stakes: []*models.Stake{
			{ParticipantID: 1, Amount: 250, Position: 0},
			{ParticipantID: 2, Amount: 1, Position: 1},
			{ParticipantID: 3, Amount: 749, Position: 2},
			{ParticipantID: 1, Amount: 500, Position: 3}, // top-up keeps its own range
		},
		TotalValue: 1500,
	}

	ranges := TicketRanges(ledger)

	require.Len(t, ranges, 4)
	var cursor int64
	for i, r := range ranges {
		assert.Equal(t, cursor, r.Start, "range %d start", i)
		cursor = r.End
	}
	assert.Equal(t, int64(1500), cursor)
}

func TestResolveMinefield_MultiplierGrowsPerReveal(t *testing.T) {
	cfg := zeroFeeConfig()
	gameID := uuid.New()

	prev := 0.0
	for picks := 1; picks <= 5; picks++ {
		m := cfg.MultiplierAt(25, 3, picks)
		assert.Greater(t, m, prev, "multiplier after %d reveals", picks)
		prev = m
	}

	game := &models.Game{
		ID:         gameID,
		Kind:       models.GameKindMinefield,
		TotalValue: 1000,
		Params: models.GameParams{
			Minefield: &models.MinefieldParams{TotalCells: 25, MineCount: 3, Picks: []int{5, 6, 7, 8, 9}},
		},
	}
	ledger := &models.FrozenLedger{
		GameID:     gameID,
		Stakes:     []*models.Stake{{GameID: gameID, ParticipantID: 7, Amount: 1000, EntryKind: models.EntryKindBalance}},
		TotalValue: 1000,
	}

	// mines land on cells 0, 1, 2 with a stream of tiny rolls
	outcome, err := Resolve(cfg, game, ledger, fixedDerive(0.0, 0.0, 0.0))

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, outcome.Detail.MineCells)
	assert.False(t, outcome.Detail.HitMine)
	assert.Equal(t, []int{5, 6, 7, 8, 9}, outcome.Detail.RevealedCells)

	expected := int64(1000 * cfg.MultiplierAt(25, 3, 5))
	assert.Equal(t, expected, outcome.Payouts[7])
	// the fee is the house side of the identity, negative on a win this size
	assert.Equal(t, int64(1000)-expected, outcome.Fee)
	assert.Equal(t, outcome.PayoutTotal()+outcome.Fee, int64(1000))
}

func TestResolveMinefield_HitMineZeroesPayout(t *testing.T) {
	cfg := zeroFeeConfig()
	gameID := uuid.New()

	game := &models.Game{
		ID:         gameID,
		Kind:       models.GameKindMinefield,
		TotalValue: 1000,
		Params: models.GameParams{
			Minefield: &models.MinefieldParams{TotalCells: 25, MineCount: 3, Picks: []int{5, 0}},
		},
	}
	ledger := &models.FrozenLedger{
		GameID:     gameID,
		Stakes:     []*models.Stake{{GameID: gameID, ParticipantID: 7, Amount: 1000, EntryKind: models.EntryKindBalance}},
		TotalValue: 1000,
	}

	outcome, err := Resolve(cfg, game, ledger, fixedDerive(0.0))

	require.NoError(t, err)
	assert.True(t, outcome.Detail.HitMine)
	assert.Empty(t, outcome.WinnerIDs)
	assert.Equal(t, int64(0), outcome.Payouts[7])
	assert.Equal(t, []int{5}, outcome.Detail.RevealedCells)
	assert.Equal(t, float64(0), outcome.Detail.Multiplier)
	assert.Equal(t, int64(1000), outcome.Fee)
}

func TestResolveMinefield_TableOverrideWins(t *testing.T) {
	cfg := zeroFeeConfig()
	cfg.MinefieldTable = map[MultiplierKey]float64{
		{TotalCells: 25, MineCount: 3, Revealed: 1}: 1.5,
	}

	assert.Equal(t, 1.5, cfg.MultiplierAt(25, 3, 1))
	// uncovered entries fall back to the computed odds
	assert.InDelta(t, 25.0/22.0*24.0/21.0, cfg.MultiplierAt(25, 3, 2), 1e-9)
}

func TestMineLayout_DistinctCellsWithinRange(t *testing.T) {
	gameID := uuid.New()
	ledger := &models.FrozenLedger{GameID: gameID, TotalValue: 1}
	derive := seededDerive(t, &models.Game{ID: gameID}, ledger)

	mines := MineLayout(25, 8, derive)

	require.Len(t, mines, 8)
	seen := make(map[int]bool)
	for _, cell := range mines {
		assert.GreaterOrEqual(t, cell, 0)
		assert.Less(t, cell, 25)
		assert.False(t, seen[cell], "cell %d selected twice", cell)
		seen[cell] = true
	}
}

func crateBattleFixture(tieMode models.TieMode) (*models.Game, *models.FrozenLedger) {
	gameID := uuid.New()
	game := &models.Game{
		ID:         gameID,
		Kind:       models.GameKindCrateBattle,
		TotalValue: 2000,
		Params: models.GameParams{
			Seats:   2,
			TieMode: tieMode,
			Crates:  []string{"basic"},
		},
	}
	ledger := &models.FrozenLedger{
		GameID: gameID,
		Stakes: []*models.Stake{
			{GameID: gameID, ParticipantID: 1, Amount: 1000, EntryKind: models.EntryKindBalance, Position: 0},
			{GameID: gameID, ParticipantID: 2, Amount: 1000, EntryKind: models.EntryKindBalance, Position: 1},
		},
		TotalValue: 2000,
	}
	return game, ledger
}

func TestResolveCrateBattle_HighestTotalTakesPot(t *testing.T) {
	game, ledger := crateBattleFixture(models.TieModeTiebreak)

	// opening 1 (participant 1) rolls into the rare item, opening 2 stays common
	outcome, err := Resolve(zeroFeeConfig(), game, ledger, fixedDerive(0.1, 0.9, 0.1))

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, outcome.WinnerIDs)
	assert.Equal(t, int64(2000), outcome.Payouts[1])
	assert.Equal(t, int64(0), outcome.Payouts[2])
	assert.False(t, outcome.Detail.TieBroken)

	require.Len(t, outcome.Detail.Openings, 2)
	assert.Equal(t, "Plating", outcome.Detail.Openings[0].ItemName)
	assert.Equal(t, "Scrap", outcome.Detail.Openings[1].ItemName)
	assert.Equal(t, 1, outcome.Detail.Openings[0].Index)
	assert.Equal(t, 2, outcome.Detail.Openings[1].Index)
}

func TestResolveCrateBattle_TieSplitsPot(t *testing.T) {
	game, ledger := crateBattleFixture(models.TieModeSplit)
	game.TotalValue = 2001
	ledger.TotalValue = 2001
	ledger.Stakes[1].Amount = 1001

	// identical rolls, identical totals
	outcome, err := Resolve(zeroFeeConfig(), game, ledger, fixedDerive(0.1, 0.1, 0.1))

	require.NoError(t, err)
	assert.False(t, outcome.Detail.TieBroken)
	// remainder lands on the earliest-joined leader
	assert.Equal(t, int64(1001), outcome.Payouts[1])
	assert.Equal(t, int64(1000), outcome.Payouts[2])
	assert.Equal(t, outcome.PayoutTotal(), int64(2001))
}

func TestResolveCrateBattle_TiebreakPicksSingleWinner(t *testing.T) {
	game, ledger := crateBattleFixture(models.TieModeTiebreak)

	// openings tie; derive(3) = 0.6 picks the second leader
	outcome, err := Resolve(zeroFeeConfig(), game, ledger, fixedDerive(0.1, 0.1, 0.1, 0.6))

	require.NoError(t, err)
	assert.True(t, outcome.Detail.TieBroken)
	assert.Equal(t, []int64{2, 1}, outcome.WinnerIDs)
	assert.Equal(t, int64(2000), outcome.Payouts[2])
	assert.Equal(t, int64(0), outcome.Payouts[1])
}

func TestResolve_Determinism(t *testing.T) {
	game, ledger := crateBattleFixture(models.TieModeTiebreak)
	derive := seededDerive(t, game, ledger)

	first, err := Resolve(zeroFeeConfig(), game, ledger, derive)
	require.NoError(t, err)
	second, err := Resolve(zeroFeeConfig(), game, ledger, derive)
	require.NoError(t, err)

	assert.Equal(t, first.WinnerIDs, second.WinnerIDs)
	assert.Equal(t, first.Payouts, second.Payouts)
	assert.Equal(t, first.RNGOutput, second.RNGOutput)
	assert.Equal(t, first.Detail.Openings, second.Detail.Openings)
}

func TestResolve_ValueConservationAcrossKinds(t *testing.T) {
	cfg := zeroFeeConfig()
	cfg.FeeBps[models.GameKindJackpot] = 500
	cfg.FeeBps[models.GameKindCrateBattle] = 250

	for i := 0; i < 50; i++ {
		name := fmt.Sprintf("round-%d", i)
		t.Run(name, func(t *testing.T) {
			coinGame, coinLedger := coinflipLedger(int64(100 + i*13))
			crateGame, crateLedger := crateBattleFixture(models.TieModeSplit)

			jackpotID := uuid.New()
			jackpotLedger := &models.FrozenLedger{
				GameID: jackpotID,
				Stakes: []*models.Stake{
					{ParticipantID: 1, Amount: int64(30 + i), Position: 0},
					{ParticipantID: 2, Amount: int64(70 + i*7), Position: 1},
					{ParticipantID: 3, Amount: int64(11 + i*3), Position: 2},
				},
			}
			for _, s := range jackpotLedger.Stakes {
				jackpotLedger.TotalValue += s.Amount
			}
			jackpotGame := &models.Game{ID: jackpotID, Kind: models.GameKindJackpot, TotalValue: jackpotLedger.TotalValue}

			cases := []struct {
				game   *models.Game
				ledger *models.FrozenLedger
			}{
				{coinGame, coinLedger},
				{jackpotGame, jackpotLedger},
				{crateGame, crateLedger},
			}

			for _, tc := range cases {
				outcome, err := Resolve(cfg, tc.game, tc.ledger, seededDerive(t, tc.game, tc.ledger))
				require.NoError(t, err, "kind %s", tc.game.Kind)

				for id, payout := range outcome.Payouts {
					assert.GreaterOrEqual(t, payout, int64(0), "kind %s participant %d", tc.game.Kind, id)
				}
				assert.Equal(t, tc.ledger.TotalValue, outcome.PayoutTotal()+outcome.Fee,
					"kind %s conserves value", tc.game.Kind)
			}
		})
	}
}
