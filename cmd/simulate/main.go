// Standalone simulation tool for the crateclash resolution engine.
// It drives the production resolvers with freshly generated seeds and
// reports empirical win rates and return-to-player against expectation.
package main

import (
	"fmt"
	"log"
	"math"

	"crateclash/engine"
	"crateclash/fair"
	"crateclash/models"

	"github.com/google/uuid"
)

const trials = 100000

func main() {
	fmt.Println("=== crateclash resolution engine simulation ===")

	cfg := &engine.Config{
		FeeBps: map[models.GameKind]int64{
			models.GameKindJackpot:     500,
			models.GameKindCrateBattle: 250,
		},
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

	simulateCoinflip(cfg, 1000)
	simulateJackpot(cfg, 300, 700)
	simulateCrateBattle(cfg, 1000)
	simulateDerivationUniformity()
}

// simulateCoinflip runs equal-stake flips and checks the first side wins
// half the time within sampling noise.
func simulateCoinflip(cfg *engine.Config, stake int64) {
	firstWins := 0
	for i := 0; i < trials; i++ {
		game, ledger := coinflipRound(stake)
		outcome := resolve(cfg, game, ledger)
		if outcome.WinnerIDs[0] == 1 {
			firstWins++
		}
		if outcome.PayoutTotal()+outcome.Fee != game.TotalValue {
			log.Fatalf("coinflip round %d broke conservation", i)
		}
	}
	report("coinflip first-side win rate", float64(firstWins)/trials, 0.5)
}

// simulateJackpot runs rounds where participant 1 holds 30% of the pot and
// checks their win rate tracks their ticket share, with RTP of 1 - fee.
func simulateJackpot(cfg *engine.Config, stakeA, stakeB int64) {
	var wins int
	var returned, staked int64
	for i := 0; i < trials; i++ {
		game, ledger := jackpotRound(stakeA, stakeB)
		outcome := resolve(cfg, game, ledger)
		if outcome.WinnerIDs[0] == 1 {
			wins++
		}
		returned += outcome.PayoutTotal()
		staked += game.TotalValue
	}
	share := float64(stakeA) / float64(stakeA+stakeB)
	report("jackpot minority-stake win rate", float64(wins)/trials, share)
	report("jackpot return to player", float64(returned)/float64(staked),
		1-float64(cfg.FeeBps[models.GameKindJackpot])/10000)
}

// simulateCrateBattle runs two-seat battles over the same crate and checks
// the seats win equally often and the pot less fee is always paid out.
func simulateCrateBattle(cfg *engine.Config, stake int64) {
	seatWins := make(map[int64]int)
	for i := 0; i < trials; i++ {
		game, ledger := crateBattleRound(stake)
		outcome := resolve(cfg, game, ledger)
		seatWins[outcome.WinnerIDs[0]]++
		if outcome.PayoutTotal()+outcome.Fee != game.TotalValue {
			log.Fatalf("crate battle round %d broke conservation", i)
		}
	}
	report("crate battle seat 1 win rate", float64(seatWins[1])/trials, 0.5)
}

// simulateDerivationUniformity buckets a long stretch of one derivation
// stream and prints the distribution with a chi-squared statistic.
func simulateDerivationUniformity() {
	seed, err := fair.GenerateSeed()
	if err != nil {
		log.Fatalf("generate seed: %v", err)
	}
	gameID := uuid.New().String()

	buckets := make([]int, 10)
	for i := 0; i < trials; i++ {
		v := fair.DeriveFloat(seed, gameID, "simulation", i)
		buckets[int(v*10)]++
	}

	expected := float64(trials) / 10
	chiSquared := 0.0
	fmt.Println("\nderivation stream distribution:")
	for i, count := range buckets {
		chiSquared += math.Pow(float64(count)-expected, 2) / expected
		fmt.Printf("  [%.1f, %.1f): %d\n", float64(i)/10, float64(i+1)/10, count)
	}
	// 9 degrees of freedom, 99th percentile
	fmt.Printf("chi-squared: %.2f (threshold 21.67)\n", chiSquared)
}

func resolve(cfg *engine.Config, game *models.Game, ledger *models.FrozenLedger) *models.Outcome {
	seed, err := fair.GenerateSeed()
	if err != nil {
		log.Fatalf("generate seed: %v", err)
	}
	digest := ledger.Digest()
	derive := func(index int) float64 {
		return fair.DeriveFloat(seed, game.ID.String(), digest, index)
	}
	outcome, err := engine.Resolve(cfg, game, ledger, derive)
	if err != nil {
		log.Fatalf("resolve %s: %v", game.Kind, err)
	}
	return outcome
}

func coinflipRound(stake int64) (*models.Game, *models.FrozenLedger) {
	game := &models.Game{
		ID:         uuid.New(),
		Kind:       models.GameKindCoinflip,
		Status:     models.GameStatusResolving,
		TotalValue: 2 * stake,
		Params:     models.GameParams{Seats: 2},
	}
	ledger := &models.FrozenLedger{
		GameID: game.ID,
		Stakes: []*models.Stake{
			{GameID: game.ID, ParticipantID: 1, Amount: stake, EntryKind: models.EntryKindBalance, Side: models.CoinSideHeads, Position: 0},
			{GameID: game.ID, ParticipantID: 2, Amount: stake, EntryKind: models.EntryKindBalance, Side: models.CoinSideTails, Position: 1},
		},
		TotalValue: game.TotalValue,
	}
	return game, ledger
}

func jackpotRound(stakeA, stakeB int64) (*models.Game, *models.FrozenLedger) {
	game := &models.Game{
		ID:         uuid.New(),
		Kind:       models.GameKindJackpot,
		Status:     models.GameStatusResolving,
		TotalValue: stakeA + stakeB,
	}
	ledger := &models.FrozenLedger{
		GameID: game.ID,
		Stakes: []*models.Stake{
			{GameID: game.ID, ParticipantID: 1, Amount: stakeA, EntryKind: models.EntryKindBalance, Position: 0},
			{GameID: game.ID, ParticipantID: 2, Amount: stakeB, EntryKind: models.EntryKindBalance, Position: 1},
		},
		TotalValue: game.TotalValue,
	}
	return game, ledger
}

func crateBattleRound(stake int64) (*models.Game, *models.FrozenLedger) {
	game := &models.Game{
		ID:         uuid.New(),
		Kind:       models.GameKindCrateBattle,
		Status:     models.GameStatusResolving,
		TotalValue: 2 * stake,
		Params: models.GameParams{
			Seats:   2,
			TieMode: models.TieModeTiebreak,
			Crates:  []string{"basic"},
		},
	}
	ledger := &models.FrozenLedger{
		GameID: game.ID,
		Stakes: []*models.Stake{
			{GameID: game.ID, ParticipantID: 1, Amount: stake, EntryKind: models.EntryKindBalance, Position: 0},
			{GameID: game.ID, ParticipantID: 2, Amount: stake, EntryKind: models.EntryKindBalance, Position: 1},
		},
		TotalValue: game.TotalValue,
	}
	return game, ledger
}

func report(label string, actual, expected float64) {
	deviation := actual - expected
	verdict := "ok"
	if math.Abs(deviation) > 0.02 {
		verdict = "DRIFT"
	}
	fmt.Printf("%-36s actual %.4f expected %.4f deviation %+.4f %s\n",
		label, actual, expected, deviation, verdict)
}
