package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGame_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    GameStatus
		to      GameStatus
		allowed bool
	}{
		{GameStatusOpen, GameStatusLocked, true},
		{GameStatusOpen, GameStatusCancelled, true},
		{GameStatusOpen, GameStatusResolving, false},
		{GameStatusOpen, GameStatusSettled, false},
		{GameStatusLocked, GameStatusResolving, true},
		{GameStatusLocked, GameStatusCancelled, false},
		{GameStatusLocked, GameStatusSettled, false},
		{GameStatusResolving, GameStatusSettled, true},
		{GameStatusResolving, GameStatusCancelled, false},
		{GameStatusSettled, GameStatusOpen, false},
		{GameStatusCancelled, GameStatusOpen, false},
	}

	for _, tt := range tests {
		game := &Game{Status: tt.from}
		assert.Equal(t, tt.allowed, game.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestGame_IsCancellable(t *testing.T) {
	open := &Game{Status: GameStatusOpen, TotalValue: 5000, Params: GameParams{MinValue: 2000}}

	assert.True(t, open.IsCancellable(0))
	assert.True(t, open.IsCancellable(1))
	assert.False(t, open.IsCancellable(2), "two participants at threshold")

	belowMin := &Game{Status: GameStatusOpen, TotalValue: 1000, Params: GameParams{MinValue: 2000}}
	assert.True(t, belowMin.IsCancellable(3), "still below the minimum value")

	locked := &Game{Status: GameStatusLocked}
	assert.False(t, locked.IsCancellable(1))
}

func TestGame_ReadyToLock(t *testing.T) {
	coinflip := &Game{Kind: GameKindCoinflip, Status: GameStatusOpen}
	assert.False(t, coinflip.ReadyToLock(1))
	assert.True(t, coinflip.ReadyToLock(2))

	minefield := &Game{Kind: GameKindMinefield, Status: GameStatusOpen}
	assert.True(t, minefield.ReadyToLock(1))

	battle := &Game{Kind: GameKindCrateBattle, Status: GameStatusOpen, Params: GameParams{Seats: 3}}
	assert.False(t, battle.ReadyToLock(2))
	assert.True(t, battle.ReadyToLock(3))

	// jackpot readiness is threshold or timer driven, never automatic
	jackpot := &Game{Kind: GameKindJackpot, Status: GameStatusOpen}
	assert.False(t, jackpot.ReadyToLock(10))
}

func TestFrozenLedger_DigestBindsContent(t *testing.T) {
	gameID := uuid.New()
	ledger := &FrozenLedger{
		GameID: gameID,
		Stakes: []*Stake{
			{ParticipantID: 1, Amount: 100, EntryKind: EntryKindBalance, Side: CoinSideHeads, Position: 0},
			{ParticipantID: 2, Amount: 100, EntryKind: EntryKindBalance, Side: CoinSideTails, Position: 1},
		},
		TotalValue: 200,
	}

	digest := ledger.Digest()
	assert.Len(t, digest, 64)
	assert.Equal(t, digest, ledger.Digest(), "digest is stable")

	ledger.Stakes[0].Amount = 101
	assert.NotEqual(t, digest, ledger.Digest(), "amount change alters digest")
	ledger.Stakes[0].Amount = 100

	ledger.Stakes[0], ledger.Stakes[1] = ledger.Stakes[1], ledger.Stakes[0]
	assert.NotEqual(t, digest, ledger.Digest(), "order change alters digest")
}

func TestFrozenLedger_ParticipantIDsArrivalOrder(t *testing.T) {
	ledger := &FrozenLedger{
		Stakes: []*Stake{
			{ParticipantID: 30, Amount: 10, Position: 0},
			{ParticipantID: 10, Amount: 10, Position: 1},
			{ParticipantID: 30, Amount: 10, Position: 2},
			{ParticipantID: 20, Amount: 10, Position: 3},
		},
	}

	assert.Equal(t, []int64{30, 10, 20}, ledger.ParticipantIDs())
	assert.Equal(t, map[int64]int64{30: 20, 10: 10, 20: 10}, ledger.AmountByParticipant())
}

func TestCrate_Validate(t *testing.T) {
	valid := &Crate{
		ID: "c1",
		Items: []CrateItem{
			{Name: "a", Value: 10, DropChance: 0.25},
			{Name: "b", Value: 20, DropChance: 0.75},
		},
	}
	assert.NoError(t, valid.Validate())

	empty := &Crate{ID: "c2"}
	assert.Error(t, empty.Validate())

	badWeights := &Crate{
		ID:    "c3",
		Items: []CrateItem{{Name: "a", Value: 10, DropChance: 0.5}},
	}
	assert.Error(t, badWeights.Validate())
}

func TestCrate_Pick(t *testing.T) {
	crate := &Crate{
		ID: "c1",
		Items: []CrateItem{
			{Name: "common", Value: 10, DropChance: 0.7},
			{Name: "rare", Value: 100, DropChance: 0.3},
		},
	}

	assert.Equal(t, "common", crate.Pick(0.0).Name)
	assert.Equal(t, "common", crate.Pick(0.699).Name)
	assert.Equal(t, "rare", crate.Pick(0.7).Name)
	assert.Equal(t, "rare", crate.Pick(0.999).Name)
}
