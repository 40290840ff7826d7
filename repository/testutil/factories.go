package testutil

import (
	"crateclash/models"

	"github.com/google/uuid"
)

// NewOpenGame builds an unsaved open game of the given kind
func NewOpenGame(kind models.GameKind) *models.Game {
	return &models.Game{
		ID:     uuid.New(),
		Kind:   kind,
		Status: models.GameStatusOpen,
	}
}

// NewCoinflipGame builds an unsaved open coinflip
func NewCoinflipGame() *models.Game {
	game := NewOpenGame(models.GameKindCoinflip)
	game.Params = models.GameParams{Seats: 2}
	return game
}

// NewMinefieldGame builds an unsaved open minefield round
func NewMinefieldGame(totalCells, mineCount int, picks []int) *models.Game {
	game := NewOpenGame(models.GameKindMinefield)
	game.Params = models.GameParams{
		Minefield: &models.MinefieldParams{
			TotalCells: totalCells,
			MineCount:  mineCount,
			Picks:      picks,
		},
	}
	return game
}

// NewStake builds an unsaved balance stake
func NewStake(gameID uuid.UUID, participantID, amount int64) *models.Stake {
	return &models.Stake{
		GameID:        gameID,
		ParticipantID: participantID,
		Amount:        amount,
		EntryKind:     models.EntryKindBalance,
	}
}

// NewCoinflipStake builds an unsaved coinflip stake with a declared side
func NewCoinflipStake(gameID uuid.UUID, participantID, amount int64, side models.CoinSide) *models.Stake {
	stake := NewStake(gameID, participantID, amount)
	stake.Side = side
	return stake
}
