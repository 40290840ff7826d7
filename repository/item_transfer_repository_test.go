package repository

import (
	"context"
	"testing"

	"crateclash/models"
	"crateclash/repository/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemTransferRepository_RecordAndGet(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	userRepo := NewUserRepository(testDB.DB)
	gameRepo := NewGameRepository(testDB.DB)
	repo := NewItemTransferRepository(testDB.DB)
	ctx := context.Background()

	_, err := userRepo.Create(ctx, 111, "winner", 10000)
	require.NoError(t, err)
	_, err = userRepo.Create(ctx, 222, "loser", 10000)
	require.NoError(t, err)
	game := testutil.NewCoinflipGame()
	require.NoError(t, gameRepo.Create(ctx, game))

	transfer := &models.ItemTransfer{
		GameID:            game.ID,
		ItemRef:           "crate:omega",
		FromParticipantID: 222,
		ToParticipantID:   111,
		Value:             1000,
	}
	require.NoError(t, repo.Record(ctx, transfer))
	assert.NotZero(t, transfer.ID)
	assert.False(t, transfer.CreatedAt.IsZero())

	got, err := repo.GetByGame(ctx, game.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "crate:omega", got[0].ItemRef)
	assert.Equal(t, int64(222), got[0].FromParticipantID)
	assert.Equal(t, int64(111), got[0].ToParticipantID)
	assert.Equal(t, int64(1000), got[0].Value)

	t.Run("unknown game is empty", func(t *testing.T) {
		got, err := repo.GetByGame(ctx, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
