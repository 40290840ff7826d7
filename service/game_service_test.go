package service

import (
	"context"
	"testing"

	"crateclash/engine"
	"crateclash/events"
	"crateclash/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testTables() *engine.Config {
	return &engine.Config{
		FeeBps: map[models.GameKind]int64{
			models.GameKindJackpot: 500,
		},
		Crates: map[string]*models.Crate{
			"starter": {
				ID:   "starter",
				Name: "Starter Crate",
				Items: []models.CrateItem{
					{Name: "Common Scrap", Value: 50, DropChance: 0.8},
					{Name: "Rare Plating", Value: 500, DropChance: 0.2},
				},
			},
		},
	}
}

func TestGameService_CreateGame_Coinflip(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockGameRepo := new(MockGameRepository)
	mockUoW.SetRepositories(nil, nil, mockGameRepo, nil)

	service := NewGameService(mockFactory, testTables())

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockGameRepo.On("Create", ctx, mock.MatchedBy(func(g *models.Game) bool {
		return g.Kind == models.GameKindCoinflip &&
			g.Status == models.GameStatusOpen &&
			g.Params.Seats == 2 &&
			g.ID != uuid.Nil
	})).Return(nil)

	game, err := service.CreateGame(ctx, models.GameKindCoinflip, models.GameParams{})

	assert.NoError(t, err)
	assert.NotNil(t, game)
	assert.Equal(t, 2, game.Params.Seats)

	mockFactory.AssertExpectations(t)
	mockGameRepo.AssertExpectations(t)
}

func TestGameService_CreateGame_Minefield_InvalidMineCount(t *testing.T) {
	ctx := context.Background()

	mockFactory := new(MockUnitOfWorkFactory)
	service := NewGameService(mockFactory, testTables())

	_, err := service.CreateGame(ctx, models.GameKindMinefield, models.GameParams{
		Minefield: &models.MinefieldParams{
			TotalCells: 25,
			MineCount:  25,
			Picks:      []int{0},
		},
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "mine count")
	mockFactory.AssertNotCalled(t, "Create")
}

func TestGameService_CreateGame_CrateBattle_UnknownCrate(t *testing.T) {
	ctx := context.Background()

	mockFactory := new(MockUnitOfWorkFactory)
	service := NewGameService(mockFactory, testTables())

	_, err := service.CreateGame(ctx, models.GameKindCrateBattle, models.GameParams{
		Seats:  2,
		Crates: []string{"no-such-crate"},
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown crate")
	mockFactory.AssertNotCalled(t, "Create")
}

func TestGameService_PlaceStake_InvalidAmount(t *testing.T) {
	ctx := context.Background()

	mockFactory := new(MockUnitOfWorkFactory)
	service := NewGameService(mockFactory, testTables())

	_, err := service.PlaceStake(ctx, uuid.New(), 123456, 0, models.EntryKindBalance, nil, "")

	var invalidAmount *models.InvalidAmountError
	require.ErrorAs(t, err, &invalidAmount)
	assert.Equal(t, int64(0), invalidAmount.Amount)
	mockFactory.AssertNotCalled(t, "Create")
}

func TestGameService_PlaceStake_BannedParticipant(t *testing.T) {
	ctx := context.Background()
	gameID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockUoW.SetRepositories(mockUserRepo, nil, nil, nil)

	service := NewGameService(mockFactory, testTables())

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByID", ctx, int64(123456)).Return(&models.User{
		ID:       123456,
		Username: "cheater",
		Banned:   true,
	}, nil)

	_, err := service.PlaceStake(ctx, gameID, 123456, 1000, models.EntryKindBalance, nil, models.CoinSideHeads)

	var forbidden *models.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, int64(123456), forbidden.ParticipantID)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestGameService_PlaceStake_GameNotFound(t *testing.T) {
	ctx := context.Background()
	gameID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockGameRepo := new(MockGameRepository)
	mockUoW.SetRepositories(mockUserRepo, nil, mockGameRepo, nil)

	service := NewGameService(mockFactory, testTables())

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByID", ctx, int64(123456)).Return(&models.User{ID: 123456, AvailableBalance: 10000}, nil)
	mockGameRepo.On("GetByIDForUpdate", ctx, gameID).Return(nil, nil)

	_, err := service.PlaceStake(ctx, gameID, 123456, 1000, models.EntryKindBalance, nil, models.CoinSideHeads)

	var notFound *models.GameNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, gameID, notFound.GameID)
}

func TestGameService_PlaceStake_GameAlreadyLocked(t *testing.T) {
	ctx := context.Background()
	gameID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockGameRepo := new(MockGameRepository)
	mockUoW.SetRepositories(mockUserRepo, nil, mockGameRepo, nil)

	service := NewGameService(mockFactory, testTables())

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByID", ctx, int64(123456)).Return(&models.User{ID: 123456, AvailableBalance: 10000}, nil)
	mockGameRepo.On("GetByIDForUpdate", ctx, gameID).Return(&models.Game{
		ID:     gameID,
		Kind:   models.GameKindJackpot,
		Status: models.GameStatusLocked,
	}, nil)

	_, err := service.PlaceStake(ctx, gameID, 123456, 1000, models.EntryKindBalance, nil, "")

	var invalidState *models.InvalidStateError
	require.ErrorAs(t, err, &invalidState)
	assert.Equal(t, models.GameStatusLocked, invalidState.Actual)
	assert.Equal(t, models.GameStatusOpen, invalidState.Expected)
	mockGameRepo.AssertNotCalled(t, "AddStake")
}

func TestGameService_PlaceStake_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	gameID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockGameRepo := new(MockGameRepository)
	mockUoW.SetRepositories(mockUserRepo, nil, mockGameRepo, nil)

	service := NewGameService(mockFactory, testTables())

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	// 500 escrowed elsewhere leaves too little for this stake
	mockUserRepo.On("GetByID", ctx, int64(123456)).Return(&models.User{
		ID:               123456,
		Balance:          1000,
		AvailableBalance: 500,
	}, nil)
	mockGameRepo.On("GetByIDForUpdate", ctx, gameID).Return(&models.Game{
		ID:     gameID,
		Kind:   models.GameKindJackpot,
		Status: models.GameStatusOpen,
	}, nil)
	mockGameRepo.On("GetStakes", ctx, gameID).Return([]*models.Stake{}, nil)

	_, err := service.PlaceStake(ctx, gameID, 123456, 1000, models.EntryKindBalance, nil, "")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient balance")
	mockGameRepo.AssertNotCalled(t, "AddStake")
}

func TestGameService_PlaceStake_CoinflipSideTaken(t *testing.T) {
	ctx := context.Background()
	gameID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockGameRepo := new(MockGameRepository)
	mockUoW.SetRepositories(mockUserRepo, nil, mockGameRepo, nil)

	service := NewGameService(mockFactory, testTables())

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByID", ctx, int64(222)).Return(&models.User{ID: 222, AvailableBalance: 10000}, nil)
	mockGameRepo.On("GetByIDForUpdate", ctx, gameID).Return(&models.Game{
		ID:         gameID,
		Kind:       models.GameKindCoinflip,
		Status:     models.GameStatusOpen,
		TotalValue: 1000,
		Params:     models.GameParams{Seats: 2},
	}, nil)
	mockGameRepo.On("GetStakes", ctx, gameID).Return([]*models.Stake{
		{GameID: gameID, ParticipantID: 111, Amount: 1000, EntryKind: models.EntryKindBalance, Side: models.CoinSideHeads, Position: 0},
	}, nil)

	_, err := service.PlaceStake(ctx, gameID, 222, 1000, models.EntryKindBalance, nil, models.CoinSideHeads)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already taken")
	mockGameRepo.AssertNotCalled(t, "AddStake")
}

func TestGameService_PlaceStake_ItemRejectedWithoutSingleWinner(t *testing.T) {
	ctx := context.Background()
	itemRef := "crate:alpha"

	// Item stakes settle by handing the item to the single pot winner, so
	// kinds that split or multiply the pot cannot accept them.
	cases := []struct {
		name string
		game *models.Game
		want string
	}{
		{
			name: "minefield",
			game: &models.Game{
				Kind:   models.GameKindMinefield,
				Status: models.GameStatusOpen,
				Params: models.GameParams{Seats: 1, Minefield: &models.MinefieldParams{TotalCells: 25, MineCount: 5, Picks: []int{0, 1, 2}}},
			},
			want: "must be balance",
		},
		{
			name: "split-tie crate battle",
			game: &models.Game{
				Kind:   models.GameKindCrateBattle,
				Status: models.GameStatusOpen,
				Params: models.GameParams{Seats: 2, TieMode: models.TieModeSplit, Crates: []string{"common", "common"}},
			},
			want: "split pot cannot divide an item",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gameID := uuid.New()
			tc.game.ID = gameID

			mockUoW := new(MockUnitOfWork)
			mockFactory := new(MockUnitOfWorkFactory)
			mockUserRepo := new(MockUserRepository)
			mockGameRepo := new(MockGameRepository)
			mockUoW.SetRepositories(mockUserRepo, nil, mockGameRepo, nil)

			service := NewGameService(mockFactory, testTables())

			mockFactory.On("Create").Return(mockUoW)
			mockUoW.On("Begin", ctx).Return(nil)
			mockUoW.On("Rollback").Return(nil)

			mockUserRepo.On("GetByID", ctx, int64(111)).Return(&models.User{ID: 111, AvailableBalance: 10000}, nil)
			mockGameRepo.On("GetByIDForUpdate", ctx, gameID).Return(tc.game, nil)
			mockGameRepo.On("GetStakes", ctx, gameID).Return([]*models.Stake{}, nil)

			_, err := service.PlaceStake(ctx, gameID, 111, 1000, models.EntryKindItem, &itemRef, "")

			assert.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
			mockGameRepo.AssertNotCalled(t, "AddStake")
		})
	}
}

func TestGameService_PlaceStake_CoinflipSecondStakeLocksGame(t *testing.T) {
	ctx := context.Background()
	gameID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockGameRepo := new(MockGameRepository)
	mockPublisher := new(MockEventPublisher)
	mockUoW.SetRepositories(mockUserRepo, nil, mockGameRepo, nil)
	mockUoW.SetEventBus(mockPublisher)

	service := NewGameService(mockFactory, testTables())

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByID", ctx, int64(222)).Return(&models.User{ID: 222, AvailableBalance: 10000}, nil)
	mockGameRepo.On("GetByIDForUpdate", ctx, gameID).Return(&models.Game{
		ID:         gameID,
		Kind:       models.GameKindCoinflip,
		Status:     models.GameStatusOpen,
		TotalValue: 1000,
		Params:     models.GameParams{Seats: 2},
	}, nil)
	mockGameRepo.On("GetStakes", ctx, gameID).Return([]*models.Stake{
		{GameID: gameID, ParticipantID: 111, Amount: 1000, EntryKind: models.EntryKindBalance, Side: models.CoinSideHeads, Position: 0},
	}, nil)
	mockGameRepo.On("AddStake", ctx, mock.MatchedBy(func(s *models.Stake) bool {
		return s.GameID == gameID &&
			s.ParticipantID == 222 &&
			s.Amount == 1000 &&
			s.Side == models.CoinSideTails
	})).Return(nil)

	// The second stake completes the pair: the game locks in the same
	// transaction with a fresh commitment over the frozen ledger.
	mockGameRepo.On("Lock", ctx, mock.MatchedBy(func(g *models.Game) bool {
		return g.ID == gameID &&
			g.TotalValue == 2000 &&
			g.Seed != "" &&
			g.SeedCommitment != "" &&
			g.LedgerDigest != ""
	})).Return(nil)

	mockPublisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		stake, ok := e.(events.StakePlacedEvent)
		return ok && stake.ParticipantID == 222 && stake.Amount == 1000
	})).Return()
	mockPublisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		locked, ok := e.(events.GameLockedEvent)
		return ok && locked.GameID == gameID && locked.TotalValue == 2000 && locked.SeedCommitment != ""
	})).Return()

	stake, err := service.PlaceStake(ctx, gameID, 222, 1000, models.EntryKindBalance, nil, models.CoinSideTails)

	require.NoError(t, err)
	assert.Equal(t, int64(222), stake.ParticipantID)

	mockGameRepo.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

func TestGameService_CancelGame_SingleParticipant(t *testing.T) {
	ctx := context.Background()
	gameID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockGameRepo := new(MockGameRepository)
	mockUserRepo := new(MockUserRepository)
	mockHistoryRepo := new(MockBalanceHistoryRepository)
	mockUoW.SetRepositories(mockUserRepo, mockHistoryRepo, mockGameRepo, nil)

	service := NewGameService(mockFactory, testTables())

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockGameRepo.On("GetByIDForUpdate", ctx, gameID).Return(&models.Game{
		ID:         gameID,
		Kind:       models.GameKindJackpot,
		Status:     models.GameStatusOpen,
		TotalValue: 3000,
	}, nil)
	mockGameRepo.On("GetStakes", ctx, gameID).Return([]*models.Stake{
		{GameID: gameID, ParticipantID: 111, Amount: 3000, EntryKind: models.EntryKindBalance},
	}, nil)
	mockGameRepo.On("MarkCancelled", ctx, gameID).Return(nil)

	// Escrow release leaves an audit entry without moving the balance
	mockUserRepo.On("GetByID", ctx, int64(111)).Return(&models.User{ID: 111, Balance: 10000}, nil)
	mockHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.UserID == 111 &&
			h.TransactionType == models.TransactionTypeGameRefund &&
			h.ChangeAmount == 0 &&
			h.BalanceBefore == 10000 && h.BalanceAfter == 10000 &&
			h.TransactionMetadata["released"] == int64(3000)
	})).Return(nil)

	err := service.CancelGame(ctx, gameID)

	assert.NoError(t, err)
	mockGameRepo.AssertExpectations(t)
	mockHistoryRepo.AssertExpectations(t)
}

func TestGameService_CancelGame_TooLate(t *testing.T) {
	ctx := context.Background()
	gameID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockGameRepo := new(MockGameRepository)
	mockUoW.SetRepositories(nil, nil, mockGameRepo, nil)

	service := NewGameService(mockFactory, testTables())

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	// Two participants and the minimum value reached: cancellation would be
	// unfair, the game has to run.
	mockGameRepo.On("GetByIDForUpdate", ctx, gameID).Return(&models.Game{
		ID:         gameID,
		Kind:       models.GameKindJackpot,
		Status:     models.GameStatusOpen,
		TotalValue: 5000,
		Params:     models.GameParams{MinValue: 2000},
	}, nil)
	mockGameRepo.On("GetStakes", ctx, gameID).Return([]*models.Stake{
		{GameID: gameID, ParticipantID: 111, Amount: 2000, EntryKind: models.EntryKindBalance},
		{GameID: gameID, ParticipantID: 222, Amount: 3000, EntryKind: models.EntryKindBalance},
	}, nil)

	err := service.CancelGame(ctx, gameID)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no longer cancellable")
	mockGameRepo.AssertNotCalled(t, "MarkCancelled")
}

func TestGameService_GetProof_NotSettled(t *testing.T) {
	ctx := context.Background()
	gameID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockGameRepo := new(MockGameRepository)
	mockUoW.SetRepositories(nil, nil, mockGameRepo, nil)

	service := NewGameService(mockFactory, testTables())

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockGameRepo.On("GetDetailByID", ctx, gameID).Return(&models.GameDetail{
		Game: &models.Game{
			ID:     gameID,
			Kind:   models.GameKindCoinflip,
			Status: models.GameStatusLocked,
		},
	}, nil)

	_, err := service.GetProof(ctx, gameID)

	var invalidState *models.InvalidStateError
	require.ErrorAs(t, err, &invalidState)
	assert.Equal(t, models.GameStatusSettled, invalidState.Expected)
}
