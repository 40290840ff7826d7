package service

import (
	"context"
	"time"

	"crateclash/events"
	"crateclash/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockGameRepository is a mock implementation of GameRepository
type MockGameRepository struct {
	mock.Mock
}

func (m *MockGameRepository) Create(ctx context.Context, game *models.Game) error {
	args := m.Called(ctx, game)
	return args.Error(0)
}

func (m *MockGameRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Game), args.Error(1)
}

func (m *MockGameRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Game), args.Error(1)
}

func (m *MockGameRepository) GetDetailByID(ctx context.Context, id uuid.UUID) (*models.GameDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GameDetail), args.Error(1)
}

func (m *MockGameRepository) GetByStatus(ctx context.Context, status models.GameStatus) ([]*models.Game, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Game), args.Error(1)
}

func (m *MockGameRepository) GetStuckResolving(ctx context.Context, cutoff time.Time) ([]*models.Game, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Game), args.Error(1)
}

func (m *MockGameRepository) AddStake(ctx context.Context, stake *models.Stake) error {
	args := m.Called(ctx, stake)
	return args.Error(0)
}

func (m *MockGameRepository) GetStakes(ctx context.Context, gameID uuid.UUID) ([]*models.Stake, error) {
	args := m.Called(ctx, gameID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Stake), args.Error(1)
}

func (m *MockGameRepository) Lock(ctx context.Context, game *models.Game) error {
	args := m.Called(ctx, game)
	return args.Error(0)
}

func (m *MockGameRepository) ClaimForSettlement(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockGameRepository) MarkSettled(ctx context.Context, id uuid.UUID, revealedSeed string, settledAt time.Time) error {
	args := m.Called(ctx, id, revealedSeed, settledAt)
	return args.Error(0)
}

func (m *MockGameRepository) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockOutcomeRepository is a mock implementation of OutcomeRepository
type MockOutcomeRepository struct {
	mock.Mock
}

func (m *MockOutcomeRepository) Create(ctx context.Context, outcome *models.Outcome) error {
	args := m.Called(ctx, outcome)
	return args.Error(0)
}

func (m *MockOutcomeRepository) GetByGameID(ctx context.Context, gameID uuid.UUID) (*models.Outcome, error) {
	args := m.Called(ctx, gameID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Outcome), args.Error(1)
}

func (m *MockOutcomeRepository) MarkApplied(ctx context.Context, gameID uuid.UUID) (bool, error) {
	args := m.Called(ctx, gameID)
	return args.Bool(0), args.Error(1)
}

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, id int64, username string, initialBalance int64) (*models.User, error) {
	args := m.Called(ctx, id, username, initialBalance)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) AddBalance(ctx context.Context, id int64, amount int64) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *MockUserRepository) DeductBalance(ctx context.Context, id int64, amount int64) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *MockUserRepository) AddXP(ctx context.Context, id int64, amount int64) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockBalanceHistoryRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

// MockItemTransferRepository is a mock implementation of ItemTransferRepository
type MockItemTransferRepository struct {
	mock.Mock
}

func (m *MockItemTransferRepository) Record(ctx context.Context, transfer *models.ItemTransfer) error {
	args := m.Called(ctx, transfer)
	return args.Error(0)
}

func (m *MockItemTransferRepository) GetByGame(ctx context.Context, gameID uuid.UUID) ([]*models.ItemTransfer, error) {
	args := m.Called(ctx, gameID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ItemTransfer), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// nopPublisher discards events; the default bus of a MockUnitOfWork when a
// test has no event expectations.
type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) {}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock

	userRepo         UserRepository
	historyRepo      BalanceHistoryRepository
	gameRepo         GameRepository
	outcomeRepo      OutcomeRepository
	itemTransferRepo ItemTransferRepository
	eventBus         EventPublisher
}

// SetRepositories wires the repositories the test cares about; nil entries
// are allowed for repositories the code path never touches.
func (m *MockUnitOfWork) SetRepositories(userRepo UserRepository, historyRepo BalanceHistoryRepository, gameRepo GameRepository, outcomeRepo OutcomeRepository) {
	m.userRepo = userRepo
	m.historyRepo = historyRepo
	m.gameRepo = gameRepo
	m.outcomeRepo = outcomeRepo
}

// SetItemTransferRepository wires the item transfer repository for tests
// exercising item-stake settlement.
func (m *MockUnitOfWork) SetItemTransferRepository(repo ItemTransferRepository) {
	m.itemTransferRepo = repo
}

// SetEventBus overrides the default discarding event publisher
func (m *MockUnitOfWork) SetEventBus(bus EventPublisher) {
	m.eventBus = bus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) GameRepository() GameRepository {
	return m.gameRepo
}

func (m *MockUnitOfWork) OutcomeRepository() OutcomeRepository {
	return m.outcomeRepo
}

func (m *MockUnitOfWork) UserRepository() UserRepository {
	return m.userRepo
}

func (m *MockUnitOfWork) BalanceHistoryRepository() BalanceHistoryRepository {
	return m.historyRepo
}

func (m *MockUnitOfWork) ItemTransferRepository() ItemTransferRepository {
	return m.itemTransferRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	if m.eventBus == nil {
		return nopPublisher{}
	}
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
