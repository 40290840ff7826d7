package service

import (
	"context"
	"time"

	"crateclash/events"
	"crateclash/models"
	"github.com/google/uuid"
)

// GameRepository defines the interface for game and stake data access
type GameRepository interface {
	// Create inserts a new open game
	Create(ctx context.Context, game *models.Game) error

	// GetByID retrieves a game by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Game, error)

	// GetByIDForUpdate retrieves a game holding its row lock, serializing
	// stake appends, lock and cancellation per game id
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Game, error)

	// GetDetailByID retrieves a game with its ordered stakes
	GetDetailByID(ctx context.Context, id uuid.UUID) (*models.GameDetail, error)

	// GetByStatus returns all games in the given status, oldest first
	GetByStatus(ctx context.Context, status models.GameStatus) ([]*models.Game, error)

	// GetStuckResolving returns resolving games older than the cutoff
	GetStuckResolving(ctx context.Context, cutoff time.Time) ([]*models.Game, error)

	// AddStake appends a stake in arrival order and bumps the total value
	AddStake(ctx context.Context, stake *models.Stake) error

	// GetStakes returns the ordered stake list of a game
	GetStakes(ctx context.Context, gameID uuid.UUID) ([]*models.Stake, error)

	// Lock freezes an open game with its seed commitment and ledger digest
	Lock(ctx context.Context, game *models.Game) error

	// ClaimForSettlement atomically moves locked -> resolving; false on a lost race
	ClaimForSettlement(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkSettled reveals the seed and moves resolving -> settled exactly once
	MarkSettled(ctx context.Context, id uuid.UUID, revealedSeed string, settledAt time.Time) error

	// MarkCancelled moves open -> cancelled
	MarkCancelled(ctx context.Context, id uuid.UUID) error
}

// OutcomeRepository defines the interface for outcome data access
type OutcomeRepository interface {
	// Create persists a resolved outcome
	Create(ctx context.Context, outcome *models.Outcome) error

	// GetByGameID retrieves a game's outcome, nil when not yet resolved
	GetByGameID(ctx context.Context, gameID uuid.UUID) (*models.Outcome, error)

	// MarkApplied flips the applied marker; false when already applied
	MarkApplied(ctx context.Context, gameID uuid.UUID) (bool, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// Create creates a new user with the initial balance
	Create(ctx context.Context, id int64, username string, initialBalance int64) (*models.User, error)

	// AddBalance adds to a user's balance atomically
	AddBalance(ctx context.Context, id int64, amount int64) error

	// DeductBalance deducts from a user's balance atomically, failing if insufficient funds
	DeductBalance(ctx context.Context, id int64, amount int64) error

	// AddXP accrues experience for wagering activity
	AddXP(ctx context.Context, id int64, amount int64) error
}

// ItemTransferRepository defines the interface for item custody records
type ItemTransferRepository interface {
	// Record persists an item changing hands at settlement
	Record(ctx context.Context, transfer *models.ItemTransfer) error

	// GetByGame returns the item transfers of a game
	GetByGame(ctx context.Context, gameID uuid.UUID) ([]*models.ItemTransfer, error)
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByUser returns balance history for a specific user
	GetByUser(ctx context.Context, userID int64, limit int) ([]*models.BalanceHistory, error)
}

// GameService defines the interface for game lifecycle operations
type GameService interface {
	// CreateGame opens a new game of the given kind
	CreateGame(ctx context.Context, kind models.GameKind, params models.GameParams) (*models.Game, error)

	// PlaceStake appends a participant's stake to an open game, locking the
	// game when its readiness condition holds
	PlaceStake(ctx context.Context, gameID uuid.UUID, participantID int64, amount int64, entryKind models.EntryKind, itemRef *string, side models.CoinSide) (*models.Stake, error)

	// LockGame freezes an open game explicitly (jackpot timer expiry)
	LockGame(ctx context.Context, gameID uuid.UUID) (*models.Game, error)

	// CancelGame cancels an open game while cancellation is still fair
	CancelGame(ctx context.Context, gameID uuid.UUID) error

	// GetGameDetail retrieves a game with its stakes
	GetGameDetail(ctx context.Context, gameID uuid.UUID) (*models.GameDetail, error)

	// GetProof returns the audit record of a settled game
	GetProof(ctx context.Context, gameID uuid.UUID) (*models.ProofRecord, error)
}

// SettlementService defines the interface for settlement operations
type SettlementService interface {
	// Settle resolves and applies a locked game exactly once
	Settle(ctx context.Context, gameID uuid.UUID) (*models.Outcome, error)

	// SettleLocked settles every currently locked game (worker pass)
	SettleLocked(ctx context.Context) error

	// SweepStuck retries games stuck in resolving for longer than the timeout
	SweepStuck(ctx context.Context, olderThan time.Duration) error
}

// UserService defines the interface for user operations
type UserService interface {
	// GetOrCreateUser retrieves an existing user or creates a new one with initial balance
	GetOrCreateUser(ctx context.Context, id int64, username string) (*models.User, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	GameRepository() GameRepository
	OutcomeRepository() OutcomeRepository
	UserRepository() UserRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	ItemTransferRepository() ItemTransferRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// Create creates a new UnitOfWork instance
	Create() UnitOfWork
}
