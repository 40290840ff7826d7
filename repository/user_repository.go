package repository

import (
	"context"
	"fmt"

	"crateclash/database"
	"crateclash/models"
	"github.com/jackc/pgx/v5"
)

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

// GetByID retrieves a user by ID. AvailableBalance nets out stakes escrowed
// in games that have not reached a terminal state.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT
			u.id,
			u.username,
			u.balance,
			u.xp,
			u.banned,
			u.created_at,
			u.updated_at,
			u.balance - COALESCE(
				(SELECT SUM(s.amount)
				 FROM stakes s
				 JOIN games g ON g.id = s.game_id
				 WHERE s.participant_id = u.id
				   AND g.status IN ('open', 'locked', 'resolving')),
				0
			) AS available_balance
		FROM users u
		WHERE u.id = $1
	`
	var user models.User
	err := r.q.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Balance,
		&user.XP,
		&user.Banned,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.AvailableBalance,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Create creates a new user with the initial balance
func (r *UserRepository) Create(ctx context.Context, id int64, username string, initialBalance int64) (*models.User, error) {
	query := `
		INSERT INTO users (id, username, balance)
		VALUES ($1, $2, $3)
		RETURNING id, username, balance, xp, banned, created_at, updated_at
	`
	var user models.User
	err := r.q.QueryRow(ctx, query, id, username, initialBalance).Scan(
		&user.ID,
		&user.Username,
		&user.Balance,
		&user.XP,
		&user.Banned,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	user.AvailableBalance = user.Balance
	return &user, nil
}

// AddBalance adds to a user's balance atomically
func (r *UserRepository) AddBalance(ctx context.Context, id int64, amount int64) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE users SET balance = balance + $1, updated_at = NOW() WHERE id = $2`,
		amount, id,
	)
	if err != nil {
		return fmt.Errorf("failed to add balance: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("user %d not found", id)
	}
	return nil
}

// DeductBalance deducts from a user's balance atomically, failing if insufficient funds
func (r *UserRepository) DeductBalance(ctx context.Context, id int64, amount int64) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE users SET balance = balance - $1, updated_at = NOW() WHERE id = $2 AND balance >= $1`,
		amount, id,
	)
	if err != nil {
		return fmt.Errorf("failed to deduct balance: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("insufficient balance for user %d deducting %d", id, amount)
	}
	return nil
}

// AddXP accrues experience for wagering activity
func (r *UserRepository) AddXP(ctx context.Context, id int64, amount int64) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE users SET xp = xp + $1, updated_at = NOW() WHERE id = $2`,
		amount, id,
	)
	if err != nil {
		return fmt.Errorf("failed to add xp: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("user %d not found", id)
	}
	return nil
}
