package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crateclash/database"
	"crateclash/models"
	"crateclash/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GameRepository implements all game and stake related data access
type GameRepository struct {
	q queryable
}

// NewGameRepository creates a new consolidated game repository
func NewGameRepository(db *database.DB) *GameRepository {
	return &GameRepository{q: db.Pool}
}

// newGameRepositoryWithTx creates a new game repository with a transaction
func newGameRepositoryWithTx(tx queryable) service.GameRepository {
	return &GameRepository{q: tx}
}

const gameColumns = `id, kind, status, total_value, seed_commitment, seed, revealed_seed, ledger_digest, params, created_at, locked_at, settled_at`

// Create inserts a new open game
func (r *GameRepository) Create(ctx context.Context, game *models.Game) error {
	paramsJSON, err := json.Marshal(game.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal game params: %w", err)
	}

	query := `
		INSERT INTO games (id, kind, status, total_value, params)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err = r.q.QueryRow(ctx, query,
		game.ID,
		game.Kind,
		game.Status,
		game.TotalValue,
		paramsJSON,
	).Scan(&game.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

// GetByID retrieves a game by its ID
func (r *GameRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	query := fmt.Sprintf(`SELECT %s FROM games WHERE id = $1`, gameColumns)
	return r.scanGame(r.q.QueryRow(ctx, query, id))
}

// GetByIDForUpdate retrieves a game holding its row lock for the duration of
// the transaction. Serializes stake appends, the lock transition and
// cancellation per game id.
func (r *GameRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	query := fmt.Sprintf(`SELECT %s FROM games WHERE id = $1 FOR UPDATE`, gameColumns)
	return r.scanGame(r.q.QueryRow(ctx, query, id))
}

// GetDetailByID retrieves a game with its ordered stakes
func (r *GameRepository) GetDetailByID(ctx context.Context, id uuid.UUID) (*models.GameDetail, error) {
	game, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, nil
	}

	stakes, err := r.GetStakes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get stakes: %w", err)
	}

	return &models.GameDetail{Game: game, Stakes: stakes}, nil
}

// GetByStatus returns all games in the given status, oldest first
func (r *GameRepository) GetByStatus(ctx context.Context, status models.GameStatus) ([]*models.Game, error) {
	query := fmt.Sprintf(`SELECT %s FROM games WHERE status = $1 ORDER BY created_at`, gameColumns)
	rows, err := r.q.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query games by status: %w", err)
	}
	defer rows.Close()
	return r.scanGames(rows)
}

// GetStuckResolving returns games that entered resolving before the cutoff
// and never settled. The recovery sweep retries these.
func (r *GameRepository) GetStuckResolving(ctx context.Context, cutoff time.Time) ([]*models.Game, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM games
		WHERE status = $1 AND locked_at < $2
		ORDER BY locked_at
	`, gameColumns)
	rows, err := r.q.Query(ctx, query, models.GameStatusResolving, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck games: %w", err)
	}
	defer rows.Close()
	return r.scanGames(rows)
}

// AddStake appends a stake in arrival order and bumps the game's total value
// in the same statement pair. Callers must hold the game's row lock.
func (r *GameRepository) AddStake(ctx context.Context, stake *models.Stake) error {
	query := `
		INSERT INTO stakes (game_id, participant_id, amount, entry_kind, item_ref, side, position)
		VALUES ($1, $2, $3, $4, $5, $6,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM stakes WHERE game_id = $1))
		RETURNING id, position, created_at
	`
	err := r.q.QueryRow(ctx, query,
		stake.GameID,
		stake.ParticipantID,
		stake.Amount,
		stake.EntryKind,
		stake.ItemRef,
		stake.Side,
	).Scan(&stake.ID, &stake.Position, &stake.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert stake: %w", err)
	}

	tag, err := r.q.Exec(ctx,
		`UPDATE games SET total_value = total_value + $1 WHERE id = $2`,
		stake.Amount, stake.GameID,
	)
	if err != nil {
		return fmt.Errorf("failed to update game total value: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("game %s vanished while adding stake", stake.GameID)
	}
	return nil
}

// GetStakes returns the ordered stake list of a game
func (r *GameRepository) GetStakes(ctx context.Context, gameID uuid.UUID) ([]*models.Stake, error) {
	query := `
		SELECT id, game_id, participant_id, amount, entry_kind, item_ref, side, position, created_at
		FROM stakes
		WHERE game_id = $1
		ORDER BY position
	`
	rows, err := r.q.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stakes: %w", err)
	}
	defer rows.Close()

	var stakes []*models.Stake
	for rows.Next() {
		var s models.Stake
		err := rows.Scan(&s.ID, &s.GameID, &s.ParticipantID, &s.Amount, &s.EntryKind, &s.ItemRef, &s.Side, &s.Position, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stake: %w", err)
		}
		stakes = append(stakes, &s)
	}
	return stakes, rows.Err()
}

// Lock freezes an open game: stores the seed, its commitment and the ledger
// digest, and moves the game to locked. Guarded on the source state.
func (r *GameRepository) Lock(ctx context.Context, game *models.Game) error {
	now := time.Now()
	tag, err := r.q.Exec(ctx, `
		UPDATE games
		SET status = $1, seed = $2, seed_commitment = $3, ledger_digest = $4, locked_at = $5
		WHERE id = $6 AND status = $7
	`,
		models.GameStatusLocked,
		game.Seed,
		game.SeedCommitment,
		game.LedgerDigest,
		now,
		game.ID,
		models.GameStatusOpen,
	)
	if err != nil {
		return fmt.Errorf("failed to lock game: %w", err)
	}
	if tag.RowsAffected() != 1 {
		status, err := r.currentStatus(ctx, game.ID)
		if err != nil {
			return err
		}
		return &models.InvalidStateError{GameID: game.ID, Actual: status, Expected: models.GameStatusOpen}
	}
	game.Status = models.GameStatusLocked
	game.LockedAt = &now
	return nil
}

// ClaimForSettlement atomically moves a locked game to resolving. Returns
// false without error when another settler won the race.
func (r *GameRepository) ClaimForSettlement(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE games SET status = $1 WHERE id = $2 AND status = $3`,
		models.GameStatusResolving, id, models.GameStatusLocked,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim game for settlement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSettled reveals the seed and moves a resolving game to settled, exactly
// once. Guarded on the source state.
func (r *GameRepository) MarkSettled(ctx context.Context, id uuid.UUID, revealedSeed string, settledAt time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE games
		SET status = $1, revealed_seed = $2, settled_at = $3
		WHERE id = $4 AND status = $5 AND settled_at IS NULL
	`,
		models.GameStatusSettled,
		revealedSeed,
		settledAt,
		id,
		models.GameStatusResolving,
	)
	if err != nil {
		return fmt.Errorf("failed to mark game settled: %w", err)
	}
	if tag.RowsAffected() != 1 {
		status, err := r.currentStatus(ctx, id)
		if err != nil {
			return err
		}
		return &models.InvalidStateError{GameID: id, Actual: status, Expected: models.GameStatusResolving}
	}
	return nil
}

// MarkCancelled moves an open game to cancelled. Guarded on the source state.
func (r *GameRepository) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE games SET status = $1 WHERE id = $2 AND status = $3`,
		models.GameStatusCancelled, id, models.GameStatusOpen,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel game: %w", err)
	}
	if tag.RowsAffected() != 1 {
		status, err := r.currentStatus(ctx, id)
		if err != nil {
			return err
		}
		return &models.InvalidStateError{GameID: id, Actual: status, Expected: models.GameStatusOpen}
	}
	return nil
}

// currentStatus re-reads a game's status so a failed guarded update can
// report the state the row is actually in.
func (r *GameRepository) currentStatus(ctx context.Context, id uuid.UUID) (models.GameStatus, error) {
	var status models.GameStatus
	err := r.q.QueryRow(ctx, `SELECT status FROM games WHERE id = $1`, id).Scan(&status)
	if err == pgx.ErrNoRows {
		return "", &models.GameNotFoundError{GameID: id}
	}
	if err != nil {
		return "", fmt.Errorf("failed to read game status: %w", err)
	}
	return status, nil
}

func (r *GameRepository) scanGame(row pgx.Row) (*models.Game, error) {
	var (
		game       models.Game
		paramsJSON []byte
	)
	err := row.Scan(
		&game.ID,
		&game.Kind,
		&game.Status,
		&game.TotalValue,
		&game.SeedCommitment,
		&game.Seed,
		&game.RevealedSeed,
		&game.LedgerDigest,
		&paramsJSON,
		&game.CreatedAt,
		&game.LockedAt,
		&game.SettledAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan game: %w", err)
	}
	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &game.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game params: %w", err)
		}
	}
	return &game, nil
}

func (r *GameRepository) scanGames(rows pgx.Rows) ([]*models.Game, error) {
	var games []*models.Game
	for rows.Next() {
		game, err := r.scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, rows.Err()
}
