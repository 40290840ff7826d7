package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"crateclash/database"
	"crateclash/models"
	"crateclash/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OutcomeRepository implements outcome data access
type OutcomeRepository struct {
	q queryable
}

// NewOutcomeRepository creates a new outcome repository
func NewOutcomeRepository(db *database.DB) *OutcomeRepository {
	return &OutcomeRepository{q: db.Pool}
}

// newOutcomeRepositoryWithTx creates a new outcome repository with a transaction
func newOutcomeRepositoryWithTx(tx queryable) service.OutcomeRepository {
	return &OutcomeRepository{q: tx}
}

// Create persists a resolved outcome. The unique constraint on game_id makes
// a duplicate resolution surface as an error instead of a second record.
func (r *OutcomeRepository) Create(ctx context.Context, outcome *models.Outcome) error {
	payoutsJSON, err := marshalPayouts(outcome.Payouts)
	if err != nil {
		return err
	}
	detailJSON, err := json.Marshal(outcome.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome detail: %w", err)
	}

	query := `
		INSERT INTO outcomes (game_id, winner_ids, payouts, fee, rng_output, detail, applied)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err = r.q.QueryRow(ctx, query,
		outcome.GameID,
		outcome.WinnerIDs,
		payoutsJSON,
		outcome.Fee,
		outcome.RNGOutput,
		detailJSON,
		outcome.Applied,
	).Scan(&outcome.ID, &outcome.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create outcome: %w", err)
	}
	return nil
}

// GetByGameID retrieves the outcome of a game, nil when not yet resolved
func (r *OutcomeRepository) GetByGameID(ctx context.Context, gameID uuid.UUID) (*models.Outcome, error) {
	query := `
		SELECT id, game_id, winner_ids, payouts, fee, rng_output, detail, applied, created_at
		FROM outcomes
		WHERE game_id = $1
	`
	var (
		outcome     models.Outcome
		payoutsJSON []byte
		detailJSON  []byte
	)
	err := r.q.QueryRow(ctx, query, gameID).Scan(
		&outcome.ID,
		&outcome.GameID,
		&outcome.WinnerIDs,
		&payoutsJSON,
		&outcome.Fee,
		&outcome.RNGOutput,
		&detailJSON,
		&outcome.Applied,
		&outcome.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan outcome: %w", err)
	}

	outcome.Payouts, err = unmarshalPayouts(payoutsJSON)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(detailJSON, &outcome.Detail); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outcome detail: %w", err)
	}
	return &outcome, nil
}

// MarkApplied flips the applied marker exactly once. Returns false when the
// outcome was already applied, so a retried settlement skips crediting.
func (r *OutcomeRepository) MarkApplied(ctx context.Context, gameID uuid.UUID) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE outcomes SET applied = TRUE WHERE game_id = $1 AND applied = FALSE`,
		gameID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark outcome applied: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// JSON object keys are strings, so payout maps round-trip through string keys.

func marshalPayouts(payouts map[int64]int64) ([]byte, error) {
	byKey := make(map[string]int64, len(payouts))
	for id, amount := range payouts {
		byKey[strconv.FormatInt(id, 10)] = amount
	}
	data, err := json.Marshal(byKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payouts: %w", err)
	}
	return data, nil
}

func unmarshalPayouts(data []byte) (map[int64]int64, error) {
	byKey := make(map[string]int64)
	if err := json.Unmarshal(data, &byKey); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payouts: %w", err)
	}
	payouts := make(map[int64]int64, len(byKey))
	for key, amount := range byKey {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid payout participant key %q: %w", key, err)
		}
		payouts[id] = amount
	}
	return payouts, nil
}
