package repository

import (
	"context"
	"fmt"

	"crateclash/database"
	"crateclash/models"
	"github.com/google/uuid"
)

// ItemTransferRepository implements item transfer data access
type ItemTransferRepository struct {
	q queryable
}

// NewItemTransferRepository creates a new item transfer repository
func NewItemTransferRepository(db *database.DB) *ItemTransferRepository {
	return &ItemTransferRepository{q: db.Pool}
}

// newItemTransferRepositoryWithTx creates a new item transfer repository with a transaction
func newItemTransferRepositoryWithTx(tx queryable) *ItemTransferRepository {
	return &ItemTransferRepository{q: tx}
}

// Record persists an item changing hands at settlement
func (r *ItemTransferRepository) Record(ctx context.Context, transfer *models.ItemTransfer) error {
	query := `
		INSERT INTO item_transfers (game_id, item_ref, from_participant_id, to_participant_id, value)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.q.QueryRow(ctx, query,
		transfer.GameID,
		transfer.ItemRef,
		transfer.FromParticipantID,
		transfer.ToParticipantID,
		transfer.Value,
	).Scan(&transfer.ID, &transfer.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record item transfer: %w", err)
	}
	return nil
}

// GetByGame returns the item transfers of a game in recording order
func (r *ItemTransferRepository) GetByGame(ctx context.Context, gameID uuid.UUID) ([]*models.ItemTransfer, error) {
	query := `
		SELECT id, game_id, item_ref, from_participant_id, to_participant_id, value, created_at
		FROM item_transfers
		WHERE game_id = $1
		ORDER BY id
	`
	rows, err := r.q.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query item transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*models.ItemTransfer
	for rows.Next() {
		var transfer models.ItemTransfer
		err := rows.Scan(
			&transfer.ID,
			&transfer.GameID,
			&transfer.ItemRef,
			&transfer.FromParticipantID,
			&transfer.ToParticipantID,
			&transfer.Value,
			&transfer.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item transfer: %w", err)
		}
		transfers = append(transfers, &transfer)
	}
	return transfers, rows.Err()
}
