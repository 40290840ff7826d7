package models

import (
	"time"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeInitial    TransactionType = "initial"
	TransactionTypeGameWin    TransactionType = "game_win"
	TransactionTypeGameLoss   TransactionType = "game_loss"
	TransactionTypeGameRefund TransactionType = "game_refund"
)

// RelatedType represents what type of entity the related_id refers to
type RelatedType string

const (
	RelatedTypeGame RelatedType = "game"
)

// BalanceHistory represents a historical balance change
type BalanceHistory struct {
	ID                  int64           `db:"id"`
	UserID              int64           `db:"user_id"`
	BalanceBefore       int64           `db:"balance_before"`
	BalanceAfter        int64           `db:"balance_after"`
	ChangeAmount        int64           `db:"change_amount"`
	TransactionType     TransactionType `db:"transaction_type"`
	TransactionMetadata map[string]any  `db:"transaction_metadata"`
	RelatedGameID       *string         `db:"related_game_id"`
	RelatedType         *RelatedType    `db:"related_type"`
	CreatedAt           time.Time       `db:"created_at"`
}
