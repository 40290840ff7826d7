package models

import (
	"time"

	"github.com/google/uuid"
)

// ItemTransfer records an item changing hands at settlement. Item stakes are
// escrowed like balance stakes; when the game settles, every staked item
// moves to the pot winner and the transfer is recorded here.
type ItemTransfer struct {
	ID                int64     `db:"id"`
	GameID            uuid.UUID `db:"game_id"`
	ItemRef           string    `db:"item_ref"`
	FromParticipantID int64     `db:"from_participant_id"`
	ToParticipantID   int64     `db:"to_participant_id"`
	Value             int64     `db:"value"`
	CreatedAt         time.Time `db:"created_at"`
}
