package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntryKind distinguishes balance stakes from inventory item stakes
type EntryKind string

const (
	EntryKindBalance EntryKind = "balance"
	EntryKindItem    EntryKind = "item"
)

// CoinSide is the declared side of a coinflip stake
type CoinSide string

const (
	CoinSideHeads CoinSide = "heads"
	CoinSideTails CoinSide = "tails"
)

// Opposite returns the other coin side
func (s CoinSide) Opposite() CoinSide {
	if s == CoinSideHeads {
		return CoinSideTails
	}
	return CoinSideHeads
}

// Stake represents one participant's contribution to a game.
// Position is the arrival order and is immutable once the game locks.
type Stake struct {
	ID            int64     `db:"id"`
	GameID        uuid.UUID `db:"game_id"`
	ParticipantID int64     `db:"participant_id"`
	Amount        int64     `db:"amount"`
	EntryKind     EntryKind `db:"entry_kind"`
	ItemRef       *string   `db:"item_ref"`
	Side          CoinSide  `db:"side"` // coinflip only
	Position      int       `db:"position"`
	CreatedAt     time.Time `db:"created_at"`
}

// FrozenLedger is the immutable, order-preserved stake list of a locked game.
// Its digest binds the stake list into the RNG derivation so stakes cannot be
// altered after the seed commitment without invalidating verification.
type FrozenLedger struct {
	GameID     uuid.UUID
	Stakes     []*Stake // arrival order
	TotalValue int64
}

// Digest returns the hex SHA-256 over the canonical encoding of the ledger
func (l *FrozenLedger) Digest() string {
	h := sha256.New()
	fmt.Fprintf(h, "game:%s;total:%d;", l.GameID, l.TotalValue)
	for _, s := range l.Stakes {
		itemRef := ""
		if s.ItemRef != nil {
			itemRef = *s.ItemRef
		}
		fmt.Fprintf(h, "%d:%d:%d:%s:%s:%s;", s.Position, s.ParticipantID, s.Amount, s.EntryKind, itemRef, s.Side)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ParticipantIDs returns the distinct participant IDs in arrival order
func (l *FrozenLedger) ParticipantIDs() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, s := range l.Stakes {
		if !seen[s.ParticipantID] {
			seen[s.ParticipantID] = true
			ids = append(ids, s.ParticipantID)
		}
	}
	return ids
}

// AmountByParticipant sums stake amounts per participant
func (l *FrozenLedger) AmountByParticipant() map[int64]int64 {
	totals := make(map[int64]int64)
	for _, s := range l.Stakes {
		totals[s.ParticipantID] += s.Amount
	}
	return totals
}
