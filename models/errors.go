package models

import (
	"fmt"

	"github.com/google/uuid"
)

// InvalidStateError signals an operation attempted against a game that is not
// in the expected source state. Never silently coerced.
type InvalidStateError struct {
	GameID   uuid.UUID
	Actual   GameStatus
	Expected GameStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("game %s is %q, expected %q", e.GameID, e.Actual, e.Expected)
}

// InvalidAmountError signals a non-positive or malformed stake amount
type InvalidAmountError struct {
	Amount int64
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid stake amount %d: must be positive", e.Amount)
}

// ForbiddenError signals a principal not authorized to act
type ForbiddenError struct {
	ParticipantID int64
	Reason        string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("participant %d forbidden: %s", e.ParticipantID, e.Reason)
}

// GameNotFoundError signals an unknown game ID
type GameNotFoundError struct {
	GameID uuid.UUID
}

func (e *GameNotFoundError) Error() string {
	return fmt.Sprintf("game %s not found", e.GameID)
}

// ConcurrentSettlementError signals a lost settlement claim race. The
// coordinator treats this as success-by-another, not a failure.
type ConcurrentSettlementError struct {
	GameID uuid.UUID
}

func (e *ConcurrentSettlementError) Error() string {
	return fmt.Sprintf("settlement of game %s already claimed", e.GameID)
}

// IntegrityError signals a broken audit invariant: the revealed seed does not
// hash to the stored commitment, or payouts do not conserve value. Fatal —
// settlement halts and the game is flagged for manual review.
type IntegrityError struct {
	GameID uuid.UUID
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation on game %s: %s", e.GameID, e.Reason)
}
