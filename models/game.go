package models

import (
	"time"

	"github.com/google/uuid"
)

// GameKind identifies which resolver a game uses
type GameKind string

const (
	GameKindCoinflip    GameKind = "coinflip"
	GameKindJackpot     GameKind = "jackpot"
	GameKindMinefield   GameKind = "minefield"
	GameKindCrateBattle GameKind = "crate_battle"
)

// GameStatus represents the lifecycle state of a game
type GameStatus string

const (
	GameStatusOpen      GameStatus = "open"
	GameStatusLocked    GameStatus = "locked"
	GameStatusResolving GameStatus = "resolving"
	GameStatusSettled   GameStatus = "settled"
	GameStatusCancelled GameStatus = "cancelled"
)

// TieMode controls how a crate battle handles tied totals
type TieMode string

const (
	TieModeTiebreak TieMode = "tiebreak"
	TieModeSplit    TieMode = "split"
)

// Game represents one wagering round of a given kind
type Game struct {
	ID             uuid.UUID  `db:"id"`
	Kind           GameKind   `db:"kind"`
	Status         GameStatus `db:"status"`
	TotalValue     int64      `db:"total_value"`
	SeedCommitment string     `db:"seed_commitment"`
	Seed           string     `db:"seed"` // server-held until settlement, never exposed earlier
	RevealedSeed   *string    `db:"revealed_seed"`
	LedgerDigest   string     `db:"ledger_digest"`
	Params         GameParams `db:"params"`
	CreatedAt      time.Time  `db:"created_at"`
	LockedAt       *time.Time `db:"locked_at"`
	SettledAt      *time.Time `db:"settled_at"`
}

// GameParams holds the kind-specific configuration fixed at creation
type GameParams struct {
	Seats     int              `json:"seats,omitempty"`      // coinflip: 2, crate battle: seat count
	MinValue  int64            `json:"min_value,omitempty"`  // below this an open game may still be cancelled
	TieMode   TieMode          `json:"tie_mode,omitempty"`   // crate battle only
	Crates    []string         `json:"crates,omitempty"`     // crate battle: crate IDs each seat opens, in order
	Minefield *MinefieldParams `json:"minefield,omitempty"`
}

// MinefieldParams describes a single-player minefield round
type MinefieldParams struct {
	TotalCells int   `json:"total_cells"`
	MineCount  int   `json:"mine_count"`
	Picks      []int `json:"picks"` // ordered distinct cell indices the player reveals
}

// GameDetail combines a game with its ordered stakes
type GameDetail struct {
	Game   *Game
	Stakes []*Stake // arrival order
}

// Ledger returns the stake list as a ledger snapshot. Only meaningful as a
// FrozenLedger once the game has locked.
func (d *GameDetail) Ledger() *FrozenLedger {
	return &FrozenLedger{
		GameID:     d.Game.ID,
		Stakes:     d.Stakes,
		TotalValue: d.Game.TotalValue,
	}
}

// validTransitions is the full transition table; anything absent is illegal.
var validTransitions = map[GameStatus][]GameStatus{
	GameStatusOpen:      {GameStatusLocked, GameStatusCancelled},
	GameStatusLocked:    {GameStatusResolving},
	GameStatusResolving: {GameStatusSettled},
}

// CanTransitionTo reports whether moving from the current status to next is legal
func (g *Game) CanTransitionTo(next GameStatus) bool {
	for _, s := range validTransitions[g.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// IsOpen checks if the game still accepts stakes
func (g *Game) IsOpen() bool {
	return g.Status == GameStatusOpen
}

// IsTerminal checks if the game reached a final state
func (g *Game) IsTerminal() bool {
	return g.Status == GameStatusSettled || g.Status == GameStatusCancelled
}

// IsCancellable checks whether cancelling the game would be fair to
// participants: only open games below their configured minimum value, or with
// at most one participant, may be cancelled.
func (g *Game) IsCancellable(participantCount int) bool {
	if g.Status != GameStatusOpen {
		return false
	}
	if participantCount <= 1 {
		return true
	}
	return g.TotalValue < g.Params.MinValue
}

// ReadyToLock checks the kind-specific readiness condition against the
// current participant count.
func (g *Game) ReadyToLock(participantCount int) bool {
	if g.Status != GameStatusOpen {
		return false
	}
	switch g.Kind {
	case GameKindCoinflip:
		return participantCount == 2
	case GameKindMinefield:
		return participantCount == 1
	case GameKindCrateBattle:
		return g.Params.Seats > 0 && participantCount == g.Params.Seats
	case GameKindJackpot:
		// jackpot locks on timer expiry or value threshold, driven by the caller
		return g.Params.MinValue > 0 && g.TotalValue >= g.Params.MinValue
	}
	return false
}
