package models

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the resolved result of a game. Created once by the settlement
// coordinator, never mutated afterwards. Applied flips when payouts have been
// credited so a retried settlement never pays twice.
type Outcome struct {
	ID        int64           `db:"id"`
	GameID    uuid.UUID       `db:"game_id"`
	WinnerIDs []int64         `db:"winner_ids"` // ordered; singleton for coinflip/jackpot
	Payouts   map[int64]int64 `db:"payouts"`    // participant -> amount
	Fee       int64           `db:"fee"`
	RNGOutput float64         `db:"rng_output"`
	Detail    OutcomeDetail   `db:"detail"`
	Applied   bool            `db:"applied"`
	CreatedAt time.Time       `db:"created_at"`
}

// OutcomeDetail carries kind-specific audit data alongside the outcome
type OutcomeDetail struct {
	WinningSide   CoinSide       `json:"winning_side,omitempty"`   // coinflip
	WinningTicket *int64         `json:"winning_ticket,omitempty"` // jackpot
	TicketRanges  []TicketRange  `json:"ticket_ranges,omitempty"`  // jackpot
	MineCells     []int          `json:"mine_cells,omitempty"`     // minefield
	RevealedCells []int          `json:"revealed_cells,omitempty"` // minefield: safe picks walked in order
	HitMine       bool           `json:"hit_mine,omitempty"`       // minefield
	Multiplier    float64        `json:"multiplier,omitempty"`     // minefield
	Openings      []CrateOpening `json:"openings,omitempty"`       // crate battle
	TieBroken     bool           `json:"tie_broken,omitempty"`     // crate battle
}

// TicketRange is a jackpot participant's contiguous slice of [0, totalValue)
type TicketRange struct {
	ParticipantID int64 `json:"participant_id"`
	Start         int64 `json:"start"` // inclusive
	End           int64 `json:"end"`   // exclusive
}

// Contains reports whether the winning ticket falls inside this range
func (r TicketRange) Contains(ticket int64) bool {
	return ticket >= r.Start && ticket < r.End
}

// CrateOpening records one crate opening during a crate battle
type CrateOpening struct {
	Index         int     `json:"index"` // global opening index, drives derivation
	ParticipantID int64   `json:"participant_id"`
	CrateID       string  `json:"crate_id"`
	ItemName      string  `json:"item_name"`
	ItemValue     int64   `json:"item_value"`
	Roll          float64 `json:"roll"`
}

// PayoutTotal sums all payout amounts
func (o *Outcome) PayoutTotal() int64 {
	var total int64
	for _, amount := range o.Payouts {
		total += amount
	}
	return total
}

// ProofRecord is the audit surface for a settled game: everything an external
// party needs to recompute the outcome and confirm it matches.
type ProofRecord struct {
	GameID         uuid.UUID     `json:"game_id"`
	Kind           GameKind      `json:"kind"`
	SeedCommitment string        `json:"seed_commitment"`
	RevealedSeed   string        `json:"revealed_seed"`
	LedgerDigest   string        `json:"ledger_digest"`
	RNGOutput      float64       `json:"rng_output"`
	Ledger         *FrozenLedger `json:"ledger"`
	Outcome        *Outcome      `json:"outcome"`
}
