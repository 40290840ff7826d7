package events

import (
	"context"
	"sync"

	"crateclash/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange EventType = "balance_change"
	EventTypeStakePlaced   EventType = "stake_placed"
	EventTypeGameLocked    EventType = "game_locked"
	EventTypeGameSettled   EventType = "game_settled"
	EventTypeGameCancelled EventType = "game_cancelled"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	UserID          int64
	OldBalance      int64
	NewBalance      int64
	TransactionType models.TransactionType
	ChangeAmount    int64
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// StakePlacedEvent represents an accepted stake. The XP collaborator listens
// for these; its failures never roll back the stake.
type StakePlacedEvent struct {
	GameID        uuid.UUID
	ParticipantID int64
	Amount        int64
	EntryKind     models.EntryKind
}

func (e StakePlacedEvent) Type() EventType {
	return EventTypeStakePlaced
}

// GameLockedEvent represents a game freezing its ledger and committing a seed
type GameLockedEvent struct {
	GameID         uuid.UUID
	Kind           models.GameKind
	TotalValue     int64
	SeedCommitment string
}

func (e GameLockedEvent) Type() EventType {
	return EventTypeGameLocked
}

// GameSettledEvent represents a settled game with its payout distribution
type GameSettledEvent struct {
	GameID    uuid.UUID
	Kind      models.GameKind
	WinnerIDs []int64
	Payouts   map[int64]int64
	Fee       int64
}

func (e GameSettledEvent) Type() EventType {
	return EventTypeGameSettled
}

// GameCancelledEvent represents a cancelled open game with refunded stakes
type GameCancelledEvent struct {
	GameID   uuid.UUID
	Kind     models.GameKind
	Refunded int64
}

func (e GameCancelledEvent) Type() EventType {
	return EventTypeGameCancelled
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make([]Handler, 0)
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type on main event bus")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers on main event bus")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// A transactional event bus for holding pending events coupled to the Unit of Work.
// Flushes to the underlying event bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events from transactional bus to main event bus")

	// Use background context for event emission to avoid issues with transaction context expiration
	// Events should be processed independently of the transaction lifecycle
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// called after db rollback or to clear state.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
