package service

import (
	"context"

	"crateclash/events"
	log "github.com/sirupsen/logrus"
)

// XPListener accrues experience for wagering activity. Accrual is best
// effort: it runs after the stake transaction commits and its failures are
// logged, never surfaced to the staking participant.
type XPListener struct {
	uowFactory UnitOfWorkFactory
	rateBps    int64
}

// NewXPListener creates an XP listener accruing rateBps basis points of each
// staked amount
func NewXPListener(uowFactory UnitOfWorkFactory, rateBps int64) *XPListener {
	return &XPListener{
		uowFactory: uowFactory,
		rateBps:    rateBps,
	}
}

// Register subscribes the listener to stake events on the bus
func (l *XPListener) Register(bus *events.Bus) {
	bus.Subscribe(events.EventTypeStakePlaced, l.handleStakePlaced)
}

func (l *XPListener) handleStakePlaced(ctx context.Context, event events.Event) {
	stakeEvent, ok := event.(events.StakePlacedEvent)
	if !ok {
		return
	}

	xp := stakeEvent.Amount * l.rateBps / 10000
	if xp <= 0 {
		return
	}

	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		log.WithError(err).Error("Failed to begin XP accrual transaction")
		return
	}
	defer uow.Rollback()

	if err := uow.UserRepository().AddXP(ctx, stakeEvent.ParticipantID, xp); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"participantID": stakeEvent.ParticipantID,
			"gameID":        stakeEvent.GameID,
		}).Error("Failed to accrue XP")
		return
	}

	if err := uow.Commit(); err != nil {
		log.WithError(err).WithField("participantID", stakeEvent.ParticipantID).Error("Failed to commit XP accrual")
	}
}
