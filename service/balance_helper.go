package service

import (
	"context"
	"fmt"

	"crateclash/events"
	"crateclash/models"
)

// RecordBalanceChange records a balance history entry and emits the balance
// change event. This is the single entry point for all balance changes in
// the system.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.BalanceHistory) error {
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	// Emitted after the transaction commits
	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:          history.UserID,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		TransactionType: history.TransactionType,
		ChangeAmount:    history.ChangeAmount,
	})

	return nil
}

func relatedTypePtr(t models.RelatedType) *models.RelatedType {
	return &t
}
