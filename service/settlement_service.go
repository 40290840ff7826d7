package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crateclash/engine"
	"crateclash/events"
	"crateclash/fair"
	"crateclash/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type settlementService struct {
	uowFactory UnitOfWorkFactory
	tables     *engine.Config
}

// NewSettlementService creates a new settlement service
func NewSettlementService(uowFactory UnitOfWorkFactory, tables *engine.Config) SettlementService {
	return &settlementService{
		uowFactory: uowFactory,
		tables:     tables,
	}
}

// Settle resolves and applies a locked game exactly once. The claim runs in
// its own transaction so a crash between claiming and applying leaves the
// game in resolving, where the sweep picks it up. Repeated calls against a
// settled game return the stored outcome.
func (s *settlementService) Settle(ctx context.Context, gameID uuid.UUID) (*models.Outcome, error) {
	claimed, outcome, err := s.claim(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// already settled by another coordinator
		if outcome == nil {
			return nil, &models.IntegrityError{GameID: gameID, Reason: "settled game has no outcome"}
		}
		return outcome, nil
	}
	return s.apply(ctx, gameID)
}

// claim atomically moves the game from locked to resolving. Returns the
// stored outcome instead when the game already settled.
func (s *settlementService) claim(ctx context.Context, gameID uuid.UUID) (bool, *models.Outcome, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	game, err := uow.GameRepository().GetByID(ctx, gameID)
	if err != nil {
		return false, nil, fmt.Errorf("failed to get game: %w", err)
	}
	if game == nil {
		return false, nil, &models.GameNotFoundError{GameID: gameID}
	}

	switch game.Status {
	case models.GameStatusSettled:
		outcome, err := uow.OutcomeRepository().GetByGameID(ctx, gameID)
		if err != nil {
			return false, nil, fmt.Errorf("failed to get outcome: %w", err)
		}
		return false, outcome, nil
	case models.GameStatusResolving:
		return false, nil, &models.ConcurrentSettlementError{GameID: gameID}
	case models.GameStatusLocked:
		won, err := uow.GameRepository().ClaimForSettlement(ctx, gameID)
		if err != nil {
			return false, nil, fmt.Errorf("failed to claim settlement: %w", err)
		}
		if !won {
			return false, nil, &models.ConcurrentSettlementError{GameID: gameID}
		}
		if err := uow.Commit(); err != nil {
			return false, nil, fmt.Errorf("failed to commit claim: %w", err)
		}
		return true, nil, nil
	default:
		return false, nil, &models.InvalidStateError{GameID: gameID, Actual: game.Status, Expected: models.GameStatusLocked}
	}
}

// apply resolves a claimed (resolving) game and applies its outcome in a
// single transaction: outcome row, applied marker, balance movements,
// settled transition and seed reveal all commit together. Resolution is a
// pure function of the stored seed and frozen ledger, so a crashed apply can
// be retried and re-derives the identical outcome.
func (s *settlementService) apply(ctx context.Context, gameID uuid.UUID) (*models.Outcome, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	detail, err := uow.GameRepository().GetDetailByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game detail: %w", err)
	}
	if detail == nil {
		return nil, &models.GameNotFoundError{GameID: gameID}
	}
	game := detail.Game
	if game.Status != models.GameStatusResolving {
		return nil, &models.InvalidStateError{GameID: gameID, Actual: game.Status, Expected: models.GameStatusResolving}
	}
	ledger := detail.Ledger()

	if !fair.VerifyReveal(game.Seed, game.SeedCommitment) {
		return nil, &models.IntegrityError{GameID: gameID, Reason: "stored seed does not match commitment"}
	}
	if digest := ledger.Digest(); digest != game.LedgerDigest {
		return nil, &models.IntegrityError{GameID: gameID, Reason: fmt.Sprintf("ledger digest mismatch: stored %s, recomputed %s", game.LedgerDigest, digest)}
	}

	outcome, err := uow.OutcomeRepository().GetByGameID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome: %w", err)
	}
	if outcome == nil {
		derive := func(index int) float64 {
			return fair.DeriveFloat(game.Seed, game.ID.String(), game.LedgerDigest, index)
		}
		outcome, err = engine.Resolve(s.tables, game, ledger, derive)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve game: %w", err)
		}
		if err := s.checkConservation(game, outcome); err != nil {
			return nil, err
		}
		if err := uow.OutcomeRepository().Create(ctx, outcome); err != nil {
			return nil, fmt.Errorf("failed to store outcome: %w", err)
		}
	}

	applied, err := uow.OutcomeRepository().MarkApplied(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark outcome applied: %w", err)
	}
	if applied {
		if err := s.applyPayouts(ctx, uow, game, ledger, outcome); err != nil {
			return nil, err
		}
	}

	if err := uow.GameRepository().MarkSettled(ctx, gameID, game.Seed, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to mark game settled: %w", err)
	}

	uow.EventBus().Publish(events.GameSettledEvent{
		GameID:    gameID,
		Kind:      game.Kind,
		WinnerIDs: outcome.WinnerIDs,
		Payouts:   outcome.Payouts,
		Fee:       outcome.Fee,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	log.WithFields(log.Fields{
		"gameID":  gameID,
		"kind":    game.Kind,
		"winners": outcome.WinnerIDs,
		"fee":     outcome.Fee,
	}).Info("Game settled")

	return outcome, nil
}

// checkConservation rejects outcomes that would mint or destroy value
func (s *settlementService) checkConservation(game *models.Game, outcome *models.Outcome) error {
	for id, payout := range outcome.Payouts {
		if payout < 0 {
			return &models.IntegrityError{GameID: game.ID, Reason: fmt.Sprintf("negative payout %d for participant %d", payout, id)}
		}
	}
	if total := outcome.PayoutTotal(); total+outcome.Fee != game.TotalValue {
		return &models.IntegrityError{GameID: game.ID, Reason: fmt.Sprintf("payouts %d + fee %d != total value %d", total, outcome.Fee, game.TotalValue)}
	}
	return nil
}

// applyPayouts moves balances by each participant's net result. Stakes were
// escrowed, not debited, so winners receive payout minus their balance stake
// and losers are debited theirs. Item stakes settle in kind: the item itself
// transfers to the pot winner and its value never becomes a balance credit.
func (s *settlementService) applyPayouts(ctx context.Context, uow UnitOfWork, game *models.Game, ledger *models.FrozenLedger, outcome *models.Outcome) error {
	staked := make(map[int64]int64)
	var itemStakes []*models.Stake
	var itemTotal int64
	for _, stake := range ledger.Stakes {
		switch stake.EntryKind {
		case models.EntryKindBalance:
			staked[stake.ParticipantID] += stake.Amount
		case models.EntryKindItem:
			itemStakes = append(itemStakes, stake)
			itemTotal += stake.Amount
		}
	}

	// Staked items move to the pot winner in kind: losers forfeit the item
	// rather than being debited, and the winner's balance credit excludes
	// the item value received.
	itemsReceived := make(map[int64]int64)
	if itemTotal > 0 {
		if len(outcome.WinnerIDs) == 0 {
			return &models.IntegrityError{GameID: game.ID, Reason: "item stakes in the pot but no winner to take custody"}
		}
		winnerID := outcome.WinnerIDs[0]
		itemsReceived[winnerID] = itemTotal
		for _, stake := range itemStakes {
			if stake.ParticipantID == winnerID {
				// the winner's own item comes back out of the pot
				continue
			}
			if stake.ItemRef == nil {
				return &models.IntegrityError{GameID: game.ID, Reason: fmt.Sprintf("item stake %d has no item reference", stake.ID)}
			}
			if err := uow.ItemTransferRepository().Record(ctx, &models.ItemTransfer{
				GameID:            game.ID,
				ItemRef:           *stake.ItemRef,
				FromParticipantID: stake.ParticipantID,
				ToParticipantID:   winnerID,
				Value:             stake.Amount,
			}); err != nil {
				return fmt.Errorf("failed to record item transfer: %w", err)
			}
		}
	}

	gameRef := game.ID.String()
	for _, participantID := range ledger.ParticipantIDs() {
		net := outcome.Payouts[participantID] - itemsReceived[participantID] - staked[participantID]
		if net == 0 {
			continue
		}

		user, err := uow.UserRepository().GetByID(ctx, participantID)
		if err != nil {
			return fmt.Errorf("failed to get participant %d: %w", participantID, err)
		}
		if user == nil {
			return &models.IntegrityError{GameID: game.ID, Reason: fmt.Sprintf("participant %d vanished before settlement", participantID)}
		}

		transactionType := models.TransactionTypeGameWin
		if net > 0 {
			if err := uow.UserRepository().AddBalance(ctx, participantID, net); err != nil {
				return fmt.Errorf("failed to credit participant %d: %w", participantID, err)
			}
		} else {
			transactionType = models.TransactionTypeGameLoss
			if err := uow.UserRepository().DeductBalance(ctx, participantID, -net); err != nil {
				return fmt.Errorf("failed to debit participant %d: %w", participantID, err)
			}
		}

		metadata := map[string]any{
			"game_kind": string(game.Kind),
			"payout":    outcome.Payouts[participantID],
			"staked":    staked[participantID],
		}
		if received := itemsReceived[participantID]; received > 0 {
			metadata["items_received"] = received
		}

		if err := RecordBalanceChange(ctx, uow, &models.BalanceHistory{
			UserID:              participantID,
			BalanceBefore:       user.Balance,
			BalanceAfter:        user.Balance + net,
			ChangeAmount:        net,
			TransactionType:     transactionType,
			TransactionMetadata: metadata,
			RelatedGameID:       &gameRef,
			RelatedType:         relatedTypePtr(models.RelatedTypeGame),
		}); err != nil {
			return err
		}
	}
	return nil
}

// SettleLocked settles every currently locked game. Lost claim races are
// fine: another coordinator got there first.
func (s *settlementService) SettleLocked(ctx context.Context) error {
	games, err := s.listByStatus(ctx, models.GameStatusLocked)
	if err != nil {
		return err
	}

	for _, game := range games {
		if _, err := s.Settle(ctx, game.ID); err != nil {
			var concurrent *models.ConcurrentSettlementError
			if errors.As(err, &concurrent) {
				log.WithField("gameID", game.ID).Debug("Game claimed by another settler")
				continue
			}
			log.WithError(err).WithField("gameID", game.ID).Error("Failed to settle locked game")
		}
	}
	return nil
}

// SweepStuck resumes games stuck in resolving longer than the timeout,
// re-deriving their outcome from the stored seed. Already-applied outcomes
// are not applied again.
func (s *settlementService) SweepStuck(ctx context.Context, olderThan time.Duration) error {
	games, err := s.listStuck(ctx, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return err
	}

	for _, game := range games {
		log.WithFields(log.Fields{
			"gameID":   game.ID,
			"lockedAt": game.LockedAt,
		}).Warn("Resuming stuck settlement")
		if _, err := s.apply(ctx, game.ID); err != nil {
			log.WithError(err).WithField("gameID", game.ID).Error("Failed to resume stuck settlement")
		}
	}
	return nil
}

func (s *settlementService) listByStatus(ctx context.Context, status models.GameStatus) ([]*models.Game, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	games, err := uow.GameRepository().GetByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s games: %w", status, err)
	}
	return games, nil
}

func (s *settlementService) listStuck(ctx context.Context, cutoff time.Time) ([]*models.Game, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	games, err := uow.GameRepository().GetStuckResolving(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck games: %w", err)
	}
	return games, nil
}
