package service

import (
	"context"
	"fmt"

	"crateclash/engine"
	"crateclash/events"
	"crateclash/fair"
	"crateclash/models"
	"github.com/google/uuid"
)

type gameService struct {
	uowFactory UnitOfWorkFactory
	tables     *engine.Config
}

// NewGameService creates a new game service
func NewGameService(uowFactory UnitOfWorkFactory, tables *engine.Config) GameService {
	return &gameService{
		uowFactory: uowFactory,
		tables:     tables,
	}
}

// CreateGame opens a new game of the given kind
func (s *gameService) CreateGame(ctx context.Context, kind models.GameKind, params models.GameParams) (*models.Game, error) {
	if err := s.validateParams(kind, &params); err != nil {
		return nil, err
	}

	game := &models.Game{
		ID:     uuid.New(),
		Kind:   kind,
		Status: models.GameStatusOpen,
		Params: params,
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.GameRepository().Create(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return game, nil
}

func (s *gameService) validateParams(kind models.GameKind, params *models.GameParams) error {
	switch kind {
	case models.GameKindCoinflip:
		params.Seats = 2
	case models.GameKindJackpot:
		// open-ended entry; locks on threshold or timer expiry
	case models.GameKindMinefield:
		mf := params.Minefield
		if mf == nil {
			return fmt.Errorf("minefield game requires minefield parameters")
		}
		if mf.MineCount <= 0 || mf.MineCount >= mf.TotalCells {
			return fmt.Errorf("mine count %d must be in (0, %d)", mf.MineCount, mf.TotalCells)
		}
		if len(mf.Picks) == 0 {
			return fmt.Errorf("minefield game requires at least one pick")
		}
	case models.GameKindCrateBattle:
		if params.Seats < 2 {
			return fmt.Errorf("crate battle requires at least 2 seats, got %d", params.Seats)
		}
		if len(params.Crates) == 0 {
			return fmt.Errorf("crate battle requires at least one crate")
		}
		for _, crateID := range params.Crates {
			if _, err := s.tables.Crate(crateID); err != nil {
				return err
			}
		}
		if params.TieMode == "" {
			params.TieMode = models.TieModeTiebreak
		}
	default:
		return fmt.Errorf("unknown game kind %q", kind)
	}
	return nil
}

// PlaceStake appends a participant's stake to an open game. The game's row
// lock serializes concurrent joins; the append and the total value update
// commit together, so no observer sees a torn ledger. When the stake
// completes the kind's readiness condition the game locks in the same
// transaction: the ledger freezes and the seed commitment is recorded.
func (s *gameService) PlaceStake(ctx context.Context, gameID uuid.UUID, participantID int64, amount int64, entryKind models.EntryKind, itemRef *string, side models.CoinSide) (*models.Stake, error) {
	if amount <= 0 {
		return nil, &models.InvalidAmountError{Amount: amount}
	}
	if entryKind == models.EntryKindItem && itemRef == nil {
		return nil, fmt.Errorf("item stake requires an item reference")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Ban and principal checks are delegated preconditions
	user, err := uow.UserRepository().GetByID(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if user == nil {
		return nil, &models.ForbiddenError{ParticipantID: participantID, Reason: "unknown principal"}
	}
	if user.Banned {
		return nil, &models.ForbiddenError{ParticipantID: participantID, Reason: "participant is banned"}
	}

	game, err := uow.GameRepository().GetByIDForUpdate(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	if game == nil {
		return nil, &models.GameNotFoundError{GameID: gameID}
	}
	if !game.IsOpen() {
		return nil, &models.InvalidStateError{GameID: gameID, Actual: game.Status, Expected: models.GameStatusOpen}
	}

	stakes, err := uow.GameRepository().GetStakes(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stakes: %w", err)
	}
	if err := s.validateEntry(game, stakes, participantID, amount, entryKind, side); err != nil {
		return nil, err
	}

	if entryKind == models.EntryKindBalance && user.AvailableBalance < amount {
		return nil, fmt.Errorf("insufficient balance: have %d available, need %d", user.AvailableBalance, amount)
	}

	stake := &models.Stake{
		GameID:        gameID,
		ParticipantID: participantID,
		Amount:        amount,
		EntryKind:     entryKind,
		ItemRef:       itemRef,
		Side:          side,
	}
	if err := uow.GameRepository().AddStake(ctx, stake); err != nil {
		return nil, fmt.Errorf("failed to add stake: %w", err)
	}
	game.TotalValue += amount
	stakes = append(stakes, stake)

	uow.EventBus().Publish(events.StakePlacedEvent{
		GameID:        gameID,
		ParticipantID: participantID,
		Amount:        amount,
		EntryKind:     entryKind,
	})

	if game.ReadyToLock(distinctParticipants(stakes)) {
		if err := s.lock(ctx, uow, game, stakes); err != nil {
			return nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return stake, nil
}

// validateEntry enforces the kind-specific join rules against the current
// stake list. Item entries settle by transferring custody to the single pot
// winner, so they are only accepted where exactly one participant can take
// the whole pot.
func (s *gameService) validateEntry(game *models.Game, stakes []*models.Stake, participantID int64, amount int64, entryKind models.EntryKind, side models.CoinSide) error {
	if entryKind == models.EntryKindItem {
		if game.Kind == models.GameKindMinefield {
			return fmt.Errorf("minefield stakes must be balance: a multiplier payout cannot split an item")
		}
		if game.Kind == models.GameKindCrateBattle && game.Params.TieMode == models.TieModeSplit {
			return fmt.Errorf("item stakes are not accepted in split-tie crate battles: a split pot cannot divide an item")
		}
	}

	switch game.Kind {
	case models.GameKindCoinflip:
		if side != models.CoinSideHeads && side != models.CoinSideTails {
			return fmt.Errorf("coinflip stake requires a declared side")
		}
		for _, existing := range stakes {
			if existing.ParticipantID == participantID {
				return fmt.Errorf("participant %d already staked on this coinflip", participantID)
			}
			if existing.Side == side {
				return fmt.Errorf("side %q already taken", side)
			}
			if existing.Amount != amount {
				return fmt.Errorf("coinflip stakes must match: expected %d, got %d", existing.Amount, amount)
			}
		}
	case models.GameKindMinefield:
		if len(stakes) != 0 {
			return fmt.Errorf("minefield accepts a single stake")
		}
	case models.GameKindCrateBattle:
		for _, existing := range stakes {
			if existing.ParticipantID == participantID {
				return fmt.Errorf("participant %d already holds a seat", participantID)
			}
			if existing.Amount != amount {
				return fmt.Errorf("crate battle entries must match: expected %d, got %d", existing.Amount, amount)
			}
		}
	}
	return nil
}

// lock freezes the ledger and commits a fresh seed. Called with the game's
// row lock held.
func (s *gameService) lock(ctx context.Context, uow UnitOfWork, game *models.Game, stakes []*models.Stake) error {
	ledger := &models.FrozenLedger{
		GameID:     game.ID,
		Stakes:     stakes,
		TotalValue: game.TotalValue,
	}

	seed, err := fair.GenerateSeed()
	if err != nil {
		return fmt.Errorf("failed to generate seed: %w", err)
	}
	game.Seed = seed
	game.SeedCommitment = fair.CommitmentOf(seed)
	game.LedgerDigest = ledger.Digest()

	if err := uow.GameRepository().Lock(ctx, game); err != nil {
		return fmt.Errorf("failed to lock game: %w", err)
	}

	uow.EventBus().Publish(events.GameLockedEvent{
		GameID:         game.ID,
		Kind:           game.Kind,
		TotalValue:     game.TotalValue,
		SeedCommitment: game.SeedCommitment,
	})
	return nil
}

// LockGame freezes an open game explicitly. Used for jackpots whose timer
// expired before the value threshold was reached.
func (s *gameService) LockGame(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	game, err := uow.GameRepository().GetByIDForUpdate(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	if game == nil {
		return nil, &models.GameNotFoundError{GameID: gameID}
	}
	if !game.IsOpen() {
		return nil, &models.InvalidStateError{GameID: gameID, Actual: game.Status, Expected: models.GameStatusOpen}
	}

	stakes, err := uow.GameRepository().GetStakes(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stakes: %w", err)
	}
	if distinctParticipants(stakes) < 2 {
		return nil, fmt.Errorf("cannot lock game %s with fewer than 2 participants", gameID)
	}

	if err := s.lock(ctx, uow, game, stakes); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return game, nil
}

// CancelGame cancels an open game. Allowed only while cancellation is fair:
// at most one participant, or total value still below the kind minimum.
// Stakes are escrowed, never debited, so reaching the terminal state releases
// them.
func (s *gameService) CancelGame(ctx context.Context, gameID uuid.UUID) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	game, err := uow.GameRepository().GetByIDForUpdate(ctx, gameID)
	if err != nil {
		return fmt.Errorf("failed to get game: %w", err)
	}
	if game == nil {
		return &models.GameNotFoundError{GameID: gameID}
	}
	if !game.IsOpen() {
		return &models.InvalidStateError{GameID: gameID, Actual: game.Status, Expected: models.GameStatusOpen}
	}

	stakes, err := uow.GameRepository().GetStakes(ctx, gameID)
	if err != nil {
		return fmt.Errorf("failed to get stakes: %w", err)
	}
	if !game.IsCancellable(distinctParticipants(stakes)) {
		return fmt.Errorf("game %s is no longer cancellable", gameID)
	}

	if err := uow.GameRepository().MarkCancelled(ctx, gameID); err != nil {
		return fmt.Errorf("failed to cancel game: %w", err)
	}

	// Balance stakes were escrowed, never debited, so cancellation moves no
	// balance; the release still leaves an audit entry per participant.
	released := make(map[int64]int64)
	for _, stake := range stakes {
		if stake.EntryKind == models.EntryKindBalance {
			released[stake.ParticipantID] += stake.Amount
		}
	}
	gameRef := gameID.String()
	for _, stake := range stakes {
		amount, ok := released[stake.ParticipantID]
		if !ok {
			continue
		}
		delete(released, stake.ParticipantID)

		user, err := uow.UserRepository().GetByID(ctx, stake.ParticipantID)
		if err != nil {
			return fmt.Errorf("failed to get participant %d: %w", stake.ParticipantID, err)
		}
		if user == nil {
			return fmt.Errorf("participant %d vanished before cancellation", stake.ParticipantID)
		}
		if err := RecordBalanceChange(ctx, uow, &models.BalanceHistory{
			UserID:          stake.ParticipantID,
			BalanceBefore:   user.Balance,
			BalanceAfter:    user.Balance,
			ChangeAmount:    0,
			TransactionType: models.TransactionTypeGameRefund,
			TransactionMetadata: map[string]any{
				"game_kind": string(game.Kind),
				"released":  amount,
			},
			RelatedGameID: &gameRef,
			RelatedType:   relatedTypePtr(models.RelatedTypeGame),
		}); err != nil {
			return err
		}
	}

	uow.EventBus().Publish(events.GameCancelledEvent{
		GameID:   gameID,
		Kind:     game.Kind,
		Refunded: game.TotalValue,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetGameDetail retrieves a game with its stakes
func (s *gameService) GetGameDetail(ctx context.Context, gameID uuid.UUID) (*models.GameDetail, error) {
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
	return detail, nil
}

// GetProof returns the audit record of a settled game: everything an
// external party needs to recompute and confirm the outcome.
func (s *gameService) GetProof(ctx context.Context, gameID uuid.UUID) (*models.ProofRecord, error) {
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
	if game.Status != models.GameStatusSettled {
		return nil, &models.InvalidStateError{GameID: gameID, Actual: game.Status, Expected: models.GameStatusSettled}
	}

	outcome, err := uow.OutcomeRepository().GetByGameID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome: %w", err)
	}
	if outcome == nil {
		return nil, &models.IntegrityError{GameID: gameID, Reason: "settled game has no outcome"}
	}
	if game.RevealedSeed == nil {
		return nil, &models.IntegrityError{GameID: gameID, Reason: "settled game has no revealed seed"}
	}

	return &models.ProofRecord{
		GameID:         game.ID,
		Kind:           game.Kind,
		SeedCommitment: game.SeedCommitment,
		RevealedSeed:   *game.RevealedSeed,
		LedgerDigest:   game.LedgerDigest,
		RNGOutput:      outcome.RNGOutput,
		Ledger:         detail.Ledger(),
		Outcome:        outcome,
	}, nil
}

func distinctParticipants(stakes []*models.Stake) int {
	seen := make(map[int64]bool, len(stakes))
	for _, s := range stakes {
		seen[s.ParticipantID] = true
	}
	return len(seen)
}
