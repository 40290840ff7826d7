package service

import (
	"context"
	"fmt"

	"crateclash/config"
	"crateclash/models"
)

type userService struct {
	uowFactory UnitOfWorkFactory
}

// NewUserService creates a new user service
func NewUserService(uowFactory UnitOfWorkFactory) UserService {
	return &userService{
		uowFactory: uowFactory,
	}
}

// GetOrCreateUser retrieves an existing user or creates a new one with initial balance
func (s *userService) GetOrCreateUser(ctx context.Context, id int64, username string) (*models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user != nil {
		// read only, nothing to commit
		return user, nil
	}

	startingBalance := config.Get().StartingBalance
	user, err = uow.UserRepository().Create(ctx, id, username, startingBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := RecordBalanceChange(ctx, uow, &models.BalanceHistory{
		UserID:          id,
		BalanceBefore:   0,
		BalanceAfter:    startingBalance,
		ChangeAmount:    startingBalance,
		TransactionType: models.TransactionTypeInitial,
	}); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, nil
}
