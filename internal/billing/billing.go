package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"sra-backend/internal/database"
)

var (
	ErrUnknownAction       = errors.New("unknown billable action")
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// Service debits a user's balance for a named action. A debit failure aborts
// the requesting pipeline before any provider work happens.
type Service interface {
	Debit(ctx context.Context, email, action, description string) error
}

type CreditService struct {
	db *gorm.DB
}

var _ Service = (*CreditService)(nil)

func NewCreditService(db *gorm.DB) *CreditService {
	return &CreditService{db: db}
}

func (s *CreditService) Debit(ctx context.Context, email, action, description string) error {
	return s.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var cost database.CostPerAction
		if err := txn.Where("action = ?", action).First(&cost).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownAction, action)
			}
			return fmt.Errorf("error looking up action cost: %w", err)
		}

		var user database.User
		if err := txn.Where("email = ?", email).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrUserNotFound, email)
			}
			return fmt.Errorf("error looking up user: %w", err)
		}

		if user.CreditBalance.LessThan(cost.Cost) {
			return fmt.Errorf("%w: balance %s, action %s costs %s", ErrInsufficientCredits, user.CreditBalance, action, cost.Cost)
		}

		user.CreditBalance = user.CreditBalance.Sub(cost.Cost)
		if err := txn.Save(&user).Error; err != nil {
			return fmt.Errorf("error updating balance: %w", err)
		}

		entry := database.CreditTransaction{
			Id:          uuid.New(),
			UserId:      user.Id,
			Amount:      cost.Cost.Neg(),
			Endpoint:    cost.Endpoint,
			Description: description,
			CreatedAt:   time.Now().UTC(),
		}
		if err := txn.Create(&entry).Error; err != nil {
			return fmt.Errorf("error recording credit transaction: %w", err)
		}

		return nil
	})
}
