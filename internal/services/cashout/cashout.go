// Package services содержит заявки на вывод заработанных средств.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/bioopay/backend/internal/models"
)

var minCashOut = decimal.NewFromInt(1)

// Repository описывает хранилище, с которым работают заявки на вывод.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	FindActiveDepositByUser(ctx context.Context, userID string) (*models.Deposit, error)
	// DebitEarnings списывает сумму, если баланса хватает, иначе ErrInsufficientFunds.
	DebitEarnings(ctx context.Context, userID string, amount decimal.Decimal) error
	RefundEarnings(ctx context.Context, userID string, amount decimal.Decimal) error

	CreateCashOut(ctx context.Context, c *models.CashOut) (string, error)
	LockCashOutByID(ctx context.Context, id string) (*models.CashOut, error)
	UpdateCashOutStatus(ctx context.Context, id, status, remarks string) error
	ListCashOutsByUser(ctx context.Context, userID string) ([]*models.CashOut, error)
	ListCashOuts(ctx context.Context, limit, offset int) ([]*models.CashOut, error)
}

// CashOutService принимает и рассматривает заявки на вывод.
type CashOutService struct {
	repo Repository
	log  *slog.Logger
}

// NewCashOutService создает новый экземпляр CashOutService.
func NewCashOutService(repo Repository, log *slog.Logger) *CashOutService {
	return &CashOutService{repo: repo, log: log}
}

// Create списывает сумму с баланса и создает заявку в статусе pending.
// Вывод доступен только пользователю с активным депозитом.
func (s *CashOutService) Create(ctx context.Context, userID string, in models.DummyCashOut) (*models.CashOut, error) {
	const op = "services.cashout.Create"

	amount := decimal.NewFromFloat(in.Amount).Round(2)
	if amount.LessThan(minCashOut) {
		return nil, fmt.Errorf("%s: amount below %s: %w", op, minCashOut, models.ErrInvalidInput)
	}

	c := &models.CashOut{
		UserID:        userID,
		Amount:        amount,
		AccountType:   in.AccountType,
		AccountNumber: in.AccountNumber,
	}
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.FindActiveDepositByUser(ctx, userID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return models.ErrNoActivePlan
			}
			return err
		}
		if err := s.repo.DebitEarnings(ctx, userID, amount); err != nil {
			return err
		}
		_, err := s.repo.CreateCashOut(ctx, c)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("cash out requested", slog.String("op", op), slog.String("user_id", userID), slog.String("amount", amount.StringFixed(2)))
	return c, nil
}

// Review закрывает заявку. Отклонённая заявка возвращает сумму на баланс.
func (s *CashOutService) Review(ctx context.Context, id string, in models.DummyReview) (*models.CashOut, error) {
	const op = "services.cashout.Review"

	if in.Status != models.CashOutApproved && in.Status != models.CashOutRejected {
		return nil, fmt.Errorf("%s: unknown status %q: %w", op, in.Status, models.ErrInvalidState)
	}

	var c *models.CashOut
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.repo.LockCashOutByID(ctx, id)
		if err != nil {
			return err
		}
		if c.Status != models.CashOutPending {
			return fmt.Errorf("cash out is %s: %w", c.Status, models.ErrInvalidState)
		}
		if err := s.repo.UpdateCashOutStatus(ctx, id, in.Status, in.Remarks); err != nil {
			return err
		}
		if in.Status == models.CashOutRejected {
			return s.repo.RefundEarnings(ctx, c.UserID, c.Amount)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.Status = in.Status
	c.Remarks = in.Remarks
	s.log.Info("cash out reviewed", slog.String("op", op), slog.String("cashout_id", id), slog.String("status", in.Status))
	return c, nil
}

// ListMine возвращает заявки пользователя.
func (s *CashOutService) ListMine(ctx context.Context, userID string) ([]*models.CashOut, error) {
	const op = "services.cashout.ListMine"
	res, err := s.repo.ListCashOutsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if res == nil {
		res = []*models.CashOut{}
	}
	return res, nil
}

// ListAll возвращает страницу всех заявок.
func (s *CashOutService) ListAll(ctx context.Context, limit, offset int) ([]*models.CashOut, error) {
	const op = "services.cashout.ListAll"
	res, err := s.repo.ListCashOuts(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if res == nil {
		res = []*models.CashOut{}
	}
	return res, nil
}
