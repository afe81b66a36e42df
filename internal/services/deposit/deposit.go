// Package services содержит приём депозитов и смену их статуса администратором.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/bioopay/backend/internal/models"
)

var imageDataURL = regexp.MustCompile(`^data:image/(png|jpeg|jpg);base64,[A-Za-z0-9+/]+=*$`)

// Repository описывает хранилище депозитов и планов.
type Repository interface {
	GetPlanByID(ctx context.Context, id string) (*models.Plan, error)
	CreateDeposit(ctx context.Context, d *models.Deposit) (string, error)
	GetDepositByID(ctx context.Context, id string) (*models.Deposit, error)
	ListDepositsByUser(ctx context.Context, userID string) ([]*models.Deposit, error)
	ListDeposits(ctx context.Context, limit, offset int) ([]*models.Deposit, error)
	UpdateDepositStatus(ctx context.Context, id, status string) error
	DeleteDeposit(ctx context.Context, id string) error
}

// Activator активирует депозит и распределяет комиссию.
type Activator interface {
	ActivateDeposit(ctx context.Context, depositID string) (*models.Activation, error)
}

// DepositService управляет депозитами пользователей.
type DepositService struct {
	repo      Repository
	activator Activator
	log       *slog.Logger
}

// NewDepositService создает новый экземпляр DepositService.
func NewDepositService(repo Repository, activator Activator, log *slog.Logger) *DepositService {
	return &DepositService{repo: repo, activator: activator, log: log}
}

// Create сохраняет заявку на депозит в статусе pending. Сумма берётся из цены плана.
func (s *DepositService) Create(ctx context.Context, userID string, in models.DummyDeposit) (*models.Deposit, error) {
	const op = "services.deposit.Create"

	if !imageDataURL.MatchString(in.Image) {
		return nil, fmt.Errorf("%s: image must be a png or jpeg data URL: %w", op, models.ErrInvalidInput)
	}
	plan, err := s.repo.GetPlanByID(ctx, in.PlanID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	d := &models.Deposit{
		UserID:        userID,
		PlanID:        plan.ID,
		PlanName:      plan.Name,
		TransactionID: in.TransactionID,
		Image:         in.Image,
		Amount:        plan.Price,
	}
	if _, err := s.repo.CreateDeposit(ctx, d); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("deposit created", slog.String("op", op), slog.String("deposit_id", d.ID), slog.String("user_id", userID))
	return d, nil
}

// ListMine возвращает депозиты пользователя.
func (s *DepositService) ListMine(ctx context.Context, userID string) ([]*models.Deposit, error) {
	const op = "services.deposit.ListMine"
	res, err := s.repo.ListDepositsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if res == nil {
		res = []*models.Deposit{}
	}
	return res, nil
}

// ListAll возвращает страницу всех депозитов.
func (s *DepositService) ListAll(ctx context.Context, limit, offset int) ([]*models.Deposit, error) {
	const op = "services.deposit.ListAll"
	res, err := s.repo.ListDeposits(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if res == nil {
		res = []*models.Deposit{}
	}
	return res, nil
}

// UpdateStatus меняет статус депозита. Переход в active выполняет активацию с начислением комиссии,
// остальные переходы допустимы только из pending.
func (s *DepositService) UpdateStatus(ctx context.Context, id, status string) (*models.DepositUpdate, error) {
	const op = "services.deposit.UpdateStatus"

	if !models.IsValidDepositStatus(status) {
		return nil, fmt.Errorf("%s: unknown status %q: %w", op, status, models.ErrInvalidState)
	}

	if status == models.DepositActive {
		act, err := s.activator.ActivateDeposit(ctx, id)
		if err != nil {
			return nil, err
		}
		return &models.DepositUpdate{Deposit: act.Deposit, Activation: act}, nil
	}

	d, err := s.repo.GetDepositByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.UpdateDepositStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("%s: deposit is %s: %w", op, d.Status, err)
	}
	d.Status = status
	return &models.DepositUpdate{Deposit: d}, nil
}

// Delete удаляет депозит.
func (s *DepositService) Delete(ctx context.Context, id string) error {
	const op = "services.deposit.Delete"
	if err := s.repo.DeleteDeposit(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
