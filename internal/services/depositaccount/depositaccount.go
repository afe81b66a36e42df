// Package services содержит управление реквизитами для оплаты депозитов.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/bioopay/backend/internal/models"
)

// Repository описывает хранилище реквизитов.
type Repository interface {
	CreateDepositAccount(ctx context.Context, a *models.DepositAccount) (string, error)
	ListDepositAccounts(ctx context.Context) ([]*models.DepositAccount, error)
	UpdateDepositAccount(ctx context.Context, a *models.DepositAccount) error
	DeleteDepositAccount(ctx context.Context, id string) error
}

// DepositAccountService реализует CRUD реквизитов.
type DepositAccountService struct {
	repo Repository
}

// NewDepositAccountService создает новый экземпляр DepositAccountService.
func NewDepositAccountService(repo Repository) *DepositAccountService {
	return &DepositAccountService{repo: repo}
}

func toAccount(id string, in models.DummyDepositAccount) *models.DepositAccount {
	return &models.DepositAccount{
		ID:            id,
		Account:       strings.TrimSpace(in.Account),
		AccountNumber: strings.TrimSpace(in.AccountNumber),
	}
}

// Create добавляет реквизиты.
func (s *DepositAccountService) Create(ctx context.Context, in models.DummyDepositAccount) (*models.DepositAccount, error) {
	const op = "services.depositaccount.Create"
	a := toAccount("", in)
	if _, err := s.repo.CreateDepositAccount(ctx, a); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// List возвращает все реквизиты.
func (s *DepositAccountService) List(ctx context.Context) ([]*models.DepositAccount, error) {
	const op = "services.depositaccount.List"
	accounts, err := s.repo.ListDepositAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if accounts == nil {
		accounts = []*models.DepositAccount{}
	}
	return accounts, nil
}

// Update заменяет реквизиты.
func (s *DepositAccountService) Update(ctx context.Context, id string, in models.DummyDepositAccount) (*models.DepositAccount, error) {
	const op = "services.depositaccount.Update"
	a := toAccount(id, in)
	if err := s.repo.UpdateDepositAccount(ctx, a); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// Delete удаляет реквизиты.
func (s *DepositAccountService) Delete(ctx context.Context, id string) error {
	const op = "services.depositaccount.Delete"
	if err := s.repo.DeleteDepositAccount(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
