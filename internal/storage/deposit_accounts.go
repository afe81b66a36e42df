package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bioopay/backend/internal/models"
)

const depositAccountColumns = `id, account, account_number, created_at, updated_at`

func scanDepositAccount(row rowScanner) (*models.DepositAccount, error) {
	a := &models.DepositAccount{}
	if err := row.Scan(&a.ID, &a.Account, &a.AccountNumber, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateDepositAccount сохраняет реквизиты для оплаты и возвращает их ID.
func (s *Storage) CreateDepositAccount(ctx context.Context, a *models.DepositAccount) (string, error) {
	const op = "storage.CreateDepositAccount"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	query := `INSERT INTO deposit_accounts (id, account, account_number)
			  VALUES ($1, $2, $3)
			  RETURNING created_at, updated_at`
	if err := s.conn(ctx).QueryRowContext(ctx, query, a.ID, a.Account, a.AccountNumber).
		Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return "", mapError(op, err)
	}
	return a.ID, nil
}

// ListDepositAccounts возвращает все реквизиты в порядке создания.
func (s *Storage) ListDepositAccounts(ctx context.Context) ([]*models.DepositAccount, error) {
	const op = "storage.ListDepositAccounts"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+depositAccountColumns+` FROM deposit_accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []*models.DepositAccount
	for rows.Next() {
		a, err := scanDepositAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// UpdateDepositAccount заменяет реквизиты и возвращает обновлённую запись.
func (s *Storage) UpdateDepositAccount(ctx context.Context, a *models.DepositAccount) error {
	const op = "storage.UpdateDepositAccount"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if !validID(a.ID) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	query := `UPDATE deposit_accounts SET account = $1, account_number = $2, updated_at = NOW()
			  WHERE id = $3
			  RETURNING created_at, updated_at`
	if err := s.conn(ctx).QueryRowContext(ctx, query, a.Account, a.AccountNumber, a.ID).
		Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return mapError(op, err)
	}
	return nil
}

// DeleteDepositAccount удаляет реквизиты.
func (s *Storage) DeleteDepositAccount(ctx context.Context, id string) error {
	const op = "storage.DeleteDepositAccount"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if !validID(id) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM deposit_accounts WHERE id = $1`, id)
	if err != nil {
		return mapError(op, err)
	}
	return expectAffected(op, res, models.ErrNotFound)
}
