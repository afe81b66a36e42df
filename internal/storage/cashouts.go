package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bioopay/backend/internal/models"
)

const cashOutColumns = `id, user_id, amount, account_type, account_number, status, remarks, created_at`

func scanCashOut(row rowScanner) (*models.CashOut, error) {
	c := &models.CashOut{}
	if err := row.Scan(&c.ID, &c.UserID, &c.Amount, &c.AccountType, &c.AccountNumber,
		&c.Status, &c.Remarks, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCashOut сохраняет заявку на вывод в статусе pending.
func (s *Storage) CreateCashOut(ctx context.Context, c *models.CashOut) (string, error) {
	const op = "storage.CreateCashOut"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Status = models.CashOutPending
	query := `INSERT INTO cashouts (id, user_id, amount, account_type, account_number, status)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING created_at`
	if err := s.conn(ctx).QueryRowContext(ctx, query,
		c.ID, c.UserID, c.Amount, c.AccountType, c.AccountNumber, c.Status).Scan(&c.CreatedAt); err != nil {
		return "", mapError(op, err)
	}
	return c.ID, nil
}

// LockCashOutByID возвращает заявку, блокируя строку до конца транзакции.
func (s *Storage) LockCashOutByID(ctx context.Context, id string) (*models.CashOut, error) {
	const op = "storage.LockCashOutByID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	c, err := scanCashOut(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+cashOutColumns+` FROM cashouts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return c, nil
}

// ListCashOutsByUser возвращает заявки пользователя, новые первыми.
func (s *Storage) ListCashOutsByUser(ctx context.Context, userID string) ([]*models.CashOut, error) {
	const op = "storage.ListCashOutsByUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.listCashOuts(ctx, op,
		`SELECT `+cashOutColumns+` FROM cashouts WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListCashOuts возвращает страницу всех заявок на вывод.
func (s *Storage) ListCashOuts(ctx context.Context, limit, offset int) ([]*models.CashOut, error) {
	const op = "storage.ListCashOuts"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.listCashOuts(ctx, op,
		`SELECT `+cashOutColumns+` FROM cashouts ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
}

func (s *Storage) listCashOuts(ctx context.Context, op, query string, args ...any) ([]*models.CashOut, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []*models.CashOut
	for rows.Next() {
		c, err := scanCashOut(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// UpdateCashOutStatus закрывает заявку, находящуюся в pending.
func (s *Storage) UpdateCashOutStatus(ctx context.Context, id, status, remarks string) error {
	const op = "storage.UpdateCashOutStatus"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	query := `UPDATE cashouts SET status = $1, remarks = $2 WHERE id = $3 AND status = $4`
	res, err := s.conn(ctx).ExecContext(ctx, query, status, remarks, id, models.CashOutPending)
	if err != nil {
		return mapError(op, err)
	}
	return expectAffected(op, res, models.ErrInvalidState)
}
