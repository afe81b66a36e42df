package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bioopay/backend/internal/models"
)

// CreateCommission добавляет запись в журнал начислений.
func (s *Storage) CreateCommission(ctx context.Context, e *models.CommissionEntry) error {
	const op = "storage.CreateCommission"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	query := `INSERT INTO commissions (id, deposit_id, referrer_id, level, amount)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING created_at`
	if err := s.conn(ctx).QueryRowContext(ctx, query,
		e.ID, e.DepositID, e.ReferrerID, e.Level, e.Amount).Scan(&e.CreatedAt); err != nil {
		return mapError(op, err)
	}
	return nil
}

// ListCommissionsByReferrer возвращает начисления пользователя, новые первыми.
func (s *Storage) ListCommissionsByReferrer(ctx context.Context, referrerID string) ([]*models.CommissionEntry, error) {
	const op = "storage.ListCommissionsByReferrer"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if !validID(referrerID) {
		return nil, nil
	}

	query := `SELECT id, deposit_id, referrer_id, level, amount, created_at
			  FROM commissions
			  WHERE referrer_id = $1
			  ORDER BY created_at DESC, level`
	rows, err := s.conn(ctx).QueryContext(ctx, query, referrerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []*models.CommissionEntry
	for rows.Next() {
		e := &models.CommissionEntry{}
		if err := rows.Scan(&e.ID, &e.DepositID, &e.ReferrerID, &e.Level, &e.Amount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}
