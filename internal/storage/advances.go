package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bioopay/backend/internal/models"
)

const advanceColumns = `id, user_id, team_size, team_category, amount, status, user_comment, remarks, created_at`

func scanAdvance(row rowScanner) (*models.Advance, error) {
	a := &models.Advance{}
	if err := row.Scan(&a.ID, &a.UserID, &a.TeamSize, &a.TeamCategory, &a.Amount,
		&a.Status, &a.UserComment, &a.Remarks, &a.CreatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAdvance сохраняет заявку на аванс в статусе pending.
func (s *Storage) CreateAdvance(ctx context.Context, a *models.Advance) (string, error) {
	const op = "storage.CreateAdvance"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Status = models.AdvancePending
	query := `INSERT INTO advances (id, user_id, team_size, team_category, amount, status, user_comment)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING created_at`
	if err := s.conn(ctx).QueryRowContext(ctx, query,
		a.ID, a.UserID, a.TeamSize, a.TeamCategory, a.Amount, a.Status, a.UserComment).Scan(&a.CreatedAt); err != nil {
		return "", mapError(op, err)
	}
	return a.ID, nil
}

// GetAdvanceByID возвращает заявку на аванс по ID.
func (s *Storage) GetAdvanceByID(ctx context.Context, id string) (*models.Advance, error) {
	const op = "storage.GetAdvanceByID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	a, err := scanAdvance(s.conn(ctx).QueryRowContext(ctx, `SELECT `+advanceColumns+` FROM advances WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return a, nil
}

// ListAdvancesByUser возвращает заявки пользователя, новые первыми.
func (s *Storage) ListAdvancesByUser(ctx context.Context, userID string) ([]*models.Advance, error) {
	const op = "storage.ListAdvancesByUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.listAdvances(ctx, op,
		`SELECT `+advanceColumns+` FROM advances WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListAdvances возвращает страницу всех заявок на аванс.
func (s *Storage) ListAdvances(ctx context.Context, limit, offset int) ([]*models.Advance, error) {
	const op = "storage.ListAdvances"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.listAdvances(ctx, op,
		`SELECT `+advanceColumns+` FROM advances ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
}

func (s *Storage) listAdvances(ctx context.Context, op, query string, args ...any) ([]*models.Advance, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []*models.Advance
	for rows.Next() {
		a, err := scanAdvance(rows)
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

// UpdateAdvanceStatus меняет статус заявки и замечания администратора.
func (s *Storage) UpdateAdvanceStatus(ctx context.Context, id, status, remarks string) error {
	const op = "storage.UpdateAdvanceStatus"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if !validID(id) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE advances SET status = $1, remarks = $2 WHERE id = $3`, status, remarks, id)
	if err != nil {
		return mapError(op, err)
	}
	return expectAffected(op, res, models.ErrNotFound)
}
