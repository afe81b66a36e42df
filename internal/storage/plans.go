package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bioopay/backend/internal/models"
)

const planColumns = `id, name, price, commission_rate, created_at`

func scanPlan(row rowScanner) (*models.Plan, error) {
	p := &models.Plan{}
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.CommissionRate, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePlan сохраняет тарифный план и возвращает его ID.
func (s *Storage) CreatePlan(ctx context.Context, p *models.Plan) (string, error) {
	const op = "storage.CreatePlan"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	query := `INSERT INTO plans (id, name, price, commission_rate)
			  VALUES ($1, $2, $3, $4)
			  RETURNING created_at`
	if err := s.conn(ctx).QueryRowContext(ctx, query, p.ID, p.Name, p.Price, p.CommissionRate).Scan(&p.CreatedAt); err != nil {
		return "", mapError(op, err)
	}
	return p.ID, nil
}

// GetPlanByID возвращает план по ID.
func (s *Storage) GetPlanByID(ctx context.Context, id string) (*models.Plan, error) {
	const op = "storage.GetPlanByID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	p, err := scanPlan(s.conn(ctx).QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return p, nil
}

// ListPlans возвращает все планы по возрастанию цены.
func (s *Storage) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	const op = "storage.ListPlans"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT `+planColumns+` FROM plans ORDER BY price, name`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []*models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// UpdatePlan обновляет название, цену и ставку комиссии плана.
func (s *Storage) UpdatePlan(ctx context.Context, p *models.Plan) error {
	const op = "storage.UpdatePlan"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if !validID(p.ID) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	query := `UPDATE plans SET name = $1, price = $2, commission_rate = $3 WHERE id = $4`
	res, err := s.conn(ctx).ExecContext(ctx, query, p.Name, p.Price, p.CommissionRate, p.ID)
	if err != nil {
		return mapError(op, err)
	}
	return expectAffected(op, res, models.ErrNotFound)
}

// DeletePlan удаляет план. План, на который ссылаются депозиты, удалить нельзя (ErrInvalidState).
func (s *Storage) DeletePlan(ctx context.Context, id string) error {
	const op = "storage.DeletePlan"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if !validID(id) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return mapError(op, err)
	}
	return expectAffected(op, res, models.ErrNotFound)
}
