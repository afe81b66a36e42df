package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bioopay/backend/internal/models"
)

const depositColumns = `d.id, d.user_id, d.plan_id, COALESCE(p.name, ''), d.transaction_id, d.image,
	d.amount, d.status, d.created_at, d.updated_at`

const depositFrom = ` FROM deposits d LEFT JOIN plans p ON p.id = d.plan_id`

func scanDeposit(row rowScanner) (*models.Deposit, error) {
	d := &models.Deposit{}
	if err := row.Scan(&d.ID, &d.UserID, &d.PlanID, &d.PlanName, &d.TransactionID, &d.Image,
		&d.Amount, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return d, nil
}

// CreateDeposit сохраняет заявку на депозит в статусе pending и возвращает её ID.
func (s *Storage) CreateDeposit(ctx context.Context, d *models.Deposit) (string, error) {
	const op = "storage.CreateDeposit"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Status = models.DepositPending

	query := `INSERT INTO deposits (id, user_id, plan_id, transaction_id, image, amount, status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING created_at, updated_at`
	err := s.conn(ctx).QueryRowContext(ctx, query,
		d.ID, d.UserID, d.PlanID, d.TransactionID, d.Image, d.Amount, d.Status).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return "", mapError(op, err)
	}
	return d.ID, nil
}

// GetDepositByID возвращает депозит вместе с названием плана.
func (s *Storage) GetDepositByID(ctx context.Context, id string) (*models.Deposit, error) {
	const op = "storage.GetDepositByID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	query := `SELECT ` + depositColumns + depositFrom + ` WHERE d.id = $1`
	d, err := scanDeposit(s.conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return d, nil
}

// LockDepositByID возвращает депозит, блокируя его строку до конца транзакции.
func (s *Storage) LockDepositByID(ctx context.Context, id string) (*models.Deposit, error) {
	const op = "storage.LockDepositByID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	query := `SELECT ` + depositColumns + depositFrom + ` WHERE d.id = $1 FOR UPDATE OF d`
	d, err := scanDeposit(s.conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return d, nil
}

// ActivateDeposit переводит депозит из pending в active.
// Если депозит уже не в pending, возвращает ErrInvalidState.
func (s *Storage) ActivateDeposit(ctx context.Context, id string) error {
	const op = "storage.ActivateDeposit"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	query := `UPDATE deposits SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	res, err := s.conn(ctx).ExecContext(ctx, query, models.DepositActive, id, models.DepositPending)
	if err != nil {
		return mapError(op, err)
	}
	return expectAffected(op, res, models.ErrInvalidState)
}

// FailOpenDepositsExcept переводит в failed все открытые депозиты пользователя, кроме keepID.
func (s *Storage) FailOpenDepositsExcept(ctx context.Context, userID, keepID string) (int64, error) {
	const op = "storage.FailOpenDepositsExcept"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	query := `UPDATE deposits SET status = $1, updated_at = NOW()
			  WHERE user_id = $2 AND id <> $3 AND status IN ($4, $5)`
	res, err := s.conn(ctx).ExecContext(ctx, query,
		models.DepositFailed, userID, keepID, models.DepositPending, models.DepositActive)
	if err != nil {
		return 0, mapError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// FindActiveDepositByUser возвращает активный депозит пользователя или ErrNotFound.
func (s *Storage) FindActiveDepositByUser(ctx context.Context, userID string) (*models.Deposit, error) {
	const op = "storage.FindActiveDepositByUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if !validID(userID) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	query := `SELECT ` + depositColumns + depositFrom + `
			  WHERE d.user_id = $1 AND d.status = $2
			  ORDER BY d.updated_at DESC
			  LIMIT 1`
	d, err := scanDeposit(s.conn(ctx).QueryRowContext(ctx, query, userID, models.DepositActive))
	if err != nil {
		return nil, mapError(op, err)
	}
	return d, nil
}

// ListDepositsByUser возвращает депозиты пользователя, новые первыми.
func (s *Storage) ListDepositsByUser(ctx context.Context, userID string) ([]*models.Deposit, error) {
	const op = "storage.ListDepositsByUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + depositColumns + depositFrom + ` WHERE d.user_id = $1 ORDER BY d.created_at DESC`
	return s.listDeposits(ctx, op, query, userID)
}

// ListDeposits возвращает страницу всех депозитов, новые первыми.
func (s *Storage) ListDeposits(ctx context.Context, limit, offset int) ([]*models.Deposit, error) {
	const op = "storage.ListDeposits"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + depositColumns + depositFrom + ` ORDER BY d.created_at DESC LIMIT $1 OFFSET $2`
	return s.listDeposits(ctx, op, query, limit, offset)
}

func (s *Storage) listDeposits(ctx context.Context, op, query string, args ...any) ([]*models.Deposit, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []*models.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// UpdateDepositStatus меняет статус депозита, находящегося в pending.
// Активация идёт только через ActivateDeposit; депозит не в pending даёт ErrInvalidState.
func (s *Storage) UpdateDepositStatus(ctx context.Context, id, status string) error {
	const op = "storage.UpdateDepositStatus"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if !validID(id) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE deposits SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		status, id, models.DepositPending)
	if err != nil {
		return mapError(op, err)
	}
	return expectAffected(op, res, models.ErrInvalidState)
}

// DeleteDeposit удаляет депозит.
func (s *Storage) DeleteDeposit(ctx context.Context, id string) error {
	const op = "storage.DeleteDeposit"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if !validID(id) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM deposits WHERE id = $1`, id)
	if err != nil {
		return mapError(op, err)
	}
	return expectAffected(op, res, models.ErrNotFound)
}
