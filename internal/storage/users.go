package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bioopay/backend/internal/models"
)

const userColumns = `id, username, email, password_hash, referral_code, referral_link, referred_by,
	earnings, total_earnings, account_status, role, is_verified, last_login_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var referredBy sql.NullString
	var lastLogin sql.NullTime
	if err := row.Scan(&u.ID, &u.UserName, &u.Email, &u.PasswordHash, &u.ReferralCode, &u.ReferralLink,
		&referredBy, &u.Earnings, &u.TotalEarnings, &u.AccountStatus, &u.Role, &u.IsVerified,
		&lastLogin, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.ReferredBy = referredBy.String
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	return u, nil
}

func nullableCode(code string) sql.NullString {
	code = models.NormalizeReferralCode(code)
	return sql.NullString{String: code, Valid: code != ""}
}

// CreateUser сохраняет нового пользователя и возвращает его ID.
// Реферальные коды сохраняются в нормализованном виде.
func (s *Storage) CreateUser(ctx context.Context, u *models.User) (string, error) {
	const op = "storage.CreateUser"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.AccountStatus == "" {
		u.AccountStatus = models.AccountActive
	}
	u.ReferralCode = models.NormalizeReferralCode(u.ReferralCode)
	u.ReferredBy = models.NormalizeReferralCode(u.ReferredBy)

	query := `INSERT INTO users (id, username, email, password_hash, referral_code, referral_link,
			      referred_by, account_status, role, is_verified)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  RETURNING created_at`
	err := s.conn(ctx).QueryRowContext(ctx, query,
		u.ID, u.UserName, u.Email, u.PasswordHash, u.ReferralCode, u.ReferralLink,
		nullableCode(u.ReferredBy), u.AccountStatus, u.Role, u.IsVerified).Scan(&u.CreatedAt)
	if err != nil {
		return "", mapError(op, err)
	}
	return u.ID, nil
}

func (s *Storage) getUser(ctx context.Context, op, where string, arg any) (*models.User, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	u, err := scanUser(s.conn(ctx).QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, mapError(op, err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по ID.
func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.GetUserByID"
	if !validID(id) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return s.getUser(ctx, op, "id = $1", id)
}

// LockUserByID возвращает пользователя, блокируя строку до конца текущей транзакции.
func (s *Storage) LockUserByID(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.LockUserByID"
	if !validID(id) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return s.getUser(ctx, op, "id = $1 FOR UPDATE", id)
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	return s.getUser(ctx, op, "LOWER(email) = LOWER($1)", email)
}

// GetUserByUserName возвращает пользователя по имени.
func (s *Storage) GetUserByUserName(ctx context.Context, userName string) (*models.User, error) {
	const op = "storage.GetUserByUserName"
	return s.getUser(ctx, op, "username = $1", userName)
}

// GetUserByReferralCode ищет владельца реферального кода без учёта регистра.
func (s *Storage) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	const op = "storage.GetUserByReferralCode"
	code = models.NormalizeReferralCode(code)
	if code == "" {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return s.getUser(ctx, op, "referral_code = $1", code)
}

// UserExists сообщает, занят ли email или имя пользователя.
func (s *Storage) UserExists(ctx context.Context, email, userName string) (bool, error) {
	const op = "storage.UserExists"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) OR username = $2)`
	if err := s.conn(ctx).QueryRowContext(ctx, query, email, userName).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// ReferralCodeExists проверяет, занят ли реферальный код.
func (s *Storage) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	const op = "storage.ReferralCodeExists"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE referral_code = $1)`
	if err := s.conn(ctx).QueryRowContext(ctx, query, models.NormalizeReferralCode(code)).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// CreditEarnings атомарно увеличивает текущий и общий заработок пользователя.
func (s *Storage) CreditEarnings(ctx context.Context, userID string, amount decimal.Decimal) error {
	const op = "storage.CreditEarnings"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if !validID(userID) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	query := `UPDATE users
			  SET earnings = earnings + $1, total_earnings = total_earnings + $1
			  WHERE id = $2`
	res, err := s.conn(ctx).ExecContext(ctx, query, amount, userID)
	if err != nil {
		return mapError(op, err)
	}
	return expectAffected(op, res, models.ErrNotFound)
}

// DebitEarnings списывает сумму с текущего заработка, только если его хватает.
func (s *Storage) DebitEarnings(ctx context.Context, userID string, amount decimal.Decimal) error {
	const op = "storage.DebitEarnings"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if !validID(userID) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	query := `UPDATE users SET earnings = earnings - $1 WHERE id = $2 AND earnings >= $1`
	res, err := s.conn(ctx).ExecContext(ctx, query, amount, userID)
	if err != nil {
		return mapError(op, err)
	}
	return expectAffected(op, res, models.ErrInsufficientFunds)
}

// RefundEarnings возвращает сумму на текущий заработок без изменения общего.
func (s *Storage) RefundEarnings(ctx context.Context, userID string, amount decimal.Decimal) error {
	const op = "storage.RefundEarnings"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE users SET earnings = earnings + $1 WHERE id = $2`, amount, userID)
	if err != nil {
		return mapError(op, err)
	}
	return expectAffected(op, res, models.ErrNotFound)
}

// CountByReferredBy возвращает число прямых рефералов владельца кода.
func (s *Storage) CountByReferredBy(ctx context.Context, code string) (int, error) {
	const op = "storage.CountByReferredBy"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var count int
	query := `SELECT COUNT(*) FROM users WHERE referred_by = $1`
	if err := s.conn(ctx).QueryRowContext(ctx, query, models.NormalizeReferralCode(code)).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// ListByReferredBy возвращает прямых рефералов владельца кода в порядке регистрации.
func (s *Storage) ListByReferredBy(ctx context.Context, code string) ([]*models.User, error) {
	const op = "storage.ListByReferredBy"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE referred_by = $1 ORDER BY created_at, id`
	return s.listUsers(ctx, op, query, models.NormalizeReferralCode(code))
}

// ListUsers возвращает страницу пользователей, новые первыми.
func (s *Storage) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	const op = "storage.ListUsers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`
	return s.listUsers(ctx, op, query, limit, offset)
}

func (s *Storage) listUsers(ctx context.Context, op, query string, args ...any) ([]*models.User, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// UpdateLastLogin фиксирует время последнего входа.
func (s *Storage) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	const op = "storage.UpdateLastLogin"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, at, userID)
	if err != nil {
		return mapError(op, err)
	}
	return expectAffected(op, res, models.ErrNotFound)
}

// UpdateReferredBy меняет пригласившего. Пустой код снимает привязку.
func (s *Storage) UpdateReferredBy(ctx context.Context, userID, code string) error {
	const op = "storage.UpdateReferredBy"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if !validID(userID) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE users SET referred_by = $1 WHERE id = $2`, nullableCode(code), userID)
	if err != nil {
		return mapError(op, err)
	}
	return expectAffected(op, res, models.ErrNotFound)
}

// UpdateAccountStatus меняет статус учётной записи.
func (s *Storage) UpdateAccountStatus(ctx context.Context, userID, status string) error {
	const op = "storage.UpdateAccountStatus"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if !validID(userID) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE users SET account_status = $1 WHERE id = $2`, status, userID)
	if err != nil {
		return mapError(op, err)
	}
	return expectAffected(op, res, models.ErrNotFound)
}

// UpdateUser сохраняет изменяемые администратором и пользователем поля:
// имя, email, пароль, роль и статус учётной записи.
func (s *Storage) UpdateUser(ctx context.Context, u *models.User) error {
	const op = "storage.UpdateUser"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if !validID(u.ID) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	query := `UPDATE users
			  SET username = $1, email = $2, password_hash = $3, role = $4, account_status = $5
			  WHERE id = $6`
	res, err := s.conn(ctx).ExecContext(ctx, query,
		u.UserName, u.Email, u.PasswordHash, u.Role, u.AccountStatus, u.ID)
	if err != nil {
		return mapError(op, err)
	}
	return expectAffected(op, res, models.ErrNotFound)
}

// ReparentReferrals переносит прямых рефералов кода from к коду to и возвращает их число.
// Пустой to снимает привязку.
func (s *Storage) ReparentReferrals(ctx context.Context, from, to string) (int, error) {
	const op = "storage.ReparentReferrals"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE users SET referred_by = $1 WHERE referred_by = $2`,
		nullableCode(to), models.NormalizeReferralCode(from))
	if err != nil {
		return 0, mapError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}

// DeleteUser удаляет пользователя. Его депозиты, заявки и записи журнала начислений удаляются каскадно.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	const op = "storage.DeleteUser"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if !validID(id) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError(op, err)
	}
	return expectAffected(op, res, models.ErrNotFound)
}
