// Package services содержит операции над профилями пользователей.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bioopay/backend/internal/lib/password"
	"github.com/bioopay/backend/internal/models"
)

// Repository описывает доступ к пользователям и журналу начислений.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetUserByID(ctx context.Context, id string) (*models.User, error)
	LockUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	// ReparentReferrals переносит прямых рефералов кода from к коду to.
	ReparentReferrals(ctx context.Context, from, to string) (int, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	CountByReferredBy(ctx context.Context, code string) (int, error)
	UpdateAccountStatus(ctx context.Context, userID, status string) error
	ListCommissionsByReferrer(ctx context.Context, referrerID string) ([]*models.CommissionEntry, error)
}

// UserService отдаёт профили пользователей.
type UserService struct {
	repo Repository
	log  *slog.Logger
}

// NewUserService создает новый экземпляр UserService.
func NewUserService(repo Repository, log *slog.Logger) *UserService {
	return &UserService{repo: repo, log: log}
}

// Profile возвращает пользователя вместе с числом прямых рефералов.
func (s *UserService) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	const op = "services.user.Profile"

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.profile(ctx, op, user)
}

// List возвращает страницу профилей пользователей.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]*models.Profile, error) {
	const op = "services.user.List"

	users, err := s.repo.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res := make([]*models.Profile, 0, len(users))
	for _, u := range users {
		p, err := s.profile(ctx, op, u)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

func (s *UserService) profile(ctx context.Context, op string, user *models.User) (*models.Profile, error) {
	count, err := s.repo.CountByReferredBy(ctx, user.ReferralCode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.Profile{User: user, TotalReferred: count}, nil
}

// Commissions возвращает начисления, полученные пользователем.
func (s *UserService) Commissions(ctx context.Context, userID string) ([]*models.CommissionEntry, error) {
	const op = "services.user.Commissions"

	entries, err := s.repo.ListCommissionsByReferrer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if entries == nil {
		entries = []*models.CommissionEntry{}
	}
	return entries, nil
}

// SetAccountStatus блокирует или разблокирует учётную запись.
func (s *UserService) SetAccountStatus(ctx context.Context, userID, status string) error {
	const op = "services.user.SetAccountStatus"

	switch status {
	case models.AccountActive, models.AccountSuspended, models.AccountBanned:
	default:
		return fmt.Errorf("%s: unknown status %q: %w", op, status, models.ErrInvalidState)
	}
	if err := s.repo.UpdateAccountStatus(ctx, userID, status); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("account status changed", slog.String("op", op), slog.String("user_id", userID), slog.String("status", status))
	return nil
}

// AccountStatus возвращает текущий статус учётной записи.
func (s *UserService) AccountStatus(ctx context.Context, userID string) (string, error) {
	const op = "services.user.AccountStatus"

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return user.AccountStatus, nil
}

// UpdateProfile меняет имя текущего пользователя.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in models.DummyProfileUpdate) (*models.Profile, error) {
	const op = "services.user.UpdateProfile"

	user, err := s.update(ctx, userID, func(u *models.User) error {
		u.UserName = strings.TrimSpace(in.UserName)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.profile(ctx, op, user)
}

// ChangePassword меняет пароль после проверки текущего.
func (s *UserService) ChangePassword(ctx context.Context, userID string, in models.DummyChangePassword) error {
	const op = "services.user.ChangePassword"

	_, err := s.update(ctx, userID, func(u *models.User) error {
		if err := password.CompareHash(u.PasswordHash, in.CurrentPassword); err != nil {
			if errors.Is(err, password.ErrMismatch) {
				return models.ErrInvalidCredentials
			}
			return err
		}
		hash, err := password.GetHash(in.NewPassword)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("password changed", slog.String("op", op), slog.String("user_id", userID))
	return nil
}

// UpdateUser применяет изменения администратора. Незаполненные поля не меняются.
func (s *UserService) UpdateUser(ctx context.Context, userID string, in models.DummyUserUpdate) (*models.Profile, error) {
	const op = "services.user.UpdateUser"

	user, err := s.update(ctx, userID, func(u *models.User) error {
		if in.UserName != nil {
			u.UserName = strings.TrimSpace(*in.UserName)
		}
		if in.Email != nil {
			u.Email = strings.TrimSpace(*in.Email)
		}
		if in.Role != nil {
			u.Role = *in.Role
		}
		if in.AccountStatus != nil {
			u.AccountStatus = *in.AccountStatus
		}
		if in.Password != nil {
			hash, err := password.GetHash(*in.Password)
			if err != nil {
				return err
			}
			u.PasswordHash = hash
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user updated by admin", slog.String("op", op), slog.String("user_id", userID))
	return s.profile(ctx, op, user)
}

// update блокирует строку пользователя, применяет apply и сохраняет результат в одной транзакции.
func (s *UserService) update(ctx context.Context, userID string, apply func(u *models.User) error) (*models.User, error) {
	var user *models.User
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		u, err := s.repo.LockUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := apply(u); err != nil {
			return err
		}
		if err := s.repo.UpdateUser(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	return user, err
}

// DeleteUser удаляет пользователя. Его прямые рефералы переходят к его пригласившему.
func (s *UserService) DeleteUser(ctx context.Context, userID string) (*models.User, error) {
	const op = "services.user.DeleteUser"

	var (
		user  *models.User
		moved int
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		u, err := s.repo.LockUserByID(ctx, userID)
		if err != nil {
			return err
		}
		moved, err = s.repo.ReparentReferrals(ctx, u.ReferralCode, u.ReferredBy)
		if err != nil {
			return err
		}
		if err := s.repo.DeleteUser(ctx, u.ID); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user deleted",
		slog.String("op", op),
		slog.String("user_id", user.ID),
		slog.Int("referrals_moved", moved),
		slog.String("moved_to", user.ReferredBy),
	)
	return user, nil
}
