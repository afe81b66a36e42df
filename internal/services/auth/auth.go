// Package services содержит регистрацию с подтверждением email и вход пользователей.
package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/bioopay/backend/internal/lib/jwt"
	"github.com/bioopay/backend/internal/lib/password"
	"github.com/bioopay/backend/internal/lib/rabbitmq"
	"github.com/bioopay/backend/internal/lib/sl"
	"github.com/bioopay/backend/internal/models"
)

const (
	codeAttempts = 5
	// maxVerifyFailures - число неверных кодов, после которого регистрацию нужно начинать заново.
	maxVerifyFailures = 5
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// CreateUser сохраняет нового пользователя и возвращает его ID.
	CreateUser(ctx context.Context, u *models.User) (string, error)
	UserExists(ctx context.Context, email, userName string) (bool, error)
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUserName(ctx context.Context, userName string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

// PendingStore хранит регистрации до подтверждения email.
type PendingStore interface {
	SavePending(ctx context.Context, p *models.PendingRegistration, ttl time.Duration) error
	GetPending(ctx context.Context, email string) (*models.PendingRegistration, error)
	MarkVerified(ctx context.Context, p *models.PendingRegistration) error
	AddFailedAttempt(ctx context.Context, email string) (int, error)
	DeletePending(ctx context.Context, email string) error
}

// Publisher отправляет сообщения в очередь уведомлений.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Options настройки регистрации.
type Options struct {
	CodeTTL          time.Duration
	ReferralLinkBase string
}

// AuthService отвечает за регистрацию и авторизацию.
type AuthService struct {
	users     UserRepository
	pending   PendingStore
	publisher Publisher
	jwtMaker  jwt.Maker
	log       *slog.Logger
	opts      Options
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, pending PendingStore, publisher Publisher, jwtMaker jwt.Maker,
	log *slog.Logger, opts Options) *AuthService {
	return &AuthService{
		users:     users,
		pending:   pending,
		publisher: publisher,
		jwtMaker:  jwtMaker,
		log:       log,
		opts:      opts,
	}
}

// SendCode сохраняет данные регистрации и отправляет код подтверждения на email.
// Повторный вызов для того же email заменяет код.
func (s *AuthService) SendCode(ctx context.Context, req models.DummySendCode) error {
	const op = "services.auth.SendCode"

	exists, err := s.users.UserExists(ctx, req.Email, req.UserName)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return fmt.Errorf("%s: %w", op, models.ErrAlreadyExists)
	}

	hashed, err := password.GetHash(req.Password)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	code, err := verificationCode()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p := &models.PendingRegistration{
		UserName:     req.UserName,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hashed,
		ReferralCode: models.NormalizeReferralCode(req.ReferralCode),
		Code:         code,
	}
	if err := s.pending.SavePending(ctx, p, s.opts.CodeTTL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := models.VerificationMessage{Email: p.Email, UserName: p.UserName, Code: code}
	if err := s.publisher.Publish(ctx, rabbitmq.VerificationRoutingKey, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// VerifyEmail проверяет код подтверждения.
// После maxVerifyFailures неверных кодов незавершённая регистрация удаляется.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) error {
	const op = "services.auth.VerifyEmail"

	p, err := s.pending.GetPending(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, models.ErrInvalidCode)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if subtle.ConstantTimeCompare([]byte(p.Code), []byte(strings.TrimSpace(code))) != 1 {
		return s.rejectCode(ctx, op, email)
	}
	if err := s.pending.MarkVerified(ctx, p); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *AuthService) rejectCode(ctx context.Context, op, email string) error {
	failures, err := s.pending.AddFailedAttempt(ctx, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if failures >= maxVerifyFailures {
		s.log.Warn("too many invalid verification codes, pending registration dropped",
			slog.String("op", op), slog.Int("failures", failures))
		if err := s.pending.DeletePending(ctx, email); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w", op, models.ErrInvalidCode)
}

// Register создает пользователя по подтверждённой регистрации.
// Неизвестный реферальный код не мешает регистрации: пользователь создаётся без пригласившего.
func (s *AuthService) Register(ctx context.Context, email string) (*models.User, error) {
	const op = "services.auth.Register"
	log := s.log.With(slog.String("op", op))

	p, err := s.pending.GetPending(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotVerified)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !p.Verified {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotVerified)
	}

	referredBy := ""
	if p.ReferralCode != "" {
		referrer, err := s.users.GetUserByReferralCode(ctx, p.ReferralCode)
		switch {
		case err == nil:
			referredBy = referrer.ReferralCode
		case errors.Is(err, models.ErrNotFound):
			log.Warn("unknown referral code on registration", slog.String("code", p.ReferralCode))
		default:
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	code, err := s.uniqueReferralCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &models.User{
		UserName:      p.UserName,
		Email:         p.Email,
		PasswordHash:  p.PasswordHash,
		ReferralCode:  code,
		ReferralLink:  strings.TrimRight(s.opts.ReferralLinkBase, "/") + "/register?referralCode=" + code,
		ReferredBy:    referredBy,
		AccountStatus: models.AccountActive,
		Role:          models.RoleUser,
		IsVerified:    true,
	}
	if _, err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.pending.DeletePending(ctx, p.Email); err != nil {
		log.Error("failed to delete pending registration", sl.Err(err))
	}
	log.Info("user registered", slog.String("user_id", user.ID), slog.String("referred_by", referredBy))
	return user, nil
}

// Login проверяет пароль пользователя и выдаёт JWT. identifier - email или имя пользователя.
func (s *AuthService) Login(ctx context.Context, identifier, rawPassword string) (string, *models.User, error) {
	const op = "services.auth.Login"

	var (
		user *models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.users.GetUserByEmail(ctx, identifier)
	} else {
		user, err = s.users.GetUserByUserName(ctx, identifier)
	}
	if errors.Is(err, models.ErrNotFound) {
		return "", nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
	}
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return "", nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
		}
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	if !user.IsVerified {
		return "", nil, fmt.Errorf("%s: %w", op, models.ErrNotVerified)
	}
	if user.AccountStatus != models.AccountActive {
		return "", nil, fmt.Errorf("%s: %w", op, models.ErrAccountBlocked)
	}

	token, err := s.jwtMaker.GenerateToken(user.ID, user.Role)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.log.Error("failed to update last login", slog.String("op", op), sl.Err(err))
	} else {
		user.LastLoginAt = &now
	}
	return token, user, nil
}

func (s *AuthService) uniqueReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := referralCode()
		if err != nil {
			return "", err
		}
		exists, err := s.users.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free referral code after %d attempts: %w", codeAttempts, models.ErrAlreadyExists)
}

// referralCode возвращает 8 шестнадцатеричных символов в верхнем регистре.
func referralCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// verificationCode возвращает шестизначный код.
func verificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
