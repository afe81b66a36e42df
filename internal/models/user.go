// Package models содержит доменные структуры бэкенда: пользователей реферальной сети,
// тарифные планы, депозиты, начисления комиссий, заявки на вывод и авансы,
// а также вспомогательные типы для приёма данных из JSON-запросов.
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Роли пользователя.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Статусы учётной записи.
const (
	AccountActive    = "active"
	AccountSuspended = "suspended"
	AccountBanned    = "banned"
)

// User представляет зарегистрированного пользователя и его место в реферальной сети.
type User struct {
	ID            string          `json:"id"`
	UserName      string          `json:"user_name"`
	Email         string          `json:"email"`
	PasswordHash  string          `json:"-"`
	ReferralCode  string          `json:"referral_code"`
	ReferralLink  string          `json:"referral_link"`
	ReferredBy    string          `json:"referred_by,omitempty"` // код пригласившего, пустая строка если его нет
	Earnings      decimal.Decimal `json:"earnings"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	AccountStatus string          `json:"account_status"`
	Role          string          `json:"role"`
	IsVerified    bool            `json:"is_verified"`
	LastLoginAt   *time.Time      `json:"last_login_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Profile описывает пользователя вместе с количеством прямых рефералов.
type Profile struct {
	*User
	TotalReferred int `json:"total_referred"`
}

// NormalizeReferralCode приводит реферальный код к каноническому виду.
// Коды хранятся и ищутся только в этом виде, поэтому сравнение нечувствительно к регистру.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// PendingRegistration хранит данные регистрации до подтверждения email.
type PendingRegistration struct {
	UserName     string `json:"user_name"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	ReferralCode string `json:"referral_code,omitempty"`
	Code         string `json:"code"`
	Verified     bool   `json:"verified"`
}

// VerificationMessage публикуется в очередь для отправки кода подтверждения на почту.
type VerificationMessage struct {
	Email    string `json:"email"`
	UserName string `json:"user_name"`
	Code     string `json:"code"`
}

// DummySendCode используется для приёма данных запроса кода подтверждения.
type DummySendCode struct {
	UserName     string `json:"user_name" validate:"required,alphanum"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6"`
	ReferralCode string `json:"referral_code,omitempty" validate:"omitempty,alphanum"`
}

// DummyVerify используется для приёма кода подтверждения email.
type DummyVerify struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,numeric"`
}

// DummyRegister используется для завершения регистрации после подтверждения email.
type DummyRegister struct {
	Email string `json:"email" validate:"required,email"`
}

// DummyLogin используется для приёма данных входа: email или имя пользователя и пароль.
type DummyLogin struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// DummyReferrer используется для смены пригласившего пользователя администратором.
type DummyReferrer struct {
	ReferralCode string `json:"referral_code" validate:"required,alphanum"`
}

// DummyEmail используется для поиска пользователя по email.
type DummyEmail struct {
	Email string `json:"email" validate:"required,email"`
}

// DummyAccountStatus используется администратором для блокировки и разблокировки пользователя.
type DummyAccountStatus struct {
	Status string `json:"status" validate:"required,oneof=active suspended banned"`
}

// DummyProfileUpdate используется пользователем для изменения своего профиля.
// Email меняется только через новую регистрацию, так как он подтверждается кодом.
type DummyProfileUpdate struct {
	UserName string `json:"user_name" validate:"required,alphanum"`
}

// DummyChangePassword используется для смены пароля текущего пользователя.
type DummyChangePassword struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

// DummyUserUpdate используется администратором для изменения пользователя.
// Незаполненные поля не меняются.
type DummyUserUpdate struct {
	UserName      *string `json:"user_name,omitempty" validate:"omitempty,alphanum"`
	Email         *string `json:"email,omitempty" validate:"omitempty,email"`
	Role          *string `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
	AccountStatus *string `json:"account_status,omitempty" validate:"omitempty,oneof=active suspended banned"`
	Password      *string `json:"password,omitempty" validate:"omitempty,min=6"`
}
