package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid state")
	ErrAlreadyActive      = fmt.Errorf("deposit already active: %w", ErrInvalidState)
	ErrPersistence        = errors.New("persistence failure")
	ErrCycleDetected      = errors.New("referral cycle detected")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrNoActivePlan       = errors.New("no active plan")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrNotVerified        = errors.New("email not verified")
	ErrAccountBlocked     = errors.New("account blocked")
	ErrInvalidInput       = errors.New("invalid input")
)

// PayoutError возвращается, когда начисление комиссии не удалось и активация откатилась.
// Payout содержит отчёт по уровням на момент сбоя.
type PayoutError struct {
	Payout Payout
	Err    error
}

func (e *PayoutError) Error() string {
	return fmt.Sprintf("commission payout failed at stop %q: %v", e.Payout.StopReason, e.Err)
}

func (e *PayoutError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}
