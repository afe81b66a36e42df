package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Статусы депозита.
const (
	DepositPending = "pending"
	DepositActive  = "active"
	DepositFailed  = "failed"
)

// IsValidDepositStatus проверяет, что статус входит в допустимый набор.
func IsValidDepositStatus(status string) bool {
	switch status {
	case DepositPending, DepositActive, DepositFailed:
		return true
	default:
		return false
	}
}

// Plan описывает инвестиционный тарифный план.
// CommissionRate - общий пул комиссии, распределяемый по реферальной цепочке при активации депозита.
type Plan struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	CreatedAt      time.Time       `json:"created_at"`
}

// DummyPlan используется для приёма данных плана из JSON-запроса.
type DummyPlan struct {
	Name           string  `json:"name" validate:"required"`
	Price          float64 `json:"price" validate:"required,gt=0"`
	CommissionRate float64 `json:"commission_rate" validate:"gte=0"`
}

// Deposit представляет вложение пользователя в тарифный план.
// Amount фиксируется по цене плана в момент создания.
type Deposit struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	PlanID        string          `json:"plan_id"`
	PlanName      string          `json:"plan_name,omitempty"`
	TransactionID string          `json:"transaction_id"`
	Image         string          `json:"image,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// DummyDeposit используется для приёма заявки на депозит.
// Image - подтверждение оплаты в виде data URL (png/jpeg).
type DummyDeposit struct {
	PlanID        string `json:"plan_id" validate:"required,uuid"`
	TransactionID string `json:"transaction_id" validate:"required,numeric"`
	Image         string `json:"image" validate:"required"`
}

// DummyDepositStatus используется для смены статуса депозита администратором.
type DummyDepositStatus struct {
	Status string `json:"status" validate:"required,oneof=pending active failed"`
}

// DepositUpdate - результат смены статуса депозита. Activation заполнен только при переходе в active.
type DepositUpdate struct {
	Deposit    *Deposit    `json:"deposit"`
	Activation *Activation `json:"activation,omitempty"`
}
