package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Статусы заявки на вывод средств.
const (
	CashOutPending  = "pending"
	CashOutApproved = "approved"
	CashOutRejected = "rejected"
)

// Типы кошельков для вывода.
const (
	AccountEasyPaisa = "EasyPaisa"
	AccountJazzCash  = "JazzCash"
)

// CashOut представляет заявку пользователя на вывод заработанных средств.
type CashOut struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	AccountType   string          `json:"account_type"`
	AccountNumber string          `json:"account_number"`
	Status        string          `json:"status"`
	Remarks       string          `json:"remarks,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// DummyCashOut используется для приёма заявки на вывод из JSON-запроса.
type DummyCashOut struct {
	Amount        float64 `json:"amount" validate:"required,gte=1"`
	AccountType   string  `json:"account_type" validate:"required,oneof=EasyPaisa JazzCash"`
	AccountNumber string  `json:"account_number" validate:"required,numeric,min=10,max=15"`
}

// DummyReview используется администратором для рассмотрения заявок.
type DummyReview struct {
	Status  string `json:"status" validate:"required"`
	Remarks string `json:"remarks,omitempty"`
}
