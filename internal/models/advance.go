package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Статусы заявки на аванс.
const (
	AdvancePending   = "pending"
	AdvanceApproved  = "approved"
	AdvanceRejected  = "rejected"
	AdvanceCompleted = "completed"
)

// IsValidAdvanceStatus проверяет, что статус входит в допустимый набор.
func IsValidAdvanceStatus(status string) bool {
	switch status {
	case AdvancePending, AdvanceApproved, AdvanceRejected, AdvanceCompleted:
		return true
	default:
		return false
	}
}

// AdvanceTier возвращает категорию команды и сумму аванса для её размера.
func AdvanceTier(teamSize int) (string, decimal.Decimal) {
	switch {
	case teamSize <= 20:
		return "1-20", decimal.NewFromInt(4)
	case teamSize <= 50:
		return "21-50", decimal.NewFromInt(10)
	case teamSize <= 100:
		return "51-100", decimal.NewFromInt(30)
	default:
		return "100+", decimal.NewFromInt(50)
	}
}

// Advance представляет заявку на аванс лидера команды.
type Advance struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	TeamSize     int             `json:"team_size"`
	TeamCategory string          `json:"team_category"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	UserComment  string          `json:"user_comment,omitempty"`
	Remarks      string          `json:"remarks,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// DummyAdvance используется для приёма заявки на аванс.
type DummyAdvance struct {
	TeamSize    int    `json:"team_size" validate:"required,gt=0"`
	UserComment string `json:"user_comment,omitempty" validate:"max=500"`
}
