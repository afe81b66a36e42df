package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Причины остановки прохода по реферальной цепочке.
const (
	StopChainEnd           = "chain_end"
	StopMaxLevel           = "max_level"
	StopBrokenChain        = "broken_chain"
	StopCycleDetected      = "cycle_detected"
	StopLookupFailed       = "lookup_failed"
	StopPersistenceFailure = "persistence_failure"
)

// Статусы начисления на уровне цепочки.
// LevelRolledBack - начисление было выполнено, но откатилось вместе с активацией.
const (
	LevelPaid       = "paid"
	LevelSkipped    = "skipped"
	LevelFailed     = "failed"
	LevelRolledBack = "rolled_back"
)

// LevelPayout - результат начисления одному рефереру цепочки.
type LevelPayout struct {
	Level        int             `json:"level"` // 1 - прямой пригласивший
	ReferrerID   string          `json:"referrer_id"`
	ReferralCode string          `json:"referral_code"`
	Percentage   decimal.Decimal `json:"percentage"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	Error        string          `json:"error,omitempty"`
}

// Payout - отчёт о распределении комиссии по цепочке.
// Complete ложно, если хотя бы одно начисление не удалось сохранить.
type Payout struct {
	Levels     []LevelPayout   `json:"levels"`
	TotalPaid  decimal.Decimal `json:"total_paid"`
	Complete   bool            `json:"complete"`
	StopReason string          `json:"stop_reason"`
}

// Activation - результат активации депозита.
type Activation struct {
	Deposit        *Deposit `json:"deposit"`
	FailedSiblings int64    `json:"failed_siblings"`
	Payout         Payout   `json:"payout"`
}

// CommissionEntry - запись журнала начислений, сохраняется вместе с зачислением на баланс.
type CommissionEntry struct {
	ID         string          `json:"id"`
	DepositID  string          `json:"deposit_id"`
	ReferrerID string          `json:"referrer_id"`
	Level      int             `json:"level"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
}
