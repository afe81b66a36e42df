// Package services содержит движок распределения реферальной комиссии:
// активацию депозита, перевод остальных открытых депозитов пользователя в failed
// и начисление убывающей комиссии вверх по цепочке пригласивших.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bioopay/backend/internal/lib/sl"
	"github.com/bioopay/backend/internal/models"
)

// Repository описывает хранилище, с которым работает движок.
type Repository interface {
	// WithinTx выполняет fn в транзакции; вложенные вызовы присоединяются к внешней.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	LockDepositByID(ctx context.Context, id string) (*models.Deposit, error)
	// ActivateDeposit переводит депозит pending -> active, иначе ErrInvalidState.
	ActivateDeposit(ctx context.Context, id string) error
	FailOpenDepositsExcept(ctx context.Context, userID, keepID string) (int64, error)

	LockUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	CreditEarnings(ctx context.Context, userID string, amount decimal.Decimal) error

	GetPlanByID(ctx context.Context, id string) (*models.Plan, error)

	CreateCommission(ctx context.Context, e *models.CommissionEntry) error
}

// Recorder принимает метрики активаций и начислений.
type Recorder interface {
	Activation(result string)
	CommissionLevel(status string, amount decimal.Decimal)
	WalkStopped(reason string)
}

// Options настройки движка.
type Options struct {
	// Levels - проценты от ставки комиссии плана по уровням, начиная с прямого пригласившего.
	Levels []int
	// Atomic - начисления выполняются в одной транзакции с активацией.
	Atomic  bool
	Timeout time.Duration
}

var hundred = decimal.NewFromInt(100)

// CommissionService активирует депозиты и распределяет комиссию по реферальной цепочке.
type CommissionService struct {
	repo    Repository
	metrics Recorder
	log     *slog.Logger
	levels  []decimal.Decimal
	atomic  bool
	timeout time.Duration
}

// NewCommissionService создает новый экземпляр CommissionService.
func NewCommissionService(repo Repository, metrics Recorder, log *slog.Logger, opts Options) *CommissionService {
	levels := make([]decimal.Decimal, len(opts.Levels))
	for i, p := range opts.Levels {
		levels[i] = decimal.NewFromInt(int64(p))
	}
	return &CommissionService{
		repo:    repo,
		metrics: metrics,
		log:     log,
		levels:  levels,
		atomic:  opts.Atomic,
		timeout: opts.Timeout,
	}
}

// MaxPayout возвращает верхнюю границу суммарной выплаты для ставки комиссии rate.
func (s *CommissionService) MaxPayout(rate decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, pct := range s.levels {
		total = total.Add(levelAmount(rate, pct))
	}
	return total
}

func levelAmount(rate, pct decimal.Decimal) decimal.Decimal {
	// Round в shopspring/decimal округляет половину от нуля.
	return rate.Mul(pct).Div(hundred).Round(2)
}

// ActivateDeposit активирует депозит в статусе pending, переводит остальные открытые депозиты
// пользователя в failed и начисляет комиссию пригласившим.
//
// Ошибка означает, что активация не состоялась. Успешная активация с неполной выплатой
// (только в неатомарном режиме) отражается в Payout.Complete.
func (s *CommissionService) ActivateDeposit(ctx context.Context, depositID string) (*models.Activation, error) {
	const op = "services.commission.ActivateDeposit"
	log := s.log.With(slog.String("op", op), slog.String("deposit_id", depositID))

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var (
		res  *models.Activation
		user *models.User
		rate decimal.Decimal
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		dep, err := s.repo.LockDepositByID(ctx, depositID)
		if err != nil {
			return err
		}
		switch dep.Status {
		case models.DepositPending:
		case models.DepositActive:
			return models.ErrAlreadyActive
		default:
			return fmt.Errorf("deposit is %s: %w", dep.Status, models.ErrInvalidState)
		}

		// Блокировка строки пользователя сериализует конкурентные активации его депозитов.
		user, err = s.repo.LockUserByID(ctx, dep.UserID)
		if err != nil {
			return err
		}
		plan, err := s.repo.GetPlanByID(ctx, dep.PlanID)
		if err != nil {
			return err
		}

		if err := s.repo.ActivateDeposit(ctx, dep.ID); err != nil {
			return err
		}
		failed, err := s.repo.FailOpenDepositsExcept(ctx, user.ID, dep.ID)
		if err != nil {
			return err
		}

		dep.Status = models.DepositActive
		dep.PlanName = plan.Name
		rate = plan.CommissionRate
		res = &models.Activation{Deposit: dep, FailedSiblings: failed}

		if s.atomic {
			payout, err := s.walk(ctx, log, dep.ID, user, rate)
			res.Payout = payout
			return err
		}
		return nil
	})
	if err != nil {
		s.metrics.Activation("failed")
		var payoutErr *models.PayoutError
		if errors.As(err, &payoutErr) {
			log.Error("activation rolled back: commission payout failed",
				slog.String("stop_reason", payoutErr.Payout.StopReason), sl.Err(payoutErr.Err))
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !s.atomic {
		res.Payout, _ = s.walk(ctx, log, res.Deposit.ID, user, rate)
	}

	for _, lvl := range res.Payout.Levels {
		s.metrics.CommissionLevel(lvl.Status, lvl.Amount)
	}
	if res.Payout.Complete {
		s.metrics.Activation("ok")
	} else {
		s.metrics.Activation("incomplete")
	}

	log.Info("deposit activated",
		slog.String("user_id", user.ID),
		slog.Int64("failed_siblings", res.FailedSiblings),
		slog.String("total_paid", res.Payout.TotalPaid.StringFixed(2)),
		slog.String("stop_reason", res.Payout.StopReason),
		slog.Bool("complete", res.Payout.Complete),
	)
	return res, nil
}

// walk проходит цепочку пригласивших от user вверх и начисляет комиссию.
// В атомарном режиме любой сбой возвращается как *models.PayoutError, в неатомарном проход
// останавливается, а уже выполненные начисления сохраняются.
func (s *CommissionService) walk(ctx context.Context, log *slog.Logger, depositID string, user *models.User, rate decimal.Decimal) (models.Payout, error) {
	payout := models.Payout{
		Levels:    []models.LevelPayout{},
		TotalPaid: decimal.Zero,
		Complete:  true,
	}

	visited := map[string]struct{}{
		models.NormalizeReferralCode(user.ReferralCode): {},
	}
	code := models.NormalizeReferralCode(user.ReferredBy)

	var failure error
	for level := 0; ; level++ {
		if code == "" {
			payout.StopReason = models.StopChainEnd
			break
		}
		if level >= len(s.levels) {
			payout.StopReason = models.StopMaxLevel
			break
		}
		if _, seen := visited[code]; seen {
			payout.StopReason = models.StopCycleDetected
			break
		}
		visited[code] = struct{}{}

		referrer, err := s.repo.GetUserByReferralCode(ctx, code)
		if errors.Is(err, models.ErrNotFound) {
			payout.StopReason = models.StopBrokenChain
			break
		}
		if err != nil {
			payout.StopReason = models.StopLookupFailed
			payout.Complete = false
			failure = err
			break
		}

		pct := s.levels[level]
		lp := models.LevelPayout{
			Level:        level + 1,
			ReferrerID:   referrer.ID,
			ReferralCode: code,
			Percentage:   pct,
			Amount:       levelAmount(rate, pct),
			Status:       models.LevelSkipped,
		}

		if lp.Amount.IsPositive() {
			err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
				if err := s.repo.CreditEarnings(ctx, referrer.ID, lp.Amount); err != nil {
					return err
				}
				return s.repo.CreateCommission(ctx, &models.CommissionEntry{
					DepositID:  depositID,
					ReferrerID: referrer.ID,
					Level:      lp.Level,
					Amount:     lp.Amount,
				})
			})
			if err != nil {
				lp.Status = models.LevelFailed
				lp.Error = err.Error()
				payout.Levels = append(payout.Levels, lp)
				payout.StopReason = models.StopPersistenceFailure
				payout.Complete = false
				failure = err
				break
			}
			lp.Status = models.LevelPaid
			payout.TotalPaid = payout.TotalPaid.Add(lp.Amount)
		}
		payout.Levels = append(payout.Levels, lp)

		code = models.NormalizeReferralCode(referrer.ReferredBy)
	}

	if payout.StopReason != models.StopChainEnd && payout.StopReason != models.StopMaxLevel {
		attrs := []any{
			slog.String("reason", payout.StopReason),
			slog.Int("levels_processed", len(payout.Levels)),
			slog.String("code", code),
		}
		if failure != nil {
			attrs = append(attrs, sl.Err(failure))
		}
		log.Warn("commission walk stopped early", attrs...)
	}
	s.metrics.WalkStopped(payout.StopReason)

	if failure != nil && s.atomic {
		return payout, &models.PayoutError{Payout: rolledBack(payout), Err: failure}
	}
	return payout, nil
}

// rolledBack помечает выполненные начисления откатившимися.
func rolledBack(p models.Payout) models.Payout {
	levels := make([]models.LevelPayout, len(p.Levels))
	for i, lvl := range p.Levels {
		if lvl.Status == models.LevelPaid {
			lvl.Status = models.LevelRolledBack
		}
		levels[i] = lvl
	}
	p.Levels = levels
	p.TotalPaid = decimal.Zero
	p.Complete = false
	return p
}
