package services_test

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioopay/backend/internal/lib/sl"
	"github.com/bioopay/backend/internal/models"
	services "github.com/bioopay/backend/internal/services/commission"
)

var defaultLevels = []int{100, 80, 70, 60, 50, 40, 30, 20}

type txKey struct{}

// memRepo хранит данные в памяти и откатывает изменения при ошибке внешней транзакции.
type memRepo struct {
	mu          sync.Mutex
	users       map[string]*models.User
	deposits    map[string]*models.Deposit
	plans       map[string]*models.Plan
	commissions []models.CommissionEntry

	lookupErr map[string]error // ошибка поиска по коду
	creditErr map[string]error // ошибка начисления по ID пользователя
	txCount   int
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:     map[string]*models.User{},
		deposits:  map[string]*models.Deposit{},
		plans:     map[string]*models.Plan{},
		lookupErr: map[string]error{},
		creditErr: map[string]error{},
	}
}

func (r *memRepo) addUser(id, code, referredBy string) *models.User {
	u := &models.User{
		ID:            id,
		ReferralCode:  models.NormalizeReferralCode(code),
		ReferredBy:    models.NormalizeReferralCode(referredBy),
		Earnings:      decimal.Zero,
		TotalEarnings: decimal.Zero,
	}
	r.users[id] = u
	return u
}

func (r *memRepo) addPlan(id string, rate string) {
	r.plans[id] = &models.Plan{ID: id, Name: "Plan " + id, Price: decimal.NewFromInt(100), CommissionRate: decimal.RequireFromString(rate)}
}

func (r *memRepo) addDeposit(id, userID, planID, status string) {
	r.deposits[id] = &models.Deposit{ID: id, UserID: userID, PlanID: planID, Status: status}
}

// chain создает цепочку u0 <- u1 <- ... <- uN, где u0 корень, и возвращает ID последнего.
func (r *memRepo) chain(n int) string {
	r.addUser("u0", "C0", "")
	for i := 1; i <= n; i++ {
		r.addUser(fmt.Sprintf("u%d", i), fmt.Sprintf("c%d", i), fmt.Sprintf("c%d", i-1))
	}
	return fmt.Sprintf("u%d", n)
}

func (r *memRepo) earnings(id string) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id].Earnings
}

type snapshot struct {
	users       map[string]models.User
	deposits    map[string]models.Deposit
	commissions []models.CommissionEntry
}

func (r *memRepo) snapshot() snapshot {
	s := snapshot{users: map[string]models.User{}, deposits: map[string]models.Deposit{}}
	for k, v := range r.users {
		s.users[k] = *v
	}
	for k, v := range r.deposits {
		s.deposits[k] = *v
	}
	s.commissions = append([]models.CommissionEntry(nil), r.commissions...)
	return s
}

func (r *memRepo) restore(s snapshot) {
	for k, v := range s.users {
		u := v
		r.users[k] = &u
	}
	for k, v := range s.deposits {
		d := v
		r.deposits[k] = &d
	}
	r.commissions = s.commissions
}

func (r *memRepo) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	r.mu.Lock()
	r.txCount++
	snap := r.snapshot()
	r.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		r.mu.Lock()
		r.restore(snap)
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memRepo) LockDepositByID(_ context.Context, id string) (*models.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deposits[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memRepo) ActivateDeposit(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deposits[id]
	if !ok || d.Status != models.DepositPending {
		return models.ErrInvalidState
	}
	d.Status = models.DepositActive
	return nil
}

func (r *memRepo) FailOpenDepositsExcept(_ context.Context, userID, keepID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, d := range r.deposits {
		if d.UserID == userID && d.ID != keepID && d.Status != models.DepositFailed {
			d.Status = models.DepositFailed
			n++
		}
	}
	return n, nil
}

func (r *memRepo) LockUserByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memRepo) GetUserByReferralCode(_ context.Context, code string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code = models.NormalizeReferralCode(code)
	if err := r.lookupErr[code]; err != nil {
		return nil, err
	}
	for _, u := range r.users {
		if u.ReferralCode == code {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *memRepo) CreditEarnings(_ context.Context, userID string, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.creditErr[userID]; err != nil {
		return err
	}
	u, ok := r.users[userID]
	if !ok {
		return models.ErrNotFound
	}
	u.Earnings = u.Earnings.Add(amount)
	u.TotalEarnings = u.TotalEarnings.Add(amount)
	return nil
}

func (r *memRepo) GetPlanByID(_ context.Context, id string) (*models.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return p, nil
}

func (r *memRepo) CreateCommission(_ context.Context, e *models.CommissionEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commissions = append(r.commissions, *e)
	return nil
}

// recorder запоминает вызовы метрик.
type recorder struct {
	mu          sync.Mutex
	activations map[string]int
	stops       map[string]int
	levels      map[string]int
}

func newRecorder() *recorder {
	return &recorder{activations: map[string]int{}, stops: map[string]int{}, levels: map[string]int{}}
}

func (r *recorder) Activation(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activations[result]++
}

func (r *recorder) CommissionLevel(status string, _ decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels[status]++
}

func (r *recorder) WalkStopped(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops[reason]++
}

func newService(repo *memRepo, rec *recorder, atomic bool) *services.CommissionService {
	return services.NewCommissionService(repo, rec, sl.Discard(), services.Options{
		Levels:  defaultLevels,
		Atomic:  atomic,
		Timeout: time.Second,
	})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestActivateDeposit_ThreeLevelChain(t *testing.T) {
	for _, atomic := range []bool{true, false} {
		t.Run(fmt.Sprintf("atomic=%v", atomic), func(t *testing.T) {
			repo := newMemRepo()
			depositor := repo.chain(3)
			repo.addPlan("p1", "10")
			repo.addDeposit("d1", depositor, "p1", models.DepositPending)
			rec := newRecorder()

			res, err := newService(repo, rec, atomic).ActivateDeposit(context.Background(), "d1")
			require.NoError(t, err)

			assert.Equal(t, models.DepositActive, res.Deposit.Status)
			assert.Equal(t, "Plan p1", res.Deposit.PlanName)
			assert.True(t, res.Payout.Complete)
			assert.Equal(t, models.StopChainEnd, res.Payout.StopReason)
			require.Len(t, res.Payout.Levels, 3)

			assertDecimal(t, "10.00", repo.earnings("u2"))
			assertDecimal(t, "8.00", repo.earnings("u1"))
			assertDecimal(t, "7.00", repo.earnings("u0"))
			assertDecimal(t, "25", res.Payout.TotalPaid)

			for i, lvl := range res.Payout.Levels {
				assert.Equal(t, i+1, lvl.Level)
				assert.Equal(t, models.LevelPaid, lvl.Status)
			}
			assert.Len(t, repo.commissions, 3)
			assert.Equal(t, 1, rec.activations["ok"])
			assert.Equal(t, 3, rec.levels[models.LevelPaid])
		})
	}
}

func TestActivateDeposit_LevelRounding(t *testing.T) {
	tests := []struct {
		name string
		rate string
		want []string
	}{
		{name: "whole rate", rate: "10", want: []string{"10", "8", "7", "6", "5", "4", "3", "2"}},
		{name: "half cent rounds away from zero", rate: "0.05", want: []string{"0.05", "0.04", "0.04", "0.03", "0.03", "0.02", "0.02", "0.01"}},
		{name: "fractional rate", rate: "3.33", want: []string{"3.33", "2.66", "2.33", "2", "1.67", "1.33", "1", "0.67"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			depositor := repo.chain(8)
			repo.addPlan("p1", tt.rate)
			repo.addDeposit("d1", depositor, "p1", models.DepositPending)

			res, err := newService(repo, newRecorder(), true).ActivateDeposit(context.Background(), "d1")
			require.NoError(t, err)
			require.Len(t, res.Payout.Levels, len(tt.want))
			for i, lvl := range res.Payout.Levels {
				assertDecimal(t, tt.want[i], lvl.Amount)
			}
		})
	}
}

func TestActivateDeposit_TotalBound(t *testing.T) {
	tests := []struct {
		name      string
		ancestors int
		wantTotal string
		wantStop  string
	}{
		{name: "no referrer", ancestors: 0, wantTotal: "0", wantStop: models.StopChainEnd},
		{name: "short chain pays less", ancestors: 2, wantTotal: "18", wantStop: models.StopChainEnd},
		{name: "exactly eight ancestors", ancestors: 8, wantTotal: "45", wantStop: models.StopChainEnd},
		{name: "deeper chain is capped", ancestors: 12, wantTotal: "45", wantStop: models.StopMaxLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			depositor := repo.chain(tt.ancestors)
			repo.addPlan("p1", "10")
			repo.addDeposit("d1", depositor, "p1", models.DepositPending)
			svc := newService(repo, newRecorder(), true)

			res, err := svc.ActivateDeposit(context.Background(), "d1")
			require.NoError(t, err)
			assertDecimal(t, tt.wantTotal, res.Payout.TotalPaid)
			assert.Equal(t, tt.wantStop, res.Payout.StopReason)
			assert.True(t, res.Payout.TotalPaid.LessThanOrEqual(svc.MaxPayout(dec("10"))))
			assertDecimal(t, "45", svc.MaxPayout(dec("10")))

			if tt.ancestors > 8 {
				// девятый и дальше предки ничего не получают
				for i := 0; i < tt.ancestors-8; i++ {
					assert.True(t, repo.earnings(fmt.Sprintf("u%d", i)).IsZero())
				}
			}
		})
	}
}

func TestActivateDeposit_ZeroRateSkipsLevels(t *testing.T) {
	repo := newMemRepo()
	depositor := repo.chain(2)
	repo.addPlan("p1", "0")
	repo.addDeposit("d1", depositor, "p1", models.DepositPending)

	res, err := newService(repo, newRecorder(), true).ActivateDeposit(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, res.Payout.Levels, 2)
	for _, lvl := range res.Payout.Levels {
		assert.Equal(t, models.LevelSkipped, lvl.Status)
	}
	assert.Empty(t, repo.commissions)
	assert.True(t, res.Payout.Complete)
}

func TestActivateDeposit_Exclusivity(t *testing.T) {
	repo := newMemRepo()
	repo.addUser("u1", "A1", "")
	repo.addUser("u2", "B1", "")
	repo.addPlan("p1", "10")
	repo.addDeposit("d1", "u1", "p1", models.DepositPending)
	repo.addDeposit("d2", "u1", "p1", models.DepositPending)
	repo.addDeposit("d3", "u1", "p1", models.DepositActive)
	repo.addDeposit("d4", "u1", "p1", models.DepositFailed)
	repo.addDeposit("d5", "u2", "p1", models.DepositPending)

	res, err := newService(repo, newRecorder(), true).ActivateDeposit(context.Background(), "d2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.FailedSiblings)

	open := 0
	for _, d := range repo.deposits {
		if d.UserID == "u1" && d.Status != models.DepositFailed {
			open++
			assert.Equal(t, "d2", d.ID)
		}
	}
	assert.Equal(t, 1, open)
	assert.Equal(t, models.DepositPending, repo.deposits["d5"].Status)
}

func TestActivateDeposit_InvalidStates(t *testing.T) {
	tests := []struct {
		name    string
		deposit string
		wantErr error
	}{
		{name: "already active", deposit: "active", wantErr: models.ErrAlreadyActive},
		{name: "failed deposit", deposit: "failed", wantErr: models.ErrInvalidState},
		{name: "unknown deposit", deposit: "missing", wantErr: models.ErrNotFound},
		{name: "unknown plan", deposit: "orphan", wantErr: models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			repo.addUser("u0", "ROOT", "")
			repo.addUser("u1", "KID", "root")
			repo.addPlan("p1", "10")
			repo.addDeposit("active", "u1", "p1", models.DepositActive)
			repo.addDeposit("failed", "u1", "p1", models.DepositFailed)
			repo.addDeposit("orphan", "u1", "nope", models.DepositPending)
			rec := newRecorder()

			res, err := newService(repo, rec, true).ActivateDeposit(context.Background(), tt.deposit)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, repo.earnings("u0").IsZero())
			assert.Equal(t, 1, rec.activations["failed"])
		})
	}

	t.Run("failed is not already active", func(t *testing.T) {
		repo := newMemRepo()
		repo.addUser("u1", "KID", "")
		repo.addPlan("p1", "10")
		repo.addDeposit("failed", "u1", "p1", models.DepositFailed)

		_, err := newService(repo, newRecorder(), true).ActivateDeposit(context.Background(), "failed")
		assert.False(t, errors.Is(err, models.ErrAlreadyActive))
	})
}

func TestActivateDeposit_CaseInsensitiveChain(t *testing.T) {
	repo := newMemRepo()
	repo.addUser("u0", "AbC123", "")
	u1 := repo.addUser("u1", "child", "")
	u1.ReferredBy = "abc123"
	repo.addPlan("p1", "10")
	repo.addDeposit("d1", "u1", "p1", models.DepositPending)

	res, err := newService(repo, newRecorder(), true).ActivateDeposit(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, res.Payout.Levels, 1)
	assert.Equal(t, "ABC123", res.Payout.Levels[0].ReferralCode)
	assertDecimal(t, "10", repo.earnings("u0"))
}

func TestActivateDeposit_BrokenChain(t *testing.T) {
	repo := newMemRepo()
	repo.addUser("u0", "GONE", "")
	repo.addUser("u1", "MID", "DELETED")
	repo.addUser("u2", "KID", "MID")
	repo.addPlan("p1", "10")
	repo.addDeposit("d1", "u2", "p1", models.DepositPending)
	rec := newRecorder()

	res, err := newService(repo, rec, true).ActivateDeposit(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, models.StopBrokenChain, res.Payout.StopReason)
	assert.True(t, res.Payout.Complete)
	require.Len(t, res.Payout.Levels, 1)
	assertDecimal(t, "10", repo.earnings("u1"))
	assert.True(t, repo.earnings("u0").IsZero())
	assert.Equal(t, 1, rec.stops[models.StopBrokenChain])
}

func TestActivateDeposit_CycleIsBounded(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(r *memRepo)
		wantLevel int
	}{
		{
			name: "two ancestors referring to each other",
			setup: func(r *memRepo) {
				r.addUser("a", "A", "B")
				r.addUser("b", "B", "A")
				r.addUser("kid", "KID", "A")
			},
			wantLevel: 2,
		},
		{
			name: "chain leading back to the depositor",
			setup: func(r *memRepo) {
				r.addUser("a", "A", "KID")
				r.addUser("kid", "KID", "A")
			},
			wantLevel: 1,
		},
		{
			name: "self referral",
			setup: func(r *memRepo) {
				r.addUser("kid", "KID", "KID")
			},
			wantLevel: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			tt.setup(repo)
			repo.addPlan("p1", "10")
			repo.addDeposit("d1", "kid", "p1", models.DepositPending)

			res, err := newService(repo, newRecorder(), true).ActivateDeposit(context.Background(), "d1")
			require.NoError(t, err)
			assert.Equal(t, models.StopCycleDetected, res.Payout.StopReason)
			assert.Len(t, res.Payout.Levels, tt.wantLevel)
			assert.True(t, repo.earnings("kid").IsZero())
		})
	}
}

func TestActivateDeposit_AtomicFailureRollsBack(t *testing.T) {
	repo := newMemRepo()
	depositor := repo.chain(3)
	repo.addPlan("p1", "10")
	repo.addDeposit("d1", depositor, "p1", models.DepositPending)
	repo.addDeposit("d2", depositor, "p1", models.DepositPending)
	repo.creditErr["u1"] = errors.New("connection reset")
	rec := newRecorder()

	res, err := newService(repo, rec, true).ActivateDeposit(context.Background(), "d1")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, models.ErrPersistence)

	var payoutErr *models.PayoutError
	require.ErrorAs(t, err, &payoutErr)
	assert.Equal(t, models.StopPersistenceFailure, payoutErr.Payout.StopReason)
	assert.False(t, payoutErr.Payout.Complete)
	assert.True(t, payoutErr.Payout.TotalPaid.IsZero())
	require.Len(t, payoutErr.Payout.Levels, 2)
	assert.Equal(t, models.LevelRolledBack, payoutErr.Payout.Levels[0].Status)
	assert.Equal(t, models.LevelFailed, payoutErr.Payout.Levels[1].Status)
	assert.Contains(t, payoutErr.Payout.Levels[1].Error, "connection reset")

	// активация и начисления откатились целиком
	assert.Equal(t, models.DepositPending, repo.deposits["d1"].Status)
	assert.Equal(t, models.DepositPending, repo.deposits["d2"].Status)
	assert.True(t, repo.earnings("u2").IsZero())
	assert.Empty(t, repo.commissions)
	assert.Equal(t, 1, rec.activations["failed"])
}

func TestActivateDeposit_AtomicLookupFailure(t *testing.T) {
	repo := newMemRepo()
	depositor := repo.chain(2)
	repo.addPlan("p1", "10")
	repo.addDeposit("d1", depositor, "p1", models.DepositPending)
	repo.lookupErr["C0"] = errors.New("timeout")

	_, err := newService(repo, newRecorder(), true).ActivateDeposit(context.Background(), "d1")
	require.Error(t, err)
	var payoutErr *models.PayoutError
	require.ErrorAs(t, err, &payoutErr)
	assert.Equal(t, models.StopLookupFailed, payoutErr.Payout.StopReason)
	assert.Equal(t, models.DepositPending, repo.deposits["d1"].Status)
	assert.True(t, repo.earnings("u1").IsZero())
}

func TestActivateDeposit_PerHopPartialPayout(t *testing.T) {
	repo := newMemRepo()
	depositor := repo.chain(3)
	repo.addPlan("p1", "10")
	repo.addDeposit("d1", depositor, "p1", models.DepositPending)
	repo.addDeposit("d2", depositor, "p1", models.DepositPending)
	repo.creditErr["u1"] = errors.New("connection reset")
	rec := newRecorder()

	res, err := newService(repo, rec, false).ActivateDeposit(context.Background(), "d1")
	require.NoError(t, err)

	assert.False(t, res.Payout.Complete)
	assert.Equal(t, models.StopPersistenceFailure, res.Payout.StopReason)
	require.Len(t, res.Payout.Levels, 2)
	assert.Equal(t, models.LevelPaid, res.Payout.Levels[0].Status)
	assert.Equal(t, models.LevelFailed, res.Payout.Levels[1].Status)
	assertDecimal(t, "10", res.Payout.TotalPaid)

	// активация сохранилась, первый уровень оплачен
	assert.Equal(t, models.DepositActive, repo.deposits["d1"].Status)
	assert.Equal(t, models.DepositFailed, repo.deposits["d2"].Status)
	assertDecimal(t, "10", repo.earnings("u2"))
	assert.True(t, repo.earnings("u1").IsZero())
	assert.True(t, repo.earnings("u0").IsZero())
	assert.Len(t, repo.commissions, 1)
	assert.Equal(t, 1, rec.activations["incomplete"])

	// активация и каждый уровень выполняются в отдельных транзакциях
	assert.Equal(t, 3, repo.txCount)
}

func TestActivateDeposit_ConcurrentActivationsForOneUser(t *testing.T) {
	repo := newMemRepo()
	depositor := repo.chain(1)
	repo.addPlan("p1", "10")
	repo.addDeposit("d1", depositor, "p1", models.DepositPending)
	repo.addDeposit("d2", depositor, "p1", models.DepositPending)

	// memRepo не блокирует строки, поэтому активации выполняются последовательно:
	// вторая должна увидеть депозит уже в failed.
	svc := newService(repo, newRecorder(), true)
	_, err := svc.ActivateDeposit(context.Background(), "d1")
	require.NoError(t, err)
	_, err = svc.ActivateDeposit(context.Background(), "d2")
	assert.ErrorIs(t, err, models.ErrInvalidState)

	assertDecimal(t, "10", repo.earnings("u0"))
	statuses := map[string]string{}
	for id, d := range repo.deposits {
		statuses[id] = d.Status
	}
	assert.True(t, maps.Equal(map[string]string{"d1": models.DepositActive, "d2": models.DepositFailed}, statuses))
}
