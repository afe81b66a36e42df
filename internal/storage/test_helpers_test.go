package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bioopay/backend/internal/migrations"
	"github.com/bioopay/backend/internal/models"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
	seq     int
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя с реферальным кодом code, приглашённого referredBy
func (f *TestDataFactory) CreateUser(t *testing.T, code, referredBy string) *models.User {
	t.Helper()
	f.seq++
	u := &models.User{
		UserName:     fmt.Sprintf("user%d", f.seq),
		Email:        fmt.Sprintf("user%d@example.com", f.seq),
		PasswordHash: "hashedpassword",
		ReferralCode: code,
		ReferralLink: "http://localhost:3000/register?referralCode=" + code,
		ReferredBy:   referredBy,
		IsVerified:   true,
	}
	_, err := f.storage.CreateUser(context.Background(), u)
	require.NoError(t, err)
	return u
}

// CreatePlan создает тестовый план
func (f *TestDataFactory) CreatePlan(t *testing.T, name string, price, rate int64) *models.Plan {
	t.Helper()
	p := &models.Plan{
		Name:           name,
		Price:          decimal.NewFromInt(price),
		CommissionRate: decimal.NewFromInt(rate),
	}
	_, err := f.storage.CreatePlan(context.Background(), p)
	require.NoError(t, err)
	return p
}

// CreateDeposit создает тестовый депозит в статусе pending
func (f *TestDataFactory) CreateDeposit(t *testing.T, userID string, plan *models.Plan) *models.Deposit {
	t.Helper()
	f.seq++
	d := &models.Deposit{
		UserID:        userID,
		PlanID:        plan.ID,
		TransactionID: fmt.Sprintf("%d%d", time.Now().UnixNano(), f.seq),
		Image:         "data:image/png;base64,AAAA",
		Amount:        plan.Price,
	}
	_, err := f.storage.CreateDeposit(context.Background(), d)
	require.NoError(t, err)
	return d
}

// setupTestDatabase поднимает PostgreSQL в контейнере и накатывает миграции
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, nat.Port("5432/tcp"))
	require.NoError(t, err, "failed to get port")

	connStr := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	var storage *Storage
	for i := 0; i < 10; i++ {
		storage, err = New(connStr)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	migrationsPath, err := filepath.Abs("../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	cleanup := func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return storage, cleanup
}
