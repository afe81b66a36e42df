// Package bioopay собирает HTTP API: хранилище, кэш регистраций, брокер уведомлений,
// сервисы предметной области и маршруты.
package bioopay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	"github.com/bioopay/backend/internal/cache"
	"github.com/bioopay/backend/internal/config"
	"github.com/bioopay/backend/internal/lib/jwt"
	"github.com/bioopay/backend/internal/lib/rabbitmq"
	"github.com/bioopay/backend/internal/lib/sl"
	"github.com/bioopay/backend/internal/metrics"
	"github.com/bioopay/backend/internal/migrations"
	advanceservice "github.com/bioopay/backend/internal/services/advance"
	authservice "github.com/bioopay/backend/internal/services/auth"
	cashoutservice "github.com/bioopay/backend/internal/services/cashout"
	commissionservice "github.com/bioopay/backend/internal/services/commission"
	depositservice "github.com/bioopay/backend/internal/services/deposit"
	depositaccountservice "github.com/bioopay/backend/internal/services/depositaccount"
	planservice "github.com/bioopay/backend/internal/services/plan"
	referralservice "github.com/bioopay/backend/internal/services/referral"
	userservice "github.com/bioopay/backend/internal/services/user"
	"github.com/bioopay/backend/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// App - HTTP API вместе с его зависимостями.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает зависимости, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.bioopay.New"

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	commission := commissionservice.NewCommissionService(db, m, logger, commissionservice.Options{
		Levels:  cfg.CommissionLevels,
		Atomic:  cfg.AtomicPayout(),
		Timeout: cfg.CommissionTimeout,
	})
	svc := Services{
		Auth: authservice.NewAuthService(db, cacheRedis, rabbitmq.NewPublisher(ch), jwtMaker, logger, authservice.Options{
			CodeTTL:          cfg.CodeTTL,
			ReferralLinkBase: cfg.ReferralLinkBase,
		}),
		User: userservice.NewUserService(db, logger),
		Referral: referralservice.NewReferralService(db, m, logger, referralservice.Options{
			MaxDepth:    cfg.MaxDepth,
			MaxNodes:    cfg.MaxNodes,
			Concurrency: cfg.Concurrency,
			Timeout:     cfg.TreeTimeout,
		}),
		Plan:           planservice.NewPlanService(db),
		Deposit:        depositservice.NewDepositService(db, commission, logger),
		DepositAccount: depositaccountservice.NewDepositAccountService(db),
		CashOut:        cashoutservice.NewCashOutService(db, logger),
		Advance:        advanceservice.NewAdvanceService(db),
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, svc, Deps{
		Tokens:  jwtMaker,
		Metrics: m.Handler(),
		Checks:  map[string]Pinger{"postgres": db, "redis": cacheRedis},
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}
	a.close()
	return err
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close rabbitmq connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
