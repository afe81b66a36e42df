package bioopay

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	// Регистрация swagger-документации.
	_ "github.com/bioopay/backend/docs"
	"github.com/bioopay/backend/internal/config"
	"github.com/bioopay/backend/internal/http/handlers/advance"
	"github.com/bioopay/backend/internal/http/handlers/auth"
	"github.com/bioopay/backend/internal/http/handlers/cashout"
	"github.com/bioopay/backend/internal/http/handlers/deposit"
	"github.com/bioopay/backend/internal/http/handlers/depositaccount"
	"github.com/bioopay/backend/internal/http/handlers/health"
	"github.com/bioopay/backend/internal/http/handlers/plan"
	"github.com/bioopay/backend/internal/http/handlers/referral"
	"github.com/bioopay/backend/internal/http/handlers/user"
	"github.com/bioopay/backend/internal/http/middlewarectx"
)

// Pinger - зависимость, проверяемая в /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// UserService объединяет операции профиля и проверку статуса учётной записи.
type UserService interface {
	user.Service
	middlewarectx.AccountService
}

// Services - бизнес-логика, доступная через HTTP.
type Services struct {
	Auth           auth.Service
	User           UserService
	Referral       referral.Service
	Plan           plan.Service
	Deposit        deposit.Service
	DepositAccount depositaccount.Service
	CashOut        cashout.Service
	Advance        advance.Service
}

// Deps - инфраструктура маршрутизатора.
type Deps struct {
	Tokens  middlewarectx.TokenParser
	Metrics http.Handler
	Checks  map[string]Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, svc Services, deps Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	authHandler := auth.New(logger, svc.Auth)
	userHandler := user.New(logger, svc.User)
	referralHandler := referral.New(logger, svc.Referral)
	planHandler := plan.New(logger, svc.Plan)
	depositHandler := deposit.New(logger, svc.Deposit)
	depositAccountHandler := depositaccount.New(logger, svc.DepositAccount)
	cashoutHandler := cashout.New(logger, svc.CashOut)
	advanceHandler := advance.New(logger, svc.Advance)

	checks := make(map[string]health.Pinger, len(deps.Checks))
	for name, p := range deps.Checks {
		checks[name] = p
	}
	limiter := middlewarectx.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Route("/auth", func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, limiter))
			r.Post("/send-code", authHandler.SendCode)
			r.Post("/verify-email", authHandler.VerifyEmail)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(deps.Tokens, logger))
			r.Use(middlewarectx.AccountStatusMiddleware(logger, svc.User))

			r.Get("/users/me", userHandler.Me)
			r.Put("/users/me", userHandler.UpdateProfile)
			r.Put("/users/me/password", userHandler.ChangePassword)
			r.Get("/users/me/commissions", userHandler.Commissions)
			r.Get("/referrals/tree", referralHandler.MyTree)

			r.Get("/plans", planHandler.List)
			r.Get("/plans/{id}", planHandler.Get)

			r.Post("/deposits", depositHandler.Create)
			r.Get("/deposits", depositHandler.ListMine)
			r.Get("/deposit-accounts", depositAccountHandler.List)

			r.Post("/cashouts", cashoutHandler.Create)
			r.Get("/cashouts", cashoutHandler.ListMine)

			r.Post("/advances", advanceHandler.Apply)
			r.Get("/advances", advanceHandler.ListMine)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middlewarectx.AdminOnly(logger))

				r.Get("/users", userHandler.List)
				r.Put("/users/{id}", userHandler.Update)
				r.Delete("/users/{id}", userHandler.Delete)
				r.Patch("/users/{id}/status", userHandler.SetStatus)
				r.Patch("/users/{id}/referrer", referralHandler.Reassign)

				r.Get("/referrals/network", referralHandler.Network)
				r.Get("/referrals/{code}/tree", referralHandler.Tree)

				r.Post("/plans", planHandler.Create)
				r.Put("/plans/{id}", planHandler.Update)
				r.Delete("/plans/{id}", planHandler.Delete)

				r.Get("/deposits", depositHandler.ListAll)
				r.Patch("/deposits/{id}/status", depositHandler.UpdateStatus)
				r.Delete("/deposits/{id}", depositHandler.Delete)

				r.Post("/deposit-accounts", depositAccountHandler.Create)
				r.Put("/deposit-accounts/{id}", depositAccountHandler.Update)
				r.Delete("/deposit-accounts/{id}", depositAccountHandler.Delete)

				r.Get("/cashouts", cashoutHandler.ListAll)
				r.Patch("/cashouts/{id}", cashoutHandler.Review)

				r.Get("/advances", advanceHandler.ListAll)
				r.Patch("/advances/{id}", advanceHandler.Review)
			})
		})
	})

	r.Get("/health", health.New(logger, checks).ServeHTTP)
	r.Handle("/metrics", deps.Metrics)
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
