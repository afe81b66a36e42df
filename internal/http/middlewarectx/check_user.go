package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/bioopay/backend/internal/http/response"
	"github.com/bioopay/backend/internal/lib/sl"
	"github.com/bioopay/backend/internal/models"
)

// AccountService определяет интерфейс для получения статуса учётной записи.
type AccountService interface {
	AccountStatus(ctx context.Context, userID string) (string, error)
}

// AccountStatusMiddleware создает middleware, которое не пропускает заблокированных пользователей,
// даже если их токен ещё действителен.
func AccountStatusMiddleware(log *slog.Logger, accounts AccountService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFrom(r.Context())
			if userID == "" {
				log.Error("user identification missing")
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("user identification missing"))
				return
			}

			status, err := accounts.AccountStatus(r.Context(), userID)
			if err != nil {
				code, msg := response.FromError(err, "internal service error")
				if code == http.StatusNotFound {
					code, msg = http.StatusUnauthorized, "user not found"
				}
				log.Error("failed to get account status", sl.Err(err))
				w.WriteHeader(code)
				render.JSON(w, r, response.Error(msg))
				return
			}

			if status != models.AccountActive {
				log.Warn("account blocked, access denied", slog.String("user_id", userID), slog.String("status", status))
				w.WriteHeader(http.StatusForbidden)
				render.JSON(w, r, response.Error("account blocked, access denied"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
