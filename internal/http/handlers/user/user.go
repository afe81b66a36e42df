// Package user реализует HTTP-обработчики профиля пользователя и администрирования учётных записей.
package user

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/bioopay/backend/internal/http/middlewarectx"
	"github.com/bioopay/backend/internal/http/request"
	"github.com/bioopay/backend/internal/http/response"
	"github.com/bioopay/backend/internal/lib/sl"
	"github.com/bioopay/backend/internal/models"
)

// Service описывает интерфейс бизнес-логики пользователей.
type Service interface {
	Profile(ctx context.Context, userID string) (*models.Profile, error)
	List(ctx context.Context, limit, offset int) ([]*models.Profile, error)
	Commissions(ctx context.Context, userID string) ([]*models.CommissionEntry, error)
	SetAccountStatus(ctx context.Context, userID, status string) error
	UpdateProfile(ctx context.Context, userID string, in models.DummyProfileUpdate) (*models.Profile, error)
	ChangePassword(ctx context.Context, userID string, in models.DummyChangePassword) error
	UpdateUser(ctx context.Context, userID string, in models.DummyUserUpdate) (*models.Profile, error)
	DeleteUser(ctx context.Context, userID string) (*models.User, error)
}

// Handler обрабатывает запросы к профилям пользователей.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// Me godoc
// @Summary Профиль текущего пользователя
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /users/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.Me"
	log := request.Logger(h.log, r, op)

	profile, err := h.service.Profile(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		log.Error("failed to read profile", sl.Err(err))
		response.Fail(w, r, err, "could not read profile")
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user": profile,
	}))
}

// Commissions godoc
// @Summary Начисления текущего пользователя
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /users/me/commissions [get]
func (h *Handler) Commissions(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.Commissions"
	log := request.Logger(h.log, r, op)

	entries, err := h.service.Commissions(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		log.Error("failed to list commissions", sl.Err(err))
		response.Fail(w, r, err, "could not list commissions")
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count":  len(entries),
		"commissions": entries,
	}))
}

// List godoc
// @Summary Список пользователей
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Количество записей"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/users [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.List"
	log := request.Logger(h.log, r, op)

	limit, offset := request.Page(r)
	users, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		log.Error("failed to list users", sl.Err(err))
		response.Fail(w, r, err, "could not list users")
		return
	}

	log.Info("list users", "count", len(users))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count": len(users),
		"users":      users,
	}))
}

// SetStatus godoc
// @Summary Блокировка и разблокировка пользователя
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID пользователя"
// @Param request body models.DummyAccountStatus true "Новый статус"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/users/{id}/status [patch]
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.SetStatus"
	log := request.Logger(h.log, r, op)

	id := chi.URLParam(r, "id")
	var req models.DummyAccountStatus
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	if err := h.service.SetAccountStatus(r.Context(), id, req.Status); err != nil {
		log.Error("failed to update account status", sl.Err(err))
		response.Fail(w, r, err, "could not update account status")
		return
	}

	log.Info("account status updated", slog.String("user_id", id), slog.String("status", req.Status))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"id":     id,
		"status": req.Status,
	}))
}

// UpdateProfile godoc
// @Summary Изменение профиля текущего пользователя
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyProfileUpdate true "Новые данные профиля"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Имя пользователя занято"
// @Failure 422 {object} response.ErrorResponse
// @Router /users/me [put]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.UpdateProfile"
	log := request.Logger(h.log, r, op)

	var req models.DummyProfileUpdate
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), middlewarectx.UserIDFrom(r.Context()), req)
	if err != nil {
		log.Error("failed to update profile", sl.Err(err))
		response.Fail(w, r, err, "could not update profile")
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user": profile,
	}))
}

// ChangePassword godoc
// @Summary Смена пароля текущего пользователя
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyChangePassword true "Текущий и новый пароль"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Неверный текущий пароль"
// @Failure 422 {object} response.ErrorResponse
// @Router /users/me/password [put]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.ChangePassword"
	log := request.Logger(h.log, r, op)

	var req models.DummyChangePassword
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), middlewarectx.UserIDFrom(r.Context()), req); err != nil {
		log.Warn("failed to change password", sl.Err(err))
		response.Fail(w, r, err, "could not change password")
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "password updated",
	}))
}

// Update godoc
// @Summary Изменение пользователя администратором
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID пользователя"
// @Param request body models.DummyUserUpdate true "Изменяемые поля"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Имя или email заняты"
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/users/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.Update"
	log := request.Logger(h.log, r, op)

	id := chi.URLParam(r, "id")
	var req models.DummyUserUpdate
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	profile, err := h.service.UpdateUser(r.Context(), id, req)
	if err != nil {
		log.Error("failed to update user", sl.Err(err))
		response.Fail(w, r, err, "could not update user")
		return
	}

	log.Info("user updated", slog.String("user_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user": profile,
	}))
}

// Delete godoc
// @Summary Удаление пользователя
// @Description Прямые рефералы удалённого пользователя переходят к его пригласившему.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID пользователя"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/users/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.Delete"
	log := request.Logger(h.log, r, op)

	id := chi.URLParam(r, "id")
	user, err := h.service.DeleteUser(r.Context(), id)
	if err != nil {
		log.Error("failed to delete user", sl.Err(err))
		response.Fail(w, r, err, "could not delete user")
		return
	}

	log.Info("user deleted", slog.String("user_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"deleted_id": user.ID,
		"user":       user,
	}))
}
