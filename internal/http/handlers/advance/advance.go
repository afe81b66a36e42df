// Package advance реализует HTTP-обработчики заявок лидеров команд на аванс.
package advance

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

// Service описывает интерфейс бизнес-логики авансов.
type Service interface {
	Apply(ctx context.Context, userID string, in models.DummyAdvance) (*models.Advance, error)
	Review(ctx context.Context, id string, in models.DummyReview) (*models.Advance, error)
	ListMine(ctx context.Context, userID string) ([]*models.Advance, error)
	ListAll(ctx context.Context, limit, offset int) ([]*models.Advance, error)
}

// Handler обрабатывает заявки на аванс.
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

// Apply godoc
// @Summary Заявка на аванс
// @Description Категория команды и сумма аванса определяются размером команды.
// @Tags Advances
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyAdvance true "Размер команды и комментарий"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.ErrorResponse
// @Router /advances [post]
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.advance.Apply"
	log := request.Logger(h.log, r, op)

	var req models.DummyAdvance
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	userID := middlewarectx.UserIDFrom(r.Context())
	a, err := h.service.Apply(r.Context(), userID, req)
	if err != nil {
		log.Error("failed to apply for advance", sl.Err(err))
		response.Fail(w, r, err, "could not apply for advance")
		return
	}

	log.Info("advance requested", slog.String("advance_id", a.ID), slog.String("user_id", userID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"advance": a,
	}))
}

// ListMine godoc
// @Summary Заявки на аванс текущего пользователя
// @Tags Advances
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /advances [get]
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.advance.ListMine"
	log := request.Logger(h.log, r, op)

	list, err := h.service.ListMine(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		log.Error("failed to list advances", sl.Err(err))
		response.Fail(w, r, err, "could not list advances")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count": len(list),
		"advances":   list,
	}))
}

// ListAll godoc
// @Summary Все заявки на аванс
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Количество записей"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response
// @Router /admin/advances [get]
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.advance.ListAll"
	log := request.Logger(h.log, r, op)

	limit, offset := request.Page(r)
	list, err := h.service.ListAll(r.Context(), limit, offset)
	if err != nil {
		log.Error("failed to list advances", sl.Err(err))
		response.Fail(w, r, err, "could not list advances")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count": len(list),
		"advances":   list,
	}))
}

// Review godoc
// @Summary Рассмотрение заявки на аванс
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID заявки"
// @Param request body models.DummyReview true "Статус и замечания"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Неизвестный статус"
// @Router /admin/advances/{id} [patch]
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.advance.Review"
	log := request.Logger(h.log, r, op)

	id := chi.URLParam(r, "id")
	var req models.DummyReview
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	a, err := h.service.Review(r.Context(), id, req)
	if err != nil {
		log.Error("failed to review advance", sl.Err(err))
		response.Fail(w, r, err, "could not review advance")
		return
	}

	log.Info("advance reviewed", slog.String("advance_id", id), slog.String("status", req.Status))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"advance": a,
	}))
}
