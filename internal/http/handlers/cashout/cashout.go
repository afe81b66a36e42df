// Package cashout реализует HTTP-обработчики заявок на вывод заработанных средств.
package cashout

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

// Service описывает интерфейс бизнес-логики вывода средств.
type Service interface {
	Create(ctx context.Context, userID string, in models.DummyCashOut) (*models.CashOut, error)
	Review(ctx context.Context, id string, in models.DummyReview) (*models.CashOut, error)
	ListMine(ctx context.Context, userID string) ([]*models.CashOut, error)
	ListAll(ctx context.Context, limit, offset int) ([]*models.CashOut, error)
}

// Handler обрабатывает запросы на вывод средств.
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

// Create godoc
// @Summary Заявка на вывод средств
// @Description Списывает сумму с баланса. Требуется активный депозит.
// @Tags CashOuts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyCashOut true "Сумма и кошелёк"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Недостаточно средств или нет активного плана"
// @Failure 422 {object} response.ErrorResponse
// @Router /cashouts [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cashout.Create"
	log := request.Logger(h.log, r, op)

	var req models.DummyCashOut
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	userID := middlewarectx.UserIDFrom(r.Context())
	c, err := h.service.Create(r.Context(), userID, req)
	if err != nil {
		log.Error("failed to create cash out", sl.Err(err))
		response.Fail(w, r, err, "could not create cash out")
		return
	}

	log.Info("cash out created", slog.String("cashout_id", c.ID), slog.String("user_id", userID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"cashout": c,
	}))
}

// ListMine godoc
// @Summary Заявки на вывод текущего пользователя
// @Tags CashOuts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /cashouts [get]
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cashout.ListMine"
	log := request.Logger(h.log, r, op)

	list, err := h.service.ListMine(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		log.Error("failed to list cash outs", sl.Err(err))
		response.Fail(w, r, err, "could not list cash outs")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count": len(list),
		"cashouts":   list,
	}))
}

// ListAll godoc
// @Summary Все заявки на вывод
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Количество записей"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response
// @Router /admin/cashouts [get]
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cashout.ListAll"
	log := request.Logger(h.log, r, op)

	limit, offset := request.Page(r)
	list, err := h.service.ListAll(r.Context(), limit, offset)
	if err != nil {
		log.Error("failed to list cash outs", sl.Err(err))
		response.Fail(w, r, err, "could not list cash outs")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count": len(list),
		"cashouts":   list,
	}))
}

// Review godoc
// @Summary Рассмотрение заявки на вывод
// @Description Одобряет или отклоняет заявку в статусе pending. При отклонении сумма возвращается на баланс.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID заявки"
// @Param request body models.DummyReview true "approved или rejected"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Заявка уже рассмотрена"
// @Router /admin/cashouts/{id} [patch]
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cashout.Review"
	log := request.Logger(h.log, r, op)

	id := chi.URLParam(r, "id")
	var req models.DummyReview
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	c, err := h.service.Review(r.Context(), id, req)
	if err != nil {
		log.Error("failed to review cash out", sl.Err(err))
		response.Fail(w, r, err, "could not review cash out")
		return
	}

	log.Info("cash out reviewed", slog.String("cashout_id", id), slog.String("status", req.Status))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"cashout": c,
	}))
}
