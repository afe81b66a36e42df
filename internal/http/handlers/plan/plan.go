// Package plan реализует HTTP-обработчики тарифных планов.
// Чтение доступно любому авторизованному пользователю, изменение только администратору.
package plan

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/bioopay/backend/internal/http/request"
	"github.com/bioopay/backend/internal/http/response"
	"github.com/bioopay/backend/internal/lib/sl"
	"github.com/bioopay/backend/internal/models"
)

// Service описывает интерфейс бизнес-логики тарифных планов.
type Service interface {
	Create(ctx context.Context, in models.DummyPlan) (*models.Plan, error)
	Get(ctx context.Context, id string) (*models.Plan, error)
	List(ctx context.Context) ([]*models.Plan, error)
	Update(ctx context.Context, id string, in models.DummyPlan) (*models.Plan, error)
	Delete(ctx context.Context, id string) error
}

// Handler обрабатывает запросы к тарифным планам.
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

// List godoc
// @Summary Список тарифных планов
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /plans [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.List"
	log := request.Logger(h.log, r, op)

	plans, err := h.service.List(r.Context())
	if err != nil {
		log.Error("failed to list plans", sl.Err(err))
		response.Fail(w, r, err, "could not list plans")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count": len(plans),
		"plans":      plans,
	}))
}

// Get godoc
// @Summary Тарифный план по ID
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID плана"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /plans/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.Get"
	log := request.Logger(h.log, r, op)

	plan, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		log.Error("failed to read plan", sl.Err(err))
		response.Fail(w, r, err, "could not read plan")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"plan": plan,
	}))
}

// Create godoc
// @Summary Создание тарифного плана
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyPlan true "План"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "План с таким названием уже существует"
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/plans [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.Create"
	log := request.Logger(h.log, r, op)

	var req models.DummyPlan
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	plan, err := h.service.Create(r.Context(), req)
	if err != nil {
		log.Error("failed to create plan", sl.Err(err))
		response.Fail(w, r, err, "could not create plan")
		return
	}

	log.Info("plan created", slog.String("plan_id", plan.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"plan": plan,
	}))
}

// Update godoc
// @Summary Изменение тарифного плана
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID плана"
// @Param request body models.DummyPlan true "План"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/plans/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.Update"
	log := request.Logger(h.log, r, op)

	id := chi.URLParam(r, "id")
	var req models.DummyPlan
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	plan, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		log.Error("failed to update plan", sl.Err(err))
		response.Fail(w, r, err, "could not update plan")
		return
	}

	log.Info("plan updated", slog.String("plan_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"plan": plan,
	}))
}

// Delete godoc
// @Summary Удаление тарифного плана
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID плана"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "На план ссылаются депозиты"
// @Router /admin/plans/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.Delete"
	log := request.Logger(h.log, r, op)

	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		log.Error("failed to delete plan", sl.Err(err))
		response.Fail(w, r, err, "could not delete plan")
		return
	}

	log.Info("plan deleted", slog.String("plan_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"deleted_id": id,
	}))
}
