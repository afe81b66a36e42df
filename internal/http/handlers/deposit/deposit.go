// Package deposit реализует HTTP-обработчики депозитов.
//
// Пользователь создаёт заявку с подтверждением оплаты, администратор меняет её статус.
// Переход в active активирует депозит и распределяет комиссию по реферальной цепочке,
// отчёт о начислениях возвращается в поле activation.
package deposit

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

// maxBody ограничивает размер тела с изображением подтверждения оплаты.
const maxBody = 5 << 20

// Service описывает интерфейс бизнес-логики депозитов.
type Service interface {
	Create(ctx context.Context, userID string, in models.DummyDeposit) (*models.Deposit, error)
	ListMine(ctx context.Context, userID string) ([]*models.Deposit, error)
	ListAll(ctx context.Context, limit, offset int) ([]*models.Deposit, error)
	UpdateStatus(ctx context.Context, id, status string) (*models.DepositUpdate, error)
	Delete(ctx context.Context, id string) error
}

// Handler обрабатывает запросы к депозитам.
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
// @Summary Заявка на депозит
// @Description Создает депозит в статусе pending. Сумма равна цене плана.
// @Tags Deposits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyDeposit true "План, номер транзакции и изображение data URL"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректное изображение"
// @Failure 404 {object} response.ErrorResponse "План не найден"
// @Failure 422 {object} response.ErrorResponse
// @Router /deposits [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.deposit.Create"
	log := request.Logger(h.log, r, op)

	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var req models.DummyDeposit
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	userID := middlewarectx.UserIDFrom(r.Context())
	d, err := h.service.Create(r.Context(), userID, req)
	if err != nil {
		log.Error("failed to create deposit", sl.Err(err))
		response.Fail(w, r, err, "could not create deposit")
		return
	}

	log.Info("deposit created", slog.String("deposit_id", d.ID), slog.String("user_id", userID))
	d.Image = ""
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"deposit": d,
	}))
}

// ListMine godoc
// @Summary Депозиты текущего пользователя
// @Tags Deposits
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /deposits [get]
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.deposit.ListMine"
	log := request.Logger(h.log, r, op)

	deposits, err := h.service.ListMine(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		log.Error("failed to list deposits", sl.Err(err))
		response.Fail(w, r, err, "could not list deposits")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count": len(deposits),
		"deposits":   deposits,
	}))
}

// ListAll godoc
// @Summary Все депозиты
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Количество записей"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response
// @Router /admin/deposits [get]
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.deposit.ListAll"
	log := request.Logger(h.log, r, op)

	limit, offset := request.Page(r)
	deposits, err := h.service.ListAll(r.Context(), limit, offset)
	if err != nil {
		log.Error("failed to list deposits", sl.Err(err))
		response.Fail(w, r, err, "could not list deposits")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count": len(deposits),
		"deposits":   deposits,
	}))
}

// UpdateStatus godoc
// @Summary Смена статуса депозита
// @Description Переход в active активирует депозит, переводит остальные депозиты пользователя в failed
// @Description и начисляет комиссию рефералам. При сбое начисления активация откатывается,
// @Description а отчёт по уровням возвращается в data.payout.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID депозита"
// @Param request body models.DummyDepositStatus true "Новый статус"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Депозит уже активен или не в статусе pending"
// @Failure 500 {object} response.Response "Начисление комиссии не удалось"
// @Router /admin/deposits/{id}/status [patch]
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.deposit.UpdateStatus"
	log := request.Logger(h.log, r, op)

	id := chi.URLParam(r, "id")
	var req models.DummyDepositStatus
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	upd, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		log.Error("failed to update deposit status", sl.Err(err))
		response.Fail(w, r, err, "could not update deposit status")
		return
	}

	log.Info("deposit status updated", slog.String("deposit_id", id), slog.String("status", req.Status))
	render.JSON(w, r, response.StatusOKWithData(upd))
}

// Delete godoc
// @Summary Удаление депозита
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID депозита"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/deposits/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.deposit.Delete"
	log := request.Logger(h.log, r, op)

	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		log.Error("failed to delete deposit", sl.Err(err))
		response.Fail(w, r, err, "could not delete deposit")
		return
	}

	log.Info("deposit deleted", slog.String("deposit_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"deleted_id": id,
	}))
}
