// Package depositaccount реализует HTTP-обработчики реквизитов для оплаты депозитов.
package depositaccount

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

// Service описывает интерфейс бизнес-логики реквизитов.
type Service interface {
	Create(ctx context.Context, in models.DummyDepositAccount) (*models.DepositAccount, error)
	List(ctx context.Context) ([]*models.DepositAccount, error)
	Update(ctx context.Context, id string, in models.DummyDepositAccount) (*models.DepositAccount, error)
	Delete(ctx context.Context, id string) error
}

// Handler обрабатывает запросы к реквизитам.
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
// @Summary Реквизиты для оплаты депозита
// @Tags DepositAccounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /deposit-accounts [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.depositaccount.List"
	log := request.Logger(h.log, r, op)

	accounts, err := h.service.List(r.Context())
	if err != nil {
		log.Error("failed to list deposit accounts", sl.Err(err))
		response.Fail(w, r, err, "could not list deposit accounts")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count": len(accounts),
		"accounts":   accounts,
	}))
}

// Create godoc
// @Summary Добавление реквизитов
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyDepositAccount true "Реквизиты"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Такие реквизиты уже есть"
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/deposit-accounts [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.depositaccount.Create"
	log := request.Logger(h.log, r, op)

	var req models.DummyDepositAccount
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	account, err := h.service.Create(r.Context(), req)
	if err != nil {
		log.Error("failed to create deposit account", sl.Err(err))
		response.Fail(w, r, err, "could not create deposit account")
		return
	}

	log.Info("deposit account created", slog.String("account_id", account.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"account": account,
	}))
}

// Update godoc
// @Summary Изменение реквизитов
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID реквизитов"
// @Param request body models.DummyDepositAccount true "Реквизиты"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/deposit-accounts/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.depositaccount.Update"
	log := request.Logger(h.log, r, op)

	id := chi.URLParam(r, "id")
	var req models.DummyDepositAccount
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	account, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		log.Error("failed to update deposit account", sl.Err(err))
		response.Fail(w, r, err, "could not update deposit account")
		return
	}

	log.Info("deposit account updated", slog.String("account_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"account": account,
	}))
}

// Delete godoc
// @Summary Удаление реквизитов
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID реквизитов"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/deposit-accounts/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.depositaccount.Delete"
	log := request.Logger(h.log, r, op)

	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		log.Error("failed to delete deposit account", sl.Err(err))
		response.Fail(w, r, err, "could not delete deposit account")
		return
	}

	log.Info("deposit account deleted", slog.String("account_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"deleted_id": id,
	}))
}
