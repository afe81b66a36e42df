// Package referral реализует HTTP-обработчики дерева рефералов.
//
// Дерево строится по запросу и может быть усечено ограничениями глубины и размера,
// в этом случае в ответе выставлен флаг truncated и причина усечения.
package referral

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

// Service описывает интерфейс построения дерева рефералов.
type Service interface {
	BuildTree(ctx context.Context, rootCode string) (*models.ReferralTree, error)
	TreeForUser(ctx context.Context, userID string) (*models.ReferralTree, error)
	NetworkByEmail(ctx context.Context, email string) (*models.Network, error)
	ReassignReferrer(ctx context.Context, userID, code string) (*models.User, error)
}

// Handler обрабатывает запросы к дереву рефералов.
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

// MyTree godoc
// @Summary Дерево рефералов текущего пользователя
// @Tags Referrals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Router /referrals/tree [get]
func (h *Handler) MyTree(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.referral.MyTree"
	log := request.Logger(h.log, r, op)

	tree, err := h.service.TreeForUser(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		log.Error("failed to build referral tree", sl.Err(err))
		response.Fail(w, r, err, "could not build referral tree")
		return
	}

	log.Info("referral tree built", slog.Int("total", tree.TotalReferrals), slog.Bool("truncated", tree.Truncated))
	render.JSON(w, r, response.StatusOKWithData(tree))
}

// Tree godoc
// @Summary Дерево рефералов по коду
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param code path string true "Реферальный код корня"
// @Success 200 {object} response.Response
// @Router /admin/referrals/{code}/tree [get]
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.referral.Tree"
	log := request.Logger(h.log, r, op)

	code := chi.URLParam(r, "code")
	if code == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("referral code is required"))
		return
	}

	tree, err := h.service.BuildTree(r.Context(), code)
	if err != nil {
		log.Error("failed to build referral tree", sl.Err(err))
		response.Fail(w, r, err, "could not build referral tree")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(tree))
}

// Network godoc
// @Summary Пользователь и его сеть по email
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param email query string true "Email пользователя"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/referrals/network [get]
func (h *Handler) Network(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.referral.Network"
	log := request.Logger(h.log, r, op)

	req := models.DummyEmail{Email: r.URL.Query().Get("email")}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	network, err := h.service.NetworkByEmail(r.Context(), req.Email)
	if err != nil {
		log.Error("failed to build network", sl.Err(err))
		response.Fail(w, r, err, "could not build network")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(network))
}

// Reassign godoc
// @Summary Смена пригласившего
// @Description Назначение, при котором пользователь стал бы собственным предком, отклоняется.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID пользователя"
// @Param request body models.DummyReferrer true "Код нового пригласившего"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Цикл в реферальной цепочке"
// @Router /admin/users/{id}/referrer [patch]
func (h *Handler) Reassign(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.referral.Reassign"
	log := request.Logger(h.log, r, op)

	id := chi.URLParam(r, "id")
	var req models.DummyReferrer
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	user, err := h.service.ReassignReferrer(r.Context(), id, req.ReferralCode)
	if err != nil {
		log.Error("failed to reassign referrer", sl.Err(err))
		response.Fail(w, r, err, "could not reassign referrer")
		return
	}

	log.Info("referrer reassigned", slog.String("user_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user": user,
	}))
}
