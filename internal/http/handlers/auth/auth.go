// Package auth реализует HTTP-обработчики регистрации с подтверждением email и входа.
//
// Регистрация проходит в три шага: запрос кода (send-code), подтверждение кода (verify-email)
// и создание пользователя (register). Вход возвращает JWT для заголовка Authorization.
package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/bioopay/backend/internal/http/request"
	"github.com/bioopay/backend/internal/http/response"
	"github.com/bioopay/backend/internal/lib/sl"
	"github.com/bioopay/backend/internal/models"
)

// Service описывает интерфейс бизнес-логики регистрации и входа.
type Service interface {
	SendCode(ctx context.Context, req models.DummySendCode) error
	VerifyEmail(ctx context.Context, email, code string) error
	Register(ctx context.Context, email string) (*models.User, error)
	Login(ctx context.Context, identifier, password string) (string, *models.User, error)
}

// Handler обрабатывает запросы регистрации и авторизации.
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

// SendCode godoc
// @Summary Запрос кода подтверждения
// @Description Сохраняет данные регистрации и отправляет шестизначный код на email.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.DummySendCode true "Данные регистрации"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "Пользователь уже существует"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/send-code [post]
func (h *Handler) SendCode(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.SendCode"
	log := request.Logger(h.log, r, op)

	var req models.DummySendCode
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	if err := h.service.SendCode(r.Context(), req); err != nil {
		log.Error("failed to send verification code", sl.Err(err))
		response.Fail(w, r, err, "could not send verification code")
		return
	}

	log.Info("verification code sent", slog.String("email", req.Email))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "verification code sent",
	}))
}

// VerifyEmail godoc
// @Summary Подтверждение email
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.DummyVerify true "Email и код"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Неверный или просроченный код"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /auth/verify-email [post]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.VerifyEmail"
	log := request.Logger(h.log, r, op)

	var req models.DummyVerify
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	if err := h.service.VerifyEmail(r.Context(), req.Email, req.Code); err != nil {
		log.Error("failed to verify email", sl.Err(err))
		response.Fail(w, r, err, "could not verify email")
		return
	}

	log.Info("email verified", slog.String("email", req.Email))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "email verified",
	}))
}

// Register godoc
// @Summary Завершение регистрации
// @Description Создает пользователя по подтверждённому email и выдаёт ему реферальный код.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.DummyRegister true "Подтверждённый email"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.ErrorResponse "Email не подтверждён"
// @Failure 409 {object} response.ErrorResponse "Пользователь уже существует"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Register"
	log := request.Logger(h.log, r, op)

	var req models.DummyRegister
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), req.Email)
	if err != nil {
		log.Error("failed to register user", sl.Err(err))
		response.Fail(w, r, err, "could not register user")
		return
	}

	log.Info("user registered", slog.String("user_id", user.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user": user,
	}))
}

// Login godoc
// @Summary Авторизация пользователя
// @Description Аутентифицирует пользователя по email или имени и паролю. Возвращает JWT.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.DummyLogin true "Учетные данные пользователя"
// @Success 200 {object} response.Response "Успешная авторизация"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 403 {object} response.ErrorResponse "Учетная запись заблокирована или не подтверждена"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Login"
	log := request.Logger(h.log, r, op)

	var req models.DummyLogin
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	token, user, err := h.service.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		log.Error("login failed", sl.Err(err))
		response.Fail(w, r, err, "could not login")
		return
	}

	log.Info("login success", slog.String("user_id", user.ID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"token": token,
		"user":  user,
	}))
}
