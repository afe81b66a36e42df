// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков: успешных ответов, ошибок
// и сообщений валидации в едином формате.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/bioopay/backend/internal/models"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status - статус запроса ("OK" или "Error").
// Поле Error - текст ошибки (опционально, при неуспехе).
// Поле Data - данные ответа (опционально).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse - структура ошибки для Swagger-документации.
// Используется в аннотациях @Failure как возвращаемый тип ошибки.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

const (
	// StatusOK - значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError - значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// PayoutFailure возвращает ответ об откате активации вместе с отчётом по уровням цепочки.
func PayoutFailure(e *models.PayoutError) Response {
	return Response{
		Status: StatusError,
		Error:  "commission payout failed, activation rolled back",
		Data:   map[string]any{"payout": e.Payout},
	}
}

// FromError подбирает HTTP-статус и безопасный текст для доменной ошибки.
// Текст внутренних ошибок наружу не отдаётся, вместо него используется fallback.
func FromError(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, models.ErrAlreadyActive):
		return http.StatusConflict, "deposit already active"
	case errors.Is(err, models.ErrCycleDetected):
		return http.StatusConflict, "referral cycle detected"
	case errors.Is(err, models.ErrAlreadyExists):
		return http.StatusConflict, "already exists"
	case errors.Is(err, models.ErrInvalidState):
		return http.StatusConflict, "operation not allowed in current state"
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusBadRequest, "insufficient funds"
	case errors.Is(err, models.ErrNoActivePlan):
		return http.StatusBadRequest, "no active plan"
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, models.ErrInvalidCode):
		return http.StatusBadRequest, "invalid or expired verification code"
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, models.ErrNotVerified):
		return http.StatusForbidden, "email not verified"
	case errors.Is(err, models.ErrAccountBlocked):
		return http.StatusForbidden, "account blocked"
	default:
		return http.StatusInternalServerError, fallback
	}
}

// Fail пишет ответ с ошибкой, подобрав HTTP-статус по доменной ошибке.
func Fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var payoutErr *models.PayoutError
	if errors.As(err, &payoutErr) {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, PayoutFailure(payoutErr))
		return
	}
	code, msg := FromError(err, fallback)
	render.Status(r, code)
	render.JSON(w, r, Error(msg))
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "alphanum":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only numbers and letters", err.Field()))
		case "numeric":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only numbers", err.Field()))
		case "uuid":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only uuid", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param()))
		case "min", "gte", "gt":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is too small", err.Field()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is too long", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}
