package handler

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/aidar/taskhub/internal/domain"
)

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail содержит код и описание ошибки
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondWithError отправляет ответ с ошибкой
func RespondWithError(w http.ResponseWriter, r *http.Request, statusCode int, code domain.ErrorCode, message string) {
	render.Status(r, statusCode)
	render.JSON(w, r, ErrorResponse{
		Error: ErrorDetail{
			Code:    string(code),
			Message: message,
		},
	})
}

// HandleError преобразует доменные ошибки в HTTP ответы.
// Текст непредвиденных ошибок не отдается клиенту, а только логируется
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.MapErrorToCode(err)

	switch code {
	case domain.CodeValidation:
		RespondWithError(w, r, http.StatusBadRequest, code, err.Error())
	case domain.CodeUnauthorized:
		RespondWithError(w, r, http.StatusUnauthorized, code, err.Error())
	case domain.CodeForbidden:
		RespondWithError(w, r, http.StatusForbidden, code, err.Error())
	case domain.CodeNotFound:
		RespondWithError(w, r, http.StatusNotFound, code, err.Error())
	case domain.CodeConflict:
		RespondWithError(w, r, http.StatusConflict, code, err.Error())
	default:
		zap.L().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		RespondWithError(w, r, http.StatusInternalServerError, domain.CodeInternal, "internal server error")
	}
}
