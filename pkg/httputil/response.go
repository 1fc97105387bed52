package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/lifedash-auth/pkg/errors"
	"github.com/utafrali/lifedash-auth/pkg/logger"
	"github.com/utafrali/lifedash-auth/pkg/validator"
)

// Response is the JSON envelope returned by every endpoint.
type Response struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Code    string            `json:"code,omitempty"`
	Data    any               `json:"data,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Response{Success: true, Message: message, Data: data})
}

// WriteFailure writes a failure envelope with a machine-readable code.
func WriteFailure(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, Response{Success: false, Code: code, Message: message})
}

// WriteError converts err into a failure envelope. AppErrors keep their own
// status, code and message; bare sentinels map to generic messages; anything
// else becomes a 500 whose cause is logged but never returned. The
// request-scoped logger from context is preferred over fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := apperrors.MsgInternal

	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		code, message = appErr.Code, appErr.Message
	case errors.Is(err, apperrors.ErrNotFound):
		code, message = "NOT_FOUND", "Resource not found"
	case errors.Is(err, apperrors.ErrAlreadyExists):
		code, message = "ALREADY_EXISTS", "Resource already exists"
	case errors.Is(err, apperrors.ErrInvalidInput):
		code, message = "INVALID_INPUT", err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		code, message = "UNAUTHORIZED", "Unauthorized"
	case errors.Is(err, apperrors.ErrForbidden):
		code, message = "FORBIDDEN", "Forbidden"
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		code, message = "INTERNAL_ERROR", apperrors.MsgInternal
	}

	WriteFailure(w, status, code, message)
}

// WriteValidationError writes a 400 for request decoding or validation failures.
// Field-level messages are included when err is a *validator.ValidationError.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Code:    "VALIDATION_ERROR",
			Message: "Request validation failed",
			Fields:  valErr.Fields(),
		})
		return
	}

	WriteFailure(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body")
}
