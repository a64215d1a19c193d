package api

import (
	"errors"
	"net/http"
)

// ErrorType is the machine-readable error classification surfaced to API
// callers.
type ErrorType string

const (
	TypeValidationError ErrorType = "validation_error"
	TypeQuotaExceeded   ErrorType = "quota_exceeded"
	TypeForbidden       ErrorType = "forbidden"
	TypeServerError     ErrorType = "server_error"
	TypeNotFound        ErrorType = "not_found"
	TypeNotAuthorized   ErrorType = "not_authorized"
)

type AppError struct {
	Code    int       `json:"-"`
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest         = &AppError{Code: http.StatusBadRequest, Type: TypeValidationError, Message: "bad request"}
	ErrUnauthorized       = &AppError{Code: http.StatusUnauthorized, Type: TypeNotAuthorized, Message: "unauthorized"}
	ErrForbidden          = &AppError{Code: http.StatusForbidden, Type: TypeForbidden, Message: "forbidden"}
	ErrNotFound           = &AppError{Code: http.StatusNotFound, Type: TypeNotFound, Message: "not found"}
	ErrInternalServer     = &AppError{Code: http.StatusInternalServerError, Type: TypeServerError, Message: "internal server error"}
	ErrInvalidCredentials = &AppError{Code: http.StatusUnauthorized, Type: TypeNotAuthorized, Message: "invalid email or password"}
	ErrEmailAlreadyExists = &AppError{Code: http.StatusConflict, Type: TypeValidationError, Message: "email already registered"}
	ErrInvalidToken       = &AppError{Code: http.StatusUnauthorized, Type: TypeNotAuthorized, Message: "invalid or expired token"}
)

func NewValidationError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Type: TypeValidationError, Message: msg}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Type: TypeNotFound, Message: msg}
}

func NewForbiddenError(msg string) *AppError {
	return &AppError{Code: http.StatusForbidden, Type: TypeForbidden, Message: msg}
}

func NewServerError(msg string) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Type: TypeServerError, Message: msg}
}

// NewQuotaExceededError carries the exhausted window ("daily" or "monthly")
// and the counters observed at admission time.
func NewQuotaExceededError(scope string, used, limit int) *AppError {
	return &AppError{
		Code:    http.StatusTooManyRequests,
		Type:    TypeQuotaExceeded,
		Message: "quota exceeded",
		Details: map[string]any{"scope": scope, "used": used, "limit": limit},
	}
}

func HandleError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONError(w, appErr)
		return
	}
	JSONError(w, ErrInternalServer)
}
