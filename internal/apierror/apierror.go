package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/payflowhq/payflow/database"
	"github.com/payflowhq/payflow/model"
)

type ErrorCode string

const (
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrConflict       ErrorCode = "CONFLICT"
	ErrBadRequest     ErrorCode = "BAD_REQUEST"
	ErrInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
	ErrInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	if code == ErrInternalServer {
		logrus.WithField("details", details).Error(message)
	}
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// FromError converts errors coming out of the core into an APIError.
// Internal failures never leak their message to the caller.
func FromError(err error) APIError {
	var (
		apiErr        APIError
		validationErr *model.ValidationError
		conflictErr   *model.ConflictError
		transitionErr *model.InvalidTransitionError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &validationErr):
		return NewAPIError(ErrInvalidInput, "invalid payment request", validationErr.Err)
	case errors.As(err, &conflictErr):
		return NewAPIError(ErrConflict, conflictErr.Error(), nil)
	case errors.As(err, &transitionErr):
		return NewAPIError(ErrConflict, transitionErr.Error(), nil)
	case errors.Is(err, database.ErrPaymentNotFound):
		return NewAPIError(ErrNotFound, "payment not found", nil)
	default:
		return NewAPIError(ErrInternalServer, "internal server error", err.Error())
	}
}

func MapErrorToHTTPStatus(err error) int {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrConflict:
			return http.StatusConflict
		case ErrInvalidInput, ErrBadRequest:
			return http.StatusBadRequest
		case ErrUnauthorized:
			return http.StatusUnauthorized
		case ErrRateLimited:
			return http.StatusTooManyRequests
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
