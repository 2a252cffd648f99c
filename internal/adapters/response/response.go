// Package response writes JSON bodies and maps domain errors to HTTP statuses.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
)

type ErrorBody struct {
	Message string `json:"message"`
}

func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorBody{Message: msg})
}

// StatusFor returns the HTTP status for err and whether its message is safe to expose.
func StatusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrIncorrectPassword):
		return http.StatusBadRequest, true
	case errors.Is(err, domain.ErrAuthenticationRequired),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, true
	case errors.Is(err, domain.ErrAuthorizationDenied):
		return http.StatusForbidden, true
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, domain.ErrDuplicateIdentity),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict, true
	default:
		return http.StatusInternalServerError, false
	}
}

// FromError writes err as a JSON error. Internal errors are logged and
// replaced with a generic message.
func FromError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, public := StatusFor(err)
	if !public {
		if logger != nil {
			logger.Error("internal error", zap.Error(err))
		}
		Error(w, status, "internal server error")
		return
	}
	Error(w, status, err.Error())
}
