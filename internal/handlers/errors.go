package handlers

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"familybudget/internal/service"
	"familybudget/internal/validation"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusFor maps a service error kind to its HTTP status. Anything that
// carries no kind is an internal failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondWithError(w http.ResponseWriter, r *http.Request, logger *logrus.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).WithError(err).Error("request failed")
		respondJSON(w, logger, status, errorBody{Error: "internal server error"})
		return
	}

	body := errorBody{Error: err.Error()}
	var verr validation.ValidationError
	if errors.As(err, &verr) {
		body.Error = verr.Message
		body.Field = verr.Field
	}
	respondJSON(w, logger, status, body)
}

func respondBadRequest(w http.ResponseWriter, logger *logrus.Logger, message string) {
	respondJSON(w, logger, http.StatusBadRequest, errorBody{Error: message})
}
