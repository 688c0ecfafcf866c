package apperr

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
)

type errorDTO struct {
	Error      string      `json:"error"`
	Violations []Violation `json:"violations,omitempty"`
	RolledBack *bool       `json:"rolledBack,omitempty"`
}

// HTTPStatus maps an error of the taxonomy to a response status.
func HTTPStatus(err error) int {
	var shapeErr *ShapeError
	var partialErr *PartialFailureError
	switch {
	case errors.As(err, &shapeErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &partialErr):
		return http.StatusInternalServerError
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrState):
		return http.StatusConflict
	case errors.Is(err, ErrConflict):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrPlanLimit):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON body with the status from HTTPStatus.
func WriteError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("request failed: %v", err)
	}

	body := errorDTO{Error: err.Error()}
	var shapeErr *ShapeError
	if errors.As(err, &shapeErr) {
		body.Violations = shapeErr.Violations
	}
	var partialErr *PartialFailureError
	if errors.As(err, &partialErr) {
		rolledBack := partialErr.RolledBack()
		body.RolledBack = &rolledBack
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to encode error response: %v", err)
	}
}
