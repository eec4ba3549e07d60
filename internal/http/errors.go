package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/rail-booking/internal/domain"
)

type errorBody struct {
	Error  string              `json:"error"`
	Step   string              `json:"step,omitempty"`
	Fields map[string][]string `json:"fields,omitempty"`
	Retry  bool                `json:"retry,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps a workflow error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrFetch), errors.Is(err, domain.ErrSubmission):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrReadOnly),
		errors.Is(err, domain.ErrWorkflowClosed),
		errors.Is(err, domain.ErrSubmissionInFlight),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrSerializationFailure):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func errorResponse(err error) (int, errorBody) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Step = ve.Step
		body.Fields = ve.Fields
	}
	if errors.Is(err, domain.ErrFetch) {
		body.Retry = true
	}
	if status == http.StatusInternalServerError {
		body.Error = "internal error"
	}
	return status, body
}
