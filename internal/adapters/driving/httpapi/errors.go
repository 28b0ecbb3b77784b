package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/logger"
)

// errUnavailable reports a route whose service is not configured.
var errUnavailable = errors.New("service not configured")

type errorBody struct {
	Error string `json:"error"`
	Class string `json:"class,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch domain.Class(err) {
	case domain.ErrValidation:
		return http.StatusBadRequest
	case domain.ErrTranslation:
		return http.StatusUnprocessableEntity
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrRetrieval:
		return http.StatusServiceUnavailable
	case domain.ErrGeneration:
		return http.StatusBadGateway
	}
	if errors.Is(err, errUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func className(err error) string {
	if c := domain.Class(err); c != nil {
		return c.Error()
	}
	return ""
}

// errorResponse maps err to a status and body. Unclassified errors are
// logged and answered with a generic message.
func errorResponse(err error) (int, errorBody) {
	status := statusFor(err)
	body := errorBody{Error: err.Error(), Class: className(err)}
	if status == http.StatusInternalServerError {
		logger.Error("request failed: %v", err)
		body.Error = http.StatusText(status)
	}
	return status, body
}

func writeError(w http.ResponseWriter, err error) {
	status, body := errorResponse(err)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("write response: %v", err)
	}
}

// maxBody bounds request bodies.
const maxBody = 1 << 20

// decode reads a JSON body into v, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrValidation, err)
	}
	return nil
}
