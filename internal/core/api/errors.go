package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/solatis/cepgate/internal/types"
)

// errBadRequest marks malformed request input outside the document itself.
var errBadRequest = errors.New("bad request")

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// statusFor maps domain errors to HTTP status codes.
// Validation errors map to 400, a released engine to 503, everything else
// to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, types.ErrInvalidDocument),
		errors.Is(err, types.ErrSchemaMismatch),
		errors.Is(err, types.ErrUnknownEventType):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrUnknownStatement),
		errors.Is(err, types.ErrDispatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrScopeDestroyed),
		errors.Is(err, types.ErrProviderClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   err.Error(),
		Instance: r.URL.String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
