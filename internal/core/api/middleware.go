package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/solatis/cepgate/internal/core/metrics"
	"github.com/solatis/cepgate/internal/engine"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// observe logs and counts every request. Routes are labelled by template so
// statement names do not inflate metric cardinality.
func (s *Service) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()

		s.logger.DebugContext(r.Context(), "http request",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

type healthResponse struct {
	Status string `json:"status"`
	Engine string `json:"engine"`
}

// handleHealth reports liveness. It never provisions the engine.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.scope.State()
	if state == engine.Destroyed {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "shutting down", Engine: state.String()})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Engine: state.String()})
}
