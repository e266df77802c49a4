// Package api provides the HTTP surface of the event gateway.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solatis/cepgate/internal/core/action"
	"github.com/solatis/cepgate/internal/core/config"
	"github.com/solatis/cepgate/internal/correlation"
	"github.com/solatis/cepgate/internal/engine"
)

// JournalReader lists recorded action dispatches.
// Implemented by *db.Journal.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]action.Record, error)
	ByCorrelator(ctx context.Context, correlatorID string) ([]action.Record, error)
	Get(ctx context.Context, id string) (action.Record, error)
}

// Service serves inbound events and engine introspection.
// Thin orchestration layer delegating to engine, codec and db packages.
type Service struct {
	scope   *engine.Scope
	journal JournalReader
	cfg     *config.ServiceConfig
	logger  *slog.Logger
}

// NewService creates service instance with dependencies.
func NewService(scope *engine.Scope, journal JournalReader, cfg *config.ServiceConfig, logger *slog.Logger) (*Service, error) {
	if scope == nil {
		return nil, fmt.Errorf("scope cannot be nil")
	}
	if journal == nil {
		return nil, fmt.Errorf("journal cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		scope:   scope,
		journal: journal,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Router returns the HTTP handler for every route. Each request runs inside
// its own correlation unit of work.
func (s *Service) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(mux.MiddlewareFunc(correlation.Middleware(s.cfg.CorrelatorHeader)))
	r.Use(s.observe)

	r.HandleFunc("/events", s.handleEvents).Methods(http.MethodPost)
	r.HandleFunc("/statements", s.handleStatements).Methods(http.MethodGet)
	r.HandleFunc("/statements/{name}", s.handleStatement).Methods(http.MethodGet)
	r.HandleFunc("/actions/journal", s.handleJournal).Methods(http.MethodGet)
	r.HandleFunc("/actions/journal/{id}", s.handleDispatch).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

// provider acquires the engine, provisioning it on first use.
func (s *Service) provider() (engine.Provider, error) {
	return s.scope.Acquire()
}
