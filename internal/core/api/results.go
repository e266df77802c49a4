package api

import (
	"context"
	"log/slog"

	"github.com/solatis/cepgate/internal/codec"
	"github.com/solatis/cepgate/internal/core/action"
	"github.com/solatis/cepgate/internal/core/metrics"
	"github.com/solatis/cepgate/internal/engine"
	"github.com/solatis/cepgate/internal/types"
)

// ResultHandler turns engine results into action dispatches.
type ResultHandler struct {
	dispatcher *action.Dispatcher
	actionURL  string
	logger     *slog.Logger

	// base is cancelled by Cancel; every delivery is bound to it.
	base   context.Context
	cancel context.CancelFunc
}

// NewResultHandler creates a handler posting each result document to
// actionURL. An empty actionURL only logs results.
func NewResultHandler(dispatcher *action.Dispatcher, actionURL string, logger *slog.Logger) *ResultHandler {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &ResultHandler{
		dispatcher: dispatcher,
		actionURL:  actionURL,
		logger:     logger,
		base:       base,
		cancel:     cancel,
	}
}

// Cancel aborts in-flight dispatches; later results are dropped.
func (h *ResultHandler) Cancel() {
	h.cancel()
}

// Attach subscribes the handler to p. Intended for engine.WithOnProvisioned.
func (h *ResultHandler) Attach(p engine.Provider) {
	p.Subscribe(h.Handle)
}

// Handle implements engine.Listener. ctx carries the correlation of the event
// that produced the results, so every dispatch is attributed to it.
func (h *ResultHandler) Handle(ctx context.Context, results []engine.Result) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(h.base, cancel)
	defer stop()

	for i, r := range results {
		if ctx.Err() != nil {
			h.logger.WarnContext(ctx, "engine results dropped", "count", len(results)-i, "error", ctx.Err())
			return
		}
		metrics.EngineResultsTotal.Inc()

		doc := codec.EncodeContext(ctx, r)
		if errs, ok := doc[types.FieldErrors]; ok {
			metrics.EncodeErrorsTotal.Inc()
			h.logger.WarnContext(ctx, "engine result has unencodable properties", "errors", errs)
		}

		if h.actionURL == "" || h.dispatcher == nil {
			h.logger.InfoContext(ctx, "engine result", "result", map[string]any(doc))
			continue
		}
		h.dispatcher.PostFromContext(ctx, h.actionURL, doc)
	}
}
