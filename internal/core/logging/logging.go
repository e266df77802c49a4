// Package logging builds the structured logger used across cepgate.
//
// Every record logged with a context that carries a correlation gets
// transaction_id and correlator_id attributes, so log lines caused by one
// inbound request can be tied together even when emitted from engine
// listeners or the action dispatcher.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/solatis/cepgate/internal/correlation"
)

// Attribute keys added by CorrelationHandler.
const (
	TransactionKey = "transaction_id"
	CorrelatorKey  = "correlator_id"
)

// New returns a logger writing to w in the given format ("json" or "text").
// Unknown formats fall back to json, the service default.
func New(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(NewCorrelationHandler(h))
}

// ParseLevel converts a level string to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CorrelationHandler decorates records with the correlation found on the
// record's context.
type CorrelationHandler struct {
	next slog.Handler
}

// NewCorrelationHandler wraps next.
func NewCorrelationHandler(next slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{next: next}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if c, ok := correlation.FromContext(ctx); ok {
		r = r.Clone()
		r.AddAttrs(
			slog.String(TransactionKey, c.TransactionID),
			slog.String(CorrelatorKey, c.CorrelatorID),
		)
	}
	return h.next.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{next: h.next.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{next: h.next.WithGroup(name)}
}
