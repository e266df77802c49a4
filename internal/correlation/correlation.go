// Package correlation threads per-request transaction and correlator
// identifiers through all processing triggered by an inbound request.
//
// Identifiers travel on context.Context rather than goroutine-local state.
// Asynchronous continuations (engine listeners) receive the correlation via
// Detach, so attribution survives worker pools and callback reentry.
package correlation

import (
	"context"
	"net/http"

	"github.com/solatis/cepgate/internal/types"
)

// DefaultHeader carries the correlator between cooperating services.
const DefaultHeader = "Fiware-Correlator"

// Context identifies one unit of work.
// TransactionID is unique to the inbound request; CorrelatorID is shared by
// every system taking part in the same business transaction.
type Context struct {
	TransactionID string
	CorrelatorID  string
}

// contextKey is a typed key for context values to avoid collisions.
type contextKey struct{}

// Begin starts a unit of work for an inbound request.
// A transaction id is always generated. The correlator is the inbound header
// value when non-empty, otherwise a freshly generated id.
func Begin(inboundHeaderValue string) Context {
	c := Context{
		TransactionID: types.NewTransactionID(),
		CorrelatorID:  inboundHeaderValue,
	}
	if c.CorrelatorID == "" {
		c.CorrelatorID = types.NewCorrelatorID()
	}
	return c
}

// NewContext returns a copy of ctx carrying c.
func NewContext(ctx context.Context, c Context) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the correlation attached to ctx.
// ok is false when Begin was never attached for this unit of work; callers
// must not substitute a default.
func FromContext(ctx context.Context) (Context, bool) {
	if ctx == nil {
		return Context{}, false
	}
	c, ok := ctx.Value(contextKey{}).(Context)
	return c, ok
}

// CorrelatorFromContext extracts the correlator id from ctx.
// Returns empty string if not found.
func CorrelatorFromContext(ctx context.Context) string {
	c, _ := FromContext(ctx)
	return c.CorrelatorID
}

// Detach returns a background context carrying only the correlation of ctx.
// Use it when handing work to a continuation that outlives the request, so
// request cancellation does not reach the continuation but attribution does.
func Detach(ctx context.Context) context.Context {
	detached := context.Background()
	if c, ok := FromContext(ctx); ok {
		detached = NewContext(detached, c)
	}
	return detached
}

// Middleware returns HTTP middleware that begins a unit of work per request.
// The correlator is read from header and echoed on the response so callers
// can find their request in our logs.
func Middleware(header string) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := Begin(r.Header.Get(header))
			w.Header().Set(header, c.CorrelatorID)
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), c)))
		})
	}
}
