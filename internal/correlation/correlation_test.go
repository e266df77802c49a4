package correlation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBegin(t *testing.T) {
	t.Run("inbound header becomes correlator", func(t *testing.T) {
		c := Begin("corr-123")
		assert.Equal(t, "corr-123", c.CorrelatorID)
		assert.NotEmpty(t, c.TransactionID)
		assert.NotEqual(t, c.TransactionID, c.CorrelatorID)
	})

	t.Run("missing header generates correlator", func(t *testing.T) {
		c := Begin("")
		assert.NotEmpty(t, c.CorrelatorID)
		assert.NotEmpty(t, c.TransactionID)
		assert.NotEqual(t, c.TransactionID, c.CorrelatorID)
	})

	t.Run("transaction id never reused", func(t *testing.T) {
		a := Begin("same")
		b := Begin("same")
		assert.NotEqual(t, a.TransactionID, b.TransactionID)
		assert.Equal(t, a.CorrelatorID, b.CorrelatorID)
	})
}

func TestBegin_PropertyHeaderPreserved(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("non-empty header is always the correlator", prop.ForAll(
		func(h string) bool {
			c := Begin(h)
			return c.CorrelatorID == h && c.TransactionID != "" && c.TransactionID != h
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.Property("generated correlator differs from transaction", prop.ForAll(
		func(_ int) bool {
			c := Begin("")
			return c.CorrelatorID != "" && c.CorrelatorID != c.TransactionID
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}

func TestFromContext(t *testing.T) {
	t.Run("absent before begin", func(t *testing.T) {
		_, ok := FromContext(context.Background())
		assert.False(t, ok)
		assert.Empty(t, CorrelatorFromContext(context.Background()))
	})

	t.Run("round trip", func(t *testing.T) {
		c := Begin("abc")
		got, ok := FromContext(NewContext(context.Background(), c))
		require.True(t, ok)
		assert.Equal(t, c, got)
	})
}

func TestDetach(t *testing.T) {
	t.Run("carries correlation past cancellation", func(t *testing.T) {
		c := Begin("abc")
		ctx, cancel := context.WithCancel(NewContext(context.Background(), c))
		detached := Detach(ctx)
		cancel()

		assert.NoError(t, detached.Err())
		got, ok := FromContext(detached)
		require.True(t, ok)
		assert.Equal(t, c, got)
	})

	t.Run("no correlation stays absent", func(t *testing.T) {
		_, ok := FromContext(Detach(context.Background()))
		assert.False(t, ok)
	})
}

func TestMiddleware(t *testing.T) {
	var seen Context
	handler := Middleware("Fiware-Correlator")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		seen, ok = FromContext(r.Context())
		require.True(t, ok)
	}))

	t.Run("uses inbound header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/events", nil)
		req.Header.Set("Fiware-Correlator", "inbound-1")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, "inbound-1", seen.CorrelatorID)
		assert.Equal(t, "inbound-1", rec.Header().Get("Fiware-Correlator"))
	})

	t.Run("generates when absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/events", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.NotEmpty(t, seen.CorrelatorID)
		assert.NotEqual(t, seen.TransactionID, seen.CorrelatorID)
		assert.Equal(t, seen.CorrelatorID, rec.Header().Get("Fiware-Correlator"))
	})

	t.Run("empty header name falls back to default", func(t *testing.T) {
		h := Middleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(DefaultHeader, "x")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, "x", rec.Header().Get(DefaultHeader))
	})
}
