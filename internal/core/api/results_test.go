package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/cepgate/internal/core/action"
	"github.com/solatis/cepgate/internal/core/logging"
	"github.com/solatis/cepgate/internal/core/metrics"
	"github.com/solatis/cepgate/internal/engine"
)

// stubResult exposes fixed properties; names in errs fail on Get.
type stubResult struct {
	names  []string
	values map[string]any
	errs   map[string]error
}

func (r stubResult) PropertyNames() []string { return r.names }

func (r stubResult) Get(name string) (any, error) {
	if err, ok := r.errs[name]; ok {
		return nil, err
	}
	return r.values[name], nil
}

func TestResultHandler(t *testing.T) {
	t.Run("without action URL results are only logged", func(t *testing.T) {
		var buf bytes.Buffer
		h := NewResultHandler(nil, "", logging.New("info", "json", &buf))

		before := testutil.ToFloat64(metrics.EngineResultsTotal)
		h.Handle(context.Background(), []engine.Result{
			stubResult{names: []string{"id"}, values: map[string]any{"id": "e1"}},
		})

		assert.Equal(t, before+1, testutil.ToFloat64(metrics.EngineResultsTotal))
		assert.Contains(t, buf.String(), `"msg":"engine result"`)
		assert.Contains(t, buf.String(), `"id":"e1"`)
	})

	t.Run("each result is posted", func(t *testing.T) {
		var hits atomic.Int32
		target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		}))
		defer target.Close()

		var buf bytes.Buffer
		logger := logging.New("info", "json", &buf)
		h := NewResultHandler(action.NewDispatcher(action.WithLogger(logger)), target.URL, logger)

		h.Handle(context.Background(), []engine.Result{
			stubResult{names: []string{"id"}, values: map[string]any{"id": "e1"}},
			stubResult{names: []string{"id"}, values: map[string]any{"id": "e2"}},
		})

		assert.Equal(t, int32(2), hits.Load())
	})

	t.Run("property failures are counted and still posted", func(t *testing.T) {
		var hits atomic.Int32
		target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		}))
		defer target.Close()

		var buf bytes.Buffer
		logger := logging.New("info", "json", &buf)
		h := NewResultHandler(action.NewDispatcher(action.WithLogger(logger)), target.URL, logger)

		before := testutil.ToFloat64(metrics.EncodeErrorsTotal)
		h.Handle(context.Background(), []engine.Result{
			stubResult{
				names:  []string{"id", "broken"},
				values: map[string]any{"id": "e1"},
				errs:   map[string]error{"broken": errors.New("no such property")},
			},
		})

		assert.Equal(t, before+1, testutil.ToFloat64(metrics.EncodeErrorsTotal))
		assert.Equal(t, int32(1), hits.Load())
		assert.Contains(t, buf.String(), "engine result has unencodable properties")
	})

	t.Run("cancel aborts a dispatch to a hung target", func(t *testing.T) {
		received := make(chan struct{}, 1)
		unblock := make(chan struct{})
		target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received <- struct{}{}
			select {
			case <-unblock:
			case <-r.Context().Done():
			}
		}))
		defer target.Close()
		defer close(unblock)

		var buf bytes.Buffer
		logger := logging.New("info", "json", &buf)
		h := NewResultHandler(action.NewDispatcher(action.WithLogger(logger)), target.URL, logger)

		done := make(chan struct{})
		go func() {
			defer close(done)
			h.Handle(context.Background(), []engine.Result{
				stubResult{names: []string{"id"}, values: map[string]any{"id": "e1"}},
				stubResult{names: []string{"id"}, values: map[string]any{"id": "e2"}},
			})
		}()

		select {
		case <-received:
		case <-time.After(5 * time.Second):
			t.Fatal("target never received the dispatch")
		}
		h.Cancel()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Handle still blocked after Cancel")
		}
		assert.Contains(t, buf.String(), "action dispatch failed")
		assert.Contains(t, buf.String(), "engine results dropped")
		require.Len(t, received, 0, "second result is not dispatched")
	})
}
