package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/cepgate/internal/core/action"
	"github.com/solatis/cepgate/internal/core/api"
	"github.com/solatis/cepgate/internal/core/config"
	"github.com/solatis/cepgate/internal/core/server"
	"github.com/solatis/cepgate/internal/engine"
	"github.com/solatis/cepgate/internal/engine/memory"
	"github.com/solatis/cepgate/internal/types"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestMigrateCommands(t *testing.T) {
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "journal.db")

	out := execute(t, "migrate", "--db-url", dbURL, "--log-level", "error")
	assert.Contains(t, out, "applied 1 migration(s)")

	out = execute(t, "migrate", "--db-url", dbURL, "--log-level", "error")
	assert.Contains(t, out, "database is up to date")

	out = execute(t, "migrate", "status", "--db-url", dbURL, "--log-level", "error")
	assert.Contains(t, out, "001_initial_schema.sql")
	assert.Contains(t, out, "applied")
}

func TestLoadStatements(t *testing.T) {
	t.Run("configured statements are registered", func(t *testing.T) {
		cfg := config.DefaultServiceConfig()
		cfg.Statements = []config.StatementConfig{
			{Name: "alarms", EventType: types.EventTypeName, Filter: map[string]any{"type": "alarm"}},
		}
		scope := engine.NewScope(memory.Factory(loadStatements(cfg)))
		defer scope.Release()

		p, err := scope.Acquire()
		require.NoError(t, err)
		st, ok := p.Statement("alarms")
		require.True(t, ok)
		assert.Equal(t, engine.StatementStarted, st.State)
	})

	t.Run("statement over unknown event type fails provisioning", func(t *testing.T) {
		cfg := config.DefaultServiceConfig()
		cfg.Statements = []config.StatementConfig{{Name: "p", EventType: "parkingEvent"}}
		scope := engine.NewScope(memory.Factory(loadStatements(cfg)))

		_, err := scope.Acquire()
		require.ErrorIs(t, err, types.ErrUnknownEventType)
		assert.Contains(t, err.Error(), "statement p")
	})
}

func TestShutdown_HungActionTarget(t *testing.T) {
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

	cfg := config.DefaultServiceConfig()
	cfg.ActionURL = target.URL
	cfg.ShutdownTimeout = 200 * time.Millisecond
	cfg.Statements = []config.StatementConfig{
		{Name: "alarms", EventType: types.EventTypeName, Filter: map[string]any{"type": "alarm"}},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	results := api.NewResultHandler(action.NewDispatcher(action.WithLogger(logger)), cfg.ActionURL, logger)
	scope := engine.NewScope(memory.Factory(loadStatements(cfg)), engine.WithOnProvisioned(results.Attach))
	httpServer, err := server.NewHTTPServer("127.0.0.1:0", http.NotFoundHandler(), time.Second)
	require.NoError(t, err)
	grpcServer, err := server.NewGRPCServer("127.0.0.1:0")
	require.NoError(t, err)

	p, err := scope.Acquire()
	require.NoError(t, err)
	require.NoError(t, p.SendEvent(context.Background(), types.EventTypeName, map[string]any{
		"id": "e1", "type": "alarm", "service": "smartcity", "subservice": "/parking",
	}))
	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("action target never received the result")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = shutdown(logger, cfg, httpServer, grpcServer, scope, results, nil)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown blocked past the shutdown timeout")
	}
	assert.Equal(t, engine.Destroyed, scope.State())
}
