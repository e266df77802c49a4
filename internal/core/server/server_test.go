package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/solatis/cepgate/internal/engine"
	"github.com/solatis/cepgate/internal/engine/memory"
)

func TestHTTPServer(t *testing.T) {
	_, err := NewHTTPServer("", http.NotFoundHandler(), time.Second)
	require.Error(t, err)
	_, err = NewHTTPServer("127.0.0.1:0", nil, time.Second)
	require.Error(t, err)

	srv, err := NewHTTPServer("127.0.0.1:0", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	}), time.Second)
	require.NoError(t, err)
	require.NoError(t, srv.Listen())

	done := make(chan error, 1)
	go func() { done <- srv.Start(context.Background()) }()

	resp, err := http.Get("http://" + srv.Addr() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-done, "clean shutdown is not an error")
}

func TestGRPCServer_HealthFollowsEngineScope(t *testing.T) {
	srv, err := NewGRPCServer("127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, srv.Listen())
	go func() { _ = srv.Start(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := grpc_health_v1.NewHealthClient(conn)

	check := func(service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		return resp.GetStatus()
	}

	scope := engine.NewScope(memory.Factory(nil),
		engine.WithOnProvisioned(func(engine.Provider) { srv.EngineProvisioned() }),
		engine.WithOnReleased(srv.EngineReleased),
	)

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(""))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(EngineService))

	_, err = scope.Acquire()
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(""))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(EngineService))

	require.NoError(t, scope.Release())
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(EngineService))
}

func TestNewGRPCServer_RequiresAddr(t *testing.T) {
	_, err := NewGRPCServer("")
	assert.Error(t, err)
}
