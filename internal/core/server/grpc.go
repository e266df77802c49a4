// Package server provides HTTP and gRPC server lifecycle management.
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// shutdownGrace bounds graceful stop when the caller's context has no deadline.
const shutdownGrace = 30 * time.Second

// EngineService is the health service name reporting engine availability.
const EngineService = "cepgate.engine"

// GRPCServer manages the gRPC health server lifecycle.
// The overall ("") and EngineService statuses are NOT_SERVING until the
// engine is provisioned and return to NOT_SERVING once it is released.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	addr     string
}

// NewGRPCServer creates a gRPC server exposing grpc.health.v1.Health.
func NewGRPCServer(addr string) (*GRPCServer, error) {
	if addr == "" {
		return nil, fmt.Errorf("addr cannot be empty")
	}

	server := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)

	s := &GRPCServer{
		server: server,
		health: healthServer,
		addr:   addr,
	}
	s.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return s, nil
}

// EngineProvisioned marks the server SERVING. Intended for
// engine.WithOnProvisioned.
func (s *GRPCServer) EngineProvisioned() {
	s.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
}

// EngineReleased marks the server NOT_SERVING. Intended for
// engine.WithOnReleased.
func (s *GRPCServer) EngineReleased() {
	s.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}

func (s *GRPCServer) setStatus(st grpc_health_v1.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(EngineService, st)
}

// Listen binds the listener without serving. Addr is valid afterwards.
func (s *GRPCServer) Listen() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.addr, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *GRPCServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start binds the listener if needed and serves gRPC requests.
// Blocks until Shutdown is called.
func (s *GRPCServer) Start(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	return s.server.Serve(s.listener)
}

// Shutdown gracefully stops server with 30-second timeout.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownGrace):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
