package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// HTTPServer manages the HTTP server lifecycle.
type HTTPServer struct {
	server   *http.Server
	listener net.Listener
}

// NewHTTPServer creates an HTTP server serving handler on addr.
func NewHTTPServer(addr string, handler http.Handler, readTimeout time.Duration) (*HTTPServer, error) {
	if addr == "" {
		return nil, fmt.Errorf("addr cannot be empty")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: readTimeout,
		},
	}, nil
}

// Listen binds the listener without serving. Addr is valid afterwards.
func (s *HTTPServer) Listen() error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.server.Addr, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *HTTPServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Start binds the listener if needed and serves HTTP requests.
// Blocks until Shutdown is called; a clean shutdown returns nil. Request
// contexts are not derived from ctx so in-flight requests survive the
// shutdown signal until Shutdown's grace period ends.
func (s *HTTPServer) Start(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops server with 30-second timeout.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownGrace)
		defer cancel()
	}

	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed, forced close: %w", err)
	}
	return nil
}
