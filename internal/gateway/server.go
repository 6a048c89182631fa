// Package gateway implements the HTTP proxy that fronts the subscription
// backend for browser and CLI clients. It answers CORS preflights itself,
// forwards everything else and turns the profile redirect into a readable
// response.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server is the proxy gateway.
type Server struct {
	cfg     Config
	handler http.Handler
	logger  *slog.Logger
}

// NewServer validates cfg and builds the gateway handler.
func NewServer(cfg Config, logger *slog.Logger) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	lg := logger.With("component", "gateway")

	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse upstream: %w", err)
	}

	return &Server{
		cfg:     cfg,
		handler: otelhttp.NewHandler(newRouter(cfg, upstream, lg), "wirepass-gateway"),
		logger:  lg,
	}, nil
}

// Handler returns the gateway's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("gateway: listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// It returns ctx.Err() after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.handler}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("gateway started",
		"listen", ln.Addr().String(),
		"upstream", s.cfg.UpstreamURL,
		"network", s.cfg.Network,
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway: serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("gateway shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("graceful shutdown incomplete", "error", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("serve error", "error", err)
	}

	s.logger.Info("gateway stopped")
	return ctx.Err()
}
