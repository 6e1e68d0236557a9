// Package grpchealth serves the standard gRPC health protocol for the prompt runner.
package grpchealth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ServiceName is the health service name reported alongside the overall "" status.
const ServiceName = "promptrunner.Executor"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds configuration for the health server.
type Config struct {
	// Interval between dependency checks.
	Interval time.Duration
	// PingTimeout bounds a single check.
	PingTimeout time.Duration
	Logger      *slog.Logger
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Second,
		PingTimeout: 3 * time.Second,
	}
}

// Server is a gRPC server exposing grpc.health.v1.
type Server struct {
	cfg    Config
	pinger Pinger // nil means no dependency to check
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// New creates a health server. A nil pinger keeps the status SERVING.
func New(pinger Pinger, cfg Config) *Server {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	gs := grpc.NewServer(grpc.KeepaliveParams(keepalive.ServerParameters{
		Time:    30 * time.Second,
		Timeout: 10 * time.Second,
	}))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{cfg: cfg, pinger: pinger, grpc: gs, health: hs, logger: logger}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return s
}

// Refresh checks the dependency once and updates the served status.
func (s *Server) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, s.cfg.PingTimeout)
		err := s.pinger.Ping(pingCtx)
		cancel()
		if err != nil {
			s.logger.Warn("Health dependency check failed", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.setStatus(status)
	return status
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve refreshes the status periodically and serves on lis until ctx is
// cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Refresh(ctx)

	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Refresh(ctx)
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve grpc health: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.logger.Info("gRPC health server listening", "addr", lis.Addr().String())
	return s.Serve(ctx, lis)
}

// Stop marks every service NOT_SERVING and stops the server gracefully.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
