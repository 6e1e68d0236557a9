package grpchealth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type fakePinger struct {
	fail atomic.Bool
}

func (p *fakePinger) Ping(context.Context) error {
	if p.fail.Load() {
		return errors.New("database is closed")
	}
	return nil
}

func quietConfig() Config {
	return Config{Interval: time.Hour, PingTimeout: time.Second, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestRefreshTracksPinger(t *testing.T) {
	p := &fakePinger{}
	s := New(p, quietConfig())

	if got := s.Refresh(context.Background()); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", got)
	}
	p.fail.Store(true)
	if got := s.Refresh(context.Background()); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", got)
	}
}

func TestRefreshWithoutPinger(t *testing.T) {
	s := New(nil, quietConfig())
	if got := s.Refresh(context.Background()); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", got)
	}
}

func TestServeAnswersHealthChecks(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	p := &fakePinger{}
	p.fail.Store(true)
	s := New(p, quietConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	checkCtx, checkCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer checkCancel()

	resp, err := healthpb.NewHealthClient(conn).Check(checkCtx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", resp.GetStatus())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
