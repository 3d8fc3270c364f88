// Package health exposes the standard gRPC health service so orchestrators
// can check the chat proxy without going through HTTP.
package health

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

// ChatServiceName is the service name reported alongside the overall status.
const ChatServiceName = "shikshaq.chat"

const defaultCheckInterval = 15 * time.Second

// Check reports nil when the service is able to answer chat requests.
type Check func(ctx context.Context) error

// Server serves grpc.health.v1 and refreshes its status on an interval.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	check    Check
	interval time.Duration
	logger   *slog.Logger
}

// NewServer creates a health server. The status starts as NOT_SERVING until
// the first check runs.
func NewServer(check Check, interval time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	gs := grpc.NewServer(grpc.KeepaliveParams(keepalive.ServerParameters{
		MaxConnectionIdle: 5 * time.Minute,
		Time:              2 * time.Minute,
		Timeout:           10 * time.Second,
	}))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{
		grpc:     gs,
		health:   hs,
		check:    check,
		interval: interval,
		logger:   logger,
	}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is cancelled, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go s.watch(ctx)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.health.Shutdown()
		s.grpc.GracefulStop()
	}()

	s.logger.Info("gRPC health server listening", "addr", lis.Addr().String())
	err := s.grpc.Serve(lis)
	<-stopped
	if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC health: %w", err)
	}
	return nil
}

func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Evaluate(ctx)
	for {
		select {
		case <-ticker.C:
			s.Evaluate(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Evaluate runs the check once and publishes the result.
func (s *Server) Evaluate(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.check(checkCtx); err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("Health check failed", "error", err)
		}
		s.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.set(healthpb.HealthCheckResponse_SERVING)
}

func (s *Server) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ChatServiceName, status)
}
