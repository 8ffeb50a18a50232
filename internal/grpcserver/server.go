// Package grpcserver exposes the standard grpc.health.v1 service.
//
// The overall status follows the last finished pipeline run: SERVING after a
// success, NOT_SERVING after a failure. Before the first run finishes the
// service reports SERVING so orchestrators do not kill a fresh process.
package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ned0ra/diplom/internal/runstate"
)

// Service is the name reported for the pipeline in addition to the
// overall "" service.
const Service = "vacancy-sync"

// Server owns the gRPC listener and the health state.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    *zap.Logger
}

// NewServer registers the health service and subscribes it to tracker.
func NewServer(tracker *runstate.Tracker, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		log:    log,
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s.grpc, s.health)

	if tracker != nil {
		tracker.OnFinish(s.observe)
	}
	return s
}

// Health returns the health implementation, for in-process checks.
func (s *Server) Health() healthpb.HealthServer { return s.health }

// Serve listens on addr until Stop is called.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	s.log.Info("grpc listening", zap.String("addr", addr))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks every service NOT_SERVING and drains open calls.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}

func (s *Server) observe(run runstate.Run) {
	st := healthpb.HealthCheckResponse_SERVING
	if run.State == runstate.StateFailed {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.log.Debug("health status", zap.String("run_id", run.ID), zap.String("status", st.String()))
	s.setStatus(st)
}

func (s *Server) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(Service, st)
}
