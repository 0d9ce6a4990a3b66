package health

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported for the API.
const ServiceName = "university.v1.UniversityAPI"

// GRPCServer exposes grpc.health.v1 and mirrors database reachability into
// the serving status.
type GRPCServer struct {
	server *health.Server
	db     Pinger
	logger *slog.Logger
}

func NewGRPCServer(db Pinger, logger *slog.Logger) *GRPCServer {
	s := &GRPCServer{
		server: health.NewServer(),
		db:     db,
		logger: logger,
	}
	s.set(grpc_health_v1.HealthCheckResponse_SERVING)
	return s
}

// NewServer returns a gRPC server whose calls are measured on mp.
func NewServer(mp metric.MeterProvider, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.StatsHandler(otelgrpc.NewServerHandler(otelgrpc.WithMeterProvider(mp))))
	return grpc.NewServer(opts...)
}

// Register attaches the health service to srv.
func (s *GRPCServer) Register(srv *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(srv, s.server)
}

func (s *GRPCServer) Server() grpc_health_v1.HealthServer {
	return s.server
}

// Check pings the database once and updates the serving status.
func (s *GRPCServer) Check(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.WarnContext(ctx, "database ping failed", "error", err)
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	s.set(status)
	return status
}

// Watch re-checks every interval until ctx is done.
func (s *GRPCServer) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, interval/2)
			s.Check(checkCtx)
			cancel()
		}
	}
}

// Shutdown marks every service NOT_SERVING.
func (s *GRPCServer) Shutdown() {
	s.server.Shutdown()
}

func (s *GRPCServer) set(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	s.server.SetServingStatus("", status)
	s.server.SetServingStatus(ServiceName, status)
}
