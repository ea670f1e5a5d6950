package grpc

import (
	"context"
	"time"

	"github.com/fjod/go_cart/canteen/internal/logger"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is the health service key that covers the service's dependencies.
const ServiceName = "canteen"

// Dependency checks one backing store. A non-nil error marks the service NOT_SERVING.
type Dependency struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthServer struct {
	server *grpc.Server
	health *dependencyHealth
}

// NewHealthServer serves grpc.health.v1. A Check for ServiceName or for the whole server runs the
// dependency checks, each bounded by timeout, before answering.
func NewHealthServer(log zerolog.Logger, timeout time.Duration, deps ...Dependency) *HealthServer {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(loggingInterceptor(log)),
	)
	hs := &dependencyHealth{
		Server:  health.NewServer(),
		deps:    deps,
		timeout: timeout,
		log:     log,
	}
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &HealthServer{
		server: srv,
		health: hs,
	}
}

func (h *HealthServer) Server() *grpc.Server {
	return h.server
}

// dependencyHealth refreshes the stored status from the dependencies on every Check. Watch
// streams and List come from the embedded server and see the refreshed status.
type dependencyHealth struct {
	*health.Server
	deps    []Dependency
	timeout time.Duration
	log     zerolog.Logger
}

func (d *dependencyHealth) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if req.GetService() == ServiceName || req.GetService() == "" {
		st := d.checkDependencies(ctx)
		// after Shutdown the embedded server ignores status updates
		d.SetServingStatus("", st)
		d.SetServingStatus(ServiceName, st)
	}
	return d.Server.Check(ctx, req)
}

func (d *dependencyHealth) checkDependencies(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	for _, dep := range d.deps {
		checkCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := dep.Check(checkCtx)
		cancel()
		if err != nil {
			d.log.Warn().Err(err).Str("dependency", dep.Name).Msg("health check failed")
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	return st
}

// Shutdown flips every status to NOT_SERVING before stopping, so load balancers drain first.
func (h *HealthServer) Shutdown() {
	h.health.Shutdown()
	h.server.GracefulStop()
}

func loggingInterceptor(base zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		ctx = base.WithContext(ctx)
		resp, err := handler(ctx, req)

		log := logger.FromContext(ctx)
		event := log.Debug()
		if err != nil {
			event = log.Warn().Err(err)
		}
		event.
			Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("grpc call")
		return resp, err
	}
}
