package server

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthService is the service name reported by the admin health server.
const HealthService = "relay"

// NewGRPCServer returns the admin gRPC server, serving grpc.health.v1 and
// reflection, together with its health state. HealthService starts out
// SERVING; shutdown flips it with health.Server.Shutdown.
func NewGRPCServer(logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryRecovery(logger), UnaryLogging(logger)),
		grpc.ChainStreamInterceptor(StreamRecovery(logger), StreamLogging(logger)),
	)

	hs := health.NewServer()
	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return srv, hs
}
