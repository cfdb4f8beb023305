package grpcapi

import (
	"log/slog"
	"net"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"luxestore/searchservice/internal/domain"
)

// ServiceName is the health-check key callers can probe in addition to "".
const ServiceName = "luxestore.catalog.Search"

// HealthServer exposes grpc.health.v1 reporting whether a real catalog
// has been installed.
type HealthServer struct {
	server  *grpc.Server
	health  *health.Server
	logger  *slog.Logger
	serving atomic.Bool
}

func NewHealthServer(logger *slog.Logger, opts ...grpc.ServerOption) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	h := &HealthServer{
		server: grpc.NewServer(opts...),
		health: health.NewServer(),
		logger: logger,
	}
	healthpb.RegisterHealthServer(h.server, h.health)
	reflection.Register(h.server)
	h.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// CatalogRefreshed flips the status to SERVING once the installed
// catalog came from upstream or a snapshot store.
func (h *HealthServer) CatalogRefreshed(status domain.CatalogStatus) {
	ready := status.Origin == domain.CatalogOriginUpstream || status.Origin == domain.CatalogOriginSnapshot
	h.SetServing(ready)
}

func (h *HealthServer) SetServing(ready bool) {
	if h.serving.Swap(ready) == ready {
		return
	}
	if ready {
		h.setStatus(healthpb.HealthCheckResponse_SERVING)
	} else {
		h.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	h.logger.Info("grpc health changed", slog.Bool("serving", ready))
}

func (h *HealthServer) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}

func (h *HealthServer) Serve(lis net.Listener) error {
	return h.server.Serve(lis)
}

// GracefulStop marks every service NOT_SERVING and drains in-flight RPCs.
func (h *HealthServer) GracefulStop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
