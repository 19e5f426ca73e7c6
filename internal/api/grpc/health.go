// Package grpc exposes the standard gRPC health service for load balancers and orchestrators.
package grpc

import (
	"context"
	"time"

	"feepay-backend/internal/api/grpc/interceptor"
	"feepay-backend/internal/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// LedgerService is the health service name reported alongside the overall ("") status.
const LedgerService = "feepay.ledger"

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker mirrors database reachability into a gRPC health server.
type HealthChecker struct {
	db      Pinger
	server  *health.Server
	timeout time.Duration
	serving bool
}

func NewHealthChecker(db Pinger) *HealthChecker {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(LedgerService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthChecker{db: db, server: hs, timeout: 2 * time.Second}
}

// Check pings the database once and updates the reported status.
func (h *HealthChecker) Check(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	err := h.db.Ping(ctx)
	if err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	if serving := err == nil; serving != h.serving {
		h.serving = serving
		if serving {
			logger.Info("Database reachable, reporting SERVING")
		} else {
			logger.Warn("Database unreachable, reporting NOT_SERVING", "error", err)
		}
	}
	h.server.SetServingStatus("", st)
	h.server.SetServingStatus(LedgerService, st)
}

// Run checks every interval until ctx is done, then marks the server as shutting down.
func (h *HealthChecker) Run(ctx context.Context, interval time.Duration) {
	h.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

// NewServer builds the gRPC server carrying the health service and reflection.
func NewServer(h *HealthChecker) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(interceptor.Unary()))
	healthpb.RegisterHealthServer(s, h.server)
	// Register reflection service for grpcurl
	reflection.Register(s)
	return s
}
