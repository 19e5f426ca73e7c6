package interceptor

import (
	"context"
	"time"

	"feepay-backend/internal/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Unary logs every unary RPC and turns a handler panic into codes.Internal.
func Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("gRPC handler panicked", "method", info.FullMethod, "panic", r)
				err = status.Errorf(codes.Internal, "internal error")
			}
			code := status.Code(err)
			if code == codes.OK {
				logger.Debug("gRPC request", "method", info.FullMethod, "duration_ms", time.Since(start).Milliseconds())
				return
			}
			logger.Warn("gRPC request failed", "method", info.FullMethod, "code", code.String(), "error", err)
		}()
		return handler(ctx, req)
	}
}
