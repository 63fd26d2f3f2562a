package middleware

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/zariny/ecommerce/internal/pkg/logger"
)

var rpcDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "catalog_grpc_request_duration_seconds",
	Help:    "Duration of unary gRPC requests.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "code"})

// LoggingInterceptor logs every unary call with its duration and status
// code and records it in the request histogram.
func LoggingInterceptor(log logger.ZapLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		elapsed := time.Since(start)
		rpcDuration.WithLabelValues(info.FullMethod, code.String()).Observe(elapsed.Seconds())

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", elapsed),
			zap.String("code", code.String()),
		}
		switch code {
		case codes.OK:
			log.Debug("rpc completed", fields...)
		case codes.Internal, codes.Unknown, codes.DataLoss:
			log.Error("rpc failed", append(fields, zap.Error(err))...)
		default:
			log.Info("rpc rejected", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}

// RecoveryInterceptor turns a handler panic into codes.Internal.
func RecoveryInterceptor(log logger.ZapLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic in rpc handler",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
