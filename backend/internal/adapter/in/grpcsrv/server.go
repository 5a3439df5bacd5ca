package grpcsrv

import (
	"context"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// slowCall порог, после которого вызов попадает в лог
const slowCall = 100 * time.Millisecond

// NewServer создает gRPC-сервер с журналированием ошибок и медленных вызовов
func NewServer(logger *log.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = log.Default()
	}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(loggingInterceptor(logger))}, opts...)
	return grpc.NewServer(opts...)
}

func loggingInterceptor(logger *log.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)

		if err != nil {
			logger.Printf("[gRPC] %s: %s (%v)", info.FullMethod, status.Code(err), elapsed)
		} else if elapsed > slowCall {
			logger.Printf("[gRPC] ПРЕДУПРЕЖДЕНИЕ: медленный вызов %s: %v", info.FullMethod, elapsed)
		}
		return resp, err
	}
}
