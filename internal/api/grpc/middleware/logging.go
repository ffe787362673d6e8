package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/chronos/internal/logger"
)

// Logging logs bridge calls and their results.
type Logging struct {
	logger *logger.Logger
}

// NewLogging creates a new Logging middleware.
func NewLogging(logger *logger.Logger) *Logging {
	return &Logging{logger: logger}
}

// HandleGRPC logs method name, duration and status for each unary request.
func (l *Logging) HandleGRPC(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	l.logger.Debug("Bridge: request started",
		"method", info.FullMethod)

	resp, err := handler(ctx, req)
	l.done(info.FullMethod, start, err)

	return resp, err
}

// HandleStream logs method name, duration and status for each stream.
func (l *Logging) HandleStream(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	l.logger.Debug("Bridge: stream opened",
		"method", info.FullMethod)

	err := handler(srv, ss)
	l.done(info.FullMethod, start, err)

	return err
}

func (l *Logging) done(method string, start time.Time, err error) {
	statusCode := codeOf(err)

	l.logger.Info("Bridge: request completed",
		"method", method,
		"duration_ms", time.Since(start).Milliseconds(),
		"status", statusCode.String())

	if err != nil && statusCode != codes.Canceled {
		l.logger.Error("Bridge: request failed",
			"method", method,
			"error", err.Error(),
			"status", statusCode.String())
	}
}

func codeOf(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if st, ok := status.FromError(err); ok {
		return st.Code()
	}
	return codes.Internal
}
