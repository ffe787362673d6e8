package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/dtroode/chronos/internal/api/grpc/handler"
	"github.com/dtroode/chronos/internal/api/grpc/middleware"
	"github.com/dtroode/chronos/internal/api/grpc/sessionpb"
	"github.com/dtroode/chronos/internal/logger"
)

// Router builds the session bridge gRPC server.
type Router struct {
	session handler.SessionSource
	token   string
	logger  *logger.Logger
}

// New creates new gRPC Router instance.
//
// Parameters:
//   - session: Read side of the session controller exported by the bridge
//   - token: Bearer token required from clients; empty leaves the bridge
//     unauthenticated
//   - logger: Logger for requests and recovered panics
//
// Returns a pointer to the newly created Router instance.
func New(session handler.SessionSource, token string, logger *logger.Logger) *Router {
	return &Router{
		session: session,
		token:   token,
		logger:  logger,
	}
}

func authSkip(_ context.Context, c interceptors.CallMeta) bool {
	return !strings.HasPrefix(c.FullMethod(), "/"+healthpb.Health_ServiceDesc.ServiceName+"/")
}

func (r *Router) handlePanic(p any) error {
	r.logger.Error("Bridge: recovered from panic",
		"panic", fmt.Sprint(p))
	return status.Error(codes.Internal, "internal server error")
}

// Register registers the bridge and health services with recovery, logging
// and, when a token is configured, authentication interceptors.
func (r *Router) Register() *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	recoveryOpt := recovery.WithRecoveryHandler(r.handlePanic)

	unary := []grpc.UnaryServerInterceptor{
		recovery.UnaryServerInterceptor(recoveryOpt),
		logging.HandleGRPC,
	}
	stream := []grpc.StreamServerInterceptor{
		recovery.StreamServerInterceptor(recoveryOpt),
		logging.HandleStream,
	}

	if r.token != "" {
		authenticate := middleware.NewAuthenticate(r.token, r.logger)
		unary = append(unary, selector.UnaryServerInterceptor(
			auth.UnaryServerInterceptor(authenticate.AuthFunc),
			selector.MatchFunc(authSkip),
		))
		stream = append(stream, selector.StreamServerInterceptor(
			auth.StreamServerInterceptor(authenticate.AuthFunc),
			selector.MatchFunc(authSkip),
		))
	}

	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	)
	r.registerSessionRoutes(s)
	r.registerHealth(s)

	return s
}

func (r *Router) registerSessionRoutes(server *grpc.Server) {
	bridge := handler.NewSessionBridge(r.session, r.logger)
	sessionpb.RegisterSessionBridgeServer(server, bridge)
}

func (r *Router) registerHealth(server *grpc.Server) {
	hs := health.NewServer()
	hs.SetServingStatus(sessionpb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, hs)
}
