package middleware

import (
	"context"
	"crypto/subtle"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/chronos/internal/logger"
)

// Authenticate checks the bridge bearer token.
type Authenticate struct {
	token  string
	logger *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware accepting token.
func NewAuthenticate(token string, logger *logger.Logger) *Authenticate {
	return &Authenticate{token: token, logger: logger}
}

// AuthFunc validates the "authorization: Bearer <token>" metadata.
func (m *Authenticate) AuthFunc(ctx context.Context) (context.Context, error) {
	presented, err := auth.AuthFromMD(ctx, "bearer")
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(presented), []byte(m.token)) != 1 {
		m.logger.Warn("Bridge: rejected call with invalid token")
		return nil, status.Error(codes.Unauthenticated, "invalid bridge token")
	}

	return ctx, nil
}
