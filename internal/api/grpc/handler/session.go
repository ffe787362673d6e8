package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/chronos/internal/api/grpc/sessionpb"
	"github.com/dtroode/chronos/internal/logger"
	"github.com/dtroode/chronos/internal/service"
)

// SessionSource is the read side of the session controller.
type SessionSource interface {
	State() service.SessionState
	Watch() (<-chan service.SessionState, func())
}

// SessionBridge exports the current user to local tools. It never changes
// the session.
type SessionBridge struct {
	source SessionSource
	logger *logger.Logger
}

var _ sessionpb.SessionBridgeServer = (*SessionBridge)(nil)

// NewSessionBridge creates new SessionBridge handler.
func NewSessionBridge(source SessionSource, logger *logger.Logger) *SessionBridge {
	return &SessionBridge{
		source: source,
		logger: logger,
	}
}

// Current returns the current session state.
func (h *SessionBridge) Current(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	resp, err := stateToStruct(h.source.State())
	if err != nil {
		return nil, handleError(err)
	}
	return resp, nil
}

// Watch streams the session state, starting with the current one, until
// the client goes away or the controller is torn down.
func (h *SessionBridge) Watch(_ *emptypb.Empty, stream sessionpb.SessionBridge_WatchServer) error {
	updates, stop := h.source.Watch()
	defer stop()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case state, ok := <-updates:
			if !ok {
				return status.Error(codes.Unavailable, "session controller stopped")
			}
			msg, err := stateToStruct(state)
			if err != nil {
				return handleError(err)
			}
			if err := stream.Send(msg); err != nil {
				h.logger.Debug("Bridge: watch stream closed",
					"error", err.Error())
				return err
			}
		}
	}
}

func stateToStruct(state service.SessionState) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":           state.User.ID,
		"name":         state.User.Name,
		"email":        state.User.Email,
		"is_logged_in": state.User.IsLoggedIn,
		"loading":      state.Loading,
	})
}
