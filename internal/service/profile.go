package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dtroode/chronos/internal/logger"
	"github.com/dtroode/chronos/internal/model"
)

// ProfileResolver resolves display names for signed-in users.
type ProfileResolver struct {
	store  model.ProfileStore
	logger *logger.Logger
}

// NewProfileResolver creates a ProfileResolver reading from store.
func NewProfileResolver(store model.ProfileStore, logger *logger.Logger) *ProfileResolver {
	return &ProfileResolver{store: store, logger: logger}
}

// ProvisionalName picks the name shown before the profile store answers:
// the name already held for the same user, then the metadata name, then the
// local part of the email address.
func ProvisionalName(current model.User, u model.SessionUser) string {
	if current.IsLoggedIn && current.ID == u.ID && current.Name != "" {
		return current.Name
	}
	if name := u.MetadataName(); name != "" {
		return name
	}
	return EmailLocalPart(u.Email)
}

// EmailLocalPart returns the part of email before '@'.
func EmailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// Resolve returns the authoritative display name. The profile store is not
// queried when metadata already supplies a name. A missing profile falls
// back to the email local part; store failures are returned.
func (r *ProfileResolver) Resolve(ctx context.Context, u model.SessionUser) (string, error) {
	if name := u.MetadataName(); name != "" {
		return name, nil
	}

	profile, err := r.store.GetProfile(ctx, u.ID)
	if errors.Is(err, model.ErrNotFound) {
		r.logger.Debug("Profile resolver: no profile, using email",
			"user_id", u.ID)
		return EmailLocalPart(u.Email), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get profile: %w", err)
	}

	if strings.TrimSpace(profile.FullName) == "" {
		return EmailLocalPart(u.Email), nil
	}
	return profile.FullName, nil
}
