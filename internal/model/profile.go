package model

import "context"

// ProfileStore reads user profiles from the row store.
type ProfileStore interface {
	// GetProfile returns ErrNotFound when the user has no profile row.
	GetProfile(ctx context.Context, userID string) (Profile, error)
}

// Profile is a stored user profile.
type Profile struct {
	FullName string
}
