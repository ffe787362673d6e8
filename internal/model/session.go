package model

import "time"

// AuthEvent is a kind of notification emitted by the identity provider.
type AuthEvent string

const (
	// EventInitialSession is used for the one-shot session query at startup.
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	// EventSignedIn is emitted after a successful sign in.
	EventSignedIn AuthEvent = "SIGNED_IN"
	// EventSignedOut is emitted after the session is dropped.
	EventSignedOut AuthEvent = "SIGNED_OUT"
	// EventUserUpdated is emitted after the user record changed (e.g. a password update).
	EventUserUpdated AuthEvent = "USER_UPDATED"
	// EventTokenRefreshed is emitted after the access token was rotated.
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	// EventPasswordRecovery is emitted when a recovery code was accepted.
	EventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
)

// Identity is a linked login method of a user account.
type Identity struct {
	ID       string
	Provider string
}

// SessionUser is the user part of an identity provider session.
type SessionUser struct {
	ID         string
	Email      string
	Metadata   map[string]any
	// Identities is nil when the provider did not report them.
	Identities []Identity
}

// MetadataName returns the display name carried in user metadata, if any.
func (u SessionUser) MetadataName() string {
	for _, key := range []string{"full_name", "name"} {
		if v, ok := u.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Session is an authenticated session issued by the identity provider.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         SessionUser
}

// Expired reports whether the access token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// AuthStateCallback receives identity provider events. session is nil when
// there is no active session.
type AuthStateCallback func(event AuthEvent, session *Session)

// Subscription is a registered AuthStateCallback.
type Subscription interface {
	Unsubscribe()
}
