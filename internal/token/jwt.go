// Package token reads the claims of access tokens issued by the identity
// provider. Signatures are not verified here: the provider owns token
// validation, the client only needs the identity and expiry it carries.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dtroode/chronos/internal/model"
)

// ErrMissingSubject is returned for tokens without a subject claim.
var ErrMissingSubject = errors.New("access token has no subject")

// Claims are the access token claims the client relies on.
type Claims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
}

// Decode parses an access token without verifying its signature.
func Decode(accessToken string) (Claims, error) {
	claims := Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return Claims{}, fmt.Errorf("failed to parse access token: %w", err)
	}
	if claims.Subject == "" {
		return Claims{}, ErrMissingSubject
	}
	return claims, nil
}

// SessionUser builds the session user described by the claims.
func (c Claims) SessionUser() model.SessionUser {
	return model.SessionUser{
		ID:       c.Subject,
		Email:    c.Email,
		Metadata: c.UserMetadata,
	}
}

// Expiry returns the token expiry, or the zero time when absent.
func (c Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
