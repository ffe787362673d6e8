package model

import "context"

// IdentityProvider is the boundary to the external identity/session service.
// Every failing call returns a *ProviderError.
type IdentityProvider interface {
	GetSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(callback AuthStateCallback) Subscription
	SignInWithPassword(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, params SignUpParams) (SignUpResult, error)
	RequestPasswordReset(ctx context.Context, email, redirectURL string) error
	VerifyRecoveryCode(ctx context.Context, email, token string) error
	UpdatePassword(ctx context.Context, password string) error
	SignOut(ctx context.Context) error
}

// SignUpParams contains registration input.
type SignUpParams struct {
	Email       string
	Password    string
	FullName    string
	RedirectURL string
}

// SignUpResult is the outcome of a registration call. User is nil when the
// provider did not return one; Session is nil when email confirmation is
// still pending.
type SignUpResult struct {
	User    *SessionUser
	Session *Session
}
