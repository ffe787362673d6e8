package model

// AuthView is a step of the authentication flow.
type AuthView string

const (
	ViewLogin          AuthView = "login"
	ViewSignup         AuthView = "signup"
	ViewForgotPassword AuthView = "forgotPassword"
	ViewVerifyCode     AuthView = "verifyCode"
	ViewResetPassword  AuthView = "resetPassword"
)

// Valid reports whether v is one of the known views.
func (v AuthView) Valid() bool {
	switch v {
	case ViewLogin, ViewSignup, ViewForgotPassword, ViewVerifyCode, ViewResetPassword:
		return true
	}
	return false
}

// Severity tells the front end how to present a FlowError.
type Severity string

const (
	SeverityError     Severity = "error"
	SeverityWarning   Severity = "warning"
	SeverityRateLimit Severity = "rateLimit"
)

// FlowError is the single error banner of the auth flow.
type FlowError struct {
	Title    string
	Message  string
	Severity Severity
}

func (e FlowError) Error() string {
	return e.Title + ": " + e.Message
}
