package service

import (
	"strings"
	"unicode/utf8"

	"github.com/dtroode/chronos/internal/model"
)

const (
	minPasswordLength = 6
	minFullNameLength = 2
	recoveryCodeLen   = 6
)

type formInput struct {
	email    string
	password string
	fullName string
	code     string
}

func invalidInput(message string) *model.FlowError {
	return &model.FlowError{
		Title:    "Invalid Input",
		Message:  message,
		Severity: model.SeverityError,
	}
}

// validateStep checks the input of view locally. A non-nil result blocks the
// identity provider call.
func validateStep(view model.AuthView, in formInput) *model.FlowError {
	needsEmail := view != model.ViewResetPassword
	needsPassword := view == model.ViewLogin || view == model.ViewSignup || view == model.ViewResetPassword

	if view == model.ViewSignup && utf8.RuneCountInString(strings.TrimSpace(in.fullName)) < minFullNameLength {
		return invalidInput("Full name must be at least 2 characters.")
	}
	if needsEmail && !strings.Contains(in.email, "@") {
		return invalidInput("Enter a valid email address.")
	}
	if view == model.ViewVerifyCode && !isRecoveryCode(in.code) {
		return invalidInput("Recovery code must be exactly 6 digits.")
	}
	// A recovery started from an emailed link reaches resetPassword without a code.
	if view == model.ViewResetPassword && in.code != "" && !isRecoveryCode(in.code) {
		return invalidInput("Recovery code must be exactly 6 digits.")
	}
	if needsPassword && utf8.RuneCountInString(in.password) < minPasswordLength {
		return invalidInput("Password must be at least 6 characters.")
	}
	return nil
}

func isRecoveryCode(code string) bool {
	if len(code) != recoveryCodeLen {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// sanitizeCode keeps the digits of raw, up to the recovery code length.
func sanitizeCode(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			if b.Len() == recoveryCodeLen {
				break
			}
		}
	}
	return b.String()
}
