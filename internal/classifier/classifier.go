// Package classifier turns failures of any shape into a displayable
// model.FlowError.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	"github.com/dtroode/chronos/internal/model"
)

// RateLimitCooldownSeconds is the cooldown started by a rate-limit answer.
const RateLimitCooldownSeconds = 60

const emptyResponseMessage = "Security protocol returned an empty response. Verify your network or try again."

// Titles of classified errors.
const (
	TitleConnectionBlocked = "Connection Blocked"
	TitleRateLimit         = "Rate Limit"
	TitleAccessDenied      = "Access Denied"
	TitleInvalidCode       = "Invalid Code"
	TitleSystemAlert       = "System Alert"
)

// Result is a classified error. CooldownSeconds is non-zero when the caller
// must block retries.
type Result struct {
	model.FlowError
	CooldownSeconds int
}

var (
	networkMarkers    = []string{"failed to fetch", "networkerror", "network request failed", "load failed", "connection refused", "no such host", "connection reset"}
	rateLimitMarkers  = []string{"rate limit", "too many requests"}
	credentialMarkers = []string{"invalid login credentials", "invalid credentials"}
	codeMarkers       = []string{"otp", "token", "expired", "verify", "invalid code"}
)

// Classify maps raw to a FlowError. The first matching rule wins: network
// failure, rate limit, invalid credentials, invalid one-time code (only while
// view is verifyCode or resetPassword), then a generic alert. The returned
// message is never empty.
func Classify(raw any, view model.AuthView) Result {
	message := ExtractMessage(raw)
	lower := strings.ToLower(message)

	switch {
	case isNetworkFailure(raw, lower):
		return Result{FlowError: model.FlowError{
			Title:    TitleConnectionBlocked,
			Message:  "Could not reach the authentication service. Check your internet connection, disable ad or content blockers for this site, and try again.",
			Severity: model.SeverityError,
		}}
	case statusOf(raw) == 429 || kindOf(raw) == model.KindRateLimit || containsAny(lower, rateLimitMarkers):
		return Result{
			FlowError: model.FlowError{
				Title:    TitleRateLimit,
				Message:  fmt.Sprintf("Too many requests. Please wait %d seconds.", RateLimitCooldownSeconds),
				Severity: model.SeverityRateLimit,
			},
			CooldownSeconds: RateLimitCooldownSeconds,
		}
	case codeOf(raw) == "invalid_credentials" || containsAny(lower, credentialMarkers):
		return Result{FlowError: model.FlowError{
			Title:    TitleAccessDenied,
			Message:  "The password or email provided does not match our records.",
			Severity: model.SeverityError,
		}}
	case (view == model.ViewVerifyCode || view == model.ViewResetPassword) &&
		(codeOf(raw) == "otp_expired" || containsAny(lower, codeMarkers)):
		return Result{FlowError: model.FlowError{
			Title:    TitleInvalidCode,
			Message:  "The 6-digit code is incorrect or has expired.",
			Severity: model.SeverityError,
		}}
	}

	if message == "" {
		message = emptyResponseMessage
	}
	return Result{FlowError: model.FlowError{
		Title:    TitleSystemAlert,
		Message:  message,
		Severity: model.SeverityError,
	}}
}

// ExtractMessage returns the best human-readable message carried by raw, or
// "" when none can be found. It accepts strings, errors, decoded JSON
// payloads (including a nested "error" object) and arbitrary values, which
// are inspected through their JSON form.
func ExtractMessage(raw any) string {
	msg := extract(raw, 0)
	switch strings.TrimSpace(msg) {
	case "{}", "[]", "null", "undefined":
		return ""
	}
	return strings.TrimSpace(msg)
}

const maxDepth = 4

func extract(raw any, depth int) string {
	if raw == nil || depth > maxDepth {
		return ""
	}

	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		var decoded any
		if err := json.Unmarshal(v, &decoded); err == nil {
			return extract(decoded, depth+1)
		}
		return string(v)
	case *model.ProviderError:
		if v == nil {
			return ""
		}
		if v.Message != "" {
			return v.Message
		}
		if msg := extract(v.Body, depth+1); msg != "" {
			return msg
		}
		if v.Err != nil {
			return v.Err.Error()
		}
		return ""
	case error:
		var pe *model.ProviderError
		if errors.As(v, &pe) {
			if msg := extract(pe, depth+1); msg != "" {
				return msg
			}
		}
		return v.Error()
	case map[string]any:
		return extractFromMap(v, depth)
	case fmt.Stringer:
		return v.String()
	}

	// Anything else is inspected through its JSON form, so exported fields
	// such as Message or Error are found regardless of the concrete type.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Sprint(raw)
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return string(encoded)
	}
	if m, ok := decoded.(map[string]any); ok {
		return extractFromMap(m, depth)
	}
	return string(encoded)
}

func extractFromMap(m map[string]any, depth int) string {
	if len(m) == 0 {
		return ""
	}
	for _, key := range messageKeys {
		if s, ok := lookup(m, key).(string); ok && s != "" {
			return s
		}
	}
	switch nested := lookup(m, "error").(type) {
	case string:
		if nested != "" {
			return nested
		}
	case map[string]any:
		if msg := extractFromMap(nested, depth+1); msg != "" {
			return msg
		}
	}

	// Only objects carrying something beyond the empty standard fields are
	// worth showing as JSON.
	if !hasCustomKeys(m) {
		return ""
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(encoded)
}

var messageKeys = []string{"message", "msg", "error_description"}

func hasCustomKeys(m map[string]any) bool {
	for k := range m {
		if !strings.EqualFold(k, "error") && !slices.ContainsFunc(messageKeys, func(std string) bool {
			return strings.EqualFold(k, std)
		}) {
			return true
		}
	}
	return false
}

// lookup finds key in m ignoring case.
func lookup(m map[string]any, key string) any {
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}

func isNetworkFailure(raw any, lowerMessage string) bool {
	if kindOf(raw) == model.KindNetwork {
		return true
	}
	if err, ok := raw.(error); ok {
		var pe *model.ProviderError
		if errors.As(err, &pe) && pe.Kind != model.KindNetwork {
			// The provider answered, so the transport worked.
			return false
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return true
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return true
		}
	}
	return containsAny(lowerMessage, networkMarkers)
}

func kindOf(raw any) model.ErrorKind {
	if err, ok := raw.(error); ok {
		var pe *model.ProviderError
		if errors.As(err, &pe) && pe != nil {
			return pe.Kind
		}
	}
	return model.KindUnknown
}

func statusOf(raw any) int {
	switch v := raw.(type) {
	case error:
		var pe *model.ProviderError
		if errors.As(v, &pe) && pe != nil {
			if pe.Status != 0 {
				return pe.Status
			}
			return statusOf(pe.Body)
		}
	case map[string]any:
		for _, key := range []string{"status", "statusCode", "status_code"} {
			switch n := lookup(v, key).(type) {
			case float64:
				return int(n)
			case int:
				return n
			}
		}
	}
	return 0
}

func codeOf(raw any) string {
	switch v := raw.(type) {
	case error:
		var pe *model.ProviderError
		if errors.As(v, &pe) && pe != nil {
			if pe.Code != "" {
				return pe.Code
			}
			return codeOf(pe.Body)
		}
	case map[string]any:
		for _, key := range []string{"error_code", "code"} {
			if s, ok := lookup(v, key).(string); ok {
				return s
			}
		}
	}
	return ""
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
