// Package gotrue implements model.IdentityProvider against a GoTrue
// compatible authentication service.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/dtroode/chronos/internal/classifier"
	"github.com/dtroode/chronos/internal/logger"
	"github.com/dtroode/chronos/internal/model"
	"github.com/dtroode/chronos/internal/token"
)

const tracerName = "github.com/dtroode/chronos/internal/idp/gotrue"

// ErrSessionMissing is the cause of calls that need a session while none is held.
var ErrSessionMissing = errors.New("auth session missing")

// Client talks to the identity service over HTTP and holds the current
// session in memory. Registered callbacks run outside the client lock.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	logger  *logger.Logger
	tracer  trace.Tracer
	now     func() time.Time

	mu        sync.Mutex
	session   *model.Session
	listeners map[string]model.AuthStateCallback
}

// NewClient creates a new Client instance.
// The client holds no session until a sign in, sign up or recovery call
// succeeds.
//
// Parameters:
//   - baseURL: Root URL of the GoTrue API, e.g. "http://localhost:9999"
//   - anonKey: Public API key sent as the apikey header
//   - httpClient: HTTP client used for every call; nil selects a client
//     with a ten second timeout
//   - logger: Logger for provider calls
//
// Returns a pointer to the newly created Client instance.
func NewClient(baseURL, anonKey string, httpClient *http.Client, logger *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		anonKey:   anonKey,
		http:      httpClient,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
		listeners: make(map[string]model.AuthStateCallback),
	}
}

type subscription struct {
	client *Client
	id     string
}

func (s subscription) Unsubscribe() {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	delete(s.client.listeners, s.id)
}

// OnAuthStateChange registers callback for session events.
func (c *Client) OnAuthStateChange(callback model.AuthStateCallback) model.Subscription {
	id := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[id] = callback

	return subscription{client: c, id: id}
}

// GetSession returns the held session, refreshing it first when the access
// token expired. A rejected refresh drops the session.
func (c *Client) GetSession(ctx context.Context) (*model.Session, error) {
	c.mu.Lock()
	current := c.session
	c.mu.Unlock()

	if current == nil {
		return nil, nil
	}
	if !current.Expired(c.now()) {
		s := *current
		return &s, nil
	}

	c.logger.Debug("IdP client: access token expired, refreshing",
		"user_id", current.User.ID)

	var resp tokenResponse
	err := c.do(ctx, "refresh", http.MethodPost, "/token", url.Values{"grant_type": {"refresh_token"}},
		map[string]string{"refresh_token": current.RefreshToken}, false, &resp)
	if err != nil {
		var perr *model.ProviderError
		if errors.As(err, &perr) && perr.Kind == model.KindAuth {
			c.logger.Warn("IdP client: refresh rejected, dropping session",
				"error", err.Error())
			c.setSession(nil, model.EventSignedOut)
			return nil, nil
		}
		return nil, err
	}

	session, err := c.sessionFromToken(resp)
	if err != nil {
		return nil, err
	}
	c.setSession(session, model.EventTokenRefreshed)
	s := *session
	return &s, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) error {
	var resp tokenResponse
	err := c.do(ctx, "sign_in", http.MethodPost, "/token", url.Values{"grant_type": {"password"}},
		map[string]string{"email": email, "password": password}, false, &resp)
	if err != nil {
		return err
	}

	session, err := c.sessionFromToken(resp)
	if err != nil {
		return err
	}
	c.setSession(session, model.EventSignedIn)
	return nil
}

// SignUp registers a new account. When the service confirms accounts
// immediately a session is returned and SIGNED_IN is emitted.
func (c *Client) SignUp(ctx context.Context, params model.SignUpParams) (model.SignUpResult, error) {
	body := signUpRequest{
		Email:    params.Email,
		Password: params.Password,
		Data:     map[string]any{"full_name": params.FullName},
	}

	var resp signUpResponse
	err := c.do(ctx, "sign_up", http.MethodPost, "/signup", redirectQuery(params.RedirectURL), body, false, &resp)
	if err != nil {
		return model.SignUpResult{}, err
	}

	if resp.AccessToken == "" {
		var result model.SignUpResult
		if resp.userResponse.ID != "" {
			u := resp.userResponse.sessionUser()
			result.User = &u
		}
		return result, nil
	}

	session, err := c.sessionFromToken(resp.tokenResponse)
	if err != nil {
		return model.SignUpResult{}, err
	}
	c.setSession(session, model.EventSignedIn)

	u := session.User
	s := *session
	return model.SignUpResult{User: &u, Session: &s}, nil
}

// RequestPasswordReset asks the service to email a recovery code.
func (c *Client) RequestPasswordReset(ctx context.Context, email, redirectURL string) error {
	return c.do(ctx, "recover", http.MethodPost, "/recover", redirectQuery(redirectURL),
		map[string]string{"email": email}, false, nil)
}

// VerifyRecoveryCode exchanges a recovery code for a session and emits
// PASSWORD_RECOVERY.
func (c *Client) VerifyRecoveryCode(ctx context.Context, email, code string) error {
	var resp tokenResponse
	err := c.do(ctx, "verify", http.MethodPost, "/verify", nil,
		map[string]string{"type": "recovery", "email": email, "token": code}, false, &resp)
	if err != nil {
		return err
	}

	session, err := c.sessionFromToken(resp)
	if err != nil {
		return err
	}
	c.setSession(session, model.EventPasswordRecovery)
	return nil
}

// UpdatePassword changes the password of the session user and emits
// USER_UPDATED.
func (c *Client) UpdatePassword(ctx context.Context, password string) error {
	c.mu.Lock()
	current := c.session
	c.mu.Unlock()

	if current == nil {
		return &model.ProviderError{
			Kind:    model.KindAuth,
			Status:  http.StatusUnauthorized,
			Message: "Auth session missing!",
			Err:     ErrSessionMissing,
		}
	}

	var resp userResponse
	err := c.do(ctx, "update_user", http.MethodPut, "/user", nil,
		map[string]string{"password": password}, true, &resp)
	if err != nil {
		return err
	}

	updated := *current
	if resp.ID != "" {
		updated.User = resp.sessionUser()
	}
	c.setSession(&updated, model.EventUserUpdated)
	return nil
}

// SignOut revokes the session. The local session is dropped and SIGNED_OUT
// emitted even when the call fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	current := c.session
	c.mu.Unlock()

	var err error
	if current != nil {
		err = c.do(ctx, "sign_out", http.MethodPost, "/logout", nil, nil, true, nil)
	}
	c.setSession(nil, model.EventSignedOut)
	return err
}

func (c *Client) setSession(session *model.Session, event model.AuthEvent) {
	c.mu.Lock()
	c.session = session
	callbacks := make([]model.AuthStateCallback, 0, len(c.listeners))
	for _, cb := range c.listeners {
		callbacks = append(callbacks, cb)
	}
	c.mu.Unlock()

	c.logger.Debug("IdP client: emitting event",
		"event", string(event),
		"listeners", len(callbacks))

	for _, cb := range callbacks {
		if session == nil {
			cb(event, nil)
			continue
		}
		s := *session
		cb(event, &s)
	}
}

func (c *Client) sessionFromToken(resp tokenResponse) (*model.Session, error) {
	if resp.AccessToken == "" {
		return nil, &model.ProviderError{Kind: model.KindUnknown, Message: "token response without access token"}
	}

	session := &model.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}

	switch {
	case resp.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
	case resp.ExpiresIn > 0:
		session.ExpiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	if resp.User != nil && resp.User.ID != "" {
		session.User = resp.User.sessionUser()
		return session, nil
	}

	claims, err := token.Decode(resp.AccessToken)
	if err != nil {
		return nil, &model.ProviderError{Kind: model.KindUnknown, Message: "unreadable access token", Err: err}
	}
	session.User = claims.SessionUser()
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = claims.Expiry()
	}
	return session, nil
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, authenticated bool, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "gotrue."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	bearer := c.anonKey
	if authenticated {
		bearer = c.accessToken()
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("IdP client: request failed",
			"op", op,
			"error", err.Error())
		return &model.ProviderError{Kind: model.KindNetwork, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.ProviderError{Kind: model.KindNetwork, Status: resp.StatusCode, Message: err.Error(), Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		perr := errorFromResponse(resp.StatusCode, raw)
		c.logger.Debug("IdP client: request rejected",
			"op", op,
			"status", resp.StatusCode,
			"code", perr.Code)
		return perr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &model.ProviderError{
			Kind:    model.KindUnknown,
			Status:  resp.StatusCode,
			Message: "undecodable response from identity service",
			Err:     err,
		}
	}
	return nil
}

func errorFromResponse(status int, raw []byte) *model.ProviderError {
	kind := model.KindUnknown
	switch {
	case status == http.StatusTooManyRequests:
		kind = model.KindRateLimit
	case status < http.StatusInternalServerError:
		kind = model.KindAuth
	}

	perr := &model.ProviderError{Kind: kind, Status: status}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		perr.Message = strings.TrimSpace(string(raw))
		if perr.Message == "" {
			perr.Message = http.StatusText(status)
		}
		return perr
	}

	perr.Body = body
	perr.Code = errorCode(body)
	perr.Message = classifier.ExtractMessage(body)
	if perr.Message == "" {
		perr.Message = http.StatusText(status)
	}
	return perr
}

func errorCode(body map[string]any) string {
	for _, key := range []string{"error_code", "code", "error"} {
		if v, ok := body[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func redirectQuery(redirectURL string) url.Values {
	if redirectURL == "" {
		return nil
	}
	return url.Values{"redirect_to": {strings.TrimSuffix(redirectURL, "/")}}
}
