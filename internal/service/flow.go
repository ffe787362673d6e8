package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dtroode/chronos/internal/classifier"
	"github.com/dtroode/chronos/internal/logger"
	"github.com/dtroode/chronos/internal/model"
)

// Trigger is an input of the auth flow state machine.
type Trigger string

const (
	TriggerSubmitted      Trigger = "submitted"
	TriggerForgotPassword Trigger = "forgotPassword"
	TriggerRegister       Trigger = "register"
	TriggerBack           Trigger = "back"
	TriggerResend         Trigger = "resend"
	TriggerRecovery       Trigger = "recovery"
)

type outcome int

const (
	outcomeView outcome = iota
	outcomeClose
	outcomeSuccess
)

type transition struct {
	outcome outcome
	to      model.AuthView
}

func goTo(v model.AuthView) transition { return transition{outcome: outcomeView, to: v} }

var (
	closeFlow = transition{outcome: outcomeClose}
	succeed   = transition{outcome: outcomeSuccess}
)

// transitions is the complete state machine. A (view, trigger) pair missing
// here is rejected with ErrInvalidTransition.
var transitions = map[model.AuthView]map[Trigger]transition{
	model.ViewLogin: {
		TriggerSubmitted:      closeFlow,
		TriggerForgotPassword: goTo(model.ViewForgotPassword),
		TriggerRegister:       goTo(model.ViewSignup),
		TriggerRecovery:       goTo(model.ViewResetPassword),
	},
	model.ViewSignup: {
		TriggerSubmitted: succeed,
		TriggerRegister:  goTo(model.ViewLogin),
		TriggerBack:      goTo(model.ViewLogin),
		TriggerRecovery:  goTo(model.ViewResetPassword),
	},
	model.ViewForgotPassword: {
		TriggerSubmitted: goTo(model.ViewVerifyCode),
		TriggerBack:      goTo(model.ViewLogin),
		TriggerRecovery:  goTo(model.ViewResetPassword),
	},
	model.ViewVerifyCode: {
		TriggerSubmitted: goTo(model.ViewResetPassword),
		TriggerResend:    goTo(model.ViewForgotPassword),
		TriggerBack:      goTo(model.ViewLogin),
		TriggerRecovery:  goTo(model.ViewResetPassword),
	},
	model.ViewResetPassword: {
		TriggerSubmitted: succeed,
		TriggerBack:      goTo(model.ViewLogin),
		TriggerRecovery:  goTo(model.ViewResetPassword),
	},
}

// AccountExists is reported when sign up returns a user without identities.
var AccountExists = model.FlowError{
	Title:    "Account Exists",
	Message:  "This email is already registered.",
	Severity: model.SeverityWarning,
}

// FlowState is a snapshot of the auth flow. The password is never exposed.
type FlowState struct {
	Open                   bool
	View                   model.AuthView
	Success                bool
	NeedsEmailConfirmation bool
	Error                  *model.FlowError
	Cooldown               int
	Busy                   bool
	CanSubmit              bool
	CanResend              bool
	Email                  string
	FullName               string
	Code                   string
}

// SuccessTitle returns the headline of the success display.
func (s FlowState) SuccessTitle() string {
	if !s.Success {
		return ""
	}
	if s.View == model.ViewResetPassword {
		return "Session Updated"
	}
	return "Account Created"
}

// AuthFlow drives login, sign up and password recovery. It never writes the
// current user: successful steps make the identity provider emit events that
// the SessionController observes.
type AuthFlow struct {
	provider    model.IdentityProvider
	logger      *logger.Logger
	redirectURL string
	cooldown    *Cooldown

	mu                     sync.Mutex
	open                   bool
	view                   model.AuthView
	success                bool
	needsEmailConfirmation bool
	err                    *model.FlowError
	busy                   bool
	epoch                  uint64
	form                   formInput
}

// NewAuthFlow creates a new AuthFlow instance.
// The flow starts closed at the login view.
//
// Parameters:
//   - provider: The identity provider called on submit
//   - logger: Logger for transitions and failed steps
//   - redirectURL: Origin sent with sign up and reset requests; a trailing
//     slash is removed
//   - tick: Cooldown interval, one second in production
//
// Returns a pointer to the newly created AuthFlow instance.
func NewAuthFlow(provider model.IdentityProvider, logger *logger.Logger, redirectURL string, tick time.Duration) *AuthFlow {
	return &AuthFlow{
		provider:    provider,
		logger:      logger,
		redirectURL: strings.TrimSuffix(redirectURL, "/"),
		cooldown:    NewCooldown(tick),
		view:        model.ViewLogin,
	}
}

// Cooldown exposes the flow cooldown counter.
func (f *AuthFlow) Cooldown() *Cooldown {
	return f.cooldown
}

// Open shows the flow at view, starting from a clean state.
func (f *AuthFlow) Open(view model.AuthView) {
	if !view.Valid() {
		view = model.ViewLogin
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
	f.open = true
	f.view = view

	f.logger.Debug("Auth flow: opened",
		"view", string(view))
}

// Close hides the flow and drops its state.
func (f *AuthFlow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
}

func (f *AuthFlow) resetLocked() {
	f.open = false
	f.view = model.ViewLogin
	f.success = false
	f.needsEmailConfirmation = false
	f.err = nil
	f.busy = false
	f.form = formInput{}
	f.epoch++
	f.cooldown.Stop()
}

// SetEmail sets the email field.
func (f *AuthFlow) SetEmail(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.form.email = strings.TrimSpace(email)
}

// SetPassword sets the password field.
func (f *AuthFlow) SetPassword(password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.form.password = password
}

// SetFullName sets the full name field.
func (f *AuthFlow) SetFullName(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.form.fullName = name
}

// SetCode sets the recovery code field, keeping at most six digits.
func (f *AuthFlow) SetCode(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.form.code = sanitizeCode(code)
}

// ForgotPassword moves from login to the reset request.
func (f *AuthFlow) ForgotPassword() error {
	return f.fire(TriggerForgotPassword)
}

// ToggleRegister switches between login and sign up.
func (f *AuthFlow) ToggleRegister() error {
	return f.fire(TriggerRegister)
}

// Back returns to login from any other view and clears the code field.
func (f *AuthFlow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fireLocked(TriggerBack); err != nil {
		return err
	}
	f.form.code = ""
	return nil
}

// Resend returns to the reset request so a new code can be sent. It is
// refused while the cooldown runs.
func (f *AuthFlow) Resend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cooldown.Remaining() > 0 {
		return ErrCooldownActive
	}
	return f.fireLocked(TriggerResend)
}

// ForceResetPassword shows resetPassword whatever the flow was doing, opening
// it if needed. Results of calls still in flight are discarded.
func (f *AuthFlow) ForceResetPassword() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.open {
		f.resetLocked()
		f.open = true
	}
	f.success = false
	f.busy = false
	f.err = nil
	f.epoch++
	f.view = model.ViewResetPassword

	f.logger.Info("Auth flow: forced to password reset")
}

func (f *AuthFlow) fire(trigger Trigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fireLocked(trigger)
}

func (f *AuthFlow) fireLocked(trigger Trigger) error {
	if !f.open {
		return ErrFlowClosed
	}
	if f.success {
		return fmt.Errorf("%w: flow already finished", ErrInvalidTransition)
	}

	t, ok := transitions[f.view][trigger]
	if !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, f.view)
	}

	from := f.view
	switch t.outcome {
	case outcomeClose:
		f.resetLocked()
	case outcomeSuccess:
		f.success = true
		f.err = nil
	case outcomeView:
		// Leaving a view abandons any submission still in flight there.
		f.view = t.to
		f.err = nil
		f.busy = false
		f.epoch++
	}

	f.logger.Debug("Auth flow: transition",
		"from", string(from),
		"trigger", string(trigger),
		"to", string(f.view))
	return nil
}

func (f *AuthFlow) submitBlockedLocked() bool {
	if f.cooldown.Remaining() == 0 {
		return false
	}
	// A code-sent cooldown only guards requesting another code.
	if f.cooldown.Reason() == CooldownCodeSent {
		return f.view == model.ViewForgotPassword
	}
	return true
}

// Submit validates the current view and performs its identity provider
// call. It returns nil when the flow advanced and a model.FlowError when
// the step failed; the error is also kept in the state for display.
func (f *AuthFlow) Submit(ctx context.Context) error {
	f.mu.Lock()
	switch {
	case !f.open:
		f.mu.Unlock()
		return ErrFlowClosed
	case f.success:
		f.mu.Unlock()
		return fmt.Errorf("%w: flow already finished", ErrInvalidTransition)
	case f.busy:
		f.mu.Unlock()
		return ErrBusy
	case f.submitBlockedLocked():
		f.mu.Unlock()
		return ErrCooldownActive
	}

	f.err = nil
	view := f.view
	in := f.form
	if verr := validateStep(view, in); verr != nil {
		f.err = verr
		f.mu.Unlock()
		f.logger.Debug("Auth flow: input rejected",
			"view", string(view),
			"reason", verr.Message)
		return *verr
	}
	f.busy = true
	epoch := f.epoch
	f.mu.Unlock()

	f.logger.Debug("Auth flow: step started",
		"view", string(view))

	res := f.call(ctx, view, in)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.epoch != epoch || !f.open {
		// A recovery event may already have moved the flow where this
		// step was going.
		if res.err == nil && res.flowErr == nil && f.open && !f.success &&
			transitions[view][TriggerSubmitted] == goTo(f.view) {
			return nil
		}
		f.logger.Debug("Auth flow: discarding superseded result",
			"view", string(view))
		return ErrSuperseded
	}
	f.busy = false

	if res.err != nil {
		classified := classifier.Classify(res.err, view)
		f.err = &classified.FlowError
		if classified.CooldownSeconds > 0 {
			f.cooldown.Start(classified.CooldownSeconds, CooldownRateLimit)
		}
		f.logger.Warn("Auth flow: step failed",
			"view", string(view),
			"title", classified.Title,
			"error", res.err.Error())
		return classified.FlowError
	}
	if res.flowErr != nil {
		f.err = res.flowErr
		f.logger.Info("Auth flow: step refused",
			"view", string(view),
			"title", res.flowErr.Title)
		return *res.flowErr
	}

	f.needsEmailConfirmation = res.needsConfirmation
	if view == model.ViewForgotPassword {
		f.cooldown.Start(CodeResendCooldownSeconds, CooldownCodeSent)
	}
	if err := f.fireLocked(TriggerSubmitted); err != nil {
		return err
	}

	f.logger.Info("Auth flow: step completed",
		"view", string(view))
	return nil
}

type stepResult struct {
	err               error
	flowErr           *model.FlowError
	needsConfirmation bool
}

func (f *AuthFlow) call(ctx context.Context, view model.AuthView, in formInput) stepResult {
	switch view {
	case model.ViewLogin:
		return stepResult{err: f.provider.SignInWithPassword(ctx, in.email, in.password)}
	case model.ViewSignup:
		res, err := f.provider.SignUp(ctx, model.SignUpParams{
			Email:       in.email,
			Password:    in.password,
			FullName:    strings.TrimSpace(in.fullName),
			RedirectURL: f.redirectURL,
		})
		if err != nil {
			return stepResult{err: err}
		}
		// A nil identity list means the provider did not report one.
		if res.User != nil && res.User.Identities != nil && len(res.User.Identities) == 0 {
			exists := AccountExists
			return stepResult{flowErr: &exists}
		}
		return stepResult{needsConfirmation: res.Session == nil}
	case model.ViewForgotPassword:
		return stepResult{err: f.provider.RequestPasswordReset(ctx, in.email, f.redirectURL)}
	case model.ViewVerifyCode:
		return stepResult{err: f.provider.VerifyRecoveryCode(ctx, in.email, in.code)}
	case model.ViewResetPassword:
		return stepResult{err: f.provider.UpdatePassword(ctx, in.password)}
	}
	return stepResult{err: fmt.Errorf("unknown auth view %q", view)}
}

// State returns a snapshot of the flow.
func (f *AuthFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()

	var flowErr *model.FlowError
	if f.err != nil {
		e := *f.err
		flowErr = &e
	}
	remaining := f.cooldown.Remaining()

	return FlowState{
		Open:                   f.open,
		View:                   f.view,
		Success:                f.success,
		NeedsEmailConfirmation: f.needsEmailConfirmation,
		Error:                  flowErr,
		Cooldown:               remaining,
		Busy:                   f.busy,
		CanSubmit:              f.open && !f.success && !f.busy && !f.submitBlockedLocked(),
		CanResend:              f.open && f.view == model.ViewVerifyCode && remaining == 0,
		Email:                  f.form.email,
		FullName:               f.form.fullName,
		Code:                   f.form.code,
	}
}
