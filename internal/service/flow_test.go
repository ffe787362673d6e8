package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/chronos/internal/classifier"
	"github.com/dtroode/chronos/internal/mocks"
	"github.com/dtroode/chronos/internal/model"
	"github.com/dtroode/chronos/internal/testutil"
)

func newTestFlow(t *testing.T) (*AuthFlow, *mocks.IdentityProvider) {
	t.Helper()
	provider := mocks.NewIdentityProvider(t)
	flow := NewAuthFlow(provider, testutil.MakeNoopLogger(), "http://localhost:3000/", 0)
	return flow, provider
}

func TestAuthFlow_LoginClosesFlow(t *testing.T) {
	flow, provider := newTestFlow(t)
	provider.On("SignInWithPassword", mock.Anything, "jane@x.com", "secret1").Return(nil)

	flow.Open(model.ViewLogin)
	flow.SetEmail(" jane@x.com ")
	flow.SetPassword("secret1")

	require.NoError(t, flow.Submit(context.Background()))

	state := flow.State()
	assert.False(t, state.Open)
	assert.Equal(t, model.ViewLogin, state.View)
	assert.Empty(t, state.Email)
}

func TestAuthFlow_ShortCodeRejectedLocally(t *testing.T) {
	flow, provider := newTestFlow(t)

	flow.Open(model.ViewVerifyCode)
	flow.SetEmail("jane@x.com")
	flow.SetCode("12345")

	err := flow.Submit(context.Background())

	var flowErr model.FlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, model.SeverityError, flowErr.Severity)
	assert.Equal(t, model.ViewVerifyCode, flow.State().View)
	require.NotNil(t, flow.State().Error)
	provider.AssertNotCalled(t, "VerifyRecoveryCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthFlow_SignUpAccountExists(t *testing.T) {
	flow, provider := newTestFlow(t)
	provider.On("SignUp", mock.Anything, mock.Anything).Return(model.SignUpResult{
		User: &model.SessionUser{ID: "u-1", Email: "jane@x.com", Identities: []model.Identity{}},
	}, nil)

	flow.Open(model.ViewSignup)
	flow.SetFullName("Jane Doe")
	flow.SetEmail("jane@x.com")
	flow.SetPassword("secret1")

	err := flow.Submit(context.Background())

	var flowErr model.FlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, "Account Exists", flowErr.Title)
	assert.Equal(t, model.SeverityWarning, flowErr.Severity)

	state := flow.State()
	assert.False(t, state.Success)
	assert.Equal(t, model.ViewSignup, state.View)
	require.NotNil(t, state.Error)
	assert.Equal(t, model.SeverityWarning, state.Error.Severity)
}

func TestAuthFlow_SignUpNeedsConfirmation(t *testing.T) {
	flow, provider := newTestFlow(t)
	provider.On("SignUp", mock.Anything, model.SignUpParams{
		Email:       "jane@x.com",
		Password:    "secret1",
		FullName:    "Jane Doe",
		RedirectURL: "http://localhost:3000",
	}).Return(model.SignUpResult{
		User: &model.SessionUser{ID: "u-1", Email: "jane@x.com", Identities: []model.Identity{{ID: "i-1", Provider: "email"}}},
	}, nil)

	flow.Open(model.ViewSignup)
	flow.SetFullName(" Jane Doe ")
	flow.SetEmail("jane@x.com")
	flow.SetPassword("secret1")

	require.NoError(t, flow.Submit(context.Background()))

	state := flow.State()
	assert.True(t, state.Success)
	assert.True(t, state.NeedsEmailConfirmation)
	assert.Equal(t, "Account Created", state.SuccessTitle())
	assert.False(t, state.CanSubmit)
}

func TestAuthFlow_RateLimitCooldown(t *testing.T) {
	flow, provider := newTestFlow(t)
	provider.On("SignInWithPassword", mock.Anything, "jane@x.com", "secret1").Return(&model.ProviderError{
		Kind:    model.KindRateLimit,
		Status:  429,
		Message: "email rate limit exceeded",
	}).Once()

	flow.Open(model.ViewLogin)
	flow.SetEmail("jane@x.com")
	flow.SetPassword("secret1")

	err := flow.Submit(context.Background())
	var flowErr model.FlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, model.SeverityRateLimit, flowErr.Severity)

	state := flow.State()
	assert.Equal(t, classifier.RateLimitCooldownSeconds, state.Cooldown)
	assert.False(t, state.CanSubmit)

	assert.Equal(t, 59, flow.Cooldown().Tick())
	assert.ErrorIs(t, flow.Submit(context.Background()), ErrCooldownActive)

	for flow.Cooldown().Tick() > 0 {
	}
	assert.True(t, flow.State().CanSubmit)

	provider.On("SignInWithPassword", mock.Anything, "jane@x.com", "secret1").Return(nil).Once()
	require.NoError(t, flow.Submit(context.Background()))
}

func TestAuthFlow_RecoveryByCode(t *testing.T) {
	flow, provider := newTestFlow(t)
	provider.On("RequestPasswordReset", mock.Anything, "jane@x.com", "http://localhost:3000").Return(nil)
	provider.On("VerifyRecoveryCode", mock.Anything, "jane@x.com", "123456").Return(nil)
	provider.On("UpdatePassword", mock.Anything, "newsecret").Return(nil)

	flow.Open(model.ViewLogin)
	require.NoError(t, flow.ForgotPassword())
	flow.SetEmail("jane@x.com")

	require.NoError(t, flow.Submit(context.Background()))
	state := flow.State()
	assert.Equal(t, model.ViewVerifyCode, state.View)
	assert.Equal(t, CodeResendCooldownSeconds, state.Cooldown)
	assert.False(t, state.CanResend)
	assert.True(t, state.CanSubmit, "a sent code does not block verifying it")

	assert.ErrorIs(t, flow.Resend(), ErrCooldownActive)

	flow.SetCode("123-456")
	require.NoError(t, flow.Submit(context.Background()))
	assert.Equal(t, model.ViewResetPassword, flow.State().View)

	flow.SetPassword("newsecret")
	require.NoError(t, flow.Submit(context.Background()))

	state = flow.State()
	assert.True(t, state.Success)
	assert.Equal(t, "Session Updated", state.SuccessTitle())
}

func TestAuthFlow_ResendAfterCooldown(t *testing.T) {
	flow, provider := newTestFlow(t)
	provider.On("RequestPasswordReset", mock.Anything, "jane@x.com", mock.Anything).Return(nil)

	flow.Open(model.ViewForgotPassword)
	flow.SetEmail("jane@x.com")
	require.NoError(t, flow.Submit(context.Background()))

	for flow.Cooldown().Tick() > 0 {
	}
	assert.True(t, flow.State().CanResend)

	require.NoError(t, flow.Resend())
	assert.Equal(t, model.ViewForgotPassword, flow.State().View)
}

func TestAuthFlow_CodeSentBlocksNewRequest(t *testing.T) {
	flow, provider := newTestFlow(t)
	provider.On("RequestPasswordReset", mock.Anything, "jane@x.com", mock.Anything).Return(nil).Once()

	flow.Open(model.ViewForgotPassword)
	flow.SetEmail("jane@x.com")
	require.NoError(t, flow.Submit(context.Background()))
	require.NoError(t, flow.Back())
	require.NoError(t, flow.ForgotPassword())

	assert.ErrorIs(t, flow.Submit(context.Background()), ErrCooldownActive)
}

func TestAuthFlow_InvalidCodeClassified(t *testing.T) {
	flow, provider := newTestFlow(t)
	provider.On("VerifyRecoveryCode", mock.Anything, "jane@x.com", "654321").Return(&model.ProviderError{
		Kind:    model.KindAuth,
		Status:  403,
		Code:    "otp_expired",
		Message: "Token has expired or is invalid",
	})

	flow.Open(model.ViewVerifyCode)
	flow.SetEmail("jane@x.com")
	flow.SetCode("654321")

	err := flow.Submit(context.Background())
	var flowErr model.FlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, classifier.TitleInvalidCode, flowErr.Title)
	assert.Equal(t, model.ViewVerifyCode, flow.State().View)
	assert.Equal(t, 0, flow.State().Cooldown)
}

func TestAuthFlow_ForceResetPassword(t *testing.T) {
	t.Run("from login", func(t *testing.T) {
		flow, _ := newTestFlow(t)
		flow.Open(model.ViewLogin)
		flow.SetEmail("jane@x.com")

		flow.ForceResetPassword()

		state := flow.State()
		assert.True(t, state.Open)
		assert.Equal(t, model.ViewResetPassword, state.View)
		assert.Equal(t, "jane@x.com", state.Email)
	})

	t.Run("opens a closed flow", func(t *testing.T) {
		flow, _ := newTestFlow(t)

		flow.ForceResetPassword()

		state := flow.State()
		assert.True(t, state.Open)
		assert.Equal(t, model.ViewResetPassword, state.View)
	})

	t.Run("overrides a pending submission", func(t *testing.T) {
		flow, provider := newTestFlow(t)
		started := make(chan struct{})
		release := make(chan struct{})
		provider.On("SignInWithPassword", mock.Anything, "jane@x.com", "secret1").
			Run(func(mock.Arguments) {
				close(started)
				<-release
			}).
			Return(errors.New("invalid login credentials"))

		flow.Open(model.ViewLogin)
		flow.SetEmail("jane@x.com")
		flow.SetPassword("secret1")

		done := make(chan error, 1)
		go func() { done <- flow.Submit(context.Background()) }()
		<-started

		assert.ErrorIs(t, flow.Submit(context.Background()), ErrBusy)

		flow.ForceResetPassword()
		close(release)

		assert.ErrorIs(t, <-done, ErrSuperseded)
		state := flow.State()
		assert.Equal(t, model.ViewResetPassword, state.View)
		assert.Nil(t, state.Error)
		assert.False(t, state.Busy)
	})

	t.Run("recovery event during code verification", func(t *testing.T) {
		flow, provider := newTestFlow(t)
		provider.On("VerifyRecoveryCode", mock.Anything, "jane@x.com", "123456").
			Run(func(mock.Arguments) { flow.ForceResetPassword() }).
			Return(nil)

		flow.Open(model.ViewVerifyCode)
		flow.SetEmail("jane@x.com")
		flow.SetCode("123456")

		require.NoError(t, flow.Submit(context.Background()))
		assert.Equal(t, model.ViewResetPassword, flow.State().View)
	})
}

// blockCall makes the mocked provider call wait until release is closed and
// reports through started once it is in flight.
func blockCall(call *mock.Call) (started, release chan struct{}) {
	started = make(chan struct{})
	release = make(chan struct{})
	call.Run(func(mock.Arguments) {
		close(started)
		<-release
	})
	return started, release
}

func TestAuthFlow_NavigationDuringSubmit(t *testing.T) {
	t.Run("back while a code is requested", func(t *testing.T) {
		flow, provider := newTestFlow(t)
		started, release := blockCall(
			provider.On("RequestPasswordReset", mock.Anything, "jane@x.com", "http://localhost:3000").Return(nil))
		provider.On("SignInWithPassword", mock.Anything, "jane@x.com", "secret1").Return(nil)

		flow.Open(model.ViewForgotPassword)
		flow.SetEmail("jane@x.com")

		done := make(chan error, 1)
		go func() { done <- flow.Submit(context.Background()) }()
		<-started

		require.NoError(t, flow.Back())

		state := flow.State()
		assert.Equal(t, model.ViewLogin, state.View)
		assert.False(t, state.Busy)
		assert.True(t, state.CanSubmit)

		close(release)
		assert.ErrorIs(t, <-done, ErrSuperseded)

		state = flow.State()
		assert.Equal(t, model.ViewLogin, state.View)
		assert.Nil(t, state.Error)
		assert.Zero(t, state.Cooldown)

		flow.SetPassword("secret1")
		require.NoError(t, flow.Submit(context.Background()))
		assert.False(t, flow.State().Open)
	})

	t.Run("late result leaves the newer submission busy", func(t *testing.T) {
		flow, provider := newTestFlow(t)
		resetStarted, resetRelease := blockCall(
			provider.On("RequestPasswordReset", mock.Anything, "jane@x.com", "http://localhost:3000").Return(nil))
		loginStarted, loginRelease := blockCall(
			provider.On("SignInWithPassword", mock.Anything, "jane@x.com", "secret1").Return(nil))

		flow.Open(model.ViewForgotPassword)
		flow.SetEmail("jane@x.com")

		resetDone := make(chan error, 1)
		go func() { resetDone <- flow.Submit(context.Background()) }()
		<-resetStarted

		require.NoError(t, flow.Back())
		flow.SetPassword("secret1")

		loginDone := make(chan error, 1)
		go func() { loginDone <- flow.Submit(context.Background()) }()
		<-loginStarted

		close(resetRelease)
		assert.ErrorIs(t, <-resetDone, ErrSuperseded)
		assert.True(t, flow.State().Busy)
		assert.ErrorIs(t, flow.Submit(context.Background()), ErrBusy)

		close(loginRelease)
		require.NoError(t, <-loginDone)
		assert.False(t, flow.State().Open)
	})

	t.Run("toggle register while signing up", func(t *testing.T) {
		flow, provider := newTestFlow(t)
		started, release := blockCall(provider.On("SignUp", mock.Anything, mock.Anything).Return(model.SignUpResult{
			User:    &model.SessionUser{ID: "u-1", Email: "jane@x.com"},
			Session: &model.Session{AccessToken: "token"},
		}, nil))

		flow.Open(model.ViewSignup)
		flow.SetFullName("Jane Doe")
		flow.SetEmail("jane@x.com")
		flow.SetPassword("secret1")

		done := make(chan error, 1)
		go func() { done <- flow.Submit(context.Background()) }()
		<-started

		require.NoError(t, flow.ToggleRegister())
		close(release)
		assert.ErrorIs(t, <-done, ErrSuperseded)

		state := flow.State()
		assert.Equal(t, model.ViewLogin, state.View)
		assert.False(t, state.Success)
		assert.False(t, state.Busy)
		assert.True(t, state.CanSubmit)
		assert.Nil(t, state.Error)
	})
}

func TestAuthFlow_Back(t *testing.T) {
	flow, _ := newTestFlow(t)
	flow.Open(model.ViewVerifyCode)
	flow.SetCode("123")
	require.Error(t, flow.Submit(context.Background()))

	require.NoError(t, flow.Back())

	state := flow.State()
	assert.Equal(t, model.ViewLogin, state.View)
	assert.Empty(t, state.Code)
	assert.Nil(t, state.Error)
}

func TestAuthFlow_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    model.AuthView
		fire    func(*AuthFlow) error
		want    model.AuthView
		wantErr error
	}{
		{name: "login forgot", from: model.ViewLogin, fire: (*AuthFlow).ForgotPassword, want: model.ViewForgotPassword},
		{name: "login register", from: model.ViewLogin, fire: (*AuthFlow).ToggleRegister, want: model.ViewSignup},
		{name: "signup register toggles back", from: model.ViewSignup, fire: (*AuthFlow).ToggleRegister, want: model.ViewLogin},
		{name: "signup back", from: model.ViewSignup, fire: (*AuthFlow).Back, want: model.ViewLogin},
		{name: "reset back", from: model.ViewResetPassword, fire: (*AuthFlow).Back, want: model.ViewLogin},
		{name: "verify resend", from: model.ViewVerifyCode, fire: (*AuthFlow).Resend, want: model.ViewForgotPassword},
		{name: "login back", from: model.ViewLogin, fire: (*AuthFlow).Back, wantErr: ErrInvalidTransition},
		{name: "signup forgot", from: model.ViewSignup, fire: (*AuthFlow).ForgotPassword, wantErr: ErrInvalidTransition},
		{name: "login resend", from: model.ViewLogin, fire: (*AuthFlow).Resend, wantErr: ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow, _ := newTestFlow(t)
			flow.Open(tt.from)

			err := tt.fire(flow)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, flow.State().View)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, flow.State().View)
		})
	}
}

func TestAuthFlow_Closed(t *testing.T) {
	flow, _ := newTestFlow(t)

	assert.ErrorIs(t, flow.Submit(context.Background()), ErrFlowClosed)
	assert.ErrorIs(t, flow.ForgotPassword(), ErrFlowClosed)

	flow.Open(model.ViewSignup)
	flow.Close()
	assert.False(t, flow.State().Open)
}
