package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/chronos/internal/mocks"
	"github.com/dtroode/chronos/internal/model"
	"github.com/dtroode/chronos/internal/testutil"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeProvider hands out sessions on demand so tests control when the
// initial session query resolves.
type fakeProvider struct {
	model.IdentityProvider

	sessions chan *model.Session

	mu           sync.Mutex
	callback     model.AuthStateCallback
	unsubscribed bool

	signOutRelease chan struct{}
	signOutErr     error
	signOutDone    chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		sessions:       make(chan *model.Session, 1),
		signOutRelease: make(chan struct{}),
		signOutDone:    make(chan struct{}),
	}
}

func (f *fakeProvider) GetSession(context.Context) (*model.Session, error) {
	return <-f.sessions, nil
}

func (f *fakeProvider) OnAuthStateChange(cb model.AuthStateCallback) model.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callback = cb
	return f
}

func (f *fakeProvider) Unsubscribe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = true
}

func (f *fakeProvider) SignOut(context.Context) error {
	defer close(f.signOutDone)
	<-f.signOutRelease
	return f.signOutErr
}

func (f *fakeProvider) emit(event model.AuthEvent, session *model.Session) {
	f.mu.Lock()
	cb := f.callback
	f.mu.Unlock()
	cb(event, session)
}

// blockingProfiles answers GetProfile for a user only when the test releases it.
type blockingProfiles struct {
	mu      sync.Mutex
	answers map[string]chan model.Profile
}

func newBlockingProfiles(userIDs ...string) *blockingProfiles {
	p := &blockingProfiles{answers: make(map[string]chan model.Profile)}
	for _, id := range userIDs {
		p.answers[id] = make(chan model.Profile, 1)
	}
	return p
}

func (p *blockingProfiles) GetProfile(_ context.Context, userID string) (model.Profile, error) {
	p.mu.Lock()
	ch := p.answers[userID]
	p.mu.Unlock()
	return <-ch, nil
}

func (p *blockingProfiles) release(userID, fullName string) {
	p.answers[userID] <- model.Profile{FullName: fullName}
}

func sessionFor(id, email string) *model.Session {
	return &model.Session{
		AccessToken: "token-" + id,
		User:        model.SessionUser{ID: id, Email: email},
	}
}

func newTestController(provider model.IdentityProvider, profiles model.ProfileStore) *SessionController {
	log := testutil.MakeNoopLogger()
	return NewSessionController(provider, NewProfileResolver(profiles, log), log, time.Second)
}

func TestSessionController_SignInResolvesProfileName(t *testing.T) {
	tests := []struct {
		name      string
		mockSetup func(*mocks.ProfileStore)
		want      string
	}{
		{
			name: "profile entry",
			mockSetup: func(store *mocks.ProfileStore) {
				store.On("GetProfile", mock.Anything, "u-jane").Return(model.Profile{FullName: "Jane Doe"}, nil).Once()
			},
			want: "Jane Doe",
		},
		{
			name: "no profile entry",
			mockSetup: func(store *mocks.ProfileStore) {
				store.On("GetProfile", mock.Anything, "u-jane").Return(model.Profile{}, model.ErrNotFound).Once()
			},
			want: "jane",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newFakeProvider()
			store := &mocks.ProfileStore{}
			tt.mockSetup(store)

			c := newTestController(provider, store)
			c.Initialize(context.Background())
			defer c.Teardown()
			provider.sessions <- nil

			provider.emit(model.EventSignedIn, sessionFor("u-jane", "jane@x.com"))

			require.Eventually(t, func() bool {
				return c.User().Name == tt.want
			}, waitFor, tick)

			user := c.User()
			assert.True(t, user.IsLoggedIn)
			assert.Equal(t, "u-jane", user.ID)
			assert.Equal(t, "jane@x.com", user.Email)
			assert.False(t, c.State().Loading)

			// A token refresh for the same user keeps the name and does not
			// query the store again.
			provider.emit(model.EventTokenRefreshed, sessionFor("u-jane", "jane@x.com"))
			assert.Equal(t, tt.want, c.User().Name)
			store.AssertExpectations(t)
		})
	}
}

func TestSessionController_StaleProfileDiscarded(t *testing.T) {
	provider := newFakeProvider()
	profiles := newBlockingProfiles("u-a", "u-b")

	c := newTestController(provider, profiles)
	c.Initialize(context.Background())
	defer c.Teardown()
	provider.sessions <- nil

	provider.emit(model.EventSignedIn, sessionFor("u-a", "alice@x.com"))
	provider.emit(model.EventSignedIn, sessionFor("u-b", "bob@x.com"))

	profiles.release("u-b", "Bob Builder")
	require.Eventually(t, func() bool {
		return c.User().Name == "Bob Builder"
	}, waitFor, tick)

	profiles.release("u-a", "Alice Archer")
	assert.Never(t, func() bool {
		return c.User().ID != "u-b" || c.User().Name != "Bob Builder"
	}, 100*time.Millisecond, tick)
}

func TestSessionController_NoUpdateAfterTeardown(t *testing.T) {
	provider := newFakeProvider()
	store := &mocks.ProfileStore{}

	c := newTestController(provider, store)
	c.Initialize(context.Background())
	assert.True(t, c.State().Loading)

	c.Teardown()
	provider.sessions <- sessionFor("u-jane", "jane@x.com")

	assert.Never(t, func() bool {
		return c.User().IsLoggedIn
	}, 100*time.Millisecond, tick)
	store.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)

	provider.mu.Lock()
	assert.True(t, provider.unsubscribed)
	provider.mu.Unlock()
}

func TestSessionController_LogoutIsOptimistic(t *testing.T) {
	provider := newFakeProvider()
	provider.signOutErr = &model.ProviderError{Kind: model.KindNetwork, Message: "failed to fetch"}
	store := &mocks.ProfileStore{}
	store.On("GetProfile", mock.Anything, mock.Anything).Return(model.Profile{}, model.ErrNotFound)

	c := newTestController(provider, store)
	c.Initialize(context.Background())
	defer c.Teardown()
	provider.sessions <- sessionFor("u-jane", "jane@x.com")
	require.Eventually(t, func() bool { return c.User().IsLoggedIn }, waitFor, tick)

	var signedOut atomic.Int32
	c.OnSignedOut(func() { signedOut.Add(1) })

	c.Logout(context.Background())

	assert.True(t, c.User().IsEmpty(), "cleared before the sign out call settles")
	assert.Equal(t, int32(1), signedOut.Load())

	close(provider.signOutRelease)
	<-provider.signOutDone

	// A late refresh of the old session must not sign the user back in.
	provider.emit(model.EventTokenRefreshed, sessionFor("u-jane", "jane@x.com"))
	assert.True(t, c.User().IsEmpty())

	provider.emit(model.EventSignedIn, sessionFor("u-jane", "jane@x.com"))
	assert.True(t, c.User().IsLoggedIn)
}

func TestSessionController_InitialSession(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		provider := newFakeProvider()
		c := newTestController(provider, &mocks.ProfileStore{})

		var signedOut atomic.Int32
		c.OnSignedOut(func() { signedOut.Add(1) })

		c.Initialize(context.Background())
		defer c.Teardown()
		provider.sessions <- nil

		require.Eventually(t, func() bool { return !c.State().Loading }, waitFor, tick)
		assert.True(t, c.User().IsEmpty())
		assert.Equal(t, int32(1), signedOut.Load())
	})

	t.Run("superseded by an event", func(t *testing.T) {
		provider := newFakeProvider()
		store := &mocks.ProfileStore{}
		store.On("GetProfile", mock.Anything, "u-jane").Return(model.Profile{FullName: "Jane Doe"}, nil)

		c := newTestController(provider, store)
		c.Initialize(context.Background())
		defer c.Teardown()

		provider.emit(model.EventSignedIn, sessionFor("u-jane", "jane@x.com"))
		assert.False(t, c.State().Loading)

		provider.sessions <- nil
		assert.Never(t, func() bool { return !c.User().IsLoggedIn }, 100*time.Millisecond, tick)
	})

	t.Run("safety timeout", func(t *testing.T) {
		provider := newFakeProvider()
		log := testutil.MakeNoopLogger()
		c := NewSessionController(provider, NewProfileResolver(&mocks.ProfileStore{}, log), log, 20*time.Millisecond)
		c.Initialize(context.Background())
		defer c.Teardown()

		require.Eventually(t, func() bool { return !c.State().Loading }, waitFor, tick)
		assert.True(t, c.User().IsEmpty())
	})

	t.Run("provider failure degrades to signed out", func(t *testing.T) {
		provider := mocks.NewIdentityProvider(t)
		sub := &mocks.Subscription{}
		sub.On("Unsubscribe").Return()
		provider.On("OnAuthStateChange", mock.Anything).Return(sub)
		provider.On("GetSession", mock.Anything).Return(nil, errors.New("dial tcp: connection refused"))

		c := newTestController(provider, &mocks.ProfileStore{})
		c.Initialize(context.Background())

		require.Eventually(t, func() bool { return !c.State().Loading }, waitFor, tick)
		assert.True(t, c.User().IsEmpty())

		c.Teardown()
		sub.AssertExpectations(t)
	})
}

func TestSessionController_PasswordRecovery(t *testing.T) {
	provider := newFakeProvider()
	store := &mocks.ProfileStore{}
	c := newTestController(provider, store)

	var recovered atomic.Int32
	c.OnPasswordRecovery(func() { recovered.Add(1) })

	c.Initialize(context.Background())
	defer c.Teardown()
	provider.sessions <- nil
	require.Eventually(t, func() bool { return !c.State().Loading }, waitFor, tick)

	provider.emit(model.EventPasswordRecovery, sessionFor("u-jane", "jane@x.com"))

	assert.Equal(t, int32(1), recovered.Load())
	assert.False(t, c.User().IsLoggedIn)
	store.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
}

func TestSessionController_RecoveryAfterLogout(t *testing.T) {
	provider := newFakeProvider()
	store := &mocks.ProfileStore{}
	store.On("GetProfile", mock.Anything, "u-jane").Return(model.Profile{}, model.ErrNotFound)

	c := newTestController(provider, store)
	var recovered atomic.Int32
	c.OnPasswordRecovery(func() { recovered.Add(1) })

	c.Initialize(context.Background())
	defer c.Teardown()
	provider.sessions <- sessionFor("u-jane", "jane@x.com")
	require.Eventually(t, func() bool { return c.User().IsLoggedIn }, waitFor, tick)

	c.Logout(context.Background())
	close(provider.signOutRelease)
	<-provider.signOutDone
	require.True(t, c.User().IsEmpty())

	provider.emit(model.EventPasswordRecovery, sessionFor("u-jane", "jane@x.com"))
	assert.Equal(t, int32(1), recovered.Load())
	assert.True(t, c.User().IsEmpty(), "recovery alone does not sign in")

	provider.emit(model.EventUserUpdated, sessionFor("u-jane", "jane@x.com"))

	user := c.User()
	assert.True(t, user.IsLoggedIn)
	assert.Equal(t, "u-jane", user.ID)
	assert.Equal(t, "jane@x.com", user.Email)
	assert.Equal(t, "jane", user.Name)
}

func TestSessionController_IgnoresMalformedSession(t *testing.T) {
	provider := newFakeProvider()
	store := &mocks.ProfileStore{}
	store.On("GetProfile", mock.Anything, "u-jane").Return(model.Profile{FullName: "Jane Doe"}, nil)

	c := newTestController(provider, store)
	c.Initialize(context.Background())
	defer c.Teardown()
	provider.sessions <- nil

	provider.emit(model.EventSignedIn, sessionFor("u-jane", "jane@x.com"))
	provider.emit(model.EventUserUpdated, &model.Session{User: model.SessionUser{ID: "u-jane"}})

	user := c.User()
	assert.Equal(t, "u-jane", user.ID)
	assert.Equal(t, "jane@x.com", user.Email)
	assert.True(t, user.Valid())
}

func TestSessionController_Watch(t *testing.T) {
	provider := newFakeProvider()
	store := &mocks.ProfileStore{}
	store.On("GetProfile", mock.Anything, "u-jane").Return(model.Profile{FullName: "Jane Doe"}, nil)

	c := newTestController(provider, store)
	updates, stop := c.Watch()
	defer stop()

	first := <-updates
	assert.True(t, first.User.IsEmpty())

	c.Initialize(context.Background())
	provider.sessions <- nil
	provider.emit(model.EventSignedIn, sessionFor("u-jane", "jane@x.com"))

	require.Eventually(t, func() bool {
		select {
		case s := <-updates:
			return s.User.Name == "Jane Doe" && !s.Loading
		default:
			return false
		}
	}, waitFor, tick)

	c.Teardown()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-updates:
			return !ok
		default:
			return false
		}
	}, waitFor, tick)
}
