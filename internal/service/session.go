package service

import (
	"context"
	"sync"
	"time"

	"github.com/dtroode/chronos/internal/logger"
	"github.com/dtroode/chronos/internal/model"
)

const (
	// DefaultSafetyTimeout bounds how long the initial loading state may last.
	DefaultSafetyTimeout = 3 * time.Second
	signOutTimeout       = 10 * time.Second
)

// SessionState is the state published by the SessionController.
type SessionState struct {
	User    model.User
	Loading bool
}

// SessionController owns the canonical current user. It is the only writer
// of that value; everything else reads it through State or Watch.
//
// Every asynchronous result captures the generation (or event count) valid
// when it was dispatched and is dropped if that value moved on before it
// arrived. The mutex only protects memory and is never held across a call
// to the identity provider or the profile store.
type SessionController struct {
	provider      model.IdentityProvider
	profiles      *ProfileResolver
	logger        *logger.Logger
	safetyTimeout time.Duration

	mu          sync.Mutex
	state       SessionState
	mounted     bool
	generation  uint64
	events      uint64
	resolvedID  string
	loggedOut   bool
	ctx         context.Context
	cancel      context.CancelFunc
	sub         model.Subscription
	safetyTimer *time.Timer
	watchers    map[uint64]chan SessionState
	nextWatcher uint64
	onRecovery  []func()
	onSignedOut []func()
}

// NewSessionController creates a new SessionController instance.
// The controller starts signed out and does nothing until Initialize is
// called.
//
// Parameters:
//   - provider: The identity provider whose events are merged
//   - profiles: Resolver of authoritative display names
//   - logger: Logger for state changes and degraded paths
//   - safetyTimeout: Upper bound of the initial loading state; a
//     non-positive value selects DefaultSafetyTimeout
//
// Returns a pointer to the newly created SessionController instance.
func NewSessionController(
	provider model.IdentityProvider,
	profiles *ProfileResolver,
	logger *logger.Logger,
	safetyTimeout time.Duration,
) *SessionController {
	if safetyTimeout <= 0 {
		safetyTimeout = DefaultSafetyTimeout
	}
	return &SessionController{
		provider:      provider,
		profiles:      profiles,
		logger:        logger,
		safetyTimeout: safetyTimeout,
		state:         SessionState{User: model.EmptyUser()},
		watchers:      make(map[uint64]chan SessionState),
	}
}

// OnPasswordRecovery registers fn to run when the identity provider reports
// an accepted recovery code.
func (c *SessionController) OnPasswordRecovery(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRecovery = append(c.onRecovery, fn)
}

// OnSignedOut registers fn to run whenever the user becomes signed out, so
// collaborators can drop per-user selection state.
func (c *SessionController) OnSignedOut(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSignedOut = append(c.onSignedOut, fn)
}

// Initialize subscribes to identity provider events and queries the current
// session concurrently. Loading is cleared by whichever path completes
// first, or by the safety timeout if neither does.
func (c *SessionController) Initialize(ctx context.Context) {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mounted = true
	c.loggedOut = false
	c.state = SessionState{User: model.EmptyUser(), Loading: true}
	c.safetyTimer = time.AfterFunc(c.safetyTimeout, c.expireLoading)
	dispatched := c.events
	runCtx := c.ctx
	c.broadcastLocked()
	c.mu.Unlock()

	c.logger.Debug("Session controller: initializing",
		"safety_timeout", c.safetyTimeout.String())

	sub := c.provider.OnAuthStateChange(c.HandleAuthEvent)

	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	c.sub = sub
	c.mu.Unlock()

	go c.checkInitialSession(runCtx, dispatched)
}

func (c *SessionController) checkInitialSession(ctx context.Context, dispatched uint64) {
	session, err := c.provider.GetSession(ctx)
	if err != nil {
		c.logger.Error("Session controller: initial session check failed",
			"error", err.Error())
		session = nil
	}

	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		c.logger.Debug("Session controller: dropping initial session after teardown")
		return
	}
	if c.events != dispatched {
		c.mu.Unlock()
		c.logger.Debug("Session controller: initial session superseded by a newer event")
		return
	}
	fx := c.applyLocked(model.EventInitialSession, session)
	c.mu.Unlock()

	c.run(fx)
}

func (c *SessionController) expireLoading() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.mounted || !c.state.Loading {
		return
	}
	c.logger.Warn("Session controller: safety timeout reached, leaving loading state")
	c.state.Loading = false
	c.broadcastLocked()
}

// HandleAuthEvent merges an identity provider event into the current user.
// It is registered as the provider callback by Initialize.
func (c *SessionController) HandleAuthEvent(event model.AuthEvent, session *model.Session) {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.events++
	fx := c.applyLocked(event, session)
	c.mu.Unlock()

	c.run(fx)
}

type effects struct {
	hooks   []func()
	resolve *resolveJob
}

type resolveJob struct {
	ctx        context.Context
	generation uint64
	user       model.SessionUser
}

func (c *SessionController) applyLocked(event model.AuthEvent, session *model.Session) effects {
	var fx effects
	defer c.finishLoadingLocked()

	if event == model.EventPasswordRecovery {
		// Recovery sessions only authorize the password update and lift the
		// logout latch; the USER_UPDATED that follows performs the merge.
		c.logger.Info("Session controller: password recovery requested")
		c.loggedOut = false
		fx.hooks = append(fx.hooks, c.onRecovery...)
		return fx
	}

	if session == nil {
		c.generation++
		c.resolvedID = ""
		if c.state.User.IsLoggedIn {
			c.logger.Info("Session controller: signed out",
				"event", string(event),
				"user_id", c.state.User.ID)
		}
		c.state.User = model.EmptyUser()
		c.broadcastLocked()
		fx.hooks = append(fx.hooks, c.onSignedOut...)
		return fx
	}

	su := session.User
	if su.ID == "" || su.Email == "" {
		c.logger.Warn("Session controller: ignoring session without id or email",
			"event", string(event))
		return fx
	}

	if c.loggedOut && event != model.EventSignedIn {
		c.logger.Debug("Session controller: ignoring session event after local logout",
			"event", string(event))
		return fx
	}
	c.loggedOut = false

	if c.state.User.ID != su.ID {
		c.generation++
		c.resolvedID = ""
	}

	c.state.User = model.User{
		ID:         su.ID,
		Name:       ProvisionalName(c.state.User, su),
		Email:      su.Email,
		IsLoggedIn: true,
	}
	c.broadcastLocked()

	c.logger.Info("Session controller: session applied",
		"event", string(event),
		"user_id", su.ID)

	if c.resolvedID != su.ID {
		c.resolvedID = su.ID
		fx.resolve = &resolveJob{ctx: c.ctx, generation: c.generation, user: su}
	}
	return fx
}

func (c *SessionController) run(fx effects) {
	for _, hook := range fx.hooks {
		hook()
	}
	if fx.resolve != nil {
		go c.resolveProfile(*fx.resolve)
	}
}

func (c *SessionController) resolveProfile(job resolveJob) {
	name, err := c.profiles.Resolve(job.ctx, job.user)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.mounted || c.generation != job.generation || c.state.User.ID != job.user.ID {
		c.logger.Debug("Session controller: discarding stale profile result",
			"user_id", job.user.ID)
		return
	}

	if err != nil {
		// Keep the provisional name and let the next event retry.
		c.resolvedID = ""
		c.logger.Warn("Session controller: profile resolution failed",
			"user_id", job.user.ID,
			"error", err.Error())
		return
	}

	if c.state.User.Name == name {
		return
	}
	c.state.User.Name = name
	c.broadcastLocked()
}

func (c *SessionController) finishLoadingLocked() {
	if c.safetyTimer != nil {
		c.safetyTimer.Stop()
		c.safetyTimer = nil
	}
	if !c.state.Loading {
		return
	}
	c.state.Loading = false
	c.broadcastLocked()
}

// Logout clears the current user before asking the identity provider to end
// the session. The provider call runs in the background; its failure is
// logged and never restores the previous user.
func (c *SessionController) Logout(ctx context.Context) {
	c.mu.Lock()
	previous := c.state.User.ID
	c.events++
	c.generation++
	c.resolvedID = ""
	c.loggedOut = true
	c.state.User = model.EmptyUser()
	c.broadcastLocked()
	c.finishLoadingLocked()
	hooks := append([]func(){}, c.onSignedOut...)
	c.mu.Unlock()

	c.logger.Info("Session controller: logged out locally",
		"user_id", previous)

	for _, hook := range hooks {
		hook()
	}

	signOutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), signOutTimeout)
	go func() {
		defer cancel()
		if err := c.provider.SignOut(signOutCtx); err != nil {
			c.logger.Warn("Session controller: sign out call failed, local state stays cleared",
				"error", err.Error())
		}
	}()
}

// Teardown unsubscribes from the identity provider and invalidates every
// in-flight result. Watch channels are closed.
func (c *SessionController) Teardown() {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.mounted = false
	c.generation++
	c.events++
	if c.safetyTimer != nil {
		c.safetyTimer.Stop()
		c.safetyTimer = nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	sub := c.sub
	c.sub = nil
	for id, ch := range c.watchers {
		close(ch)
		delete(c.watchers, id)
	}
	c.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	c.logger.Debug("Session controller: torn down")
}

// State returns the current state.
func (c *SessionController) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User returns the current user.
func (c *SessionController) User() model.User {
	return c.State().User
}

// Watch returns a channel that always holds the latest state, starting with
// the current one, and a func that stops watching. The channel is closed on
// Teardown or when the func is called.
func (c *SessionController) Watch() (<-chan SessionState, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan SessionState, 1)
	ch <- c.state
	id := c.nextWatcher
	c.nextWatcher++
	c.watchers[id] = ch

	var once sync.Once
	stop := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if existing, ok := c.watchers[id]; ok {
				close(existing)
				delete(c.watchers, id)
			}
		})
	}
	return ch, stop
}

func (c *SessionController) broadcastLocked() {
	for _, ch := range c.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- c.state
	}
}
