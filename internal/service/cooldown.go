package service

import (
	"sync"
	"time"
)

// CooldownReason records what started a cooldown.
type CooldownReason int

const (
	// CooldownNone means no cooldown was started.
	CooldownNone CooldownReason = iota
	// CooldownRateLimit is started by a rate-limit answer and blocks every submission.
	CooldownRateLimit
	// CooldownCodeSent is started when a recovery code was dispatched and
	// blocks requesting another one.
	CooldownCodeSent
)

// CodeResendCooldownSeconds is the wait after a recovery code was sent.
const CodeResendCooldownSeconds = 60

// Cooldown is a seconds counter decremented by one on every tick while it is
// above zero. With a positive interval it ticks on its own goroutine, which
// exits once the counter reaches zero.
type Cooldown struct {
	interval time.Duration

	mu        sync.Mutex
	remaining int
	reason    CooldownReason
	stop      chan struct{}
}

// NewCooldown creates a Cooldown ticking every interval. A non-positive
// interval disables automatic ticking; Tick must then be called by the owner.
func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{interval: interval}
}

// Start sets the counter to seconds and restarts the ticker.
func (c *Cooldown) Start(seconds int, reason CooldownReason) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	if seconds <= 0 {
		c.remaining = 0
		c.reason = CooldownNone
		return
	}
	c.remaining = seconds
	c.reason = reason
	if c.interval > 0 {
		c.stop = make(chan struct{})
		go c.run(c.stop)
	}
}

// Tick decrements the counter by one if it is above zero and returns the
// remaining seconds.
func (c *Cooldown) Tick() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickLocked()
}

func (c *Cooldown) tickLocked() int {
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining == 0 {
		c.reason = CooldownNone
	}
	return c.remaining
}

// Remaining returns the seconds left.
func (c *Cooldown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Reason returns what started the running cooldown, or CooldownNone.
func (c *Cooldown) Reason() CooldownReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Stop clears the counter and stops the ticker.
func (c *Cooldown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.remaining = 0
	c.reason = CooldownNone
}

func (c *Cooldown) stopLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Cooldown) run(stop chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.stop != stop {
				c.mu.Unlock()
				return
			}
			if c.tickLocked() == 0 {
				c.stop = nil
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
		}
	}
}
