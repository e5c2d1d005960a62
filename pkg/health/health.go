// Package health runs liveness and readiness checks in the background and
// exposes their state as Fiber handlers.
//
// A check flips to unhealthy only after failureThreshold consecutive failures
// and back to healthy after successThreshold consecutive successes, so a single
// slow ping does not bounce the service out of rotation.
package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	failureThreshold = 3
	successThreshold = 1
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// check is driven by a single goroutine; the counters are owned by it and the
// published state is atomic because handlers read it concurrently.
type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	consecutiveFails int
	consecutiveOK    int
}

func newCheck(name string, timeout time.Duration, fn CheckFunc) *check {
	c := &check{name: name, timeout: timeout, fn: fn}
	c.healthy.Store(true)
	return c
}

func (c *check) lastError() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// run executes the check once. Must be called from a single goroutine.
func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)

	if err != nil {
		c.consecutiveOK = 0
		c.consecutiveFails++
		if c.consecutiveFails >= failureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.consecutiveFails = 0
	c.consecutiveOK++
	if c.consecutiveOK >= successThreshold {
		c.healthy.Store(true)
	}
}

// Health tracks liveness and readiness checks for the service.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New returns a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check that decides whether the process is alive.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newCheck(name, timeout, fn))
}

// AddReadinessCheck registers a check that decides whether traffic should be routed here.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(name, timeout, fn))
}

// Start runs every registered check immediately and then every interval until
// Stop is called or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := make([]*check, 0, len(h.liveness)+len(h.readiness))
	checks = append(checks, h.liveness...)
	checks = append(checks, h.readiness...)
	h.mu.Unlock()

	for _, c := range checks {
		go loop(ctx, c, interval)
	}
}

func loop(ctx context.Context, c *check, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.run(ctx)
		}
	}
}

// Stop cancels the background checks. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady marks the service ready or, during shutdown, not ready.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and all readiness checks pass.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	return len(failures(h.snapshot(false))) == 0
}

// IsAlive reports whether all liveness checks pass.
func (h *Health) IsAlive() bool {
	return len(failures(h.snapshot(true))) == 0
}

// LiveHandler serves /livez.
func (h *Health) LiveHandler(c *fiber.Ctx) error {
	return respond(c, failures(h.snapshot(true)))
}

// ReadyHandler serves /readyz.
func (h *Health) ReadyHandler(c *fiber.Ctx) error {
	failed := failures(h.snapshot(false))
	if !h.ready.Load() {
		failed["_readiness"] = "service is not ready"
	}
	return respond(c, failed)
}

func (h *Health) snapshot(liveness bool) []*check {
	h.mu.RLock()
	defer h.mu.RUnlock()

	src := h.readiness
	if liveness {
		src = h.liveness
	}
	checks := make([]*check, len(src))
	copy(checks, src)
	return checks
}

func failures(checks []*check) map[string]string {
	failed := make(map[string]string)
	for _, c := range checks {
		if c.healthy.Load() {
			continue
		}
		if err := c.lastError(); err != nil {
			failed[c.name] = err.Error()
		} else {
			failed[c.name] = "check is unhealthy"
		}
	}
	return failed
}

func respond(c *fiber.Ctx, failed map[string]string) error {
	if len(failed) == 0 {
		return c.JSON(fiber.Map{"status": "ok"})
	}
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"status": "unhealthy",
		"checks": failed,
	})
}
