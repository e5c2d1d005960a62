package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(h *Health) *fiber.App {
	app := fiber.New()
	app.Get("/livez", h.LiveHandler)
	app.Get("/readyz", h.ReadyHandler)
	return app
}

func get(t *testing.T, app *fiber.App, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestCheckThresholds(t *testing.T) {
	var failing atomic.Bool
	c := newCheck("db", time.Second, func(context.Context) error {
		if failing.Load() {
			return errors.New("down")
		}
		return nil
	})
	ctx := context.Background()

	c.run(ctx)
	assert.True(t, c.healthy.Load())

	failing.Store(true)
	for i := 1; i < failureThreshold; i++ {
		c.run(ctx)
		assert.True(t, c.healthy.Load(), "unhealthy after %d failures", i)
	}
	c.run(ctx)
	assert.False(t, c.healthy.Load())
	assert.EqualError(t, c.lastError(), "down")

	failing.Store(false)
	c.run(ctx)
	assert.True(t, c.healthy.Load())
	assert.NoError(t, c.lastError())
}

func TestCheckTimeout(t *testing.T) {
	c := newCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	for i := 0; i < failureThreshold; i++ {
		c.run(context.Background())
	}
	assert.False(t, c.healthy.Load())
	assert.ErrorIs(t, c.lastError(), context.DeadlineExceeded)
}

func TestReadyHandler(t *testing.T) {
	h := New()
	var failing atomic.Bool
	h.AddReadinessCheck("database", time.Second, func(context.Context) error {
		if failing.Load() {
			return errors.New("connection refused")
		}
		return nil
	})
	app := newTestApp(h)

	status, body := get(t, app, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unhealthy", body["status"])
	assert.False(t, h.IsReady())

	h.SetReady(true)
	status, body = get(t, app, "/readyz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.True(t, h.IsReady())

	failing.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 5*time.Millisecond)
	defer h.Stop()

	assert.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)
	status, body = get(t, app, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	checks, ok := body["checks"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "connection refused", checks["database"])
}

func TestLiveHandler(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(1))
	app := newTestApp(h)

	status, _ := get(t, app, "/livez")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, h.IsAlive())

	h.Start(context.Background(), 5*time.Millisecond)
	defer h.Stop()

	assert.Eventually(t, func() bool { return !h.IsAlive() }, time.Second, 5*time.Millisecond)
	status, body := get(t, app, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body["checks"], "goroutines")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}

func TestStopIsIdempotent(t *testing.T) {
	h := New()
	h.Start(context.Background(), time.Millisecond)
	h.Stop()
	h.Stop()
}
