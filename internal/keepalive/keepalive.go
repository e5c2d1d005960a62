// Package keepalive pings the service's own public URL on a fixed interval so
// that free-tier hosts do not put it to sleep.
package keepalive

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Pinger issues periodic GET requests to a URL.
type Pinger struct {
	url      string
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

// New returns a Pinger. A non-positive timeout falls back to 10s.
func New(url string, interval, timeout time.Duration, log *zap.Logger) *Pinger {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Pinger{
		url:      url,
		interval: interval,
		timeout:  timeout,
		log:      log.With(zap.String("url", url)),
	}
}

// Start runs the ping loop in a goroutine until ctx is done. The first ping is
// sent after one interval. Failures are logged and never stop the loop.
func (p *Pinger) Start(ctx context.Context) {
	if p.url == "" || p.interval <= 0 {
		return
	}

	p.log.Info("Keep-alive started", zap.Duration("interval", p.interval))
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.log.Info("Keep-alive stopped")
				return
			case <-ticker.C:
				if err := p.Ping(ctx); err != nil {
					p.log.Warn("Keep-alive ping failed", zap.Error(err))
				}
			}
		}
	}()
}

// Ping sends a single GET request and reports non-2xx responses as errors.
// The request timeout is capped by the ctx deadline.
func (p *Pinger) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return context.DeadlineExceeded
		}
		if remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Get(p.url).Timeout(timeout)
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return errors.Wrap(err, "parse keep-alive url")
	}

	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return errors.Wrap(errors.Join(errs...), "keep-alive request")
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return errors.Errorf("keep-alive request returned status %d", code)
	}

	p.log.Debug("Keep-alive ping succeeded", zap.Int("status", code))
	return nil
}
