package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"artificer/internal/budget"
)

// Middleware decorates a Client to inject cross-cutting concerns
// (budget metering, rate limiting, retries, caching, logging).
type Middleware func(Client) Client

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Client, mws ...Middleware) Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Budget metering --------

// WithMeter refuses calls that would exceed the run budget. The refusal is
// returned as budget.ErrExceeded (not a provider error) so callers can tell
// "budget gone" apart from "backend flaked".
func WithMeter(m *budget.Meter) Middleware {
	return func(next Client) Client {
		return &metered{next: next, m: m}
	}
}

type metered struct {
	next Client
	m    *budget.Meter
}

func (c *metered) Name() string { return c.next.Name() }
func (c *metered) Close() error { return c.next.Close() }
func (c *metered) Complete(ctx context.Context, sys, user string, structured bool) (string, error) {
	if err := c.m.Charge(1); err != nil {
		return "", err
	}
	return c.next.Complete(ctx, sys, user, structured)
}

// -------- Rate limiting --------

// RateLimit throttles calls to rps with the given burst. rps <= 0 disables it.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Client) Client {
		return &rateLimited{next: next, rl: newRPSLimiter(rps, burst)}
	}
}

type rateLimited struct {
	next Client
	rl   *rpsLimiter
}

func (c *rateLimited) Name() string { return c.next.Name() }
func (c *rateLimited) Close() error {
	c.rl.Stop()
	return c.next.Close()
}
func (c *rateLimited) Complete(ctx context.Context, sys, user string, structured bool) (string, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return "", err
	}
	return c.next.Complete(ctx, sys, user, structured)
}

// -------- Retry --------

// Retry re-issues failed calls with exponential backoff. Budget refusals and
// context cancellation are not retried.
func Retry(attempts int, base time.Duration) Middleware {
	if attempts < 1 {
		attempts = 1
	}
	return func(next Client) Client {
		return &retried{next: next, attempts: attempts, base: base}
	}
}

type retried struct {
	next     Client
	attempts int
	base     time.Duration
}

func (c *retried) Name() string { return c.next.Name() }
func (c *retried) Close() error { return c.next.Close() }
func (c *retried) Complete(ctx context.Context, sys, user string, structured bool) (string, error) {
	var lastErr error
	for i := 0; i < c.attempts; i++ {
		out, err := c.next.Complete(ctx, sys, user, structured)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil || errors.Is(err, budget.ErrExceeded) {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.base * (1 << i)):
		}
	}
	return "", lastErr
}

// -------- Response cache --------

// Cache memoizes completions in an in-memory LRU keyed by a digest of the
// full request. Identical repair/triage retries within one run become free.
func Cache(size int) Middleware {
	return func(next Client) Client {
		c, err := lru.New[string, string](size)
		if err != nil {
			return next
		}
		return &cached{next: next, lru: c}
	}
}

type cached struct {
	next Client
	lru  *lru.Cache[string, string]
}

func (c *cached) Name() string { return c.next.Name() }
func (c *cached) Close() error { return c.next.Close() }
func (c *cached) Complete(ctx context.Context, sys, user string, structured bool) (string, error) {
	key := requestKey(sys, user, structured)
	if out, ok := c.lru.Get(key); ok {
		return out, nil
	}
	out, err := c.next.Complete(ctx, sys, user, structured)
	if err != nil {
		return "", err
	}
	c.lru.Add(key, out)
	return out, nil
}

func requestKey(sys, user string, structured bool) string {
	h := sha256.New()
	h.Write([]byte(sys))
	h.Write([]byte{0})
	h.Write([]byte(user))
	if structured {
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// -------- Logging --------

// Logging prints one line per call with duration and outcome.
func Logging(label string) Middleware {
	return func(next Client) Client {
		return &logged{next: next, label: label}
	}
}

type logged struct {
	next  Client
	label string
}

func (c *logged) Name() string { return c.next.Name() }
func (c *logged) Close() error { return c.next.Close() }
func (c *logged) Complete(ctx context.Context, sys, user string, structured bool) (string, error) {
	start := time.Now()
	out, err := c.next.Complete(ctx, sys, user, structured)
	status := "ok"
	if err != nil {
		status = fmt.Sprintf("err=%v", err)
	}
	log.Printf("%s: %s call %d bytes in %s (%s)", c.label, c.next.Name(), len(user), time.Since(start).Round(time.Millisecond), status)
	return out, err
}
