// Package assets resolves a blueprint's visual specs through an ordered
// provider fallback chain. Every provider attempt is bounded by a timeout
// and retry count; when the whole chain fails, a deferred manifest records
// the unfulfilled request for later retry.
package assets

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"artificer/internal/budget"
)

// Request is one visual to resolve.
type Request struct {
	Prompt   string
	Filename string // relative path inside the package, e.g. "assets/icon.png"
	Dir      string // absolute package root the asset is written under
}

// Handle identifies a submitted task within one provider.
type Handle string

// PollState is the tri-state poll outcome.
type PollState int

const (
	Pending PollState = iota
	Ready
	Failed
)

// Poll is the result of one poll call.
type Poll struct {
	State  PollState
	Path   string // set when Ready
	Reason string // set when Failed
}

// Provider abstracts one generative-media back-end. Remote providers charge
// the run budget per submit.
type Provider interface {
	Name() string
	Remote() bool
	Submit(ctx context.Context, req Request) (Handle, error)
	Poll(ctx context.Context, h Handle) (Poll, error)
}

// Chain tries providers in order until one resolves the request.
type Chain struct {
	Providers []Provider
	Meter     *budget.Meter
	Timeout   time.Duration // per provider attempt
	Retries   int           // extra attempts per provider
	PollEvery time.Duration
}

// Resolve returns the asset (or deferred-manifest) path plus notes about
// providers that were skipped. Only a budget refusal is returned as an
// error, and even then a local provider may already have resolved the
// request.
func (c *Chain) Resolve(ctx context.Context, req Request) (string, []string, error) {
	var notes []string
	pollEvery := c.PollEvery
	if pollEvery <= 0 {
		pollEvery = 250 * time.Millisecond
	}

	for _, p := range c.Providers {
		if p.Remote() {
			if err := c.Meter.Charge(1); err != nil {
				notes = append(notes, fmt.Sprintf("assets: %s refused (budget)", p.Name()))
				if c.hasLocalFallback(p) {
					continue
				}
				return "", notes, err
			}
		}
		for attempt := 0; attempt <= c.Retries; attempt++ {
			path, err := c.tryOnce(ctx, p, req, pollEvery)
			if err == nil {
				return path, notes, nil
			}
			log.Printf("assets: %s attempt %d for %s: %v", p.Name(), attempt+1, req.Filename, err)
			if errors.Is(err, context.Canceled) {
				return "", notes, err
			}
		}
		notes = append(notes, fmt.Sprintf("assets: %s failed for %s", p.Name(), req.Filename))
	}
	return "", notes, fmt.Errorf("assets: no provider resolved %s", req.Filename)
}

// tryOnce submits and polls a single provider under the per-attempt timeout.
func (c *Chain) tryOnce(ctx context.Context, p Provider, req Request, pollEvery time.Duration) (string, error) {
	actx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	h, err := p.Submit(actx, req)
	if err != nil {
		return "", err
	}
	for {
		res, err := p.Poll(actx, h)
		if err != nil {
			return "", err
		}
		switch res.State {
		case Ready:
			return res.Path, nil
		case Failed:
			return "", errors.New(res.Reason)
		}
		select {
		case <-actx.Done():
			return "", actx.Err()
		case <-time.After(pollEvery):
		}
	}
}

// hasLocalFallback reports whether any provider after p is local, i.e. a
// budget refusal still leaves a path to a deferred manifest.
func (c *Chain) hasLocalFallback(p Provider) bool {
	seen := false
	for _, q := range c.Providers {
		if seen && !q.Remote() {
			return true
		}
		if q == p {
			seen = true
		}
	}
	return false
}
