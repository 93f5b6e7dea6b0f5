package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// FakeRule maps a substring of the user prompt to a canned response.
type FakeRule struct {
	Match    string
	Response string
	Err      error
}

// FakeClient is a scripted Client for tests. Rules are checked in order
// against the user prompt; the first match wins. With no match, Fallback is
// returned (empty Fallback means a provider error).
type FakeClient struct {
	Rules    []FakeRule
	Fallback string

	calls atomic.Int64
	mu    sync.Mutex
	log   []string
}

func (f *FakeClient) Name() string { return "fake" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) Complete(_ context.Context, sys, user string, _ bool) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.log = append(f.log, user)
	f.mu.Unlock()
	for _, r := range f.Rules {
		if r.Match != "" && strings.Contains(user, r.Match) {
			if r.Err != nil {
				return "", r.Err
			}
			return r.Response, nil
		}
	}
	if f.Fallback != "" {
		return f.Fallback, nil
	}
	return "", fmt.Errorf("%w: no scripted response", ErrProvider)
}

// Calls returns how many completions were requested.
func (f *FakeClient) Calls() int { return int(f.calls.Load()) }

// Prompts returns a copy of all user prompts seen so far.
func (f *FakeClient) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}
