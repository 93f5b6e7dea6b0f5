package llm

import (
	"context"
	"errors"
)

// ErrProvider wraps any completion backend failure (network, auth, empty
// response). Stage code catches it at the stage boundary and degrades;
// it is never propagated raw past a stage.
var ErrProvider = errors.New("llm: provider error")

// Client abstracts one completion call. structured asks the backend for a
// JSON-only response; callers still decode defensively via jsonutil.
type Client interface {
	Name() string
	Complete(ctx context.Context, systemPrompt, userPrompt string, structured bool) (string, error)
	Close() error
}
