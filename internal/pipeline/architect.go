package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"artificer/internal/budget"
	"artificer/internal/llm"
	t "artificer/internal/types"
	"artificer/internal/util/jsonutil"
)

const architectSystem = `You are the Architect stage of a build pipeline that turns one
natural-language request into a small runnable application.`

const architectPrompt = `Design a project for the request below.

Respond with a single JSON object, no comments, only these fields:
{
  "project_name": "snake_case_name",
  "files": [{"path": "main.py", "task": "what this file must do"}],
  "visuals": [{"prompt": "image description", "filename": "assets/icon.png"}],
  "dependencies": ["package==version"],
  "run_command": "python main.py"
}

Rules:
- Order files so later files may reference earlier ones.
- List only visuals the application genuinely needs; an empty list is fine.
- Keep dependencies minimal and pinned.

REQUEST:
`

// Architect turns a build prompt into a Blueprint with one structured call.
// It never aborts the run: a malformed or failed response degrades to a
// minimal one-file default blueprint. Only a budget refusal propagates.
type Architect struct {
	LLM     llm.Client
	Timeout time.Duration
}

// Run produces the blueprint plus degradation notes.
func (a *Architect) Run(ctx context.Context, prompt, recalled string) (*t.Blueprint, []string, error) {
	user := architectPrompt + prompt
	if recalled != "" {
		user += "\n\nCONTEXT FROM PREVIOUS BUILDS:\n" + recalled
	}

	cctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()
	raw, err := a.LLM.Complete(cctx, architectSystem, user, true)
	if err != nil {
		if errors.Is(err, budget.ErrExceeded) {
			return nil, nil, err
		}
		log.Printf("architect: completion failed, using default blueprint: %v", err)
		return DefaultBlueprint(prompt), []string{"architect: degraded to default blueprint: " + err.Error()}, nil
	}

	var bp t.Blueprint
	if err := jsonutil.UnmarshalModel(raw, &bp); err != nil || !bp.Valid() {
		log.Printf("architect: malformed blueprint, using default")
		return DefaultBlueprint(prompt), []string{"architect: malformed blueprint response, substituted default"}, nil
	}
	return &bp, nil, nil
}

// DefaultBlueprint is the degrade-not-fail substitute: a single trivial file
// that still exercises the rest of the pipeline.
func DefaultBlueprint(prompt string) *t.Blueprint {
	return &t.Blueprint{
		ProjectName: "generated_app",
		Files: []t.FileSpec{
			{Path: "main.py", Task: "Print a short message describing the request: " + prompt},
		},
		RunCommand: "python main.py",
	}
}
