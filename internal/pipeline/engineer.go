package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"artificer/internal/budget"
	"artificer/internal/llm"
	"artificer/internal/scan"
	t "artificer/internal/types"
)

const engineerSystem = `You are the Engineer stage of a build pipeline. You write one complete
file at a time. Respond with the raw file content only: no markdown fences,
no commentary.`

const repairSystem = `You repair a broken generated file. Respond with the corrected raw file
content only: no markdown fences, no commentary.`

// previewCap bounds how much of the already-generated code is replayed into
// each file prompt so cross-file references stay consistent without blowing
// up the context.
const previewCap = 4000

// Engineer generates the blueprint's files in order, one call per file plus
// at most MaxRepairs repair calls for source files that fail the structural
// check. It owns the code-map key space exclusively.
type Engineer struct {
	LLM        llm.Client
	Timeout    time.Duration
	MaxRepairs int
}

// Run returns the code-map delta. Provider failures skip the file with a
// note; only a budget refusal ends the stage early (the partial delta is
// still returned for best-effort bundling).
func (e *Engineer) Run(ctx context.Context, bp *t.Blueprint) (t.StageDelta, error) {
	delta := t.StageDelta{Code: map[string]string{}}

	for _, spec := range bp.Files {
		src, err := e.generate(ctx, bp, spec, delta.Code, bp.Files)
		if err != nil {
			if errors.Is(err, budget.ErrExceeded) {
				delta.Notes = append(delta.Notes, "engineer: budget exhausted at "+spec.Path)
				return delta, err
			}
			log.Printf("engineer: %s failed: %v", spec.Path, err)
			delta.Notes = append(delta.Notes, "engineer: skipped "+spec.Path+": "+err.Error())
			continue
		}
		delta.Code[spec.Path] = src
	}
	return delta, nil
}

func (e *Engineer) generate(ctx context.Context, bp *t.Blueprint, spec t.FileSpec, done map[string]string, order []t.FileSpec) (string, error) {
	user := e.filePrompt(bp, spec, done, order)

	cctx, cancel := context.WithTimeout(ctx, e.Timeout)
	raw, err := e.LLM.Complete(cctx, engineerSystem, user, false)
	cancel()
	if err != nil {
		return "", err
	}
	src := CleanGenerated(raw)

	if !scan.IsSource(spec.Path) {
		return src, nil
	}
	// Bounded parse-and-repair loop; each repair costs one call.
	for attempt := 0; ; attempt++ {
		synErr := scan.CheckSyntax(spec.Path, src)
		if synErr == nil {
			return src, nil
		}
		if attempt >= e.MaxRepairs {
			log.Printf("engineer: %s still broken after %d repairs, shipping as-is for audit", spec.Path, attempt)
			return src, nil
		}
		repairPrompt := fmt.Sprintf("File %s failed a structural check: %v\n\nCurrent content:\n%s", spec.Path, synErr, src)
		rctx, rcancel := context.WithTimeout(ctx, e.Timeout)
		raw, err = e.LLM.Complete(rctx, repairSystem, repairPrompt, false)
		rcancel()
		if err != nil {
			if errors.Is(err, budget.ErrExceeded) {
				return "", err
			}
			// keep the broken version; the Guardian will flag it
			return src, nil
		}
		src = CleanGenerated(raw)
	}
}

// filePrompt assembles the per-file request: project frame, this file's
// task, and a size-capped preview of everything generated so far, replayed
// in blueprint order.
func (e *Engineer) filePrompt(bp *t.Blueprint, spec t.FileSpec, done map[string]string, order []t.FileSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\nRun command: %s\n", bp.ProjectName, bp.RunCommand)
	if len(bp.Dependencies) > 0 {
		fmt.Fprintf(&b, "Dependencies: %s\n", strings.Join(bp.Dependencies, ", "))
	}
	fmt.Fprintf(&b, "\nWrite the file %s.\nTask: %s\n", spec.Path, spec.Task)

	var preview strings.Builder
	for _, prev := range order {
		src, ok := done[prev.Path]
		if !ok {
			continue
		}
		remaining := previewCap - preview.Len()
		if remaining <= 0 {
			break
		}
		if len(src) > remaining {
			src = src[:remaining]
		}
		fmt.Fprintf(&preview, "### FILE: %s\n%s\n", prev.Path, src)
	}
	if preview.Len() > 0 {
		b.WriteString("\nAlready generated (may be truncated):\n")
		b.WriteString(preview.String())
	}
	return b.String()
}
