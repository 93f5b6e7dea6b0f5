// Package guardian is the tiered security-audit engine that sits between
// code generation and packaging. Tiering bounds AI usage: a handful of
// batched calls covers the bulk of files, and only files classified
// high-risk pay for per-file scans.
package guardian

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"artificer/internal/budget"
	"artificer/internal/llm"
	"artificer/internal/scan"
	t "artificer/internal/types"
)

// Guardian audits one code map per run. Phases execute strictly in order:
// classify, free scans, bulk triage, deep scan, batched repair, static tool.
type Guardian struct {
	LLM         llm.Client
	Timeout     time.Duration // per completion call
	ToolTimeout time.Duration // static analyzer subprocess
	Tools       []string      // analyzer candidates; nil selects the default list

	calls atomic.Int64

	// budgetErr is written from the concurrent Phase 3 goroutines.
	mu        sync.Mutex
	budgetErr error
}

// Run audits the code map and returns the report plus the possibly-patched
// map. The returned error is non-nil only when the budget ran out mid-audit;
// the report and patches produced up to that point are still returned so the
// bundler can ship partial results.
func (g *Guardian) Run(ctx context.Context, code map[string]string) (*t.AuditReport, map[string]string, []string, error) {
	patched := make(map[string]string, len(code))
	for k, v := range code {
		patched[k] = v
	}
	var notes []string

	// Phase 0: pure classification, assigned exactly once.
	tiers := Classify(patched)
	log.Printf("guardian: classified %d files: %v", len(patched), tierCounts(tiers))

	// Phase 1: free scans over every tier.
	findings := freeScan(patched)

	// Phase 2: bulk triage and combined review over T2.
	findings = append(findings, g.triage(ctx, patched, tiers)...)

	// Phase 3: per-file deep scans over T3.
	findings = append(findings, g.deepScan(ctx, patched, tiers)...)

	// Phase 4: one batched repair call if shadow findings exist.
	for path, fixed := range g.repairShadow(ctx, patched, findings) {
		patched[path] = fixed
		notes = append(notes, "guardian: patched "+path)
	}

	// Phase 5: external static analyzer, merged in.
	staticFindings, skipNote := g.staticScan(ctx, patched)
	findings = append(findings, staticFindings...)
	if skipNote != "" {
		notes = append(notes, skipNote)
	}

	report := buildReport(findings, tiers, int(g.calls.Load()), len(code))

	// Rejection degrades rather than aborts: a deterministic auto-fix pass
	// runs over every file before the build proceeds.
	if report.Status == t.AuditRejected {
		n := 0
		for path, src := range patched {
			if fixed, changed := scan.Sanitize(src); changed {
				patched[path] = fixed
				n++
			}
		}
		if n > 0 {
			notes = append(notes, "guardian: rejected, sanitized "+strconv.Itoa(n)+" files")
		}
	}

	return report, patched, notes, g.budgetFailure()
}

// complete issues one audited call under the per-call timeout, tracking
// telemetry. Budget refusals are remembered so Run can surface them.
func (g *Guardian) complete(ctx context.Context, sys, user string, structured bool) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()
	out, err := g.LLM.Complete(cctx, sys, user, structured)
	if err == nil || !errors.Is(err, budget.ErrExceeded) {
		g.calls.Add(1)
	}
	g.noteBudget(err)
	return out, err
}

// noteBudget remembers the first budget refusal. Every call site funnels
// through here, including the concurrent deep-scan goroutines.
func (g *Guardian) noteBudget(err error) {
	if err = budgetOnly(err); err == nil {
		return
	}
	g.mu.Lock()
	if g.budgetErr == nil {
		g.budgetErr = err
	}
	g.mu.Unlock()
}

func (g *Guardian) budgetFailure() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.budgetErr
}

// budgetOnly filters err down to a budget refusal; every other failure is
// stage-local and swallowed by the caller's degrade path.
func budgetOnly(err error) error {
	if errors.Is(err, budget.ErrExceeded) {
		return err
	}
	return nil
}
