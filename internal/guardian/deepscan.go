package guardian

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	t "artificer/internal/types"
)

const shadowSystem = `You are an adversarial reviewer hunting for shortcuts in generated code:
hardcoded secrets, authentication bypasses, unsanitized input reaching
execution sinks, overly permissive error or CORS handling. Report only what
is actually present.`

const deepReviewPrompt = `Deep-review this file for correctness and security issues.
Respond with a single JSON object:
{"findings": [{"file": "path", "severity": "CRITICAL|HIGH|MEDIUM|LOW", "detail": "..."}]}

`

const shadowPrompt = `Hunt for shortcut patterns in this file. For each one found, quote the
offending code in the detail. Respond with a single JSON object:
{"findings": [{"file": "path", "severity": "CRITICAL|HIGH|MEDIUM|LOW", "detail": "..."}]}

`

// deepScan is Phase 3: every T3 file gets one correctness/security review
// call and one adversarial shadow-logic call. Files are independent, so the
// per-file work runs concurrently; findings are tagged by file identity, not
// position, so collection order does not matter.
func (g *Guardian) deepScan(ctx context.Context, code map[string]string, tiers map[string]t.FileTier) []t.AuditFinding {
	t3 := filesInTier(tiers, t.TierHighRisk)
	if len(t3) == 0 {
		return nil
	}

	var mu sync.Mutex
	var findings []t.AuditFinding
	add := func(fs []t.AuditFinding) {
		mu.Lock()
		findings = append(findings, fs...)
		mu.Unlock()
	}

	eg, ectx := errgroup.WithContext(ctx)
	for _, path := range t3 {
		section := formatSections([]string{path}, code)
		reviewed := []string{path}
		eg.Go(func() error {
			raw, err := g.complete(ectx, reviewSystem, deepReviewPrompt+section, true)
			if err != nil {
				log.Printf("guardian: deep review of %s failed: %v", path, err)
				return budgetOnly(err)
			}
			add(parseFindings(raw, reviewed, t.SourceAIReview))
			return nil
		})
		eg.Go(func() error {
			raw, err := g.complete(ectx, shadowSystem, shadowPrompt+section, true)
			if err != nil {
				log.Printf("guardian: shadow scan of %s failed: %v", path, err)
				return budgetOnly(err)
			}
			add(parseFindings(raw, reviewed, t.SourceShadow))
			return nil
		})
	}
	// a budget refusal was already recorded by complete; the errgroup error
	// only served to cancel the sibling scans early
	_ = eg.Wait()
	return findings
}
