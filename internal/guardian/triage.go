package guardian

import (
	"context"
	"fmt"
	"log"
	"strings"

	t "artificer/internal/types"
	"artificer/internal/util/jsonutil"
)

const triageSystem = `You are a security triage reviewer. You decide which generated files
need a deep per-file audit.`

const triagePrompt = `Below are head-of-file summaries of files already considered low-signal.
List the filenames that deserve a deep security review because they touch
networking, processes, credentials, dynamic evaluation, or user input.

Respond with a single JSON object: {"promote": ["file1", "file2"]}
An empty list is a valid answer.

`

const reviewSystem = `You are a code reviewer. Report genuine correctness and security issues
in the files provided; do not invent findings.`

const combinedReviewPrompt = `Review all files below. Respond with a single JSON object:
{"findings": [{"file": "path", "severity": "CRITICAL|HIGH|MEDIUM|LOW", "detail": "..."}]}
An empty findings list is a valid answer.

`

// triageHeadLines bounds how much of each T2 file goes into the bulk triage
// request.
const triageHeadLines = 20

// triage is Phase 2: one combined call that picks T2 files to promote to T3,
// then one combined review call over the files that stay T2. Promotion is
// applied to the shared tier map and is monotonic by construction: only
// T2 entries are ever rewritten, only to T3.
func (g *Guardian) triage(ctx context.Context, code map[string]string, tiers map[string]t.FileTier) []t.AuditFinding {
	t2 := filesInTier(tiers, t.TierUncertain)
	if len(t2) == 0 {
		return nil
	}

	// Bulk promotion pass.
	var heads strings.Builder
	for _, path := range t2 {
		fmt.Fprintf(&heads, "%s %s\n%s\n", sectionMarker, path, headOf(code[path], triageHeadLines))
	}
	raw, err := g.complete(ctx, triageSystem, triagePrompt+heads.String(), true)
	if err != nil {
		log.Printf("guardian: triage call failed, keeping all files in T2: %v", err)
	} else {
		var resp struct {
			Promote []string `json:"promote"`
		}
		if err := jsonutil.UnmarshalModel(raw, &resp); err != nil {
			log.Printf("guardian: triage response unparseable, keeping all files in T2")
		} else {
			for _, path := range resp.Promote {
				if tiers[path] == t.TierUncertain {
					tiers[path] = t.TierHighRisk
				}
			}
		}
	}

	// Combined review of whatever remains in T2 — one call for all of them.
	remaining := filesInTier(tiers, t.TierUncertain)
	if len(remaining) == 0 {
		return nil
	}
	raw, err = g.complete(ctx, reviewSystem, combinedReviewPrompt+formatSections(remaining, code), true)
	if err != nil {
		log.Printf("guardian: combined review failed: %v", err)
		return nil
	}
	return parseFindings(raw, remaining, t.SourceAIReview)
}

// headOf returns the first n lines of src.
func headOf(src string, n int) string {
	lines := strings.Split(src, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

// parseFindings decodes a {"findings": [...]} response, dropping entries
// that name files outside the reviewed set.
func parseFindings(raw string, reviewed []string, source t.FindingSource) []t.AuditFinding {
	allowed := map[string]bool{}
	for _, p := range reviewed {
		allowed[p] = true
	}
	var resp struct {
		Findings []struct {
			File     string `json:"file"`
			Severity string `json:"severity"`
			Detail   string `json:"detail"`
		} `json:"findings"`
	}
	if err := jsonutil.UnmarshalModel(raw, &resp); err != nil {
		return nil
	}
	var out []t.AuditFinding
	for _, f := range resp.Findings {
		if !allowed[f.File] {
			continue
		}
		out = append(out, t.AuditFinding{
			File:     f.File,
			Severity: normalizeSeverity(f.Severity),
			Detail:   f.Detail,
			Source:   source,
		})
	}
	return out
}

func normalizeSeverity(s string) t.Severity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return t.SevCritical
	case "HIGH":
		return t.SevHigh
	case "LOW":
		return t.SevLow
	default:
		return t.SevMedium
	}
}
