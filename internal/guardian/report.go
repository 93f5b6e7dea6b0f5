package guardian

import (
	t "artificer/internal/types"
)

// Per-finding score penalties. The shape is the contract (four sub-scores,
// 0-100, any CRITICAL rejects); the numbers are tunable.
var penalties = map[t.Severity]int{
	t.SevCritical: 40,
	t.SevHigh:     25,
	t.SevMedium:   10,
	t.SevLow:      5,
}

// buildReport computes the verdict, sub-scores and telemetry. Each sub-score
// starts at 100 and loses the penalty for every finding from its source,
// floored at 0. Static-tool findings count against the pattern score since
// both are mechanical scans.
func buildReport(findings []t.AuditFinding, tiers map[string]t.FileTier, callsUsed, fileCount int) *t.AuditReport {
	scores := map[t.FindingSource]int{
		t.SourceSyntax:   100,
		t.SourcePattern:  100,
		t.SourceAIReview: 100,
		t.SourceShadow:   100,
	}
	for _, f := range findings {
		src := f.Source
		if src == t.SourceStaticTool {
			src = t.SourcePattern
		}
		scores[src] -= penalties[f.Severity]
		if scores[src] < 0 {
			scores[src] = 0
		}
	}

	report := &t.AuditReport{
		Status:       t.AuditApproved,
		SyntaxScore:  scores[t.SourceSyntax],
		PatternScore: scores[t.SourcePattern],
		ReviewScore:  scores[t.SourceAIReview],
		ShadowScore:  scores[t.SourceShadow],
		Findings:     findings,
		TierCounts:   tierCounts(tiers),
		CallsUsed:    callsUsed,
		NaiveCalls:   2 * fileCount, // what per-file review + shadow would cost
	}
	report.OverallScore = (report.SyntaxScore + report.PatternScore + report.ReviewScore + report.ShadowScore) / 4
	if report.HasCritical() {
		report.Status = t.AuditRejected
	}
	return report
}
