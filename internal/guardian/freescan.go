package guardian

import (
	"sort"

	"artificer/internal/scan"
	t "artificer/internal/types"
)

// freeScan is Phase 1: the structural syntax check (CRITICAL on failure) and
// the deterministic forbidden-pattern scan (HIGH on match), applied to every
// file regardless of tier. No calls are made; for T1 files this is the whole
// audit.
func freeScan(code map[string]string) []t.AuditFinding {
	paths := make([]string, 0, len(code))
	for p := range code {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var findings []t.AuditFinding
	for _, path := range paths {
		src := code[path]
		if err := scan.CheckSyntax(path, src); err != nil {
			findings = append(findings, t.AuditFinding{
				File:     path,
				Severity: t.SevCritical,
				Detail:   err.Error(),
				Source:   t.SourceSyntax,
			})
		}
		for _, m := range scan.ForbiddenMatches(src) {
			findings = append(findings, t.AuditFinding{
				File:     path,
				Severity: t.SevHigh,
				Detail:   m.Detail + " (" + m.Pattern + ")",
				Source:   t.SourcePattern,
			})
		}
	}
	return findings
}
