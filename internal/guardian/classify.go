package guardian

import (
	"sort"

	"artificer/internal/scan"
	t "artificer/internal/types"
)

// Classify assigns every file its initial risk tier. Pure function of
// (filename, source): trusted filename patterns are T1, anything carrying a
// high-risk signal is T3, the rest is T2. Assigned exactly once per run;
// triage may later promote T2 to T3 but nothing is ever demoted and T1 is
// never reclassified.
func Classify(code map[string]string) map[string]t.FileTier {
	tiers := make(map[string]t.FileTier, len(code))
	for path, src := range code {
		tiers[path] = classifyOne(path, src)
	}
	return tiers
}

func classifyOne(path, src string) t.FileTier {
	if scan.Trusted(path) || scan.Trivial(src) {
		return t.TierTrusted
	}
	if _, hit := scan.HighRiskSignal(src); hit {
		return t.TierHighRisk
	}
	return t.TierUncertain
}

// filesInTier returns the sorted file list for one tier; sorting keeps
// prompts and reports deterministic.
func filesInTier(tiers map[string]t.FileTier, tier t.FileTier) []string {
	var out []string
	for path, ft := range tiers {
		if ft == tier {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// tierCounts summarizes the breakdown for the report.
func tierCounts(tiers map[string]t.FileTier) map[string]int {
	out := map[string]int{"T1": 0, "T2": 0, "T3": 0}
	for _, ft := range tiers {
		out[ft.String()]++
	}
	return out
}
