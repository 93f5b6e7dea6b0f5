package types

// BuildStatus tracks a run through its lifecycle. Transitions are monotonic:
// init -> building -> auditing -> done|failed. A later stage never moves the
// status backwards.
type BuildStatus string

const (
	StatusInit     BuildStatus = "init"
	StatusBuilding BuildStatus = "building"
	StatusAuditing BuildStatus = "auditing"
	StatusDone     BuildStatus = "done"
	StatusFailed   BuildStatus = "failed"
)

// statusRank orders statuses for the monotonicity check.
var statusRank = map[BuildStatus]int{
	StatusInit:     0,
	StatusBuilding: 1,
	StatusAuditing: 2,
	StatusDone:     3,
	StatusFailed:   3, // terminal, same rank as done
}

// After reports whether s is at or past prev in the lifecycle.
func (s BuildStatus) After(prev BuildStatus) bool {
	return statusRank[s] >= statusRank[prev]
}

// FileTier is the risk bucket assigned to a generated file. It bounds how
// much AI audit the file receives: T1 gets free scans only, T2 is reviewed
// in combined batches, T3 gets per-file deep scans.
type FileTier int

const (
	TierTrusted  FileTier = iota + 1 // T1: manifests, constants, tests
	TierUncertain                    // T2: everything else
	TierHighRisk                     // T3: matches a high-risk signal
)

func (t FileTier) String() string {
	switch t {
	case TierTrusted:
		return "T1"
	case TierUncertain:
		return "T2"
	case TierHighRisk:
		return "T3"
	}
	return "T?"
}

// Severity of an audit finding.
type Severity string

const (
	SevCritical Severity = "CRITICAL"
	SevHigh     Severity = "HIGH"
	SevMedium   Severity = "MEDIUM"
	SevLow      Severity = "LOW"
)

// FindingSource identifies which audit phase produced a finding.
type FindingSource string

const (
	SourceSyntax     FindingSource = "syntax"
	SourcePattern    FindingSource = "pattern"
	SourceAIReview   FindingSource = "ai-review"
	SourceShadow     FindingSource = "shadow-logic"
	SourceStaticTool FindingSource = "static-tool"
)

// AuditFinding is one issue reported against one file.
type AuditFinding struct {
	File     string        `json:"file"`
	Severity Severity      `json:"severity"`
	Detail   string        `json:"detail"`
	Source   FindingSource `json:"source"`
}

// AuditStatus is the Guardian verdict.
type AuditStatus string

const (
	AuditApproved AuditStatus = "APPROVED"
	AuditRejected AuditStatus = "REJECTED"
)

// AuditReport is the Guardian output. Sub-scores start at 100 and are
// decremented per matching finding, floored at 0. Any CRITICAL finding
// forces Status == REJECTED.
type AuditReport struct {
	Status       AuditStatus    `json:"status"`
	SyntaxScore  int            `json:"syntax_score"`
	PatternScore int            `json:"pattern_score"`
	ReviewScore  int            `json:"review_score"`
	ShadowScore  int            `json:"shadow_score"`
	OverallScore int            `json:"overall_score"`
	Findings     []AuditFinding `json:"findings"`
	TierCounts   map[string]int `json:"tier_counts"`
	CallsUsed    int            `json:"calls_used"`
	NaiveCalls   int            `json:"naive_calls"` // what per-file auditing would have cost
}

// HasCritical reports whether any finding is CRITICAL.
func (r *AuditReport) HasCritical() bool {
	for _, f := range r.Findings {
		if f.Severity == SevCritical {
			return true
		}
	}
	return false
}
