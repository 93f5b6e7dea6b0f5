package guardian

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artificer/internal/budget"
	"artificer/internal/llm"
	t_ "artificer/internal/types"
)

func newGuardian(cli llm.Client) *Guardian {
	return &Guardian{
		LLM:         cli,
		Timeout:     time.Second,
		ToolTimeout: time.Second,
		Tools:       []string{"no-such-analyzer"}, // keep tests hermetic
	}
}

const emptyFindings = `{"findings": []}`

func TestTrustedFilesAuditedWithZeroCalls(t *testing.T) {
	// Scenario A: a single-file hello-world tool.
	cli := &llm.FakeClient{}
	g := newGuardian(cli)

	report, patched, _, err := g.Run(context.Background(), map[string]string{
		"main.py": "print('hello world')\n",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, cli.Calls())
	assert.Equal(t, 0, report.CallsUsed)
	assert.Equal(t, t_.AuditApproved, report.Status)
	assert.Equal(t, 100, report.OverallScore)
	assert.Equal(t, 1, report.TierCounts["T1"])
	assert.Equal(t, "print('hello world')\n", patched["main.py"])
}

func TestTriagePromotionIsMonotonic(t *testing.T) {
	cli := &llm.FakeClient{Rules: []llm.FakeRule{
		{Match: "List the filenames that deserve", Response: `{"promote": ["logic.py", "main.py", "nope.py"]}`},
		{Match: "Deep-review this file", Response: emptyFindings},
		{Match: "Hunt for shortcut patterns", Response: emptyFindings},
		{Match: "Review all files below", Response: emptyFindings},
	}}
	g := newGuardian(cli)

	code := map[string]string{
		// T2: imports, no high-risk signal
		"logic.py": "import json\nimport math\n\ndef load(p):\n    with open(p) as f:\n        return json.load(f)\n\ndef area(r):\n    return math.pi * r * r\n\ndef perim(r):\n    return 2 * math.pi * r\n\ndef norm(x):\n    return abs(x)\n",
		// T1 by content: promotion of a T1 file must be ignored
		"main.py": "print('entry')\n",
	}
	report, _, _, err := g.Run(context.Background(), code)
	require.NoError(t, err)

	// logic.py was promoted T2->T3; main.py stayed T1.
	assert.Equal(t, 1, report.TierCounts["T1"])
	assert.Equal(t, 0, report.TierCounts["T2"])
	assert.Equal(t, 1, report.TierCounts["T3"])
	// 1 triage + 2 deep-scan calls; no combined review since nothing stayed T2.
	assert.Equal(t, 3, report.CallsUsed)
}

func TestCombinedReviewIsOneCallForAllRemainingT2(t *testing.T) {
	cli := &llm.FakeClient{Rules: []llm.FakeRule{
		{Match: "List the filenames that deserve", Response: `{"promote": []}`},
		{Match: "Review all files below", Response: `{"findings": [{"file": "a.py", "severity": "MEDIUM", "detail": "magic number"}]}`},
	}}
	g := newGuardian(cli)

	t2src := "import json\n\ndef f(x):\n    return json.dumps(x)\n\ndef g(x):\n    return x + 1\n\ndef h(x):\n    return x - 1\n\ndef i(x):\n    return x * 2\n\ndef j(x):\n    return x / 2\n"
	report, _, _, err := g.Run(context.Background(), map[string]string{
		"a.py": t2src,
		"b.py": t2src,
		"c.py": t2src,
	})
	require.NoError(t, err)

	// 1 triage + 1 combined review, regardless of T2 file count.
	assert.Equal(t, 2, report.CallsUsed)
	assert.Equal(t, 6, report.NaiveCalls)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, t_.SourceAIReview, report.Findings[0].Source)
	assert.Equal(t, 90, report.ReviewScore)
}

func TestCriticalFindingRejects(t *testing.T) {
	cli := &llm.FakeClient{Fallback: emptyFindings}
	g := newGuardian(cli)

	report, _, _, err := g.Run(context.Background(), map[string]string{
		"broken.py": "import json\n\ndef f():\n    return (1, 2\n",
	})
	require.NoError(t, err)
	assert.Equal(t, t_.AuditRejected, report.Status)
	require.NotEmpty(t, report.Findings)
	assert.Equal(t, t_.SevCritical, report.Findings[0].Severity)
	assert.Equal(t, t_.SourceSyntax, report.Findings[0].Source)
	assert.Equal(t, 60, report.SyntaxScore)
}

func TestShadowFindingTriggersBatchedRepair(t *testing.T) {
	// Scenario B: unsanitized input reaching a process-execution sink.
	offending := "import subprocess\nimport sys\n\nsubprocess.run(sys.argv[1], shell=True)\n"
	patchedSrc := "import shlex\nimport subprocess\nimport sys\n\nsubprocess.run(shlex.split(sys.argv[1]))\n"

	cli := &llm.FakeClient{Rules: []llm.FakeRule{
		{Match: "Deep-review this file", Response: emptyFindings},
		{Match: "Hunt for shortcut patterns", Response: `{"findings": [{"file": "cmd.py", "severity": "HIGH", "detail": "unsanitized argv reaches subprocess with shell=True"}]}`},
		{Match: "Patch the files below", Response: "### FILE: cmd.py\n" + patchedSrc},
	}}
	g := newGuardian(cli)

	report, patched, notes, err := g.Run(context.Background(), map[string]string{"cmd.py": offending})
	require.NoError(t, err)

	assert.Equal(t, 1, report.TierCounts["T3"])
	var shadow []t_.AuditFinding
	for _, f := range report.Findings {
		if f.Source == t_.SourceShadow {
			shadow = append(shadow, f)
		}
	}
	require.NotEmpty(t, shadow)
	assert.NotContains(t, patched["cmd.py"], "shell=True")
	assert.Contains(t, patched["cmd.py"], "shlex.split")
	assert.Contains(t, notes, "guardian: patched cmd.py")
	// review + shadow + repair
	assert.Equal(t, 3, report.CallsUsed)
	assert.Equal(t, 75, report.ShadowScore)
}

func TestRejectionSanitizesEveryFile(t *testing.T) {
	cli := &llm.FakeClient{Fallback: emptyFindings}
	g := newGuardian(cli)

	report, patched, _, err := g.Run(context.Background(), map[string]string{
		// CRITICAL via unterminated string forces rejection
		"broken.py": "import json\n\ns = \"oops\n",
		// unflagged file still gets the deterministic pass
		"server.py": "import socket\n\nHOST = '0.0.0.0'\nDEBUG = True\n",
	})
	require.NoError(t, err)
	assert.Equal(t, t_.AuditRejected, report.Status)
	assert.NotContains(t, patched["server.py"], "0.0.0.0")
}

func TestConcurrentDeepScanBudgetRefusals(t *testing.T) {
	// Several T3 files fan Phase 3 out over goroutines; a near-empty meter
	// makes most of them hit the refusal path at the same time.
	m := budget.NewMeter(1)
	inner := &llm.FakeClient{Fallback: emptyFindings}
	cli := llm.Wrap(inner, llm.WithMeter(m))
	g := newGuardian(cli)

	code := map[string]string{}
	for _, name := range []string{"net_a.py", "net_b.py", "net_c.py", "net_d.py"} {
		code[name] = "import socket\n\nsocket.create_connection(('localhost', 80))\n"
	}
	report, patched, _, err := g.Run(context.Background(), code)
	require.ErrorIs(t, err, budget.ErrExceeded)
	require.NotNil(t, report)

	assert.Equal(t, 4, report.TierCounts["T3"])
	// exactly one charge fit the budget; refused calls are not counted
	assert.Equal(t, 1, report.CallsUsed)
	assert.Len(t, patched, 4)
}

func TestBudgetExhaustionMidAuditStillReports(t *testing.T) {
	m := budget.NewMeter(1)
	inner := &llm.FakeClient{Fallback: emptyFindings}
	cli := llm.Wrap(inner, llm.WithMeter(m))
	g := newGuardian(cli)

	t2src := "import json\n\ndef f(x):\n    return json.dumps(x)\n\ndef g(x):\n    return x + 1\n\ndef h(x):\n    return x - 1\n\ndef i(x):\n    return x * 2\n\ndef j(x):\n    return x / 2\n"
	report, patched, _, err := g.Run(context.Background(), map[string]string{"a.py": t2src})
	require.ErrorIs(t, err, budget.ErrExceeded)
	require.NotNil(t, report)
	assert.NotNil(t, patched)
	// only the triage call went through
	assert.Equal(t, 1, report.CallsUsed)
}
