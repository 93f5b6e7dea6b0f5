package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artificer/internal/budget"
	"artificer/internal/llm"
	t_ "artificer/internal/types"
)

func twoFileBlueprint() *t_.Blueprint {
	return &t_.Blueprint{
		ProjectName: "demo",
		Files: []t_.FileSpec{
			{Path: "util.py", Task: "helpers"},
			{Path: "main.py", Task: "entry point"},
		},
		RunCommand: "python main.py",
	}
}

func TestEngineerGeneratesInOrderWithPreview(t *testing.T) {
	cli := &llm.FakeClient{Rules: []llm.FakeRule{
		{Match: "util.py", Response: "def helper():\n    return 1\n"},
		{Match: "main.py", Response: "from util import helper\nprint(helper())\n"},
	}}
	e := &Engineer{LLM: cli, Timeout: time.Second, MaxRepairs: 2}

	delta, err := e.Run(context.Background(), twoFileBlueprint())
	require.NoError(t, err)
	require.Len(t, delta.Code, 2)
	assert.Contains(t, delta.Code["main.py"], "helper")

	// The second prompt must carry a preview of the first file.
	prompts := cli.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "### FILE: util.py")
	assert.Contains(t, prompts[1], "def helper()")
}

func TestEngineerRepairLoopIsBounded(t *testing.T) {
	broken := "def f():\n    return (1, 2\n"
	cli := &llm.FakeClient{Fallback: broken} // every repair returns broken code again
	e := &Engineer{LLM: cli, Timeout: time.Second, MaxRepairs: 2}

	bp := &t_.Blueprint{ProjectName: "demo", Files: []t_.FileSpec{{Path: "main.py", Task: "x"}}, RunCommand: "python main.py"}
	delta, err := e.Run(context.Background(), bp)
	require.NoError(t, err)
	// 1 generation + 2 repairs, then ship broken for the Guardian to flag.
	assert.Equal(t, 3, cli.Calls())
	assert.Contains(t, delta.Code, "main.py")
}

func TestEngineerRepairFixesFile(t *testing.T) {
	calls := 0
	cli := &scripted{fn: func(user string) (string, error) {
		calls++
		if strings.Contains(user, "failed a structural check") {
			return "def f():\n    return (1, 2)\n", nil
		}
		return "def f():\n    return (1, 2\n", nil
	}}
	e := &Engineer{LLM: cli, Timeout: time.Second, MaxRepairs: 2}

	bp := &t_.Blueprint{ProjectName: "demo", Files: []t_.FileSpec{{Path: "main.py", Task: "x"}}, RunCommand: "python main.py"}
	delta, err := e.Run(context.Background(), bp)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, delta.Code["main.py"], "return (1, 2)")
}

func TestEngineerSkipsFailedFileAndContinues(t *testing.T) {
	cli := &llm.FakeClient{Rules: []llm.FakeRule{
		{Match: "util.py", Err: llm.ErrProvider},
		{Match: "main.py", Response: "print(\"ok\")\n"},
	}}
	e := &Engineer{LLM: cli, Timeout: time.Second, MaxRepairs: 2}

	delta, err := e.Run(context.Background(), twoFileBlueprint())
	require.NoError(t, err)
	assert.NotContains(t, delta.Code, "util.py")
	assert.Contains(t, delta.Code, "main.py")
	assert.NotEmpty(t, delta.Notes)
}

func TestEngineerStopsOnBudgetButReturnsPartialDelta(t *testing.T) {
	m := budget.NewMeter(1)
	cli := llm.Wrap(&llm.FakeClient{Fallback: "print(\"ok\")\n"}, llm.WithMeter(m))
	e := &Engineer{LLM: cli, Timeout: time.Second, MaxRepairs: 0}

	delta, err := e.Run(context.Background(), twoFileBlueprint())
	require.ErrorIs(t, err, budget.ErrExceeded)
	assert.Contains(t, delta.Code, "util.py")
	assert.NotContains(t, delta.Code, "main.py")
}

func TestCleanGeneratedStripsFenceAndNormalizes(t *testing.T) {
	raw := "```python\r\nprint(“hi”)   \r\nprint('x')\r\n```"
	got := CleanGenerated(raw)
	assert.Equal(t, "print(\"hi\")\nprint('x')\n", got)
}

// scripted is a minimal Client whose behavior is a function of the prompt.
type scripted struct {
	fn func(user string) (string, error)
}

func (s *scripted) Name() string { return "scripted" }
func (s *scripted) Close() error { return nil }
func (s *scripted) Complete(_ context.Context, _ string, user string, _ bool) (string, error) {
	return s.fn(user)
}
