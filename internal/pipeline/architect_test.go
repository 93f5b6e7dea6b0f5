package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artificer/internal/budget"
	"artificer/internal/llm"
)

func TestArchitectParsesBlueprint(t *testing.T) {
	cli := &llm.FakeClient{Fallback: `{
		"project_name": "clock_app",
		"files": [{"path": "main.py", "task": "draw a clock"}],
		"visuals": [{"prompt": "clock face", "filename": "assets/face.png"}],
		"dependencies": ["pygame==2.5.0"],
		"run_command": "python main.py"
	}`}
	a := &Architect{LLM: cli, Timeout: time.Second}

	bp, notes, err := a.Run(context.Background(), "a clock", "")
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.Equal(t, "clock_app", bp.ProjectName)
	require.Len(t, bp.Files, 1)
	require.Len(t, bp.Visuals, 1)
}

func TestArchitectDegradesOnProviderFailure(t *testing.T) {
	// No scripted response: every call is a provider error (Scenario C).
	cli := &llm.FakeClient{}
	a := &Architect{LLM: cli, Timeout: time.Second}

	bp, notes, err := a.Run(context.Background(), "a hello tool", "")
	require.NoError(t, err)
	require.NotNil(t, bp)
	assert.True(t, bp.Valid())
	assert.Equal(t, "generated_app", bp.ProjectName)
	assert.NotEmpty(t, notes)
}

func TestArchitectDegradesOnMalformedResponse(t *testing.T) {
	cli := &llm.FakeClient{Fallback: "I would rather describe the app in prose."}
	a := &Architect{LLM: cli, Timeout: time.Second}

	bp, notes, err := a.Run(context.Background(), "anything", "")
	require.NoError(t, err)
	assert.Equal(t, "generated_app", bp.ProjectName)
	assert.NotEmpty(t, notes)
}

func TestArchitectPropagatesBudgetRefusal(t *testing.T) {
	m := budget.NewMeter(1)
	require.NoError(t, m.Charge(1))
	cli := llm.Wrap(&llm.FakeClient{Fallback: "{}"}, llm.WithMeter(m))
	a := &Architect{LLM: cli, Timeout: time.Second}

	_, _, err := a.Run(context.Background(), "anything", "")
	require.ErrorIs(t, err, budget.ErrExceeded)
}
