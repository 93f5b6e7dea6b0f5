package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Model, cfg.Model)
	assert.Equal(t, Default().Budget, cfg.Budget)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artificer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: test-model\nbudget: 7\ntimeouts:\n  asset_sec: 5\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-model", cfg.Model)
	assert.Equal(t, 7, cfg.Budget)
	assert.Equal(t, 5, cfg.Timeouts.AssetSec)
	// untouched fields keep defaults
	assert.Equal(t, Default().Timeouts.ToolSec, cfg.Timeouts.ToolSec)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artificer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("budget: 7\n"), 0o644))
	t.Setenv("ARTIFICER_BUDGET", "3")
	t.Setenv("ARTIFICER_MODEL", "env-model")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Budget)
	assert.Equal(t, "env-model", cfg.Model)
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artificer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [unclosed"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
