package compile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	t_ "artificer/internal/types"
)

func TestDetectEntryPriority(t *testing.T) {
	state := &t_.BuildState{Code: map[string]string{
		"util.py": "x = 1\n",
		"app.py":  "print('app')\n",
		"main.py": "print('main')\n",
	}}
	assert.Equal(t, "main.py", DetectEntry(state))

	delete(state.Code, "main.py")
	assert.Equal(t, "app.py", DetectEntry(state))
}

func TestDetectEntryFallsBackToBlueprint(t *testing.T) {
	state := &t_.BuildState{
		Blueprint: &t_.Blueprint{Files: []t_.FileSpec{
			{Path: "engine.py", Task: "core loop"},
			{Path: "sprites.py", Task: "drawing"},
		}},
		Code: map[string]string{
			"engine.py":  "import sprites\n",
			"sprites.py": "pass\n",
		},
	}
	assert.Equal(t, "engine.py", DetectEntry(state))

	assert.Equal(t, "", DetectEntry(&t_.BuildState{Code: map[string]string{"notes.md": "hi\n"}}))
}

func TestDetectPluginsFromImports(t *testing.T) {
	code := map[string]string{
		"main.py": "import pygame\nimport sys\n",
		"img.py":  "from PIL import Image\n",
		"mod.py":  "import json\n",
	}
	assert.Equal(t, []string{"--collect-all=PIL", "--collect-all=pygame"}, DetectPlugins(code))
	assert.Empty(t, DetectPlugins(map[string]string{"a.py": "import json\n"}))
}

func TestRunWritesManualScriptWhenNoToolAvailable(t *testing.T) {
	dir := t.TempDir()
	state := &t_.BuildState{Code: map[string]string{"main.py": "import pygame\n"}}
	p := &Packager{Timeout: time.Second, Tools: []string{"no-such-packager"}}

	note := p.Run(context.Background(), state, dir)
	assert.Contains(t, note, "package_manual.sh")

	raw, err := os.ReadFile(filepath.Join(dir, "package_manual.sh"))
	require.NoError(t, err)
	script := string(raw)
	assert.Contains(t, script, "pyinstaller --onefile")
	assert.Contains(t, script, "--collect-all=pygame")
	assert.Contains(t, script, "main.py")
}

func TestRunSkipsWithoutEntryPoint(t *testing.T) {
	p := &Packager{Timeout: time.Second, Tools: []string{"no-such-packager"}}
	note := p.Run(context.Background(), &t_.BuildState{Code: map[string]string{"data.json": "{}"}}, t.TempDir())
	assert.Contains(t, note, "no entry point")
}
