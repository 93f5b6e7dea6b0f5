// Package compile turns an approved package into a native binary when a
// packaging tool is available. The fallback shape mirrors the asset chain:
// primary tool, secondary tool, then an emitted manual script.
package compile

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	t "artificer/internal/types"
)

// entryCandidates is the priority order for entry-point detection.
var entryCandidates = []string{"main.py", "app.py", "run.py", "game.py"}

// pluginImports maps an imported module to the pyinstaller collect flag the
// packaged binary needs for it.
var pluginImports = map[string]string{
	"pygame":   "--collect-all=pygame",
	"tkinter":  "--hidden-import=tkinter",
	"PIL":      "--collect-all=PIL",
	"numpy":    "--collect-all=numpy",
	"requests": "--hidden-import=requests",
}

// packagingTools is the default tool priority.
var packagingTools = []string{"pyinstaller", "nuitka"}

// Packager is the optional native-packaging stage, gated on an APPROVED
// audit by the scheduler.
type Packager struct {
	Timeout time.Duration
	Tools   []string // nil selects the default tool priority
}

// Run packages projectDir. It never fails the build: every outcome is a
// note, and when no tool is available a manual packaging script is written
// instead.
func (p *Packager) Run(ctx context.Context, state *t.BuildState, projectDir string) string {
	entry := DetectEntry(state)
	if entry == "" {
		return "compile: no entry point found, skipped"
	}
	plugins := DetectPlugins(state.Code)

	tools := p.Tools
	if tools == nil {
		tools = packagingTools
	}
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			continue
		}
		if err := p.invoke(ctx, tool, projectDir, entry, plugins); err != nil {
			log.Printf("compile: %s failed: %v", tool, err)
			continue
		}
		return "compile: packaged with " + tool
	}

	script, err := writeManualScript(projectDir, entry, plugins)
	if err != nil {
		return "compile: manual script failed: " + err.Error()
	}
	return "compile: no packaging tool available, wrote " + filepath.Base(script)
}

func (p *Packager) invoke(ctx context.Context, tool, dir, entry string, plugins []string) error {
	tctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	var args []string
	switch tool {
	case "pyinstaller":
		args = append([]string{"--onefile", "--noconfirm"}, plugins...)
		args = append(args, entry)
	case "nuitka":
		args = []string{"--onefile", entry}
	default:
		args = []string{entry}
	}
	cmd := exec.CommandContext(tctx, tool, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", tool, err, firstLine(out))
	}
	return nil
}

// DetectEntry picks the entry point: the candidate list first, then the
// first blueprint source file.
func DetectEntry(state *t.BuildState) string {
	for _, cand := range entryCandidates {
		if _, ok := state.Code[cand]; ok {
			return cand
		}
	}
	if state.Blueprint != nil {
		for _, f := range state.Blueprint.Files {
			if strings.HasSuffix(f.Path, ".py") {
				if _, ok := state.Code[f.Path]; ok {
					return f.Path
				}
			}
		}
	}
	return ""
}

// DetectPlugins scans imports across the code map and returns the packaging
// flags the runtime plugins require, sorted for determinism.
func DetectPlugins(code map[string]string) []string {
	seen := map[string]bool{}
	for _, src := range code {
		for _, line := range strings.Split(src, "\n") {
			line = strings.TrimSpace(line)
			for mod, flag := range pluginImports {
				if strings.HasPrefix(line, "import "+mod) || strings.HasPrefix(line, "from "+mod+" ") {
					seen[flag] = true
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// writeManualScript emits the commands a user can run once they install a
// packaging tool themselves.
func writeManualScript(dir, entry string, plugins []string) (string, error) {
	p := filepath.Join(dir, "package_manual.sh")
	var b strings.Builder
	b.WriteString("#!/bin/sh\n# Run after installing pyinstaller (pip install pyinstaller).\nset -e\ncd \"$(dirname \"$0\")\"\n")
	b.WriteString("pyinstaller --onefile --noconfirm")
	for _, f := range plugins {
		b.WriteString(" " + f)
	}
	b.WriteString(" " + entry + "\n")
	return p, os.WriteFile(p, []byte(b.String()), 0o755)
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
