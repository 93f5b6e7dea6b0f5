// Package bundle serializes a BuildState into the on-disk package layout:
// generated files with tamper-evident headers, manifests, the audit log,
// a security summary, and platform bootstrap scripts.
package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"artificer/internal/scan"
	t "artificer/internal/types"
	"artificer/internal/util/jsonutil"
)

// AuditLogName is the report serialization inside the package root.
const AuditLogName = "audit_log"

// Bundler writes the package. It is best-effort by contract: it runs even
// for failed builds so partial state is always delivered.
type Bundler struct {
	Now func() time.Time // defaults to time.Now; fixed in tests
}

func (b *Bundler) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// Run writes the whole package under projectDir and returns the paths it
// wrote. Only unrecoverable I/O errors propagate.
func (b *Bundler) Run(state *t.BuildState, projectDir string) ([]string, error) {
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return nil, fmt.Errorf("bundle: create %s: %w", projectDir, err)
	}
	var written []string
	add := func(p string) { written = append(written, p) }

	paths := make([]string, 0, len(state.Code))
	for p := range state.Code {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	stamp := b.now().UTC()
	for _, path := range paths {
		src := state.Code[path]
		dest := filepath.Join(projectDir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return written, fmt.Errorf("bundle: mkdir for %s: %w", path, err)
		}
		body := src
		if scan.IsSource(path) {
			body = fileHeader(path, src, state.Report, stamp) + src
		}
		if err := os.WriteFile(dest, []byte(body), 0o644); err != nil {
			return written, fmt.Errorf("bundle: write %s: %w", path, err)
		}
		add(dest)
	}

	if err := os.MkdirAll(filepath.Join(projectDir, "assets"), 0o755); err != nil {
		return written, err
	}

	if p, err := b.writeDependencies(state, projectDir); err != nil {
		log.Printf("bundle: dependency manifest: %v", err)
	} else if p != "" {
		add(p)
	}
	for _, step := range []func(*t.BuildState, string) (string, error){
		b.writeReadme,
		b.writeAuditLog,
		b.writeSecuritySummary,
		b.writeBuildManifest,
	} {
		p, err := step(state, projectDir)
		if err != nil {
			return written, err
		}
		if p != "" {
			add(p)
		}
	}
	for _, p := range b.writeBootstrap(state, projectDir) {
		add(p)
	}
	return written, nil
}

// fileHeader is the tamper-evident prefix: a digest over content and
// timestamp plus the audit outcome, in the language's comment syntax.
func fileHeader(path, src string, report *t.AuditReport, stamp time.Time) string {
	prefix := "# "
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".js" || ext == ".go" {
		prefix = "// "
	}
	sum := sha256.Sum256([]byte(src + stamp.Format(time.RFC3339)))
	outcome := "UNAUDITED"
	if report != nil {
		outcome = string(report.Status)
	}
	return fmt.Sprintf("%sgenerated by artificer | %s | sha256:%s | audit:%s\n",
		prefix, stamp.Format(time.RFC3339), hex.EncodeToString(sum[:8]), outcome)
}

func (b *Bundler) writeDependencies(state *t.BuildState, dir string) (string, error) {
	if state.Blueprint == nil || len(state.Blueprint.Dependencies) == 0 {
		return "", nil
	}
	p := filepath.Join(dir, "requirements.txt")
	return p, os.WriteFile(p, []byte(strings.Join(state.Blueprint.Dependencies, "\n")+"\n"), 0o644)
}

func (b *Bundler) writeReadme(state *t.BuildState, dir string) (string, error) {
	name, run := "generated project", ""
	if state.Blueprint != nil {
		name, run = state.Blueprint.ProjectName, state.Blueprint.RunCommand
	}
	var w strings.Builder
	fmt.Fprintf(&w, "# %s\n\nBuilt from the request:\n\n> %s\n\n", name, state.Prompt)
	if run != "" {
		fmt.Fprintf(&w, "## Run\n\n```\n%s\n```\n\n", run)
	}
	w.WriteString("See SECURITY_SUMMARY.md for the audit outcome and " + AuditLogName + " for the full report.\n")
	p := filepath.Join(dir, "README.md")
	return p, os.WriteFile(p, []byte(w.String()), 0o644)
}

func (b *Bundler) writeAuditLog(state *t.BuildState, dir string) (string, error) {
	if state.Report == nil {
		return "", nil
	}
	out, err := jsonutil.MarshalNoEscapeIndent(state.Report, "  ")
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, AuditLogName)
	return p, os.WriteFile(p, append(out, '\n'), 0o644)
}

// ReadAuditLog re-parses a serialized report; the round-trip preserves
// status, scores and finding list.
func ReadAuditLog(dir string) (*t.AuditReport, error) {
	raw, err := os.ReadFile(filepath.Join(dir, AuditLogName))
	if err != nil {
		return nil, err
	}
	var report t.AuditReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("bundle: parse %s: %w", AuditLogName, err)
	}
	return &report, nil
}

func (b *Bundler) writeSecuritySummary(state *t.BuildState, dir string) (string, error) {
	var w strings.Builder
	w.WriteString("# Security summary\n\n")
	if state.Report == nil {
		w.WriteString("The audit did not run; treat this package as unreviewed.\n")
	} else {
		r := state.Report
		fmt.Fprintf(&w, "Verdict: **%s** (overall score %d/100)\n\n", r.Status, r.OverallScore)
		fmt.Fprintf(&w, "| Check | Score |\n|---|---|\n| Syntax | %d |\n| Patterns | %d |\n| Review | %d |\n| Shadow logic | %d |\n\n",
			r.SyntaxScore, r.PatternScore, r.ReviewScore, r.ShadowScore)
		fmt.Fprintf(&w, "Audited %d files (T1 %d / T2 %d / T3 %d) with %d AI calls; per-file auditing would have used %d.\n\n",
			len(state.Code), r.TierCounts["T1"], r.TierCounts["T2"], r.TierCounts["T3"], r.CallsUsed, r.NaiveCalls)
		if len(r.Findings) == 0 {
			w.WriteString("No findings.\n")
		} else {
			w.WriteString("## Findings\n\n")
			for _, f := range r.Findings {
				fmt.Fprintf(&w, "- `%s` [%s/%s] %s\n", f.File, f.Severity, f.Source, f.Detail)
			}
		}
	}
	if len(state.Notes) > 0 {
		w.WriteString("\n## Build notes\n\n")
		for _, n := range state.Notes {
			fmt.Fprintf(&w, "- %s\n", n)
		}
	}
	p := filepath.Join(dir, "SECURITY_SUMMARY.md")
	return p, os.WriteFile(p, []byte(w.String()), 0o644)
}

// buildManifest is the machine-readable counterpart of the summary.
type buildManifest struct {
	Project      string         `json:"project"`
	Status       t.BuildStatus  `json:"status"`
	Audit        t.AuditStatus  `json:"audit,omitempty"`
	OverallScore int            `json:"overall_score"`
	TierCounts   map[string]int `json:"tier_counts,omitempty"`
	CallsUsed    int            `json:"calls_used"`
	NaiveCalls   int            `json:"naive_calls"`
	Files        []string       `json:"files"`
	Assets       []string       `json:"assets"`
	Notes        []string       `json:"notes,omitempty"`
}

func (b *Bundler) writeBuildManifest(state *t.BuildState, dir string) (string, error) {
	m := buildManifest{
		Project:   "generated project",
		Status:    state.Status,
		CallsUsed: state.CallsUsed,
		Assets:    append([]string(nil), state.Assets...),
		Notes:     append([]string(nil), state.Notes...),
	}
	if state.Blueprint != nil {
		m.Project = state.Blueprint.ProjectName
	}
	if state.Report != nil {
		m.Audit = state.Report.Status
		m.OverallScore = state.Report.OverallScore
		m.TierCounts = state.Report.TierCounts
		m.NaiveCalls = state.Report.NaiveCalls
	}
	for p := range state.Code {
		m.Files = append(m.Files, p)
	}
	sort.Strings(m.Files)
	out, err := jsonutil.MarshalNoEscapeIndent(m, "  ")
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, "build_manifest.json")
	return p, os.WriteFile(p, append(out, '\n'), 0o644)
}

// writeBootstrap emits run.sh and run.bat wrapping the blueprint's run
// command. Failures here only cost the scripts, never the package.
func (b *Bundler) writeBootstrap(state *t.BuildState, dir string) []string {
	if state.Blueprint == nil || state.Blueprint.RunCommand == "" {
		return nil
	}
	run := state.Blueprint.RunCommand
	var out []string

	sh := filepath.Join(dir, "run.sh")
	body := "#!/bin/sh\nset -e\ncd \"$(dirname \"$0\")\"\n"
	if _, err := os.Stat(filepath.Join(dir, "requirements.txt")); err == nil {
		body += "pip install -r requirements.txt\n"
	}
	body += run + "\n"
	if err := os.WriteFile(sh, []byte(body), 0o755); err == nil {
		out = append(out, sh)
	}

	bat := filepath.Join(dir, "run.bat")
	wbody := "@echo off\r\ncd /d %~dp0\r\n"
	if _, err := os.Stat(filepath.Join(dir, "requirements.txt")); err == nil {
		wbody += "pip install -r requirements.txt\r\n"
	}
	wbody += run + "\r\n"
	if err := os.WriteFile(bat, []byte(wbody), 0o644); err == nil {
		out = append(out, bat)
	}
	return out
}
