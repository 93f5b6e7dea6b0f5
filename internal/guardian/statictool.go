package guardian

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	t "artificer/internal/types"
)

// staticTools are tried in order; the first one present on PATH runs.
var staticTools = []string{"bandit", "semgrep"}

// staticScan is Phase 5: an external static analyzer over the generated
// tree, no AI call. MEDIUM and HIGH results merge into the finding list;
// a missing tool or a tool failure skips the phase with a note, it never
// fails the audit.
func (g *Guardian) staticScan(ctx context.Context, code map[string]string) ([]t.AuditFinding, string) {
	cands := g.Tools
	if cands == nil {
		cands = staticTools
	}
	tool := ""
	for _, cand := range cands {
		if _, err := exec.LookPath(cand); err == nil {
			tool = cand
			break
		}
	}
	if tool == "" {
		return nil, "guardian: no static analyzer on PATH, phase skipped"
	}

	dir, err := os.MkdirTemp("", "artificer-audit-*")
	if err != nil {
		return nil, "guardian: static scan skipped: " + err.Error()
	}
	defer os.RemoveAll(dir)
	for path, src := range code {
		dest := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			continue
		}
		_ = os.WriteFile(dest, []byte(src), 0o644)
	}

	tctx, cancel := context.WithTimeout(ctx, g.ToolTimeout)
	defer cancel()

	var out []byte
	switch tool {
	case "bandit":
		// bandit exits non-zero when it finds issues; the JSON is still valid
		out, _ = exec.CommandContext(tctx, "bandit", "-r", "-f", "json", "-q", dir).Output()
		return parseBandit(out, dir), ""
	case "semgrep":
		out, _ = exec.CommandContext(tctx, "semgrep", "--config=auto", "--json", "--quiet", dir).Output()
		return parseSemgrep(out, dir), ""
	}
	return nil, ""
}

func parseBandit(out []byte, root string) []t.AuditFinding {
	var doc struct {
		Results []struct {
			Filename string `json:"filename"`
			Severity string `json:"issue_severity"`
			Text     string `json:"issue_text"`
		} `json:"results"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		log.Printf("guardian: bandit output unparseable: %v", err)
		return nil
	}
	var findings []t.AuditFinding
	for _, r := range doc.Results {
		sev := normalizeSeverity(r.Severity)
		if sev != t.SevMedium && sev != t.SevHigh {
			continue
		}
		findings = append(findings, t.AuditFinding{
			File:     relTo(root, r.Filename),
			Severity: sev,
			Detail:   r.Text,
			Source:   t.SourceStaticTool,
		})
	}
	return findings
}

func parseSemgrep(out []byte, root string) []t.AuditFinding {
	var doc struct {
		Results []struct {
			Path  string `json:"path"`
			Extra struct {
				Severity string `json:"severity"`
				Message  string `json:"message"`
			} `json:"extra"`
		} `json:"results"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		log.Printf("guardian: semgrep output unparseable: %v", err)
		return nil
	}
	var findings []t.AuditFinding
	for _, r := range doc.Results {
		sev := t.SevMedium
		if strings.EqualFold(r.Extra.Severity, "ERROR") {
			sev = t.SevHigh
		}
		findings = append(findings, t.AuditFinding{
			File:     relTo(root, r.Path),
			Severity: sev,
			Detail:   r.Extra.Message,
			Source:   t.SourceStaticTool,
		})
	}
	return findings
}

func relTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}
