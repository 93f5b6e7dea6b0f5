package guardian

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	t "artificer/internal/types"
)

const repairSystem = `You patch generated files to remove security shortcuts while preserving
behavior. Respond with every patched file as a section:
### FILE: <path>
<full corrected content>
No commentary outside the sections.`

// repairShadow is Phase 4: if any shadow-logic findings exist, all affected
// files and their findings go into a single batched repair request. The
// response is parsed by the strict section tokenizer; only cleanly parsed
// rewrites for the affected files replace code-map entries.
func (g *Guardian) repairShadow(ctx context.Context, code map[string]string, findings []t.AuditFinding) map[string]string {
	byFile := map[string][]t.AuditFinding{}
	for _, f := range findings {
		if f.Source == t.SourceShadow {
			byFile[f.File] = append(byFile[f.File], f)
		}
	}
	if len(byFile) == 0 {
		return nil
	}

	var affected []string
	for path := range byFile {
		if _, ok := code[path]; ok {
			affected = append(affected, path)
		}
	}
	if len(affected) == 0 {
		return nil
	}
	sort.Strings(affected)

	var b strings.Builder
	b.WriteString("Patch the files below. Findings to address:\n")
	for _, path := range affected {
		for _, f := range byFile[path] {
			fmt.Fprintf(&b, "- %s: [%s] %s\n", path, f.Severity, f.Detail)
		}
	}
	b.WriteString("\n")
	b.WriteString(formatSections(affected, code))

	raw, err := g.complete(ctx, repairSystem, b.String(), false)
	if err != nil {
		log.Printf("guardian: batched repair failed: %v", err)
		return nil
	}

	allowed := map[string]bool{}
	for _, p := range affected {
		allowed[p] = true
	}
	patches := parseSections(raw, allowed)
	if len(patches) == 0 {
		log.Printf("guardian: repair response had no parseable sections")
	}
	return patches
}
