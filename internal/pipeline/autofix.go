package pipeline

import "strings"

// smartQuotes maps typographic quotes the models occasionally emit back to
// ASCII so generated source actually parses.
var smartQuotes = strings.NewReplacer(
	"“", `"`, "”", `"`,
	"‘", `'`, "’", `'`,
	" ", " ",
)

// CleanGenerated is the deterministic auto-fix pass applied to every
// generated file before any audit: fence stripping, line-ending and quote
// normalization, trailing-whitespace removal. No network calls.
func CleanGenerated(src string) string {
	s := strings.TrimPrefix(src, "\uFEFF")
	s = stripOuterFence(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = smartQuotes.Replace(s)

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	s = strings.Join(lines, "\n")
	s = strings.TrimRight(s, "\n") + "\n"
	return s
}

// stripOuterFence removes one markdown code fence wrapping the whole body.
// Fences inside the body (e.g. a generated README) are left alone.
func stripOuterFence(s string) string {
	tr := strings.TrimSpace(s)
	if !strings.HasPrefix(tr, "```") || !strings.HasSuffix(tr, "```") {
		return s
	}
	tr = strings.TrimSuffix(tr, "```")
	tr = strings.TrimPrefix(tr, "```")
	if i := strings.IndexByte(tr, '\n'); i >= 0 {
		first := strings.TrimSpace(tr[:i])
		// a language tag has no spaces; anything else is real content
		if first == "" || !strings.Contains(first, " ") {
			tr = tr[i+1:]
		}
	}
	return tr
}
