package guardian

import (
	"fmt"
	"strings"
)

// sectionMarker is the wire convention for multi-file payloads in both
// directions: each file is introduced by "### FILE: <path>" on its own line.
const sectionMarker = "### FILE:"

// formatSections renders files into one delimited payload, in the given
// order.
func formatSections(paths []string, code map[string]string) string {
	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "%s %s\n%s\n", sectionMarker, p, code[p])
	}
	return b.String()
}

// parseSections tokenizes a delimited multi-file response. It is strict
// where it matters: sections naming a file outside the allowed set are
// skipped, an empty body is skipped, and text before the first marker is
// ignored. Best-effort substring search is deliberately not used.
func parseSections(s string, allowed map[string]bool) map[string]string {
	out := map[string]string{}
	var cur string
	var body []string

	flush := func() {
		if cur == "" {
			return
		}
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if content != "" && allowed[cur] {
			out[cur] = content + "\n"
		}
		cur, body = "", nil
	}

	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), sectionMarker) {
			flush()
			name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), sectionMarker))
			cur = name
			continue
		}
		if cur != "" {
			body = append(body, line)
		}
	}
	flush()
	return out
}
