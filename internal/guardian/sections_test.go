package guardian

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatParseSectionsRoundTrip(t *testing.T) {
	code := map[string]string{
		"main.py": "print('a')\n",
		"util.py": "def f():\n    return 1\n",
	}
	allowed := map[string]bool{"main.py": true, "util.py": true}
	payload := formatSections([]string{"main.py", "util.py"}, code)

	got := parseSections(payload, allowed)
	require.Len(t, got, 2)
	assert.Equal(t, "print('a')\n", got["main.py"])
}

func TestParseSectionsSkipsUnknownFiles(t *testing.T) {
	resp := "### FILE: main.py\nprint('ok')\n### FILE: ../../etc/passwd\nhacked\n"
	got := parseSections(resp, map[string]bool{"main.py": true})
	require.Len(t, got, 1)
	assert.Contains(t, got, "main.py")
}

func TestParseSectionsSkipsEmptyBodiesAndLeadingProse(t *testing.T) {
	resp := "Here are the patched files:\n### FILE: a.py\n\n### FILE: b.py\nprint('b')\n"
	got := parseSections(resp, map[string]bool{"a.py": true, "b.py": true})
	require.Len(t, got, 1)
	assert.Equal(t, "print('b')\n", got["b.py"])
}

func TestParseSectionsNoMarkers(t *testing.T) {
	got := parseSections("no sections here at all", map[string]bool{"a.py": true})
	assert.Empty(t, got)
}
