// Package jsonutil decodes JSON produced by language models, which routinely
// arrives wrapped in markdown fences or with stray prose around the payload.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when no JSON payload can be located in the text.
var ErrNoJSON = errors.New("jsonutil: no JSON payload found")

// StripFences removes a leading/trailing markdown code fence (``` or
// ```json) if present and returns the inner text unchanged otherwise.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		// drop the language tag line ("json", "python", ...)
		t = t[i+1:]
	}
	if i := strings.LastIndex(t, "```"); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

// ExtractObject returns the outermost {...} span in s, tolerating prose
// before and after it. Braces inside string literals are honored.
func ExtractObject(s string) (string, bool) {
	start := -1
	depth := 0
	inStr := false
	esc := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// UnmarshalModel decodes model output into v: direct decode first, then after
// fence stripping, then from the outermost object span. Anything still
// undecodable is an ErrNoJSON (callers apply their default-substitution
// policy rather than trusting partial data).
func UnmarshalModel(raw string, v any) error {
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}
	clean := StripFences(raw)
	if err := json.Unmarshal([]byte(clean), v); err == nil {
		return nil
	}
	if obj, ok := ExtractObject(clean); ok {
		if err := json.Unmarshal([]byte(obj), v); err == nil {
			return nil
		}
	}
	return ErrNoJSON
}

// MarshalNoEscape encodes v without HTML escaping (< > & stay literal),
// which keeps generated source readable inside JSON manifests.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalNoEscapeIndent is MarshalNoEscape with indentation.
func MarshalNoEscapeIndent(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
