// Package scan holds the deterministic, call-free checks the pipeline runs
// over generated files: source detection, a syntax sanity check, the
// high-risk signal set used for tier classification, the forbidden-pattern
// scan, and the pattern-based sanitizer.
package scan

import (
	"fmt"
	"path/filepath"
	"strings"
)

// sourceExts are the extensions treated as executable source. Everything
// else (manifests, data, docs) skips the parse/repair loop.
var sourceExts = map[string]bool{
	".py": true, ".js": true, ".go": true, ".rb": true, ".sh": true,
}

// IsSource reports whether path names an executable source file.
func IsSource(path string) bool {
	return sourceExts[strings.ToLower(filepath.Ext(path))]
}

// CheckSyntax is a language-agnostic structural sanity check: non-empty
// content, balanced brackets and terminated string literals. It is not a
// parser; it exists to catch truncated or garbled generations without any
// network call.
func CheckSyntax(path, src string) error {
	if strings.TrimSpace(src) == "" {
		return fmt.Errorf("%s: empty file", path)
	}
	if !IsSource(path) {
		return nil
	}
	lineComment := "#"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".js" || ext == ".go" {
		lineComment = "//"
	}

	var stack []byte
	pairs := map[byte]byte{')': '(', ']': '[', '}': '{'}

	for _, line := range strings.Split(src, "\n") {
		var quote byte
		for i := 0; i < len(line); i++ {
			c := line[i]
			if quote != 0 {
				if c == '\\' {
					i++
				} else if c == quote {
					quote = 0
				}
				continue
			}
			if strings.HasPrefix(line[i:], lineComment) {
				break
			}
			switch c {
			case '"', '\'', '`':
				quote = c
			case '(', '[', '{':
				stack = append(stack, c)
			case ')', ']', '}':
				if len(stack) == 0 || stack[len(stack)-1] != pairs[c] {
					return fmt.Errorf("%s: unbalanced %q", path, string(c))
				}
				stack = stack[:len(stack)-1]
			}
		}
		// Backtick strings span lines in JS; everything else must close
		// before the newline.
		if quote != 0 && quote != '`' {
			return fmt.Errorf("%s: unterminated string literal", path)
		}
	}
	if len(stack) != 0 {
		return fmt.Errorf("%s: unclosed %q", path, string(stack[len(stack)-1]))
	}
	return nil
}

// highRiskSignals is the fixed signal set for T3 classification: networking,
// process execution, cryptography, dynamic evaluation, shell invocation.
var highRiskSignals = []string{
	"import socket", "import requests", "import urllib", "http.client",
	"import subprocess", "os.system", "os.popen", "child_process",
	"import hashlib", "import ctypes", "from cryptography", "import pickle",
	"eval(", "exec(", "importlib.import_module", "Function(",
	"shell=True", "sh -c",
}

// HighRiskSignal returns the first matching high-risk signal in src, if any.
func HighRiskSignal(src string) (string, bool) {
	for _, sig := range highRiskSignals {
		if strings.Contains(src, sig) {
			return sig, true
		}
	}
	return "", false
}

// trustedNames classify a file as T1 by filename alone: manifests, docs,
// constant/definition files, and tests never receive AI review.
func Trusted(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	switch strings.ToLower(filepath.Ext(base)) {
	case ".md", ".txt", ".json", ".yaml", ".yml", ".toml", ".cfg", ".ini", ".css", ".html":
		return true
	}
	switch base {
	case "requirements.txt", "package.json", "makefile", "dockerfile", "license", ".gitignore":
		return true
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.HasPrefix(base, "test_") || strings.HasSuffix(stem, "_test") {
		return true
	}
	switch stem {
	case "constants", "colors", "version", "strings":
		return true
	}
	return false
}

// Trivial reports whether src is too simple to carry risk: a short file
// that imports nothing and matches no high-risk signal. Such files are
// trusted without review.
func Trivial(src string) bool {
	if _, hit := HighRiskSignal(src); hit {
		return false
	}
	lines := strings.Split(strings.TrimSpace(src), "\n")
	if len(lines) > 15 {
		return false
	}
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, "import ") || strings.HasPrefix(l, "from ") ||
			strings.Contains(l, "require(") || strings.HasPrefix(l, "#include") {
			return false
		}
	}
	return true
}

// Forbidden is one deterministic pattern violation.
type Forbidden struct {
	Pattern string
	Detail  string
}

// forbiddenPatterns flag practices that are never acceptable in shipped
// output regardless of tier.
var forbiddenPatterns = []Forbidden{
	{"verify=False", "TLS verification disabled"},
	{"chmod 777", "world-writable permissions"},
	{"Access-Control-Allow-Origin: *", "wildcard CORS"},
	{"--no-sandbox", "sandbox disabled"},
	{"password = \"", "hardcoded password literal"},
	{"api_key = \"", "hardcoded API key literal"},
	{"secret_key = \"", "hardcoded secret literal"},
	{"curl | sh", "piped remote shell execution"},
}

// ForbiddenMatches returns every forbidden pattern present in src.
func ForbiddenMatches(src string) []Forbidden {
	var out []Forbidden
	for _, p := range forbiddenPatterns {
		if strings.Contains(src, p.Pattern) {
			out = append(out, p)
		}
	}
	return out
}

// sanitizeRules are the deterministic rewrites applied by the auto-fix pass
// after a REJECTED verdict. Each replacement preserves syntax.
var sanitizeRules = [][2]string{
	{"shell=True", "shell=False"},
	{"verify=False", "verify=True"},
	{"debug=True", "debug=False"},
	{"DEBUG = True", "DEBUG = False"},
	{"0.0.0.0", "127.0.0.1"},
	{"chmod 777", "chmod 755"},
	{"Access-Control-Allow-Origin: *", "Access-Control-Allow-Origin: null"},
}

// Sanitize applies the deterministic rewrites; changed reports whether any
// rule fired.
func Sanitize(src string) (out string, changed bool) {
	out = src
	for _, r := range sanitizeRules {
		if strings.Contains(out, r[0]) {
			out = strings.ReplaceAll(out, r[0], r[1])
			changed = true
		}
	}
	return out, changed
}
