package assets

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SynthProvider generates a deterministic placeholder locally: an SVG whose
// palette is derived from the prompt digest. It keeps a build shippable when
// every remote back-end is down.
type SynthProvider struct {
	mu      sync.Mutex
	pending map[Handle]Request
}

func NewSynthProvider() *SynthProvider {
	return &SynthProvider{pending: map[Handle]Request{}}
}

func (s *SynthProvider) Name() string { return "synth" }
func (s *SynthProvider) Remote() bool { return false }

func (s *SynthProvider) Submit(_ context.Context, req Request) (Handle, error) {
	h := Handle("synth:" + req.Filename)
	s.mu.Lock()
	s.pending[h] = req
	s.mu.Unlock()
	return h, nil
}

// Poll writes the placeholder and reports Ready immediately.
func (s *SynthProvider) Poll(_ context.Context, h Handle) (Poll, error) {
	s.mu.Lock()
	req, ok := s.pending[h]
	s.mu.Unlock()
	if !ok {
		return Poll{}, fmt.Errorf("assets: unknown handle %q", h)
	}

	dest := filepath.Join(req.Dir, req.Filename)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Poll{}, err
	}
	if err := os.WriteFile(dest, []byte(placeholderSVG(req.Prompt)), 0o644); err != nil {
		return Poll{}, err
	}
	return Poll{State: Ready, Path: dest}, nil
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// placeholderSVG renders a two-tone tile; the same prompt always yields the
// same bytes. The label is escaped so the markup stays valid for any prompt.
func placeholderSVG(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	bg := fmt.Sprintf("#%02x%02x%02x", sum[0], sum[1], sum[2])
	fg := fmt.Sprintf("#%02x%02x%02x", sum[3], sum[4], sum[5])
	label := prompt
	if len(label) > 24 {
		label = label[:24]
	}
	label = xmlEscaper.Replace(label)
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="256" height="256">
  <rect width="256" height="256" fill="%s"/>
  <circle cx="128" cy="112" r="64" fill="%s"/>
  <text x="128" y="224" font-size="14" text-anchor="middle" fill="%s">%s</text>
</svg>
`, bg, fg, fg, label)
}
