package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"artificer/internal/util/jsonutil"
)

// DeferredManifest records an asset request no provider could fulfill, so a
// later run can retry it without re-deriving anything.
type DeferredManifest struct {
	Prompt      string `json:"prompt"`
	Filename    string `json:"filename"`
	RequestedAt string `json:"requested_at"`
}

// DeferredProvider is the terminal chain element. It always succeeds by
// persisting a small manifest next to where the asset would have lived.
// Writing is idempotent: an existing manifest is left untouched, so
// re-running the same request never duplicates it.
type DeferredProvider struct {
	mu      sync.Mutex
	pending map[Handle]Request
}

func NewDeferredProvider() *DeferredProvider {
	return &DeferredProvider{pending: map[Handle]Request{}}
}

func (d *DeferredProvider) Name() string { return "deferred" }
func (d *DeferredProvider) Remote() bool { return false }

func (d *DeferredProvider) Submit(_ context.Context, req Request) (Handle, error) {
	h := Handle("deferred:" + req.Filename)
	d.mu.Lock()
	d.pending[h] = req
	d.mu.Unlock()
	return h, nil
}

func (d *DeferredProvider) Poll(_ context.Context, h Handle) (Poll, error) {
	d.mu.Lock()
	req, ok := d.pending[h]
	d.mu.Unlock()
	if !ok {
		return Poll{}, fmt.Errorf("assets: unknown handle %q", h)
	}

	path := DeferredPath(req.Dir, req.Filename)
	if _, err := os.Stat(path); err == nil {
		return Poll{State: Ready, Path: path}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Poll{}, err
	}
	b, err := jsonutil.MarshalNoEscapeIndent(DeferredManifest{
		Prompt:      req.Prompt,
		Filename:    req.Filename,
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	}, "  ")
	if err != nil {
		return Poll{}, err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return Poll{}, err
	}
	return Poll{State: Ready, Path: path}, nil
}

// DeferredPath is the deterministic manifest location for a visual.
func DeferredPath(dir, filename string) string {
	return filepath.Join(dir, filename+".deferred.json")
}
