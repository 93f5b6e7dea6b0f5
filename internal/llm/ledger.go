package llm

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// usageLedgerFile is the on-disk shape of the usage ledger, bucketed by UTC day.
type usageLedgerFile struct {
	Days map[string]usageDay `json:"days"`
}

type usageDay struct {
	Requests int                   `json:"requests"`
	Errors   int                   `json:"errors"`
	Bytes    int64                 `json:"bytes"`
	Models   map[string]usageModel `json:"models"`
}

type usageModel struct {
	Requests int   `json:"requests"`
	Errors   int   `json:"errors"`
	Bytes    int64 `json:"bytes"`
}

// WithUsageLedger records every call (including failures) into a JSON file.
// Multiple wrapped clients may share the same path; writes are serialized
// per middleware instance and merge with whatever is already on disk.
func WithUsageLedger(path string) Middleware {
	return func(next Client) Client {
		return &ledgered{next: next, path: path}
	}
}

type ledgered struct {
	next Client
	path string
	mu   sync.Mutex
}

func (c *ledgered) Name() string { return c.next.Name() }
func (c *ledgered) Close() error { return c.next.Close() }
func (c *ledgered) Complete(ctx context.Context, sys, user string, structured bool) (string, error) {
	out, err := c.next.Complete(ctx, sys, user, structured)
	c.record(int64(len(sys)+len(user)), err != nil)
	return out, err
}

func (c *ledgered) record(reqBytes int64, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var file usageLedgerFile
	if b, err := os.ReadFile(c.path); err == nil {
		_ = json.Unmarshal(b, &file)
	}
	if file.Days == nil {
		file.Days = map[string]usageDay{}
	}
	key := time.Now().UTC().Format("2006-01-02")
	day := file.Days[key]
	if day.Models == nil {
		day.Models = map[string]usageModel{}
	}
	day.Requests++
	day.Bytes += reqBytes
	model := day.Models[c.next.Name()]
	model.Requests++
	model.Bytes += reqBytes
	if failed {
		day.Errors++
		model.Errors++
	}
	day.Models[c.next.Name()] = model
	file.Days[key] = day

	b, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(c.path), 0o755)
	_ = os.WriteFile(c.path, b, 0o644)
}
