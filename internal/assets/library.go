package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// LibraryConfig holds object-store settings for the pre-rendered asset
// library: a bucket of assets keyed by prompt digest, shared across runs.
type LibraryConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// LibraryProvider resolves visuals by looking up a pre-rendered asset in an
// object store. It never generates anything; a miss is a Failed poll and the
// chain moves on.
type LibraryProvider struct {
	client *minio.Client
	bucket string

	mu      sync.Mutex
	pending map[Handle]Request
}

// NewLibraryProvider constructs the provider. It does not touch the network;
// connectivity problems surface on Poll.
func NewLibraryProvider(cfg LibraryConfig) (*LibraryProvider, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("assets: library endpoint and bucket are required")
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("assets: init library client: %w", err)
	}
	return &LibraryProvider{
		client:  cli,
		bucket:  cfg.Bucket,
		pending: map[Handle]Request{},
	}, nil
}

func (l *LibraryProvider) Name() string { return "library" }
func (l *LibraryProvider) Remote() bool { return true }

// Submit registers the lookup; the object key is a digest of the prompt so
// identical prompts across runs hit the same library entry.
func (l *LibraryProvider) Submit(_ context.Context, req Request) (Handle, error) {
	h := Handle(ObjectKey(req.Prompt, req.Filename))
	l.mu.Lock()
	l.pending[h] = req
	l.mu.Unlock()
	return h, nil
}

// Poll checks the bucket and downloads on a hit.
func (l *LibraryProvider) Poll(ctx context.Context, h Handle) (Poll, error) {
	l.mu.Lock()
	req, ok := l.pending[h]
	l.mu.Unlock()
	if !ok {
		return Poll{}, fmt.Errorf("assets: unknown handle %q", h)
	}

	key := string(h)
	if _, err := l.client.StatObject(ctx, l.bucket, key, minio.StatObjectOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return Poll{State: Failed, Reason: "not in library"}, nil
		}
		return Poll{}, err
	}

	dest := filepath.Join(req.Dir, req.Filename)
	if err := l.client.FGetObject(ctx, l.bucket, key, dest, minio.GetObjectOptions{}); err != nil {
		return Poll{}, err
	}
	return Poll{State: Ready, Path: dest}, nil
}

// ObjectKey derives the library key for a prompt: sha256 digest prefix plus
// the requested file extension.
func ObjectKey(prompt, filename string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(strings.ToLower(prompt))))
	return hex.EncodeToString(sum[:8]) + filepath.Ext(filename)
}
