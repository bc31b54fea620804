// Package archive stores explained score results in blob storage.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/credscope/credscope/pkg/config"
	"github.com/credscope/credscope/pkg/surface"
)

// ErrNotFound is returned by Get when no blob exists under the key.
var ErrNotFound = errors.New("archived result not found")

// Backend abstracts blob storage for archived results.
type Backend interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Key returns the blob key for a result: results/<target-slug>/<id>.json.
func Key(target, id string) string {
	return "results/" + slug(target) + "/" + id + ".json"
}

func slug(target string) string {
	return strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(target)
}

// Archive writes and reads explained results.
type Archive struct {
	backend Backend
}

// New wraps a backend.
func New(b Backend) *Archive {
	return &Archive{backend: b}
}

// Save stores e under its target and ID, returning the key.
func (a *Archive) Save(ctx context.Context, e *surface.Explained) (string, error) {
	if e.ID == "" {
		return "", errors.New("archive: result has no id")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	key := Key(e.Target, e.ID)
	if err := a.backend.Put(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// Load reads the result stored for target and id.
func (a *Archive) Load(ctx context.Context, target, id string) (*surface.Explained, error) {
	data, err := a.backend.Get(ctx, Key(target, id))
	if err != nil {
		return nil, err
	}
	var e surface.Explained
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode archived result: %w", err)
	}
	return &e, nil
}

// Open builds the backend selected by cfg. An empty backend disables archiving
// and returns nil.
func Open(ctx context.Context, cfg config.ArchiveConfig) (*Archive, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.Backend {
	case "":
		return nil, nil
	case "local":
		dir := cfg.Path
		if dir == "" {
			dir = filepath.Join(config.CacheDir(), "archive")
		}
		b = NewLocalStorage(dir)
	case "s3":
		b, err = NewS3Storage(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
	case "gcs":
		b, err = NewGCSStorage(ctx, cfg.Bucket)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return New(b), nil
}

// LocalStorage implements Backend using the local filesystem.
// Useful for development and testing.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) path(key string) string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(key))
}

// Put stores a blob.
func (s *LocalStorage) Put(_ context.Context, key string, data []byte) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Get retrieves a blob.
func (s *LocalStorage) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}
