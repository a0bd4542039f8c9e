// Package archive stores run summaries and raw scraped content as blobs,
// either on local disk or in an S3-compatible bucket.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/config"
)

// Archiver puts and gets blobs by slash-separated key.
type Archiver interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// New selects the backend named in cfg. An empty backend means local.
func New(ctx context.Context, cfg config.ArchiveConfig) (Archiver, error) {
	switch cfg.Backend {
	case "", "local":
		dir := cfg.Dir
		if dir == "" {
			dir = "data/archive"
		}
		return NewLocal(dir), nil
	case "s3":
		return NewS3(ctx, S3Options{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   cfg.S3Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}

// cleanKey rejects keys that would escape the archive root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.TrimSpace(key))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", apperrors.BadRequest("archive key is empty")
	}
	if strings.Contains(key, "..") {
		return "", apperrors.BadRequest(fmt.Sprintf("archive key %q is not allowed", key))
	}
	return k, nil
}

// LocalArchiver writes blobs as files under Dir.
type LocalArchiver struct {
	Dir string
}

func NewLocal(dir string) *LocalArchiver {
	return &LocalArchiver{Dir: dir}
}

func (a *LocalArchiver) Put(ctx context.Context, key, _ string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	full := filepath.Join(a.Dir, filepath.FromSlash(k))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", k, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		return fmt.Errorf("write %s: %w", k, err)
	}
	return nil
}

func (a *LocalArchiver) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filepath.Join(a.Dir, filepath.FromSlash(k)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperrors.NotFound(fmt.Sprintf("archive object %s not found", k))
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", k, err)
	}
	return b, nil
}
