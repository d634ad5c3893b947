// Package disk stores blobs as files in a local directory that the server
// also serves under URLPrefix.
package disk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sakif/smartwork/internal/blob"
)

// URLPrefix is the path the HTTP server mounts Dir under.
const URLPrefix = "/uploads/"

var _ blob.Store = (*Store)(nil)

type Store struct {
	dir      string
	maxBytes int64
}

// New creates dir if needed.
func New(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("disk: creating %s: %w", dir, err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Dir is the directory files are written to.
func (s *Store) Dir() string { return s.dir }

// Upload writes r to a new file and returns its relative URL. A partial
// file is removed on any failure.
func (s *Store) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	key := blob.Key(name)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("disk: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, blob.LimitReader(r, s.maxBytes)); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("disk: closing temp file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key)); err != nil {
		return "", fmt.Errorf("disk: storing %s: %w", key, err)
	}
	return URLPrefix + key, nil
}
