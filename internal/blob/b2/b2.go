// Package b2 stores blobs in a Backblaze B2 bucket.
package b2

import (
	"context"
	"fmt"
	"io"

	blazer "github.com/kurin/blazer/b2"

	"github.com/sakif/smartwork/internal/blob"
)

var _ blob.Store = (*Store)(nil)

type Store struct {
	client   *blazer.Client
	bucket   *blazer.Bucket
	maxBytes int64
}

// New authorises against B2 and opens bucketName.
func New(ctx context.Context, accountID, appKey, bucketName string, maxBytes int64) (*Store, error) {
	client, err := blazer.NewClient(ctx, accountID, appKey)
	if err != nil {
		return nil, fmt.Errorf("b2: creating client: %w", err)
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("b2: opening bucket %s: %w", bucketName, err)
	}
	return &Store{client: client, bucket: bucket, maxBytes: maxBytes}, nil
}

// Upload streams r to a new object and returns its public download URL.
// An oversized or failed upload is cancelled before it is committed.
func (s *Store) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	obj := s.bucket.Object(blob.Key(name))
	w := obj.NewWriter(ctx)

	if _, err := io.Copy(w, blob.LimitReader(r, s.maxBytes)); err != nil {
		cancel()
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("b2: finishing upload: %w", err)
	}
	return obj.URL(), nil
}
