// Package bolt implements the repository interfaces on a single bbolt file.
// Records are stored as JSON, one bucket per kind, with two index buckets
// mapping an identity's email and Google subject to its subject id.
//
// bbolt allows one writer at a time, so every write is serialized and the
// uniqueness checks inside a write transaction are exact.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/sakif/smartwork/internal/repository"
)

var (
	profilesBucket   = []byte("Profiles")
	tasksBucket      = []byte("Tasks")
	identitiesBucket = []byte("Identities")
	emailIndex       = []byte("IdentityEmails")
	googleIndex      = []byte("IdentityGoogleSubs")
)

var _ repository.Store = (*DB)(nil)

type DB struct {
	db *bbolt.DB
}

// New opens (or creates) the database file at path and its buckets.
func New(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("bolt: creating directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: opening %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{profilesBucket, tasksBucket, identitiesBucket, emailIndex, googleIndex} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// view and update refuse to start once ctx is done; bbolt itself does not
// take a context.
func (d *DB) view(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}

func (d *DB) update(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(fn)
}

func put[T any](tx *bbolt.Tx, bucket []byte, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

// get returns (nil, nil) when key is absent.
func get[T any](tx *bbolt.Tx, bucket []byte, key string) (*T, error) {
	v := tx.Bucket(bucket).Get([]byte(key))
	if v == nil {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(v, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// each decodes every value in bucket and hands it to fn.
func each[T any](tx *bbolt.Tx, bucket []byte, fn func(T)) error {
	return tx.Bucket(bucket).ForEach(func(_, v []byte) error {
		var out T
		if err := json.Unmarshal(v, &out); err != nil {
			return err
		}
		fn(out)
		return nil
	})
}
