// Package bolt implements the ordered KV contract on bbolt, the default
// engine: a single-file B+tree with ordered cursors and atomic update
// transactions.
package bolt

import (
	"bytes"
	"context"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/prn-tf/kvgate/internal/kv"
)

// kvBucket is the one bbolt bucket holding the whole keyspace.
var kvBucket = []byte("kv")

// Config holds bbolt engine settings.
type Config struct {
	// Path is the database file location.
	Path string

	// CacheMB sizes the initial mmap, avoiding remaps while the file grows
	// into it.
	CacheMB int

	// NoSync skips the fsync on every commit. Crashing loses recent
	// transactions but never corrupts the file.
	NoSync bool
}

// DefaultConfig returns engine settings for path with the defaults used by
// the server.
func DefaultConfig(path string) Config {
	return Config{
		Path:    path,
		CacheMB: 512,
	}
}

// Store is the bbolt-backed kv.Store.
type Store struct {
	db *bbolt.DB
}

var _ kv.Store = (*Store)(nil)

// New opens (creating if needed) the database file and ensures the kv bucket
// exists.
func New(cfg Config) (*Store, error) {
	opts := &bbolt.Options{
		Timeout:         1 * time.Second,
		InitialMmapSize: cfg.CacheMB * 1024 * 1024,
		NoSync:          cfg.NoSync,
	}
	db, err := bbolt.Open(cfg.Path, 0o600, opts)
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(kvBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init kv bucket: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		// Seek plus key equality distinguishes an empty stored value from a
		// missing key.
		k, v := tx.Bucket(kvBucket).Cursor().Seek(key)
		if k == nil || !bytes.Equal(k, key) {
			return kv.ErrKeyNotFound
		}
		value = append([]byte{}, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(kvBucket).Put(key, value)
	})
}

func (s *Store) Delete(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(kvBucket).Delete(key)
	})
}

func (s *Store) Write(ctx context.Context, batch *kv.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(kvBucket)
		for _, op := range batch.Ops() {
			if op.Delete {
				if err := b.Delete(op.Key); err != nil {
					return err
				}
				continue
			}
			if err := b.Put(op.Key, op.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Scan(ctx context.Context, start []byte, fn func(key, value []byte) (bool, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(kvBucket).Cursor()
		for k, v := c.Seek(start); k != nil; k, v = c.Next() {
			cont, err := fn(k, v)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
