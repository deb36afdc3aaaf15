// Package store implements the S3 object model over an ordered key-value
// engine: buckets are single marker keys, objects are a metadata record plus
// a data record, and listings are forward scans over the metadata range.
package store

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/kvgate/internal/kv"
)

// MaxListKeys caps one listing page; requested page sizes clamp to it.
const MaxListKeys = 1000

// Store provides bucket and object operations over an ordered KV engine.
type Store struct {
	kv     kv.Store
	logger zerolog.Logger

	// Now supplies object mtimes; replaceable in tests.
	Now func() time.Time
}

// New creates a Store on top of kvStore.
func New(kvStore kv.Store, logger zerolog.Logger) *Store {
	return &Store{
		kv:     kvStore,
		logger: logger.With().Str("component", "store").Logger(),
		Now:    time.Now,
	}
}
