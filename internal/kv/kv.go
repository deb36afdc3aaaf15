// Package kv defines the ordered key-value contract the object store runs
// on. Engines (bbolt, sqlite, postgres) implement Store; the object layer
// never sees engine types, allowing different backends per deployment.
package kv

import "context"

// Store is an opaque map of byte keys to byte values, ordered by
// lexicographic byte comparison of keys.
type Store interface {
	// Get returns the value for key. Returns ErrKeyNotFound on a miss.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Put stores value under key, replacing any existing value.
	Put(ctx context.Context, key, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key []byte) error

	// Write applies every operation in batch atomically: either all of them
	// become visible or none do.
	Write(ctx context.Context, batch *Batch) error

	// Scan visits keys >= start in ascending byte order. It calls fn for
	// each pair until fn returns false or an error, or the keyspace ends.
	// The slices passed to fn are only valid during the call; callers copy
	// what they keep. An empty start scans from the first key.
	Scan(ctx context.Context, start []byte, fn func(key, value []byte) (bool, error)) error

	// Close releases the engine. The store must not be used afterwards.
	Close() error
}

// Op is a single mutation recorded in a Batch.
type Op struct {
	// Key is the target key.
	Key []byte

	// Value is the payload for puts; nil for deletes.
	Value []byte

	// Delete marks the op as a deletion.
	Delete bool
}

// Batch collects mutations for one atomic Write. The batch borrows key and
// value slices from the caller until Write returns.
type Batch struct {
	ops []Op
}

// Put records a put of value under key.
func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, Op{Key: key, Value: value})
}

// Delete records a deletion of key.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, Op{Key: key, Delete: true})
}

// Ops returns the recorded operations in order.
func (b *Batch) Ops() []Op {
	return b.ops
}

// Len returns the number of recorded operations.
func (b *Batch) Len() int {
	return len(b.ops)
}
