package prefixcache

import (
	"context"
	"errors"
)

// ErrObjectMissing reports that an object id is unknown to the storage
// backend.
var ErrObjectMissing = errors.New("object missing")

// Storage persists cache payloads addressed by object id. Implementations
// must be safe for concurrent use.
type Storage interface {
	// Put stores data under id, replacing any existing object.
	Put(ctx context.Context, id string, data []byte) error

	// GetRange returns up to max leading bytes of the object. max <= 0
	// returns the whole object. Returns ErrObjectMissing for unknown ids.
	GetRange(ctx context.Context, id string, max int64) ([]byte, error)

	// Delete removes the object. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// Size reports how many objects the backend currently holds.
	Size(ctx context.Context) (int64, error)
}
