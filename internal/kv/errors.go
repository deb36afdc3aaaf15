package kv

import "errors"

var (
	// ErrKeyNotFound indicates the requested key is absent. Engines normalize
	// their own miss conditions to this sentinel.
	ErrKeyNotFound = errors.New("key not found")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store is closed")
)
