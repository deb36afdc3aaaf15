package kv

import (
	"context"
	"errors"
	"time"
)

// Operation labels reported to the observer.
const (
	OpGet    = "get"
	OpPut    = "put"
	OpWrite  = "write"
	OpDelete = "delete"
	OpIter   = "iter"
)

// Observer receives one record per engine operation. A key miss is reported
// with a nil error: not-found is an answer, not a failure.
type Observer interface {
	ObserveOp(op string, bytes int, duration time.Duration, err error)
}

// Observed wraps store so every operation is reported to obs. A nil obs
// returns store unchanged.
func Observed(store Store, obs Observer) Store {
	if obs == nil {
		return store
	}
	return &observed{next: store, obs: obs}
}

type observed struct {
	next Store
	obs  Observer
}

var _ Store = (*observed)(nil)

func (o *observed) Get(ctx context.Context, key []byte) ([]byte, error) {
	start := time.Now()
	value, err := o.next.Get(ctx, key)
	o.obs.ObserveOp(OpGet, len(value), time.Since(start), ignoreNotFound(err))
	return value, err
}

func (o *observed) Put(ctx context.Context, key, value []byte) error {
	start := time.Now()
	err := o.next.Put(ctx, key, value)
	o.obs.ObserveOp(OpPut, len(key)+len(value), time.Since(start), err)
	return err
}

func (o *observed) Delete(ctx context.Context, key []byte) error {
	start := time.Now()
	err := o.next.Delete(ctx, key)
	o.obs.ObserveOp(OpDelete, len(key), time.Since(start), err)
	return err
}

func (o *observed) Write(ctx context.Context, batch *Batch) error {
	start := time.Now()
	err := o.next.Write(ctx, batch)
	var bytes int
	for _, op := range batch.Ops() {
		bytes += len(op.Key) + len(op.Value)
	}
	o.obs.ObserveOp(OpWrite, bytes, time.Since(start), err)
	return err
}

func (o *observed) Scan(ctx context.Context, start []byte, fn func(key, value []byte) (bool, error)) error {
	began := time.Now()
	var bytes int
	err := o.next.Scan(ctx, start, func(key, value []byte) (bool, error) {
		bytes += len(key) + len(value)
		return fn(key, value)
	})
	o.obs.ObserveOp(OpIter, bytes, time.Since(began), err)
	return err
}

func (o *observed) Close() error {
	return o.next.Close()
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrKeyNotFound) {
		return nil
	}
	return err
}
