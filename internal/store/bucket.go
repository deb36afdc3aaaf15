package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/prn-tf/kvgate/internal/domain"
	"github.com/prn-tf/kvgate/internal/kv"
)

// CreateBucket makes bucket exist. Creating an existing bucket succeeds.
func (s *Store) CreateBucket(ctx context.Context, bucket string) error {
	if err := domain.ValidateBucketName(bucket); err != nil {
		return err
	}

	exists, err := s.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := s.kv.Put(ctx, bucketKey(bucket), []byte{}); err != nil {
		return fmt.Errorf("put bucket marker: %w", err)
	}

	s.logger.Info().Str("bucket", bucket).Msg("bucket created")
	return nil
}

// BucketExists reports whether the bucket marker is present.
func (s *Store) BucketExists(ctx context.Context, bucket string) (bool, error) {
	if err := domain.ValidateBucketName(bucket); err != nil {
		return false, err
	}

	_, err := s.kv.Get(ctx, bucketKey(bucket))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get bucket marker: %w", err)
	}
	return true, nil
}

// ListBuckets returns every bucket name in byte order.
func (s *Store) ListBuckets(ctx context.Context) ([]string, error) {
	var names []string
	err := s.kv.Scan(ctx, bucketScanStart, func(k, _ []byte) (bool, error) {
		if !bytes.HasPrefix(k, bucketScanStart) {
			return false, nil
		}
		names = append(names, string(k[len(bucketScanStart):]))
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan bucket markers: %w", err)
	}
	return names, nil
}

// DeleteBucket removes an empty bucket. A bucket that still holds any object
// metadata is refused.
func (s *Store) DeleteBucket(ctx context.Context, bucket string) error {
	if err := domain.ValidateBucketName(bucket); err != nil {
		return err
	}

	exists, err := s.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrNoSuchBucket
	}

	prefix := metaPrefix(bucket)
	empty := true
	err = s.kv.Scan(ctx, prefix, func(k, _ []byte) (bool, error) {
		empty = !bytes.HasPrefix(k, prefix)
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("scan bucket contents: %w", err)
	}
	if !empty {
		return domain.ErrBucketNotEmpty
	}

	if err := s.kv.Delete(ctx, bucketKey(bucket)); err != nil {
		return fmt.Errorf("delete bucket marker: %w", err)
	}

	s.logger.Info().Str("bucket", bucket).Msg("bucket deleted")
	return nil
}
