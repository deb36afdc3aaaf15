package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prn-tf/kvgate/internal/codec"
	"github.com/prn-tf/kvgate/internal/domain"
	"github.com/prn-tf/kvgate/internal/kv"
)

func (s *Store) validateObjectTarget(bucket, key string) error {
	if err := domain.ValidateBucketName(bucket); err != nil {
		return err
	}
	return domain.ValidateObjectKey(key)
}

// PutObject stores data under bucket/key, overwriting any previous object.
// Metadata and data land in a single atomic batch.
func (s *Store) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) (domain.ObjectMeta, error) {
	if err := s.validateObjectTarget(bucket, key); err != nil {
		return domain.ObjectMeta{}, err
	}

	exists, err := s.BucketExists(ctx, bucket)
	if err != nil {
		return domain.ObjectMeta{}, err
	}
	if !exists {
		return domain.ObjectMeta{}, domain.ErrNoSuchBucket
	}

	meta := domain.ObjectMeta{
		Size:        int64(len(data)),
		ModTime:     s.Now().UTC(),
		ETag:        codec.HexMD5(data),
		ContentType: contentType,
	}

	batch := &kv.Batch{}
	batch.Put(metaKey(bucket, key), encodeMeta(meta))
	batch.Put(dataKey(bucket, key), data)
	if err := s.kv.Write(ctx, batch); err != nil {
		return domain.ObjectMeta{}, fmt.Errorf("write object: %w", err)
	}

	s.logger.Info().
		Str("bucket", bucket).
		Str("key", key).
		Int64("size", meta.Size).
		Str("etag", meta.ETag).
		Msg("object stored")
	return meta, nil
}

// GetObject returns the object's metadata and data.
func (s *Store) GetObject(ctx context.Context, bucket, key string) (domain.ObjectMeta, []byte, error) {
	if err := s.validateObjectTarget(bucket, key); err != nil {
		return domain.ObjectMeta{}, nil, err
	}

	meta, err := s.HeadObject(ctx, bucket, key)
	if err != nil {
		return domain.ObjectMeta{}, nil, err
	}

	data, err := s.kv.Get(ctx, dataKey(bucket, key))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return domain.ObjectMeta{}, nil, domain.ErrNoSuchKey
	}
	if err != nil {
		return domain.ObjectMeta{}, nil, fmt.Errorf("get object data: %w", err)
	}
	return meta, data, nil
}

// HeadObject returns the object's metadata without touching the data row.
func (s *Store) HeadObject(ctx context.Context, bucket, key string) (domain.ObjectMeta, error) {
	if err := s.validateObjectTarget(bucket, key); err != nil {
		return domain.ObjectMeta{}, err
	}

	raw, err := s.kv.Get(ctx, metaKey(bucket, key))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return domain.ObjectMeta{}, domain.ErrNoSuchKey
	}
	if err != nil {
		return domain.ObjectMeta{}, fmt.Errorf("get object meta: %w", err)
	}

	meta, err := decodeMeta(raw)
	if err != nil {
		s.logger.Error().
			Str("bucket", bucket).
			Str("key", key).
			Err(err).
			Msg("object metadata corrupt")
		return domain.ObjectMeta{}, err
	}
	return meta, nil
}

// DeleteObject removes bucket/key. Deleting an absent object from an
// existing bucket succeeds.
func (s *Store) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := s.validateObjectTarget(bucket, key); err != nil {
		return err
	}

	exists, err := s.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrNoSuchBucket
	}

	batch := &kv.Batch{}
	batch.Delete(metaKey(bucket, key))
	batch.Delete(dataKey(bucket, key))
	if err := s.kv.Write(ctx, batch); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	s.logger.Info().Str("bucket", bucket).Str("key", key).Msg("object deleted")
	return nil
}

// ListObjectsV2 walks the bucket's metadata rows in key order, starting at
// prefix or at the continuation token. maxKeys outside 1..MaxListKeys is
// clamped to MaxListKeys. On a scan failure the entries collected so far are
// returned alongside the error.
func (s *Store) ListObjectsV2(ctx context.Context, bucket, prefix, token string, maxKeys int) (domain.ListResult, error) {
	if err := domain.ValidateBucketName(bucket); err != nil {
		return domain.ListResult{}, err
	}
	if strings.ContainsRune(prefix, 0) {
		return domain.ListResult{}, domain.NewInvalidInput("prefix", "must not contain NUL")
	}

	exists, err := s.BucketExists(ctx, bucket)
	if err != nil {
		return domain.ListResult{}, err
	}
	if !exists {
		return domain.ListResult{}, domain.ErrNoSuchBucket
	}

	if maxKeys <= 0 || maxKeys > MaxListKeys {
		maxKeys = MaxListKeys
	}

	start := metaKey(bucket, prefix)
	skipExact := false
	if token != "" {
		decoded, err := codec.DecodeToken(token)
		if err != nil {
			return domain.ListResult{}, domain.NewInvalidInput("continuation-token", err.Error())
		}
		start = decoded
		skipExact = true
	}

	bucketScope := metaPrefix(bucket)
	var (
		result  domain.ListResult
		lastKey []byte
	)
	scanErr := s.kv.Scan(ctx, start, func(k, v []byte) (bool, error) {
		if !bytes.HasPrefix(k, bucketScope) {
			return false, nil
		}
		name := string(k[len(bucketScope):])
		if !strings.HasPrefix(name, prefix) {
			return false, nil
		}
		if skipExact {
			// The token is the last key of the previous page; resume after it.
			skipExact = false
			if bytes.Equal(k, start) {
				return true, nil
			}
		}
		if len(result.Objects) == maxKeys {
			result.IsTruncated = true
			return false, nil
		}

		meta, err := decodeMeta(v)
		if err != nil {
			return false, err
		}
		result.Objects = append(result.Objects, domain.ObjectEntry{Key: name, Meta: meta})
		lastKey = append(lastKey[:0], k...)
		return true, nil
	})
	if scanErr != nil {
		return result, fmt.Errorf("scan objects: %w", scanErr)
	}

	if result.IsTruncated {
		result.NextToken = codec.EncodeToken(lastKey)
	}
	return result, nil
}
