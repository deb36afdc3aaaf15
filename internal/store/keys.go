package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prn-tf/kvgate/internal/domain"
)

// The whole store lives in one flat keyspace, ordered by byte comparison:
//
//	B\0<bucket>           -> ""                                bucket marker
//	D\0<bucket>\0<key>    -> raw object bytes                  object data
//	M\0<bucket>\0<key>    -> size\0mtime\0etag\0content_type   object metadata
//
// NUL delimits components, which is why names may not contain it. All the
// metadata of one bucket is contiguous, so listings are a single seek plus a
// forward scan.

const (
	bucketTag = 'B'
	dataTag   = 'D'
	metaTag   = 'M'
)

// bucketScanStart is where ListBuckets begins scanning.
var bucketScanStart = []byte{bucketTag, 0}

func bucketKey(bucket string) []byte {
	k := make([]byte, 0, 2+len(bucket))
	k = append(k, bucketTag, 0)
	return append(k, bucket...)
}

func metaKey(bucket, key string) []byte {
	return compositeKey(metaTag, bucket, key)
}

func dataKey(bucket, key string) []byte {
	return compositeKey(dataTag, bucket, key)
}

// metaPrefix covers every metadata key of one bucket.
func metaPrefix(bucket string) []byte {
	k := make([]byte, 0, 3+len(bucket))
	k = append(k, metaTag, 0)
	k = append(k, bucket...)
	return append(k, 0)
}

func compositeKey(tag byte, bucket, key string) []byte {
	k := make([]byte, 0, 3+len(bucket)+len(key))
	k = append(k, tag, 0)
	k = append(k, bucket...)
	k = append(k, 0)
	return append(k, key...)
}

// encodeMeta renders metadata as four NUL-separated fields: decimal size,
// decimal unix mtime, hex etag, content type.
func encodeMeta(meta domain.ObjectMeta) []byte {
	return []byte(fmt.Sprintf("%d\x00%d\x00%s\x00%s",
		meta.Size, meta.ModTime.Unix(), meta.ETag, meta.ContentType))
}

// decodeMeta parses an encoded metadata value. A record without exactly
// three NULs, or with non-numeric size or mtime, is corrupt.
func decodeMeta(value []byte) (domain.ObjectMeta, error) {
	fields := strings.Split(string(value), "\x00")
	if len(fields) != 4 {
		return domain.ObjectMeta{}, fmt.Errorf("%w: %d fields", domain.ErrCorruptObjectMeta, len(fields))
	}

	size, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return domain.ObjectMeta{}, fmt.Errorf("%w: bad size %q", domain.ErrCorruptObjectMeta, fields[0])
	}
	mtime, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return domain.ObjectMeta{}, fmt.Errorf("%w: bad mtime %q", domain.ErrCorruptObjectMeta, fields[1])
	}

	return domain.ObjectMeta{
		Size:        size,
		ModTime:     time.Unix(mtime, 0).UTC(),
		ETag:        fields[2],
		ContentType: fields[3],
	}, nil
}
