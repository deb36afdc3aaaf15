package prefixcache_test

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/kvgate/internal/prefixcache"
)

func newTestCache(t *testing.T, blockSize, bytesPerToken int) (*prefixcache.Cache, *prefixcache.MemoryStorage) {
	t.Helper()
	storage := prefixcache.NewMemoryStorage()
	cache, err := prefixcache.New(prefixcache.Config{
		BlockSize:     blockSize,
		BytesPerToken: bytesPerToken,
		Storage:       storage,
		Logger:        zerolog.Nop(),
	})
	require.NoError(t, err)
	return cache, storage
}

func TestNewValidation(t *testing.T) {
	storage := prefixcache.NewMemoryStorage()

	_, err := prefixcache.New(prefixcache.Config{BlockSize: 8, Storage: nil})
	require.Error(t, err)

	_, err = prefixcache.New(prefixcache.Config{BlockSize: 0, Storage: storage})
	require.Error(t, err)

	_, err = prefixcache.New(prefixcache.Config{BlockSize: -1, Storage: storage})
	require.Error(t, err)

	_, err = prefixcache.New(prefixcache.Config{BlockSize: 8, BytesPerToken: -1, Storage: storage})
	require.Error(t, err)

	_, err = prefixcache.New(prefixcache.Config{BlockSize: 8, Storage: storage})
	require.NoError(t, err)
}

// TestStoreLookupLoad drives the full round trip: eight tokens at block size
// four index two prefixes, the full-length lookup wins, and the payload loads
// back from storage.
func TestStoreLookupLoad(t *testing.T) {
	cache, _ := newTestCache(t, 4, 1)
	ctx := context.Background()

	tokens := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	data := bytes.Repeat([]byte{0x2A}, 8)

	res, err := cache.Store(ctx, tokens, data, "tester", 0)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), res.ObjID)
	assert.Equal(t, 2, res.PrefixesIndexed)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Objects)
	assert.Equal(t, 2, stats.Prefixes)
	assert.Equal(t, 4, stats.BlockSize)

	hit, ok := cache.Lookup(ctx, tokens, 0)
	require.True(t, ok)
	assert.Equal(t, res.ObjID, hit.ObjID)
	assert.Equal(t, 8, hit.PrefixTokens)
	assert.Equal(t, int64(8), hit.UsableLenBytes)

	loaded, err := cache.Load(ctx, hit.ObjID, hit.UsableLenBytes)
	require.NoError(t, err)
	assert.Equal(t, data, loaded)
}

func TestLookupLongestPrefixWins(t *testing.T) {
	cache, _ := newTestCache(t, 4, 1)
	ctx := context.Background()

	stored := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	_, err := cache.Store(ctx, stored, []byte("payload!"), "", 0)
	require.NoError(t, err)

	t.Run("SharedFirstBlockOnly", func(t *testing.T) {
		// Diverges after the first block, so the walk stops at length 4.
		probe := []string{"a", "b", "c", "d", "X", "Y", "Z", "W"}
		hit, ok := cache.Lookup(ctx, probe, 0)
		require.True(t, ok)
		assert.Equal(t, 4, hit.PrefixTokens)
		assert.Equal(t, int64(4), hit.UsableLenBytes)
	})

	t.Run("MaxLenBoundsWalk", func(t *testing.T) {
		hit, ok := cache.Lookup(ctx, stored, 4)
		require.True(t, ok)
		assert.Equal(t, 4, hit.PrefixTokens)
	})

	t.Run("MaxLenBeyondTokensIsIgnored", func(t *testing.T) {
		hit, ok := cache.Lookup(ctx, stored, 100)
		require.True(t, ok)
		assert.Equal(t, 8, hit.PrefixTokens)
	})

	t.Run("FirstBlockDiverges", func(t *testing.T) {
		probe := []string{"X", "b", "c", "d", "e", "f", "g", "h"}
		_, ok := cache.Lookup(ctx, probe, 0)
		assert.False(t, ok)
	})

	t.Run("TooFewTokens", func(t *testing.T) {
		_, ok := cache.Lookup(ctx, stored[:3], 0)
		assert.False(t, ok)
	})
}

// Token boundaries must matter: ["ab","c"] and ["a","bc"] concatenate to the
// same string but are different prefixes.
func TestLookupTokenBoundaries(t *testing.T) {
	cache, _ := newTestCache(t, 2, 1)
	ctx := context.Background()

	_, err := cache.Store(ctx, []string{"ab", "c"}, []byte("xy"), "", 0)
	require.NoError(t, err)

	_, ok := cache.Lookup(ctx, []string{"a", "bc"}, 0)
	assert.False(t, ok)

	_, ok = cache.Lookup(ctx, []string{"ab", "c"}, 0)
	assert.True(t, ok)
}

func TestStoreOverwritesCollidingPrefixes(t *testing.T) {
	cache, _ := newTestCache(t, 4, 0)
	ctx := context.Background()

	tokens := []string{"t1", "t2", "t3", "t4"}

	first, err := cache.Store(ctx, tokens, []byte("first payload"), "", 0)
	require.NoError(t, err)
	second, err := cache.Store(ctx, tokens, []byte("second payload, longer"), "", 0)
	require.NoError(t, err)
	require.NotEqual(t, first.ObjID, second.ObjID)

	hit, ok := cache.Lookup(ctx, tokens, 0)
	require.True(t, ok)
	assert.Equal(t, second.ObjID, hit.ObjID)

	// Both payloads stay in storage; the index keeps one entry per prefix.
	stats := cache.Stats()
	assert.Equal(t, 2, stats.Objects)
	assert.Equal(t, 1, stats.Prefixes)
}

func TestStoreShortTokenSequence(t *testing.T) {
	cache, storage := newTestCache(t, 8, 0)
	ctx := context.Background()

	res, err := cache.Store(ctx, []string{"only", "three", "tokens"}, []byte("data"), "", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.PrefixesIndexed)

	// The payload is stored even though nothing is indexed.
	n, err := storage.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok := cache.Lookup(ctx, []string{"only", "three", "tokens"}, 0)
	assert.False(t, ok)
}

type failingStorage struct {
	prefixcache.Storage
	err error
}

func (f *failingStorage) Put(context.Context, string, []byte) error { return f.err }

func TestStorePutFailureLeavesIndexUntouched(t *testing.T) {
	boom := errors.New("backend down")
	cache, err := prefixcache.New(prefixcache.Config{
		BlockSize: 2,
		Storage:   &failingStorage{Storage: prefixcache.NewMemoryStorage(), err: boom},
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = cache.Store(context.Background(), []string{"a", "b"}, []byte("x"), "", 0)
	require.ErrorIs(t, err, boom)

	stats := cache.Stats()
	assert.Zero(t, stats.Objects)
	assert.Zero(t, stats.Prefixes)
}

func TestLoadMissingObject(t *testing.T) {
	cache, _ := newTestCache(t, 4, 0)

	_, err := cache.Load(context.Background(), "0000000000000000", 0)
	require.ErrorIs(t, err, prefixcache.ErrObjectMissing)
}

func TestUsableBytesPerToken(t *testing.T) {
	cache, _ := newTestCache(t, 4, 16)

	assert.Equal(t, int64(64), cache.UsableBytes(4, 32, 1000))
	assert.Equal(t, int64(128), cache.UsableBytes(8, 32, 1000))
	// Clamped to the payload size.
	assert.Equal(t, int64(100), cache.UsableBytes(32, 32, 100))
}

func TestUsableBytesProportional(t *testing.T) {
	cache, _ := newTestCache(t, 4, 0)

	assert.Equal(t, int64(250), cache.UsableBytes(8, 32, 1000))
	assert.Equal(t, int64(1000), cache.UsableBytes(32, 32, 1000))
	// Tiny fractions round down but never to zero for a non-empty payload.
	assert.Equal(t, int64(1), cache.UsableBytes(4, 10000, 100))
	// Degenerate totals yield zero.
	assert.Equal(t, int64(0), cache.UsableBytes(4, 0, 1000))
	assert.Equal(t, int64(0), cache.UsableBytes(4, 32, 0))
}

func TestUsableBytesMonotonic(t *testing.T) {
	for _, bpt := range []int{0, 3} {
		cache, _ := newTestCache(t, 4, bpt)
		const totalTokens = 64
		const totalBytes = int64(977)

		prev := int64(0)
		for l := 4; l <= totalTokens; l += 4 {
			got := cache.UsableBytes(l, totalTokens, totalBytes)
			assert.GreaterOrEqual(t, got, prev, "bpt=%d L=%d", bpt, l)
			assert.LessOrEqual(t, got, totalBytes, "bpt=%d L=%d", bpt, l)
			prev = got
		}
	}
}

func TestObjectIDDeterministic(t *testing.T) {
	a := prefixcache.ObjectID([]byte("same bytes"))
	b := prefixcache.ObjectID([]byte("same bytes"))
	c := prefixcache.ObjectID([]byte("other bytes"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), a)
}

func TestMemoryStorage(t *testing.T) {
	storage := prefixcache.NewMemoryStorage()
	ctx := context.Background()

	t.Run("GetRangeVariants", func(t *testing.T) {
		require.NoError(t, storage.Put(ctx, "id1", []byte("0123456789")))

		full, err := storage.GetRange(ctx, "id1", 0)
		require.NoError(t, err)
		assert.Equal(t, []byte("0123456789"), full)

		head, err := storage.GetRange(ctx, "id1", 4)
		require.NoError(t, err)
		assert.Equal(t, []byte("0123"), head)

		over, err := storage.GetRange(ctx, "id1", 100)
		require.NoError(t, err)
		assert.Equal(t, []byte("0123456789"), over)

		_, err = storage.GetRange(ctx, "nope", 0)
		require.ErrorIs(t, err, prefixcache.ErrObjectMissing)
	})

	t.Run("CopiesIsolateCallers", func(t *testing.T) {
		data := []byte("immutable")
		require.NoError(t, storage.Put(ctx, "id2", data))
		data[0] = 'X'

		got, err := storage.GetRange(ctx, "id2", 0)
		require.NoError(t, err)
		assert.Equal(t, []byte("immutable"), got)

		got[0] = 'Y'
		again, err := storage.GetRange(ctx, "id2", 0)
		require.NoError(t, err)
		assert.Equal(t, []byte("immutable"), again)
	})

	t.Run("DeleteAndSize", func(t *testing.T) {
		fresh := prefixcache.NewMemoryStorage()
		require.NoError(t, fresh.Put(ctx, "a", []byte("1")))
		require.NoError(t, fresh.Put(ctx, "b", []byte("2")))

		n, err := fresh.Size(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		require.NoError(t, fresh.Delete(ctx, "a"))
		require.NoError(t, fresh.Delete(ctx, "a"))

		n, err = fresh.Size(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
