package kv_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/kvgate/internal/kv"
	"github.com/prn-tf/kvgate/internal/kv/bolt"
	"github.com/prn-tf/kvgate/internal/kv/postgres"
	"github.com/prn-tf/kvgate/internal/kv/sqlite"
)

// openStores opens one store per available engine. Postgres joins in when
// KVGATE_TEST_POSTGRES_DSN is set.
func openStores(t *testing.T) map[string]kv.Store {
	t.Helper()
	stores := make(map[string]kv.Store)

	boltStore, err := bolt.New(bolt.Config{
		Path:    filepath.Join(t.TempDir(), "kv.db"),
		CacheMB: 4,
	})
	require.NoError(t, err)
	stores["bolt"] = boltStore

	sqliteStore, err := sqlite.New(context.Background(),
		sqlite.DefaultConfig(filepath.Join(t.TempDir(), "kv.sqlite")), zerolog.Nop())
	require.NoError(t, err)
	stores["sqlite"] = sqliteStore

	if dsn := os.Getenv("KVGATE_TEST_POSTGRES_DSN"); dsn != "" {
		pgStore, err := postgres.New(context.Background(), postgres.DefaultConfig(dsn), zerolog.Nop())
		require.NoError(t, err)
		stores["postgres"] = pgStore
	}

	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStoreConformance(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			testStore(t, store)
		})
	}
}

func testStore(t *testing.T, store kv.Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, []byte("conf/nope"))
		assert.ErrorIs(t, err, kv.ErrKeyNotFound)
	})

	t.Run("put get overwrite", func(t *testing.T) {
		key := []byte("conf/a")
		require.NoError(t, store.Put(ctx, key, []byte("one")))
		v, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), v)

		require.NoError(t, store.Put(ctx, key, []byte("two")))
		v, err = store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), v)
	})

	t.Run("empty value is present", func(t *testing.T) {
		key := []byte("conf/empty")
		require.NoError(t, store.Put(ctx, key, []byte{}))
		v, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("delete", func(t *testing.T) {
		key := []byte("conf/del")
		require.NoError(t, store.Put(ctx, key, []byte("x")))
		require.NoError(t, store.Delete(ctx, key))
		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, kv.ErrKeyNotFound)

		// Deleting again is not an error.
		assert.NoError(t, store.Delete(ctx, key))
	})

	t.Run("batch write", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, []byte("batch/old"), []byte("stale")))

		var batch kv.Batch
		batch.Put([]byte("batch/a"), []byte("1"))
		batch.Put([]byte("batch/b"), []byte("2"))
		batch.Delete([]byte("batch/old"))
		require.NoError(t, store.Write(ctx, &batch))

		v, err := store.Get(ctx, []byte("batch/a"))
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), v)
		v, err = store.Get(ctx, []byte("batch/b"))
		require.NoError(t, err)
		assert.Equal(t, []byte("2"), v)
		_, err = store.Get(ctx, []byte("batch/old"))
		assert.ErrorIs(t, err, kv.ErrKeyNotFound)
	})

	t.Run("scan order", func(t *testing.T) {
		// NUL-delimited composite keys, inserted out of order.
		keys := []string{
			"scan\x00b\x00k2",
			"scan\x00a",
			"scan\x00b\x00k1",
			"scan\x00b",
			"scan\x00c\x00",
		}
		for _, k := range keys {
			require.NoError(t, store.Put(ctx, []byte(k), []byte("v")))
		}

		var got []string
		err := store.Scan(ctx, []byte("scan\x00"), func(k, _ []byte) (bool, error) {
			got = append(got, string(k))
			return len(got) < len(keys), nil
		})
		require.NoError(t, err)

		want := append([]string(nil), keys...)
		sort.Strings(want)
		assert.Equal(t, want, got)
	})

	t.Run("scan inclusive start and early stop", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			key := fmt.Sprintf("stop/%02d", i)
			require.NoError(t, store.Put(ctx, []byte(key), []byte("v")))
		}

		var got []string
		err := store.Scan(ctx, []byte("stop/02"), func(k, _ []byte) (bool, error) {
			got = append(got, string(k))
			return len(got) < 2, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"stop/02", "stop/03"}, got)
	})

	t.Run("scan callback error", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, []byte("err/a"), []byte("v")))
		wantErr := fmt.Errorf("boom")
		err := store.Scan(ctx, []byte("err/"), func(_, _ []byte) (bool, error) {
			return false, wantErr
		})
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("scan many", func(t *testing.T) {
		// Enough keys to cross the SQL engines' batch boundary.
		const n = 1200
		var batch kv.Batch
		for i := 0; i < n; i++ {
			batch.Put([]byte(fmt.Sprintf("many/%06d", i)), []byte("v"))
		}
		require.NoError(t, store.Write(ctx, &batch))

		count := 0
		last := ""
		err := store.Scan(ctx, []byte("many/"), func(k, _ []byte) (bool, error) {
			key := string(k)
			if key >= "many0" {
				return false, nil
			}
			require.Greater(t, key, last)
			last = key
			count++
			return true, nil
		})
		require.NoError(t, err)
		assert.Equal(t, n, count)
	})
}
