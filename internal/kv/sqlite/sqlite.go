// Package sqlite implements the ordered KV contract on modernc.org/sqlite, a
// pure Go SQLite build that needs no CGO. BLOB primary keys compare with
// memcmp, which gives exactly the byte order the contract requires.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/prn-tf/kvgate/internal/kv"
)

// scanBatchSize bounds how many rows one Scan query fetches. Batches keep the
// single connection free between callback runs.
const scanBatchSize = 512

// Config holds SQLite connection settings.
type Config struct {
	// Path is the database file, or ":memory:".
	Path string

	// MaxOpenConns caps open connections. SQLite works best with a single
	// writer.
	MaxOpenConns int

	// JournalMode is the SQLite journal mode: WAL, OFF, DELETE.
	JournalMode string

	// BusyTimeout is the lock wait in milliseconds.
	BusyTimeout int

	// CacheSize is the page cache pragma value (negative = KB).
	CacheSize int

	// SynchronousMode is the fsync policy: OFF, NORMAL, FULL.
	SynchronousMode string
}

// DefaultConfig returns connection settings for path with the defaults used
// by the server.
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		MaxOpenConns:    1,
		JournalMode:     "WAL",
		BusyTimeout:     5000,
		CacheSize:       -2000,
		SynchronousMode: "NORMAL",
	}
}

// Store is the SQLite-backed kv.Store.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

var _ kv.Store = (*Store)(nil)

// New opens the database, applies the pragmas from cfg, and ensures the kv
// table exists.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	// modernc.org/sqlite takes pragmas as _pragma=name(value) pairs.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(%s)&_pragma=synchronous(%s)&_pragma=cache_size(%d)",
		cfg.Path, cfg.BusyTimeout, cfg.JournalMode, cfg.SynchronousMode, cfg.CacheSize,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS kv (k BLOB PRIMARY KEY, v BLOB NOT NULL) WITHOUT ROWID`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}

	logger.Info().
		Str("path", cfg.Path).
		Str("journal_mode", cfg.JournalMode).
		Msg("connected to sqlite database")

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %w", err)
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, key, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT (k) DO UPDATE SET v = excluded.v`,
		key, value)
	if err != nil {
		return fmt.Errorf("sqlite put: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key []byte) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, key)
	if err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

func (s *Store) Write(ctx context.Context, batch *kv.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	for _, op := range batch.Ops() {
		if op.Delete {
			_, err = tx.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, op.Key)
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT (k) DO UPDATE SET v = excluded.v`,
				op.Key, op.Value)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("batch op: %v, rollback: %w", err, rbErr)
			}
			return fmt.Errorf("batch op: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Scan fetches rows in bounded batches so the callback never runs while a
// result set holds the connection.
func (s *Store) Scan(ctx context.Context, start []byte, fn func(key, value []byte) (bool, error)) error {
	cursor := start
	inclusive := true
	for {
		keys, values, err := s.scanBatch(ctx, cursor, inclusive)
		if err != nil {
			return err
		}
		for i := range keys {
			cont, err := fn(keys[i], values[i])
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		if len(keys) < scanBatchSize {
			return nil
		}
		cursor = keys[len(keys)-1]
		inclusive = false
	}
}

func (s *Store) scanBatch(ctx context.Context, cursor []byte, inclusive bool) ([][]byte, [][]byte, error) {
	cmp := ">"
	if inclusive {
		cmp = ">="
	}
	query := fmt.Sprintf(`SELECT k, v FROM kv WHERE k %s ? ORDER BY k LIMIT %d`, cmp, scanBatchSize)
	if cursor == nil {
		cursor = []byte{}
	}

	rows, err := s.db.QueryContext(ctx, query, cursor)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite scan: %w", err)
	}
	defer rows.Close()

	var keys, values [][]byte
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, nil, fmt.Errorf("sqlite scan row: %w", err)
		}
		keys = append(keys, k)
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("sqlite scan rows: %w", err)
	}
	return keys, values, nil
}

func (s *Store) Close() error {
	s.logger.Debug().Msg("closing sqlite store")
	return s.db.Close()
}
