// Package sqlite is the durable store on SQLite. One pooled handle is shared
// by every task; SQLite's own locking is the only write serialization.
package sqlite

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/dkeye/hearth/internal/core"
)

type Config struct {
	Path     string
	PoolSize int
}

type Store struct {
	pool *sqlitex.Pool
	path string
}

var _ core.Store = (*Store)(nil)

// Open opens the pool and applies the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite store: path is required")
	}
	size := cfg.PoolSize
	if size <= 0 {
		size = max(runtime.NumCPU(), 4)
	}
	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    size,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %s: %w", cfg.Path, err)
	}
	s := &Store{pool: pool, path: cfg.Path}
	if err := s.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, schema, nil)
	}); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("sqlite store: schema: %w", err)
	}
	log.Info().Str("module", "store.sqlite").Str("path", cfg.Path).Int("pool_size", size).Msg("store opened")
	return s, nil
}

func prepareConn(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=OFF",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("sqlite store: close %s: %w", s.path, err)
	}
	log.Info().Str("module", "store.sqlite").Str("path", s.path).Msg("store closed")
	return nil
}

func (s *Store) with(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite store: take: %w", err)
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

// tx runs fn inside an IMMEDIATE transaction.
func (s *Store) tx(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	return s.with(ctx, func(conn *sqlite.Conn) (err error) {
		end, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("sqlite store: begin: %w", err)
		}
		defer end(&err)
		return fn(conn)
	})
}

func exec(conn *sqlite.Conn, query string, args ...any) error {
	return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args})
}

func query(conn *sqlite.Conn, q string, row func(stmt *sqlite.Stmt) error, args ...any) error {
	return sqlitex.Execute(conn, q, &sqlitex.ExecOptions{Args: args, ResultFunc: row})
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
