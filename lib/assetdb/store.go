// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetdb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"zombiezen.com/go/sqlite"

	"github.com/bureau-foundation/assetstore/lib/asset"
	"github.com/bureau-foundation/assetstore/lib/clock"
	"github.com/bureau-foundation/assetstore/lib/compress"
	"github.com/bureau-foundation/assetstore/lib/sqlitepool"
)

// CompressionAuto selects a codec per record from its mime type.
const CompressionAuto = "auto"

// Config holds the parameters for a Store.
type Config struct {
	// Path is the SQLite database file. Its directory is created on
	// Init if needed.
	Path string

	// PoolSize is the number of pooled connections. Zero means the
	// sqlitepool default.
	PoolSize int

	// Compression is "auto" (or empty), "zstd", "lz4", or "none".
	Compression string

	// Clock stamps records that arrive without a CreatedAt. Nil means
	// the real clock.
	Clock clock.Clock

	// Logger receives lifecycle and warning messages. Nil discards.
	Logger *slog.Logger
}

// Store is the SQLite-backed asset store. Safe for concurrent use.
type Store struct {
	config Config
	clock  clock.Clock
	logger *slog.Logger

	// pinned is the configured codec; auto is true when none is pinned.
	pinned compress.Tag
	auto   bool

	mu   sync.RWMutex
	pool *sqlitepool.Pool
}

// New constructs a Store. It performs no I/O; call Init before use.
func New(config Config) *Store {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	storeClock := config.Clock
	if storeClock == nil {
		storeClock = clock.Real()
	}
	return &Store{
		config: config,
		clock:  storeClock,
		logger: logger,
	}
}

// Init opens the database and brings its schema up to date. Calling
// Init on an initialized store is a no-op.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		return nil
	}

	if s.config.Path == "" {
		return fmt.Errorf("assetdb: Path is required")
	}
	switch s.config.Compression {
	case "", CompressionAuto:
		s.auto = true
	default:
		tag, err := compress.ParseTag(s.config.Compression)
		if err != nil {
			return fmt.Errorf("assetdb: %w", err)
		}
		s.pinned = tag
	}

	if s.config.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(s.config.Path), 0o755); err != nil {
			return &asset.StorageError{Op: "init", Err: err}
		}
	}

	pool, err := sqlitepool.Open(ctx, sqlitepool.Config{
		Path:       s.config.Path,
		PoolSize:   s.config.PoolSize,
		Logger:     s.logger,
		Migrations: migrations,
		Durable:    true,
	})
	if err != nil {
		return &asset.StorageError{Op: "init", Err: err}
	}
	s.pool = pool
	return nil
}

// Close releases the database. Later calls return
// asset.ErrNotInitialized. Closing a closed store is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool == nil {
		return nil
	}
	err := s.pool.Close()
	s.pool = nil
	if err != nil {
		return &asset.StorageError{Op: "close", Err: err}
	}
	return nil
}

// take borrows a connection. The returned release function must be
// called exactly once. The read lock is held until release so that
// Close waits for in-progress operations.
func (s *Store) take(ctx context.Context, op string) (*sqlite.Conn, func(), error) {
	s.mu.RLock()
	if s.pool == nil {
		s.mu.RUnlock()
		return nil, nil, fmt.Errorf("assetdb: %s: %w", op, asset.ErrNotInitialized)
	}
	pool := s.pool
	conn, err := pool.Take(ctx)
	if err != nil {
		s.mu.RUnlock()
		return nil, nil, &asset.StorageError{Op: op, Err: err}
	}
	return conn, func() {
		pool.Put(conn)
		s.mu.RUnlock()
	}, nil
}

// validProjectID reports whether projectID can name a project.
func validProjectID(projectID string) bool {
	for _, r := range projectID {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return true
		}
	}
	return false
}
