// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool used by the
// asset database, with standard pragmas and versioned schema
// migrations.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Callers [Pool.Take]
// a connection, perform work, and [Pool.Put] it back. Connections are
// NOT safe for concurrent use; each goroutine holds its own for the
// duration of its work.
//
// # Pragmas
//
// Every connection is initialized with:
//
//   - journal_mode=WAL: readers never block the single writer.
//   - synchronous=NORMAL: commits survive process crashes.
//   - busy_timeout=5000: wait for the write lock instead of failing.
//   - foreign_keys=OFF: integrity is managed explicitly.
//   - cache_size=-8192: 8 MB page cache per connection.
//   - temp_store=MEMORY.
//
// # Migrations
//
// The schema version lives in PRAGMA user_version. [Config.Migrations]
// is an ordered list; on [Open], every migration whose version is
// above the stored one runs inside its own IMMEDIATE transaction that
// also bumps user_version, so a crash mid-upgrade leaves the database
// at the last fully applied version. Migrations are additive (new
// tables, columns, indexes): a database created by an older release is
// upgraded in place, never wiped.
//
// # Usage
//
//	pool, err := sqlitepool.Open(ctx, sqlitepool.Config{
//	    Path:       filepath.Join(root, "assets.db"),
//	    Logger:     logger,
//	    Migrations: migrations,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
package sqlitepool
