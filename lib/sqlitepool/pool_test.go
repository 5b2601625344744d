// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/assetstore/lib/sqlitepool"
)

var testMigrations = []sqlitepool.Migration{
	{Version: 1, Description: "items", Script: `CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`},
	{Version: 2, Description: "item index", Script: `CREATE INDEX idx_items_name ON items (name);`},
	{Version: 3, Description: "item weight", Script: `ALTER TABLE items ADD COLUMN weight INTEGER NOT NULL DEFAULT 0;`},
}

func TestOpenAppliesPragmas(t *testing.T) {
	pool := openTestPool(t, filepath.Join(t.TempDir(), "test.db"), nil)

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	var journalMode string
	err = sqlitex.Execute(conn, "PRAGMA journal_mode", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			journalMode = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want %q", journalMode, "wal")
	}
}

func TestDurableSetsSynchronousFull(t *testing.T) {
	// PRAGMA synchronous reports 1 for NORMAL and 2 for FULL.
	for _, test := range []struct {
		durable bool
		want    int64
	}{
		{durable: false, want: 1},
		{durable: true, want: 2},
	} {
		pool, err := sqlitepool.Open(context.Background(), sqlitepool.Config{
			Path:    filepath.Join(t.TempDir(), "sync.db"),
			Durable: test.durable,
		})
		if err != nil {
			t.Fatalf("Open(durable=%v): %v", test.durable, err)
		}
		conn, err := pool.Take(context.Background())
		if err != nil {
			t.Fatalf("Take: %v", err)
		}
		var synchronous int64
		err = sqlitex.Execute(conn, "PRAGMA synchronous", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				synchronous = stmt.ColumnInt64(0)
				return nil
			},
		})
		pool.Put(conn)
		pool.Close()
		if err != nil {
			t.Fatalf("PRAGMA synchronous: %v", err)
		}
		if synchronous != test.want {
			t.Errorf("durable=%v: synchronous = %d, want %d", test.durable, synchronous, test.want)
		}
	}
}

func TestMigrationsApplyInOrder(t *testing.T) {
	pool := openTestPool(t, filepath.Join(t.TempDir(), "test.db"), testMigrations)

	version, err := pool.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 3 {
		t.Errorf("schema version = %d, want 3", version)
	}

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)
	err = sqlitex.Execute(conn, "INSERT INTO items (name, weight) VALUES (?, ?)", &sqlitex.ExecOptions{
		Args: []any{"anvil", 40},
	})
	if err != nil {
		t.Fatalf("INSERT after migrations: %v", err)
	}
}

func TestMigrationsUpgradeInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upgrade.db")
	ctx := context.Background()

	// Create at version 1 and write a row.
	old, err := sqlitepool.Open(ctx, sqlitepool.Config{Path: path, Migrations: testMigrations[:1]})
	if err != nil {
		t.Fatalf("Open v1: %v", err)
	}
	conn, err := old.Take(ctx)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if err := sqlitex.Execute(conn, "INSERT INTO items (name) VALUES ('kept')", nil); err != nil {
		t.Fatalf("INSERT: %v", err)
	}
	old.Put(conn)
	if err := old.Close(); err != nil {
		t.Fatalf("Close v1: %v", err)
	}

	pool := openTestPool(t, path, testMigrations)
	conn, err = pool.Take(ctx)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	var name string
	var weight int64
	err = sqlitex.Execute(conn, "SELECT name, weight FROM items", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			name = stmt.ColumnText(0)
			weight = stmt.ColumnInt64(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if name != "kept" || weight != 0 {
		t.Errorf("row after upgrade = (%q, %d), want (\"kept\", 0)", name, weight)
	}
}

func TestMigrationsRejectNewerDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newer.db")
	ctx := context.Background()

	pool, err := sqlitepool.Open(ctx, sqlitepool.Config{Path: path, Migrations: testMigrations})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	pool.Close()

	_, err = sqlitepool.Open(ctx, sqlitepool.Config{Path: path, Migrations: testMigrations[:2]})
	if err == nil || !strings.Contains(err.Error(), "newer than supported") {
		t.Fatalf("Open with older migrations: err = %v, want newer-schema error", err)
	}
}

func TestMigrationVersionsValidated(t *testing.T) {
	_, err := sqlitepool.Open(context.Background(), sqlitepool.Config{
		Path:       filepath.Join(t.TempDir(), "bad.db"),
		Migrations: []sqlitepool.Migration{{Version: 2, Script: "SELECT 1"}},
	})
	if err == nil {
		t.Fatal("expected error for migration list not starting at 1")
	}
}

func TestEmptyPathRejected(t *testing.T) {
	_, err := sqlitepool.Open(context.Background(), sqlitepool.Config{})
	if err == nil {
		t.Fatal("expected error for empty Path")
	}
}

func TestContextCancellation(t *testing.T) {
	pool, err := sqlitepool.Open(context.Background(), sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "cancel.db"),
		PoolSize: 1,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err = pool.Take(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}

	pool.Put(conn)
}

// openTestPool opens a pool that is closed when the test completes.
func openTestPool(t *testing.T, path string, migrations []sqlitepool.Migration) *sqlitepool.Pool {
	t.Helper()

	pool, err := sqlitepool.Open(context.Background(), sqlitepool.Config{
		Path:       path,
		PoolSize:   4,
		Migrations: migrations,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}
