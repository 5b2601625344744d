// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Migration is one step of schema evolution.
type Migration struct {
	// Version is the user_version the database reaches once Script has
	// run.
	Version int

	// Description is logged when the migration is applied.
	Description string

	// Script is one or more SQL statements. It runs inside a
	// transaction, so it must not contain BEGIN/COMMIT or VACUUM.
	Script string
}

func validateMigrations(migrations []Migration) error {
	for i, migration := range migrations {
		if migration.Version != i+1 {
			return fmt.Errorf("sqlitepool: migration %d has version %d, want %d",
				i, migration.Version, i+1)
		}
		if migration.Script == "" {
			return fmt.Errorf("sqlitepool: migration %d has an empty script", migration.Version)
		}
	}
	return nil
}

// migrate applies every migration above the stored user_version.
func (p *Pool) migrate(ctx context.Context, migrations []Migration) error {
	if len(migrations) == 0 {
		return nil
	}

	conn, err := p.Take(ctx)
	if err != nil {
		return err
	}
	defer p.Put(conn)

	current, err := userVersion(conn)
	if err != nil {
		return err
	}
	latest := migrations[len(migrations)-1].Version
	if current > latest {
		return fmt.Errorf("sqlitepool: %s has schema version %d, newer than supported %d",
			p.path, current, latest)
	}

	for _, migration := range migrations[current:] {
		if err := applyMigration(conn, migration); err != nil {
			return fmt.Errorf("sqlitepool: migration %d (%s): %w",
				migration.Version, migration.Description, err)
		}
		p.logger.Info("schema migration applied",
			"path", p.path,
			"version", migration.Version,
			"description", migration.Description,
		)
	}
	return nil
}

func applyMigration(conn *sqlite.Conn, migration Migration) (err error) {
	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return err
	}
	defer endTransaction(&err)

	if err = sqlitex.ExecuteScript(conn, migration.Script, nil); err != nil {
		return err
	}
	return sqlitex.ExecuteTransient(conn,
		fmt.Sprintf("PRAGMA user_version = %d", migration.Version), nil)
}

func userVersion(conn *sqlite.Conn) (int, error) {
	var version int
	err := sqlitex.ExecuteTransient(conn, "PRAGMA user_version", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			version = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("sqlitepool: reading user_version: %w", err)
	}
	return version, nil
}
