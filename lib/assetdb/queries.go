// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetdb

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/assetstore/lib/asset"
)

// ListOptions controls List.
type ListOptions struct {
	// WithPayload includes payload bytes in the returned records.
	// Listing is metadata-only by default.
	WithPayload bool
}

// Stats summarizes one project's stored assets.
type Stats struct {
	// Count is the number of records.
	Count int64

	// Bytes is the total uncompressed payload size.
	Bytes int64

	// StoredBytes is the total payload size on disk after compression.
	StoredBytes int64

	// Pending is the number of records not yet uploaded.
	Pending int64
}

// ListByProject returns the metadata of every record in projectID,
// oldest first. An empty or blank project id yields an empty list.
func (s *Store) ListByProject(ctx context.Context, projectID string) ([]*asset.Record, error) {
	return s.List(ctx, projectID, ListOptions{})
}

// List returns every record in projectID, oldest first.
func (s *Store) List(ctx context.Context, projectID string, options ListOptions) ([]*asset.Record, error) {
	if !validProjectID(projectID) {
		return []*asset.Record{}, nil
	}

	conn, release, err := s.take(ctx, "list")
	if err != nil {
		return nil, err
	}
	defer release()

	columns := metadataColumns
	if options.WithPayload {
		columns = payloadColumns
	}
	records, err := queryRecords(conn, "list", options.WithPayload,
		`SELECT `+columns+` FROM assets WHERE project_id = ? ORDER BY created_at, id`,
		projectID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*asset.Record{}
	}
	return records, nil
}

// FindByHash returns the metadata of the record in projectID whose
// payload has the given SHA-256 hex digest, or an error wrapping
// asset.ErrNotFound.
func (s *Store) FindByHash(ctx context.Context, hash, projectID string) (*asset.Record, error) {
	conn, release, err := s.take(ctx, "find by hash")
	if err != nil {
		return nil, err
	}
	defer release()

	records, err := queryRecords(conn, "find by hash", false,
		`SELECT `+metadataColumns+` FROM assets WHERE hash = ? AND project_id = ? LIMIT 1`,
		hash, projectID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("assetdb: find by hash %s in %s: %w", hash, projectID, asset.ErrNotFound)
	}
	return records[0], nil
}

// ListPending returns every record in projectID not yet uploaded,
// payloads included, oldest first.
func (s *Store) ListPending(ctx context.Context, projectID string) ([]*asset.Record, error) {
	conn, release, err := s.take(ctx, "list pending")
	if err != nil {
		return nil, err
	}
	defer release()

	return queryRecords(conn, "list pending", true,
		`SELECT `+payloadColumns+` FROM assets
		WHERE project_id = ? AND uploaded = 0
		ORDER BY created_at, id`,
		projectID)
}

// MarkUploaded sets the uploaded flag on every listed record in one
// transaction and returns how many rows changed. Ids that are absent
// or already uploaded are not counted.
func (s *Store) MarkUploaded(ctx context.Context, projectID string, ids []asset.ID) (marked int, err error) {
	if len(ids) == 0 {
		return 0, nil
	}

	conn, release, err := s.take(ctx, "mark uploaded")
	if err != nil {
		return 0, err
	}
	defer release()

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, &asset.StorageError{Op: "mark uploaded", Err: err}
	}
	defer endTransaction(&err)

	for _, id := range ids {
		err = sqlitex.Execute(conn,
			`UPDATE assets SET uploaded = 1 WHERE project_id = ? AND id = ? AND uploaded = 0`,
			&sqlitex.ExecOptions{Args: []any{projectID, string(id)}})
		if err != nil {
			return 0, &asset.StorageError{Op: "mark uploaded", Err: err}
		}
		marked += conn.Changes()
	}
	return marked, nil
}

// Stats returns counts and sizes for projectID.
func (s *Store) Stats(ctx context.Context, projectID string) (Stats, error) {
	conn, release, err := s.take(ctx, "stats")
	if err != nil {
		return Stats{}, err
	}
	defer release()

	var stats Stats
	err = sqlitex.Execute(conn, `
		SELECT COUNT(*),
		       COALESCE(SUM(size), 0),
		       COALESCE(SUM(LENGTH(payload)), 0),
		       COALESCE(SUM(CASE WHEN uploaded = 0 THEN 1 ELSE 0 END), 0)
		FROM assets WHERE project_id = ?`, &sqlitex.ExecOptions{
		Args: []any{projectID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			stats.Count = stmt.ColumnInt64(0)
			stats.Bytes = stmt.ColumnInt64(1)
			stats.StoredBytes = stmt.ColumnInt64(2)
			stats.Pending = stmt.ColumnInt64(3)
			return nil
		},
	})
	if err != nil {
		return Stats{}, &asset.StorageError{Op: "stats", Err: err}
	}
	return stats, nil
}

// Projects returns the distinct project ids present in the store,
// sorted.
func (s *Store) Projects(ctx context.Context) ([]string, error) {
	conn, release, err := s.take(ctx, "projects")
	if err != nil {
		return nil, err
	}
	defer release()

	var projects []string
	err = sqlitex.Execute(conn, `SELECT DISTINCT project_id FROM assets ORDER BY project_id`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			projects = append(projects, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, &asset.StorageError{Op: "projects", Err: err}
	}
	return projects, nil
}
