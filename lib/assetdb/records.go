// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/assetstore/lib/asset"
	"github.com/bureau-foundation/assetstore/lib/compress"
)

const insertColumns = `project_id, id, hash, uploaded, mime, size, filename,
	created_at, original_path, payload, payload_codec, payload_checksum`

const insertValues = `(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// upsertQuery keeps created_at from the first write and never lowers
// uploaded. The content columns are fixed by the id, so a conflicting
// write only touches the editable metadata.
const upsertQuery = `
	INSERT INTO assets (` + insertColumns + `) VALUES ` + insertValues + `
	ON CONFLICT (project_id, id) DO UPDATE SET
		uploaded      = MAX(assets.uploaded, excluded.uploaded),
		mime          = excluded.mime,
		filename      = excluded.filename,
		original_path = excluded.original_path`

const createQuery = `
	INSERT INTO assets (` + insertColumns + `) VALUES ` + insertValues + `
	ON CONFLICT (project_id, id) DO NOTHING`

// MetadataUpdate names the editable fields of a record. Nil fields are
// left unchanged.
type MetadataUpdate struct {
	Filename *string
	Mime     *string
}

// Put inserts record, or updates the metadata of the existing row for
// its (project, id). Payload, hash and size are never rewritten, and
// the uploaded flag is never cleared. Put returns after the write is
// durable.
func (s *Store) Put(ctx context.Context, record *asset.Record) error {
	_, err := s.write(ctx, "put", upsertQuery, record)
	return err
}

// Create inserts record only if no row exists for its (project, id),
// and reports whether it did. Two concurrent Creates of identical
// bytes produce one row.
func (s *Store) Create(ctx context.Context, record *asset.Record) (bool, error) {
	return s.write(ctx, "create", createQuery, record)
}

func (s *Store) write(ctx context.Context, op, query string, record *asset.Record) (created bool, err error) {
	if err := s.prepareRecord(record); err != nil {
		return false, fmt.Errorf("assetdb: %s: %w", op, err)
	}
	stored, err := s.encodePayload(record)
	if err != nil {
		return false, &asset.StorageError{Op: op, Err: err}
	}

	conn, release, err := s.take(ctx, op)
	if err != nil {
		return false, err
	}
	defer release()

	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{
			record.ProjectID,
			string(record.ID),
			record.Hash,
			boolToInt(record.Uploaded),
			record.Mime,
			record.Size,
			record.Filename,
			record.CreatedAt.UnixMilli(),
			record.OriginalPath,
			stored.data,
			int64(stored.codec),
			stored.checksum,
		},
	})
	if err != nil {
		return false, &asset.StorageError{Op: op, Err: err}
	}

	s.logger.Debug("asset written",
		"op", op,
		"project_id", record.ProjectID,
		"asset_id", record.ID,
		"size", record.Size,
		"stored_size", len(stored.data),
		"codec", stored.codec.String(),
	)
	return conn.Changes() > 0, nil
}

// errContentMismatch rejects a record whose id or hash does not
// describe its payload.
var errContentMismatch = errors.New("content does not match identity")

// prepareRecord checks a record before writing and fills derived
// fields left empty by the caller.
func (s *Store) prepareRecord(record *asset.Record) error {
	if record == nil {
		return fmt.Errorf("nil record")
	}
	if !validProjectID(record.ProjectID) {
		return fmt.Errorf("record %s has no project id", record.ID)
	}
	if !asset.ValidID(string(record.ID)) {
		return fmt.Errorf("invalid asset id %q", record.ID)
	}
	if len(record.Payload) == 0 {
		return fmt.Errorf("record %s has an empty payload", record.ID)
	}
	if err := asset.CheckSize(int64(len(record.Payload))); err != nil {
		return err
	}
	hash := asset.HashPayload(record.Payload)
	if id, _ := asset.IDFromHash(hash); id != record.ID {
		return fmt.Errorf("record %s: payload hashes to %s: %w", record.ID, id, errContentMismatch)
	}
	if record.Hash != "" && record.Hash != hash {
		return fmt.Errorf("record %s: declared hash %s does not match payload: %w", record.ID, record.Hash, errContentMismatch)
	}
	record.Size = int64(len(record.Payload))
	record.Hash = hash
	if record.Mime == "" {
		record.Mime = asset.InferMime(record.Filename, record.Payload)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.clock.Now().UTC()
	}
	return nil
}

// Get returns the record for (projectID, id) with its payload, or an
// error wrapping asset.ErrNotFound.
func (s *Store) Get(ctx context.Context, projectID string, id asset.ID) (*asset.Record, error) {
	conn, release, err := s.take(ctx, "get")
	if err != nil {
		return nil, err
	}
	defer release()

	records, err := queryRecords(conn, "get", true,
		`SELECT `+payloadColumns+` FROM assets WHERE project_id = ? AND id = ?`,
		projectID, string(id))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("assetdb: get %s/%s: %w", projectID, id, asset.ErrNotFound)
	}
	return records[0], nil
}

// Exists reports whether (projectID, id) is stored, without reading
// the payload.
func (s *Store) Exists(ctx context.Context, projectID string, id asset.ID) (bool, error) {
	conn, release, err := s.take(ctx, "exists")
	if err != nil {
		return false, err
	}
	defer release()

	found := false
	err = sqlitex.Execute(conn, `SELECT 1 FROM assets WHERE project_id = ? AND id = ?`, &sqlitex.ExecOptions{
		Args: []any{projectID, string(id)},
		ResultFunc: func(*sqlite.Stmt) error {
			found = true
			return nil
		},
	})
	if err != nil {
		return false, &asset.StorageError{Op: "exists", Err: err}
	}
	return found, nil
}

// UpdateMetadata applies update to an existing record. Payload, hash,
// and id are never touched. Concurrent updates resolve as
// last-writer-wins per field.
func (s *Store) UpdateMetadata(ctx context.Context, projectID string, id asset.ID, update MetadataUpdate) error {
	if update.Filename == nil && update.Mime == nil {
		return nil
	}

	conn, release, err := s.take(ctx, "update metadata")
	if err != nil {
		return err
	}
	defer release()

	err = sqlitex.Execute(conn, `
		UPDATE assets SET
			filename = COALESCE(?, filename),
			mime     = COALESCE(?, mime)
		WHERE project_id = ? AND id = ?`, &sqlitex.ExecOptions{
		Args: []any{optionalText(update.Filename), optionalText(update.Mime), projectID, string(id)},
	})
	if err != nil {
		return &asset.StorageError{Op: "update metadata", Err: err}
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("assetdb: update metadata %s/%s: %w", projectID, id, asset.ErrNotFound)
	}
	return nil
}

// Delete removes (projectID, id) and reports whether a row existed.
func (s *Store) Delete(ctx context.Context, projectID string, id asset.ID) (bool, error) {
	conn, release, err := s.take(ctx, "delete")
	if err != nil {
		return false, err
	}
	defer release()

	err = sqlitex.Execute(conn, `DELETE FROM assets WHERE project_id = ? AND id = ?`, &sqlitex.ExecOptions{
		Args: []any{projectID, string(id)},
	})
	if err != nil {
		return false, &asset.StorageError{Op: "delete", Err: err}
	}
	return conn.Changes() > 0, nil
}

// queryRecords runs query and scans every row. withPayload selects
// between metadataColumns and payloadColumns layouts.
func queryRecords(conn *sqlite.Conn, op string, withPayload bool, query string, args ...any) ([]*asset.Record, error) {
	var records []*asset.Record
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			record, err := scanRecord(stmt, withPayload)
			if err != nil {
				return err
			}
			records = append(records, record)
			return nil
		},
	})
	if err != nil {
		return nil, &asset.StorageError{Op: op, Err: err}
	}
	return records, nil
}

func scanRecord(stmt *sqlite.Stmt, withPayload bool) (*asset.Record, error) {
	record := &asset.Record{
		ProjectID:    stmt.ColumnText(0),
		ID:           asset.ID(stmt.ColumnText(1)),
		Hash:         stmt.ColumnText(2),
		Uploaded:     stmt.ColumnInt64(3) != 0,
		Mime:         stmt.ColumnText(4),
		Size:         stmt.ColumnInt64(5),
		Filename:     stmt.ColumnText(6),
		CreatedAt:    time.UnixMilli(stmt.ColumnInt64(7)).UTC(),
		OriginalPath: stmt.ColumnText(8),
	}
	if !withPayload {
		return record, nil
	}

	stored := encodedPayload{
		data:  columnBlob(stmt, 9),
		codec: compress.Tag(stmt.ColumnInt64(10)),
	}
	if !stmt.ColumnIsNull(11) {
		stored.checksum = columnBlob(stmt, 11)
	}
	payload, err := decodePayload(stored, record.Size)
	if err != nil {
		return nil, fmt.Errorf("decoding payload of %s/%s: %w", record.ProjectID, record.ID, err)
	}
	record.Payload = payload
	return record, nil
}

func columnBlob(stmt *sqlite.Stmt, column int) []byte {
	data := make([]byte, stmt.ColumnLen(column))
	stmt.ColumnBytes(column, data)
	return data
}

func optionalText(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}
