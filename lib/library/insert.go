// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package library

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/bureau-foundation/assetstore/lib/asset"
)

// Insert stores payload and returns its id. Bytes already present in
// the project return the existing id without a write; the existing
// record's filename and mime are kept.
func (l *Library) Insert(ctx context.Context, payload []byte, filename, mime string) (asset.ID, error) {
	record, err := asset.NewRecord(l.projectID, payload, filename, mime, l.clock.Now())
	if err != nil {
		return "", fmt.Errorf("library: insert: %w", err)
	}
	return l.insert(ctx, record)
}

// ImportFile is one file of an imported package.
type ImportFile struct {
	// Path is the file's slash-separated path inside the package. Its
	// base name becomes the filename.
	Path string

	Payload []byte

	// Mime is optional. Empty infers from the path and content.
	Mime string
}

// Import inserts every file and returns the id assigned to each path.
// Files with identical content map to the same id. The first failure
// stops the import; files inserted before it stay stored.
func (l *Library) Import(ctx context.Context, files []ImportFile) (map[string]asset.ID, error) {
	ids := make(map[string]asset.ID, len(files))
	for _, file := range files {
		if file.Path == "" {
			return ids, fmt.Errorf("library: import: file with empty path")
		}
		record, err := asset.NewRecord(l.projectID, file.Payload, path.Base(file.Path), file.Mime, l.clock.Now())
		if err != nil {
			return ids, fmt.Errorf("library: import %s: %w", file.Path, err)
		}
		record.OriginalPath = file.Path

		id, err := l.insert(ctx, record)
		if err != nil {
			return ids, fmt.Errorf("library: import %s: %w", file.Path, err)
		}
		ids[file.Path] = id
	}
	l.logger.Info("package imported", "files", len(files))
	return ids, nil
}

// insert writes record unless its content is already stored, and
// returns the id that holds the content.
func (l *Library) insert(ctx context.Context, record *asset.Record) (asset.ID, error) {
	if err := asset.CheckSize(record.Size); err != nil {
		return "", fmt.Errorf("library: insert: %w", err)
	}

	existing, err := l.store.FindByHash(ctx, record.Hash, l.projectID)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, asset.ErrNotFound) {
		return "", err
	}

	created, err := l.store.Create(ctx, record)
	if err != nil {
		return "", err
	}
	if !created {
		return record.ID, nil
	}

	l.logger.Info("asset stored",
		"asset_id", record.ID,
		"size", record.Size,
		"mime", record.Mime,
	)
	if l.missing.Contains(record.ID) {
		l.notify(record.ID, l.handles.Put(record))
	}
	return record.ID, nil
}
