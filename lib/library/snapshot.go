// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package library

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/assetstore/lib/asset"
	"github.com/bureau-foundation/assetstore/lib/codec"
)

// missingSnapshot is the on-disk form of a project's missing set.
type missingSnapshot struct {
	ProjectID string     `cbor:"project_id"`
	Missing   []asset.ID `cbor:"missing"`
	SavedAt   time.Time  `cbor:"saved_at"`
}

func (l *Library) snapshotPath() string {
	return filepath.Join(l.stateDir, "missing-"+url.PathEscape(l.projectID)+".cbor")
}

// loadMissing restores the missing set. A snapshot that does not exist
// is an empty set.
func (l *Library) loadMissing() error {
	if l.stateDir == "" {
		return nil
	}
	var snapshot missingSnapshot
	err := codec.ReadFile(l.snapshotPath(), &snapshot)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("library: loading missing set: %w", err)
	}
	if snapshot.ProjectID != l.projectID {
		return fmt.Errorf("library: missing set at %s belongs to project %q", l.snapshotPath(), snapshot.ProjectID)
	}

	for _, id := range snapshot.Missing {
		if !asset.ValidID(string(id)) {
			l.logger.Warn("dropping malformed id from missing set", "asset_id", id)
			continue
		}
		l.missing.Add(id)
	}
	l.logger.Debug("missing set restored",
		"missing", l.missing.Len(),
		"saved_at", snapshot.SavedAt,
	)
	return nil
}

func (l *Library) saveMissing() error {
	if l.stateDir == "" {
		return nil
	}
	if err := os.MkdirAll(l.stateDir, 0o755); err != nil {
		return fmt.Errorf("library: creating state directory: %w", err)
	}
	snapshot := missingSnapshot{
		ProjectID: l.projectID,
		Missing:   l.missing.Snapshot(),
		SavedAt:   l.clock.Now().UTC(),
	}
	if err := codec.WriteFile(l.snapshotPath(), snapshot); err != nil {
		return fmt.Errorf("library: saving missing set: %w", err)
	}
	return nil
}
