// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"fmt"
	"time"
)

// Record is the unit of storage: one artifact payload plus metadata,
// owned by exactly one project. The same bytes in a second project are
// a second Record with a copied payload.
//
// ID, Hash, Size, and Payload never change once written. Filename and
// Mime may be edited. Uploaded only moves from false to true.
type Record struct {
	ID        ID
	ProjectID string
	Payload   []byte

	Mime     string
	Size     int64
	Hash     string
	Filename string

	// OriginalPath is the path inside an imported package archive.
	// Empty for artifacts inserted directly or fetched from a remote.
	OriginalPath string

	CreatedAt time.Time
	Uploaded  bool
}

// NewRecord builds a record for payload under projectID, deriving ID,
// Hash, and Size from the bytes. An empty mime is inferred from the
// filename and content.
func NewRecord(projectID string, payload []byte, filename, mime string, now time.Time) (*Record, error) {
	if projectID == "" {
		return nil, fmt.Errorf("asset: project id is required")
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("asset: cannot store empty payload")
	}
	if mime == "" {
		mime = InferMime(filename, payload)
	}
	return &Record{
		ID:        Identify(payload),
		ProjectID: projectID,
		Payload:   payload,
		Mime:      mime,
		Size:      int64(len(payload)),
		Hash:      HashPayload(payload),
		Filename:  filename,
		CreatedAt: now.UTC(),
	}, nil
}

// DisplayName returns the name shown to users and appended to
// reference tokens: the filename when set, otherwise the id with an
// extension guessed from the mime type.
func (r *Record) DisplayName() string {
	if r.Filename != "" {
		return SanitizeDisplayName(r.Filename)
	}
	return string(r.ID) + ExtensionForMime(r.Mime)
}
