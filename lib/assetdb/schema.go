// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetdb

import "github.com/bureau-foundation/assetstore/lib/sqlitepool"

// migrations is append-only. Existing entries must never change: a
// database records only the version number it has reached.
var migrations = []sqlitepool.Migration{
	{
		Version:     1,
		Description: "assets table",
		Script: `
			CREATE TABLE assets (
				project_id    TEXT    NOT NULL,
				id            TEXT    NOT NULL,
				hash          TEXT    NOT NULL,
				uploaded      INTEGER NOT NULL DEFAULT 0,
				mime          TEXT    NOT NULL,
				size          INTEGER NOT NULL,
				filename      TEXT    NOT NULL DEFAULT '',
				created_at    INTEGER NOT NULL,
				original_path TEXT    NOT NULL DEFAULT '',
				payload       BLOB    NOT NULL,
				PRIMARY KEY (project_id, id)
			);
			CREATE INDEX idx_assets_project ON assets (project_id);
		`,
	},
	{
		Version:     2,
		Description: "hash index",
		Script:      `CREATE INDEX idx_assets_hash ON assets (hash);`,
	},
	{
		Version:     3,
		Description: "pending index and payload encoding columns",
		Script: `
			CREATE INDEX idx_assets_project_uploaded ON assets (project_id, uploaded);
			ALTER TABLE assets ADD COLUMN payload_codec INTEGER NOT NULL DEFAULT 0;
			ALTER TABLE assets ADD COLUMN payload_checksum BLOB;
		`,
	},
}

// SchemaVersion is the version a freshly initialized database reaches.
var SchemaVersion = migrations[len(migrations)-1].Version

// Column lists for SELECTs. scanRecord reads columns in this order.
const (
	metadataColumns = `project_id, id, hash, uploaded, mime, size, filename, created_at, original_path`
	payloadColumns  = metadataColumns + `, payload, payload_codec, payload_checksum`
)
