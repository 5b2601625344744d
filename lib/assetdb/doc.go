// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package assetdb is the durable, project-scoped store of asset
// records, backed by SQLite through lib/sqlitepool.
//
// Every record lives under a (project_id, id) primary key: the same
// bytes imported into two projects occupy two rows with independent
// payload copies. Writes return only after the transaction commits, so
// a Get that follows a successful Put on any connection observes it.
//
// A [Store] is constructed with [New] and does no I/O until [Store.Init]
// opens the database and applies schema migrations. Every other method
// returns [asset.ErrNotInitialized] before Init and after Close.
//
// # Schema
//
// One table, assets, with indexes on project_id, hash, and
// (project_id, uploaded). The schema version is kept in PRAGMA
// user_version and upgraded in place:
//
//	v1  assets table, project index
//	v2  hash index (dedup lookups)
//	v3  (project_id, uploaded) index, payload codec and checksum columns
//
// # Payload encoding
//
// Payloads are compressed with lib/compress before they are written.
// The codec is chosen per record from its mime type (zstd for text,
// none for already-compressed media, a probe otherwise) unless
// [Config.Compression] pins one. A BLAKE3 checksum of the uncompressed
// bytes is stored alongside and verified on every read; rows written
// before v3 carry no checksum and are returned unverified.
package assetdb
