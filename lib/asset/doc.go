// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package asset defines the shared vocabulary of the asset store: the
// content-derived identifier, the stored record, the reference token
// grammar embedded in document text, the error taxonomy, and the small
// pure helpers (mime inference, sizing, placeholder rendering) that the
// storage, cache, resolver, and sync layers build on.
//
// Everything in this package is free of I/O. The layers are:
//
//   - Identity: [Identify] hashes payload bytes with SHA-256 and formats
//     the first 16 bytes of the digest as a canonical UUID string. The
//     same bytes always produce the same [ID], independent of filename
//     or mime metadata.
//
//   - Records: [Record] is the unit of storage. [NewRecord] derives the
//     identity, hash, size, and (when absent) mime type from the payload.
//
//   - References: documents embed artifacts as asset://<id> or
//     asset://<id>/<display-name>. [FindReferences] and
//     [ExtractReferences] scan text; the display name is informational
//     and never used for lookup.
//
//   - Placeholders: [Placeholder] renders a status-coded inline SVG as a
//     data URI so unresolved references never render as broken.
//
// Error sentinels ([ErrNotInitialized], [ErrNotFound], [ErrTransport],
// [ErrStorage]) are shared by every layer and checked with errors.Is.
package asset
