// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package remote is the HTTP client for a remote asset server, and
// defines the wire format shared with the reference server in
// lib/remote/mirror.
//
// Three endpoints are used, all scoped by project:
//
//	POST /projects/{project}/assets        multipart batch upload
//	GET  /projects/{project}/assets        listing
//	GET  /projects/{project}/assets/{id}   single fetch
//
// The batch upload sends, for the i-th asset, a file part named
// asset_i and form fields asset_i_id, asset_i_mime, asset_i_hash,
// asset_i_size, and asset_i_filename. The server answers
// {"uploaded": n}. A fetch returns the raw bytes with the original
// metadata in X-Original-Mime, X-Original-Hash, X-Original-Size, and
// X-Original-Filename headers.
//
// Every failure of the network or of the server wraps
// asset.ErrTransport. Non-2xx responses are reported as *Error. A 404
// from a fetch additionally wraps asset.ErrNotFound.
package remote
