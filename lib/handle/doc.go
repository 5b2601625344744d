// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package handle maintains the process-local mapping between asset ids
// and the opaque handles given to the rendering layer.
//
// A handle is a string of the form "blob:<origin>/<uuid>" naming an
// in-memory view of one payload. Handles are cheap to hand out, never
// persisted, and revocable: once revoked, [Cache.Open] fails and the
// payload memory is released. Both directions of the mapping (id to
// handle, handle to id) are kept in one [Cache] and always mutated
// together under one lock, so a lookup in either direction never
// observes half of an insertion or revocation.
//
// The Cache also implements http.Handler, serving GET /<uuid> with the
// payload bytes, so a local preview renderer can load handles over
// HTTP.
package handle
