// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the asset store
// packages.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve (select with a time.After fallback) so that tests waiting on
// background fetches never hang. They are the only place in the test
// suite where real wall-clock timeouts are used.
//
// [Payload] returns deterministic pseudo-random bytes, and
// [UniqueProject] returns distinct project identifiers.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
