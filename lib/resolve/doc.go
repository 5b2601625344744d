// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package resolve rewrites asset reference tokens in free-form text
// into renderer handles, and back.
//
// Tokens have the form asset://<id> or asset://<id>/<display-name>;
// lookup uses only the id. [Resolver.ResolveText] resolves each
// distinct id through the handle cache (which falls back to the
// store). An id that is not stored locally is rendered as a
// status-coded placeholder image, added to the shared missing set, and
// handed to the [Fetcher] so the reconciler can download it in the
// background. [Resolver.ResolveTextSync] consults only the cache and
// never performs I/O.
//
// [Resolver.UnresolveText] is the inverse: every handle and every
// placeholder the resolver emitted is rewritten back to its canonical
// token, so persisted text never contains process-local handles or
// data URIs. Both directions are idempotent: resolving text that holds
// no tokens, or unresolving text that holds no handles, returns it
// unchanged.
package resolve
