// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package assetsync reconciles a project's local asset store with a
// remote asset server.
//
// A [Reconciler] tracks three populations of assets: pending upload
// (stored locally with uploaded=false), missing (referenced in content
// but absent locally, held in a shared asset.IDSet), and in flight (a
// fetch has been dispatched and not yet finished).
//
// [Reconciler.UploadPending] sends every pending record as one batch
// and marks them uploaded only if the whole batch succeeds.
// [Reconciler.FetchMissing] downloads missing assets with bounded
// concurrency; a failure for one id never aborts the others.
// [Reconciler.Request] starts a single background fetch and is what the
// reference resolver calls when it meets an unknown id.
//
// # Single in-flight fetch
//
// Every fetch path inserts the id into the in-flight set before its
// first I/O, in one critical section with the membership check. A
// second request for the same id therefore observes the first rather
// than starting its own download. Synchronous callers of
// [Reconciler.Fetch] join a running download through a singleflight
// group and receive its result.
//
// Background fetches run on a context detached from the requester and
// bounded only by FetchTimeout: a fetch that outlives interest simply
// completes and stores its result.
package assetsync
