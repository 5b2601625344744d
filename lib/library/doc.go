// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package library assembles the asset store components for one
// project: the durable store, the handle cache, the reference resolver,
// and the sync reconciler, sharing one missing set.
//
// A [Library] is the entry point producers and consumers use. Producers
// call [Library.Insert] or [Library.Import]; both deduplicate by content
// before writing. Consumers pass text through [Library.ResolveText] and
// its siblings. [Library.Close] revokes every outstanding handle and
// persists the missing set so that references seen in this session are
// fetched in the next one.
package library
