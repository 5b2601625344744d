// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the binary entrypoint helper that reports the
// error returned by run() before any structured logger exists.
package process
