// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build stamp of the assetstore binary.
//
// Release builds inject values via -ldflags:
//
//	go build -ldflags "-X github.com/bureau-foundation/assetstore/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Development builds fall back to the VCS settings recorded by the Go
// toolchain.
package version
