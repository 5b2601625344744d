// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used for on-disk state
// files such as the missing-asset snapshot.
//
// JSON remains the format of every external surface (the remote asset
// API, import manifests, CLI --json output). CBOR is reserved for
// state the process writes and reads back itself. The encoder uses
// Core Deterministic Encoding (RFC 8949 §4.2), so the same logical
// value always produces identical bytes and snapshots can be compared
// byte-for-byte.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// [WriteFile] and [ReadFile] wrap the same modes for whole-file state:
// writes go to a temporary file in the target directory and are
// renamed into place, so a crash never leaves a torn snapshot.
package codec
