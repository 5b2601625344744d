// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ID is the stable, content-derived identifier of an artifact. It is
// the canonical UUID-shaped rendering of the first 16 bytes (32 hex
// characters) of the payload's SHA-256 digest, grouped 8-4-4-4-12.
type ID string

// String returns the identifier text.
func (id ID) String() string { return string(id) }

// IsZero reports whether the identifier is empty.
func (id ID) IsZero() bool { return id == "" }

// Identify derives the identifier for payload. Pure: identical bytes
// always produce the identical ID.
func Identify(payload []byte) ID {
	digest := sha256.Sum256(payload)
	return idFromDigest(digest[:])
}

// HashPayload returns the full hex-encoded SHA-256 digest of payload.
// This is the value stored in Record.Hash and used for dedup lookups.
func HashPayload(payload []byte) string {
	digest := sha256.Sum256(payload)
	return hex.EncodeToString(digest[:])
}

// IDFromHash derives the identifier from a hex-encoded digest, as
// reported in remote transfer metadata. The digest must carry at least
// 16 bytes.
func IDFromHash(hexDigest string) (ID, error) {
	digest, err := hex.DecodeString(hexDigest)
	if err != nil {
		return "", fmt.Errorf("parsing asset hash: %w", err)
	}
	if len(digest) < 16 {
		return "", fmt.Errorf("asset hash is %d bytes, want at least 16", len(digest))
	}
	return idFromDigest(digest), nil
}

// ParseID validates that s is a canonical identifier: 36 characters of
// lowercase hex grouped 8-4-4-4-12.
func ParseID(s string) (ID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid asset id %q: %w", s, err)
	}
	if parsed.String() != s {
		return "", fmt.Errorf("invalid asset id %q: not in canonical form", s)
	}
	return ID(s), nil
}

// ValidID reports whether s is a canonical identifier.
func ValidID(s string) bool {
	_, err := ParseID(s)
	return err == nil
}

func idFromDigest(digest []byte) ID {
	// FromBytes copies the bytes verbatim: no version or variant bits
	// are rewritten, so the string is exactly the grouped hex prefix.
	prefix, err := uuid.FromBytes(digest[:16])
	if err != nil {
		panic("asset: 16-byte digest prefix rejected by uuid.FromBytes: " + err.Error())
	}
	return ID(prefix.String())
}
