// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// MaxPayloadSize bounds a single artifact. Payloads are held in memory
// by the handle cache, so the bound keeps one oversized import from
// exhausting the process.
const MaxPayloadSize = 512 * 1024 * 1024

// CheckSize returns an error if size is outside (0, MaxPayloadSize].
func CheckSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("asset: payload is empty")
	}
	if size > MaxPayloadSize {
		return fmt.Errorf("asset: payload is %s, limit is %s",
			FormatSize(size), FormatSize(MaxPayloadSize))
	}
	return nil
}

// FormatSize renders a byte count for humans ("1.5 MB").
func FormatSize(size int64) string {
	if size < 0 {
		return "-" + humanize.Bytes(uint64(-size))
	}
	return humanize.Bytes(uint64(size))
}
