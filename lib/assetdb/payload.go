// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetdb

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/assetstore/lib/asset"
	"github.com/bureau-foundation/assetstore/lib/compress"
)

var errChecksumMismatch = errors.New("payload checksum mismatch")

// encodedPayload is a payload as stored on disk.
type encodedPayload struct {
	data     []byte
	codec    compress.Tag
	checksum []byte
}

func (s *Store) encodePayload(record *asset.Record) (encodedPayload, error) {
	tag := s.pinned
	if s.auto {
		tag = compress.Select(record.Payload,
			asset.IsTextLike(record.Mime), asset.IsPrecompressed(record.Mime))
	}
	data, applied, err := compress.Encode(record.Payload, tag)
	if err != nil {
		return encodedPayload{}, err
	}
	checksum := blake3.Sum256(record.Payload)
	return encodedPayload{data: data, codec: applied, checksum: checksum[:]}, nil
}

// decodePayload reverses encodePayload. A nil checksum (rows written
// before payload checksums existed) skips verification.
func decodePayload(stored encodedPayload, size int64) ([]byte, error) {
	payload, err := compress.Decode(stored.data, stored.codec, int(size))
	if err != nil {
		return nil, err
	}
	if stored.checksum != nil {
		sum := blake3.Sum256(payload)
		if !bytes.Equal(sum[:], stored.checksum) {
			return nil, fmt.Errorf("%w: stored %x, computed %x", errChecksumMismatch, stored.checksum, sum)
		}
	}
	return payload, nil
}
