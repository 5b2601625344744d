// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress provides the transparent payload codecs used by the
// asset database. A payload is stored under one of three tags: raw,
// LZ4 block, or zstd. The tag travels with the stored bytes, so the
// selection policy can change without rewriting existing rows.
//
// Already-compressed media (JPEG, MP4, ZIP) is stored raw. Text-like
// payloads (SVG, HTML, JSON, subtitles) go to zstd. Everything else is
// probed: the first block is compressed with zstd and the ratio picks
// the codec.
package compress

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies the codec of a stored payload. Values are persisted in
// the database and must never be renumbered.
type Tag uint8

const (
	// None stores the payload as-is.
	None Tag = 0

	// LZ4 is LZ4 block compression: fast, modest ratio.
	LZ4 Tag = 1

	// Zstd is zstd at the default level: better ratio for text.
	Zstd Tag = 2
)

// String returns the tag name used in configuration and logs.
func (tag Tag) String() string {
	switch tag {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseTag parses a tag name. "auto" is not a tag; callers handle it
// before parsing.
func ParseTag(name string) (Tag, error) {
	switch name {
	case "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// ProbeSize is how much of a payload Select compresses to estimate the
// ratio.
const ProbeSize = 64 * 1024

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

var errIncompressible = errors.New("data is incompressible")

// Encode compresses data with the requested codec. When the codec does
// not shrink the data, Encode falls back to None and returns data
// unchanged. The returned tag is the one actually applied.
func Encode(data []byte, tag Tag) ([]byte, Tag, error) {
	var (
		encoded []byte
		err     error
	)
	switch tag {
	case None:
		return data, None, nil
	case LZ4:
		encoded, err = encodeLZ4(data)
	case Zstd:
		encoded, err = encodeZstd(data)
	default:
		return nil, 0, fmt.Errorf("compress: unsupported tag %d", tag)
	}
	if errors.Is(err, errIncompressible) {
		return data, None, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return encoded, tag, nil
}

// Decode reverses Encode. size is the original length and is verified.
func Decode(encoded []byte, tag Tag, size int) ([]byte, error) {
	switch tag {
	case None:
		if len(encoded) != size {
			return nil, fmt.Errorf("compress: raw payload is %d bytes, expected %d", len(encoded), size)
		}
		return encoded, nil
	case LZ4:
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(encoded, destination)
		if err != nil {
			return nil, fmt.Errorf("compress: lz4 decode: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("compress: lz4 decoded %d bytes, expected %d", read, size)
		}
		return destination, nil
	case Zstd:
		result, err := zstdDecoder.DecodeAll(encoded, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("compress: zstd decode: %w", err)
		}
		if len(result) != size {
			return nil, fmt.Errorf("compress: zstd decoded %d bytes, expected %d", len(result), size)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("compress: unsupported tag %d", tag)
	}
}

// Select picks a codec for a payload of the given class. textLike and
// precompressed come from the payload's mime type; when neither is
// known, the head of data is probed.
func Select(data []byte, textLike, precompressed bool) Tag {
	switch {
	case precompressed:
		return None
	case textLike:
		return Zstd
	case len(data) == 0:
		return None
	}

	probe := data
	if len(probe) > ProbeSize {
		probe = probe[:ProbeSize]
	}
	compressed := zstdEncoder.EncodeAll(probe, nil)
	ratio := float64(len(probe)) / float64(len(compressed))
	switch {
	case ratio >= 1.5:
		return Zstd
	case ratio >= 1.1:
		return LZ4
	default:
		return None
	}
}

func encodeLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("compress: lz4 encode: %w", err)
	}
	// Zero means lz4 judged the block incompressible.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func encodeZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}
