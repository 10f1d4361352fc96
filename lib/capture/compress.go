// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the compression algorithm used for a
// record frame. Tags are stored in frame headers (1 byte each). These
// values are format constants — changing them breaks capture file
// compatibility.
type CompressionTag uint8

const (
	// CompressionNone indicates uncompressed data. Small records and
	// records that do not shrink under the preferred algorithm are
	// stored this way.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 indicates LZ4 block compression. Fast with a
	// modest ratio; the right choice when recording high-volume
	// streams where encode cost matters.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd indicates zstd compression at level 3. Better
	// ratios for the JSON payloads event streams carry. The default
	// for recorded captures.
	CompressionZstd CompressionTag = 2
)

// String returns the human-readable name of a compression tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseCompressionTag parses a compression tag from its string
// representation. Used by the record command's --compress flag.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

// zstdEncoder and zstdDecoder are reused across calls to avoid
// repeated initialization overhead. zstd.Encoder and zstd.Decoder
// are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("capture: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("capture: zstd decoder initialization failed: " + err.Error())
	}
}

// compressRecord compresses encoded record bytes with the preferred
// tag, falling back to CompressionNone when the output would not be
// smaller. Returns the stored bytes and the tag actually used.
func compressRecord(data []byte, preferred CompressionTag) ([]byte, CompressionTag) {
	switch preferred {
	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(data))
		destination := make([]byte, bound)
		written, err := lz4.CompressBlock(data, destination, nil)
		// CompressBlock returns 0 when it determines the data is
		// incompressible. Also require the output to actually be
		// smaller than the input.
		if err != nil || written == 0 || written >= len(data) {
			return data, CompressionNone
		}
		return destination[:written], CompressionLZ4

	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return data, CompressionNone
		}
		return compressed, CompressionZstd

	default:
		return data, CompressionNone
	}
}

// decompressRecord reverses compressRecord. The uncompressedSize must
// match the original length exactly — this is verified and a mismatch
// returns an error.
func decompressRecord(data []byte, tag CompressionTag, uncompressedSize int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(data) != uncompressedSize {
			return nil, fmt.Errorf("uncompressed frame: size %d does not match expected %d",
				len(data), uncompressedSize)
		}
		return data, nil

	case CompressionLZ4:
		destination := make([]byte, uncompressedSize)
		read, err := lz4.UncompressBlock(data, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != uncompressedSize {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
		}
		return destination, nil

	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(data, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != uncompressedSize {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}
