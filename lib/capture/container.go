// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
)

// Format constants. Changing any of these breaks capture file
// compatibility.
const (
	fileMagic     = "FDCAP"
	formatVersion = byte(1)

	// flagEncrypted marks a capture whose frames are sealed with the
	// per-file key wrapped in the header.
	flagEncrypted = uint8(0x01)

	// endMarker is the frame-length value that terminates the record
	// sequence. The trailer frame follows it.
	endMarker = uint32(0xFFFFFFFF)

	// maxFrameSize bounds a single frame on read. SSE servers cap
	// individual events far below this; anything larger is a corrupt
	// or hostile file, not a real capture.
	maxFrameSize = 16 << 20
)

// digestDomain keys the trailer's BLAKE3 digest. The domain tag keeps
// capture digests from ever colliding with hashes computed elsewhere
// over the same bytes.
const digestDomain = "foredeck.capture.v1"

// ErrTruncated reports a capture that ends before its trailer. A file
// still being written fails this way; Follow treats it as "wait for
// more" rather than corruption.
var ErrTruncated = errors.New("capture truncated before trailer")

// Record is one captured stream event.
type Record struct {
	// Seq is the record's 1-based position in the capture. Sequence
	// numbers are strictly increasing; a gap or repeat fails the read.
	Seq uint64 `cbor:"seq"`

	// At is when the event was received, in UTC. Replay pacing is
	// derived from the gaps between consecutive records.
	At time.Time `cbor:"at"`

	// Type is the SSE event type. Empty for bare data frames (chat
	// streams send those).
	Type string `cbor:"type,omitempty"`

	// Data is the raw frame payload, byte-for-byte as received.
	Data []byte `cbor:"data"`
}

// fileHeader is the CBOR header written after the preamble.
type fileHeader struct {
	Label       string    `cbor:"label,omitempty"`
	StartedAt   time.Time `cbor:"started_at"`
	Compression uint8     `cbor:"compression"`
	Flags       uint8     `cbor:"flags"`

	// WrappedKey is the base64 age ciphertext of the per-file key.
	// Present only when flagEncrypted is set.
	WrappedKey string `cbor:"wrapped_key,omitempty"`
}

// fileTrailer is the CBOR trailer written after the end marker.
type fileTrailer struct {
	Records uint64 `cbor:"records"`
	Digest  []byte `cbor:"digest"`
}

// Header is the public view of a capture's metadata.
type Header struct {
	// Label names the captured channel ("inbox", "chat", ...).
	Label string

	// StartedAt is when the recording began.
	StartedAt time.Time

	// Compression is the preferred per-record compression. Individual
	// records may still be stored uncompressed.
	Compression CompressionTag

	// Encrypted reports whether frames are sealed. Reading an
	// encrypted capture requires a recipient identity.
	Encrypted bool
}

// newDigest returns the keyed BLAKE3 hasher used for the trailer
// digest. The key is the ASCII domain tag zero-padded to the 32 bytes
// BLAKE3 requires.
func newDigest() *blake3.Hasher {
	key := make([]byte, 32)
	copy(key, digestDomain)
	hasher, err := blake3.NewKeyed(key)
	if err != nil {
		panic("capture: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}

// encodeFrame builds a frame from encoded record bytes: the actual
// compression tag, the uncompressed length, then the stored bytes.
func encodeFrame(raw []byte, preferred CompressionTag) []byte {
	stored, used := compressRecord(raw, preferred)
	frame := make([]byte, 5+len(stored))
	frame[0] = byte(used)
	binary.BigEndian.PutUint32(frame[1:5], uint32(len(raw)))
	copy(frame[5:], stored)
	return frame
}

// decodeFrame reverses encodeFrame, returning the encoded record
// bytes.
func decodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < 5 {
		return nil, fmt.Errorf("frame is %d bytes, minimum is 5 (tag + length)", len(frame))
	}
	tag := CompressionTag(frame[0])
	rawLength := binary.BigEndian.Uint32(frame[1:5])
	if rawLength > maxFrameSize {
		return nil, fmt.Errorf("frame declares %d uncompressed bytes, limit is %d", rawLength, maxFrameSize)
	}
	return decompressRecord(frame[5:], tag, int(rawLength))
}
