// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"github.com/foredeck-sh/foredeck/lib/codec"
	"github.com/foredeck-sh/foredeck/lib/sealed"
	"github.com/foredeck-sh/foredeck/lib/secret"
)

// ReaderOptions configures a capture reader.
type ReaderOptions struct {
	// Identity is the age X25519 private key used to unwrap the
	// capture key of an encrypted file. Plaintext captures ignore it.
	Identity *secret.Buffer
}

// Reader iterates the records of a capture:
//
//	for reader.Next() {
//		record := reader.Record()
//	}
//	if err := reader.Err(); err != nil {
//		...
//	}
//
// Err returns nil only after the trailer has been read and its record
// count and digest verified. A capture that ends early fails with
// [ErrTruncated].
type Reader struct {
	source  *bufio.Reader
	file    *os.File
	header  Header
	sealer  *frameSealer
	digest  *blake3.Hasher
	current Record
	seen    uint64
	done    bool
	err     error
	closed  bool
}

// NewReader parses the capture preamble and header from r and returns
// a reader positioned at the first record. The underlying reader is
// not closed by Close; use Open for a file-owning reader.
func NewReader(r io.Reader, options ReaderOptions) (*Reader, error) {
	source := bufio.NewReader(r)

	preamble := make([]byte, len(fileMagic)+1)
	if _, err := io.ReadFull(source, preamble); err != nil {
		return nil, truncatedOr(err, "reading capture preamble")
	}
	if string(preamble[:len(fileMagic)]) != fileMagic {
		return nil, fmt.Errorf("not a capture file (bad magic)")
	}
	if version := preamble[len(fileMagic)]; version != formatVersion {
		return nil, fmt.Errorf("unsupported capture format version %d (supported: %d)", version, formatVersion)
	}

	headerLength, err := readUint32(source)
	if err != nil {
		return nil, truncatedOr(err, "reading header length")
	}
	if headerLength > maxFrameSize {
		return nil, fmt.Errorf("header declares %d bytes, limit is %d", headerLength, maxFrameSize)
	}
	headerBytes := make([]byte, headerLength)
	if _, err := io.ReadFull(source, headerBytes); err != nil {
		return nil, truncatedOr(err, "reading header")
	}

	var header fileHeader
	if err := codec.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("decoding capture header: %w", err)
	}
	switch CompressionTag(header.Compression) {
	case CompressionNone, CompressionLZ4, CompressionZstd:
	default:
		return nil, fmt.Errorf("capture uses unsupported compression tag %d", header.Compression)
	}

	var sealer *frameSealer
	if header.Flags&flagEncrypted != 0 {
		if options.Identity == nil {
			return nil, fmt.Errorf("capture is encrypted: an age identity is required to read it")
		}
		if header.WrappedKey == "" {
			return nil, fmt.Errorf("encrypted capture has no wrapped key")
		}
		fileKey, err := sealed.Decrypt(header.WrappedKey, options.Identity)
		if err != nil {
			return nil, fmt.Errorf("unwrapping capture key: %w", err)
		}
		if fileKey.Len() != KeySize {
			fileKey.Close()
			return nil, fmt.Errorf("wrapped capture key is %d bytes, want %d", fileKey.Len(), KeySize)
		}
		sealer, err = newFrameSealer(fileKey, headerBytes)
		fileKey.Close()
		if err != nil {
			return nil, err
		}
	}

	return &Reader{
		source: source,
		header: Header{
			Label:       header.Label,
			StartedAt:   header.StartedAt,
			Compression: CompressionTag(header.Compression),
			Encrypted:   header.Flags&flagEncrypted != 0,
		},
		sealer: sealer,
		digest: newDigest(),
	}, nil
}

// Open opens the capture at path. Close closes the file.
func Open(path string, options ReaderOptions) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	reader, err := NewReader(file, options)
	if err != nil {
		file.Close()
		return nil, err
	}
	reader.file = file
	return reader, nil
}

// Header returns the capture's metadata.
func (r *Reader) Header() Header {
	return r.header
}

// Next advances to the next record. It returns false at the trailer
// (after verifying it) or on error; check Err to tell the two apart.
func (r *Reader) Next() bool {
	if r.done || r.err != nil {
		return false
	}

	length, err := readUint32(r.source)
	if err != nil {
		r.err = truncatedOr(err, fmt.Sprintf("frame %d", r.seen+1))
		return false
	}
	if length == endMarker {
		r.readTrailer()
		return false
	}
	if length > maxFrameSize {
		r.err = fmt.Errorf("frame %d declares %d bytes, limit is %d", r.seen+1, length, maxFrameSize)
		return false
	}

	seq := r.seen + 1
	frame := make([]byte, length)
	if _, err := io.ReadFull(r.source, frame); err != nil {
		r.err = truncatedOr(err, fmt.Sprintf("frame %d", seq))
		return false
	}
	if r.sealer != nil {
		frame, err = r.sealer.open(seq, frame)
		if err != nil {
			r.err = fmt.Errorf("frame %d: %w", seq, err)
			return false
		}
	}

	raw, err := decodeFrame(frame)
	if err != nil {
		r.err = fmt.Errorf("frame %d: %w", seq, err)
		return false
	}
	var record Record
	if err := codec.Unmarshal(raw, &record); err != nil {
		r.err = fmt.Errorf("frame %d: decoding record: %w", seq, err)
		return false
	}
	if record.Seq != seq {
		r.err = fmt.Errorf("record sequence %d out of order (want %d)", record.Seq, seq)
		return false
	}

	r.digest.Write(raw)
	r.seen = seq
	r.current = record
	return true
}

// Record returns the record read by the most recent successful Next.
func (r *Reader) Record() Record {
	return r.current
}

// Err returns the first error encountered. It is nil after a complete,
// verified read.
func (r *Reader) Err() error {
	return r.err
}

// Close releases the reader's resources. If the reader owns its file
// (Open), the file is closed. Idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.sealer != nil {
		r.sealer.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// readTrailer reads and verifies the trailer frame after the end
// marker.
func (r *Reader) readTrailer() {
	length, err := readUint32(r.source)
	if err != nil {
		r.err = truncatedOr(err, "trailer")
		return
	}
	if length > maxFrameSize {
		r.err = fmt.Errorf("trailer declares %d bytes, limit is %d", length, maxFrameSize)
		return
	}
	frame := make([]byte, length)
	if _, err := io.ReadFull(r.source, frame); err != nil {
		r.err = truncatedOr(err, "trailer")
		return
	}
	if r.sealer != nil {
		frame, err = r.sealer.open(trailerSeq, frame)
		if err != nil {
			r.err = fmt.Errorf("trailer: %w", err)
			return
		}
	}

	raw, err := decodeFrame(frame)
	if err != nil {
		r.err = fmt.Errorf("trailer: %w", err)
		return
	}
	var trailer fileTrailer
	if err := codec.Unmarshal(raw, &trailer); err != nil {
		r.err = fmt.Errorf("trailer: decoding: %w", err)
		return
	}

	if trailer.Records != r.seen {
		r.err = fmt.Errorf("trailer declares %d records, read %d", trailer.Records, r.seen)
		return
	}
	if !bytes.Equal(trailer.Digest, r.digest.Sum(nil)) {
		r.err = fmt.Errorf("record digest mismatch: capture is corrupt")
		return
	}
	r.done = true
}

// readUint32 reads a big-endian uint32.
func readUint32(r io.Reader) (uint32, error) {
	var buffer [4]byte
	if _, err := io.ReadFull(r, buffer[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buffer[:]), nil
}

// truncatedOr maps EOF conditions to ErrTruncated, keeping other read
// errors intact.
func truncatedOr(err error, context string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%s: %w", context, ErrTruncated)
	}
	return fmt.Errorf("%s: %w", context, err)
}
