// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/zeebo/blake3"

	"github.com/foredeck-sh/foredeck/lib/clock"
	"github.com/foredeck-sh/foredeck/lib/codec"
	"github.com/foredeck-sh/foredeck/lib/sealed"
	"github.com/foredeck-sh/foredeck/lib/secret"
)

// WriterOptions configures a capture writer.
type WriterOptions struct {
	// Label names the captured channel ("inbox", "chat", ...).
	// Optional.
	Label string

	// Compression is the preferred per-record compression. Records
	// that do not shrink under it are stored uncompressed.
	Compression CompressionTag

	// Recipients are age X25519 public keys. When non-empty, the
	// capture is encrypted: frames are sealed with a random per-file
	// key, which is wrapped to every recipient in the header. Any one
	// recipient identity can read the capture.
	Recipients []string

	// Clock supplies the header's start timestamp. Nil means the
	// system clock.
	Clock clock.Clock
}

// Writer appends records to a capture. Writes are unbuffered: each
// Append puts one complete frame on the destination, so a tail reader
// sees records as they land. Close writes the trailer; a capture
// without one reads back as truncated.
//
// Writer is not safe for concurrent use.
type Writer struct {
	destination io.Writer
	file        *os.File
	compression CompressionTag
	sealer      *frameSealer
	digest      *blake3.Hasher
	count       uint64
	closed      bool
	err         error
}

// NewWriter writes the capture preamble and header to destination and
// returns a writer for appending records. The destination is not
// closed by Close; use Create for a file-owning writer.
func NewWriter(destination io.Writer, options WriterOptions) (*Writer, error) {
	switch options.Compression {
	case CompressionNone, CompressionLZ4, CompressionZstd:
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", options.Compression)
	}

	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}

	header := fileHeader{
		Label:       options.Label,
		StartedAt:   clk.Now().UTC(),
		Compression: uint8(options.Compression),
	}

	var fileKey *secret.Buffer
	if len(options.Recipients) > 0 {
		key, err := newFileKey()
		if err != nil {
			return nil, err
		}
		fileKey = key
		defer fileKey.Close()

		wrapped, err := sealed.Encrypt(fileKey.Bytes(), options.Recipients)
		if err != nil {
			return nil, fmt.Errorf("wrapping capture key: %w", err)
		}
		header.Flags |= flagEncrypted
		header.WrappedKey = wrapped
	}

	headerBytes, err := codec.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("encoding capture header: %w", err)
	}

	var sealer *frameSealer
	if fileKey != nil {
		sealer, err = newFrameSealer(fileKey, headerBytes)
		if err != nil {
			return nil, err
		}
	}

	// Preamble and header go out in a single write so a concurrent
	// tail reader never observes a half-written magic.
	preamble := make([]byte, 0, len(fileMagic)+1+4+len(headerBytes))
	preamble = append(preamble, fileMagic...)
	preamble = append(preamble, formatVersion)
	preamble = binary.BigEndian.AppendUint32(preamble, uint32(len(headerBytes)))
	preamble = append(preamble, headerBytes...)
	if _, err := destination.Write(preamble); err != nil {
		if sealer != nil {
			sealer.Close()
		}
		return nil, fmt.Errorf("writing capture header: %w", err)
	}

	return &Writer{
		destination: destination,
		compression: options.Compression,
		sealer:      sealer,
		digest:      newDigest(),
	}, nil
}

// Create creates path (mode 0600, truncating any existing file) and
// returns a writer that owns it. Close writes the trailer and closes
// the file.
func Create(path string, options WriterOptions) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	writer, err := NewWriter(file, options)
	if err != nil {
		file.Close()
		return nil, err
	}
	writer.file = file
	return writer, nil
}

// Append writes one record. The sequence number is assigned by the
// writer; at is normalized to UTC. After a write error the writer is
// unusable and Close will not produce a trailer.
func (w *Writer) Append(at time.Time, frameType string, data []byte) error {
	if w.closed {
		return fmt.Errorf("appending to a closed capture")
	}
	if w.err != nil {
		return w.err
	}

	seq := w.count + 1
	record := Record{Seq: seq, At: at.UTC(), Type: frameType, Data: data}
	raw, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding record %d: %w", seq, err)
	}

	w.digest.Write(raw)

	frame := encodeFrame(raw, w.compression)
	if w.sealer != nil {
		frame = w.sealer.seal(seq, frame)
	}

	if err := w.writeFrame(nil, frame); err != nil {
		w.err = err
		return err
	}
	w.count = seq
	return nil
}

// Count returns the number of records appended so far.
func (w *Writer) Count() uint64 {
	return w.count
}

// Close writes the trailer and releases the writer's resources. If
// the writer owns its file (Create), the file is closed. Idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	defer func() {
		if w.sealer != nil {
			w.sealer.Close()
		}
	}()

	if w.err != nil {
		if w.file != nil {
			w.file.Close()
		}
		return w.err
	}

	trailer := fileTrailer{Records: w.count, Digest: w.digest.Sum(nil)}
	raw, err := codec.Marshal(trailer)
	if err != nil {
		return fmt.Errorf("encoding capture trailer: %w", err)
	}
	frame := encodeFrame(raw, CompressionNone)
	if w.sealer != nil {
		frame = w.sealer.seal(trailerSeq, frame)
	}

	marker := binary.BigEndian.AppendUint32(nil, endMarker)
	if err := w.writeFrame(marker, frame); err != nil {
		if w.file != nil {
			w.file.Close()
		}
		return err
	}

	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("closing capture file: %w", err)
		}
	}
	return nil
}

// writeFrame writes prefix (the end marker, for the trailer), the
// frame's length, and the frame itself in a single write.
func (w *Writer) writeFrame(prefix, frame []byte) error {
	buffer := make([]byte, 0, len(prefix)+4+len(frame))
	buffer = append(buffer, prefix...)
	buffer = binary.BigEndian.AppendUint32(buffer, uint32(len(frame)))
	buffer = append(buffer, frame...)
	if _, err := w.destination.Write(buffer); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}
