// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture implements the .fdcap container: an append-only
// recording of a server-sent event stream that can be replayed later
// with its original timing.
//
// # Container layout
//
// A capture file is a preamble, a header, a sequence of record frames,
// and a trailer:
//
//	"FDCAP" | version (1 byte) | header length (uint32 BE) | header CBOR
//	frame length (uint32 BE) | frame        -- repeated per record
//	0xFFFFFFFF | frame length (uint32 BE) | trailer frame
//
// Each frame holds one CBOR-encoded [Record], individually compressed
// with the tag named in its first byte. Records that do not shrink
// under the preferred algorithm are stored uncompressed, so the
// per-frame tag can differ from the header's preferred tag. The
// trailer carries the record count and a keyed BLAKE3 digest over the
// uncompressed record bytes; a reader that drains a capture without
// error has verified both.
//
// Frames are length-prefixed outside the compression layer so that a
// partially written file fails with [ErrTruncated] rather than a
// decode error. [Follow] relies on this to tail a capture that is
// still being written.
//
// # Encryption
//
// When a capture is written with recipients, every frame is sealed
// with ChaCha20-Poly1305 under a random per-file key. The key is
// age-wrapped to the recipients and stored in the header; the header
// itself is bound to every frame as additional authenticated data.
// Reading an encrypted capture requires the age identity of any
// recipient.
//
// # Scenarios
//
// A [Scenario] is a hand-authored script for the replay server: emit
// steps carry frames, and delay, status, and end steps describe server
// behavior that a recording cannot express (failing a connection
// attempt, dropping mid-stream). Scenario files are JSONC.
package capture
