// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Foredeck's standard CBOR encoding configuration.
//
// Foredeck uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: the Foredeck HTTP API, SSE frame
//     payloads, the session file, scenario scripts, and CLI output.
//   - CBOR for the capture container: .fdcap file headers, records,
//     and trailers.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every Foredeck package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes — the capture trailer digest is computed over encoded record
// bytes, so this property is load-bearing, not cosmetic.
//
// For buffer-oriented operations (container frames):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// Types serialized by this package carry `cbor` struct tags and are
// never marshaled to JSON. Types that cross the HTTP API carry `json`
// tags and never pass through this package.
package codec
