// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/foredeck-sh/foredeck/lib/secret"
)

// KeySize is the size in bytes of the per-file capture key and the
// sealing key derived from it.
const KeySize = 32

// hkdfInfoFrameSealing is the HKDF-SHA256 info parameter separating
// the frame sealing key from any future derivation path. Changing it
// invalidates every encrypted capture.
var hkdfInfoFrameSealing = []byte("foredeck.capture.seal.v1")

// trailerSeq is the nonce counter value reserved for the trailer
// frame. Record sequences are 1-based, so zero never collides.
const trailerSeq uint64 = 0

// newFileKey generates a random per-file capture key in guarded
// memory.
func newFileKey() (*secret.Buffer, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		secret.Zero(key)
		return nil, fmt.Errorf("generating capture key: %w", err)
	}
	// NewFromBytes copies into mmap and zeros the heap slice.
	return secret.NewFromBytes(key)
}

// frameSealer seals and opens container frames with ChaCha20-Poly1305.
// The nonce is the frame's sequence number: the file key is random per
// capture, so counter nonces never repeat across files, and sequence
// numbers never repeat within one. The capture header is bound to
// every frame as AAD, so frames cannot be transplanted between
// captures.
type frameSealer struct {
	aead       cipher.AEAD
	aad        []byte
	sealingKey *secret.Buffer
}

// newFrameSealer derives the sealing key from the file key and builds
// the AEAD. The fileKey is borrowed and NOT closed. The returned
// sealer must be closed to release the derived key.
func newFrameSealer(fileKey *secret.Buffer, headerBytes []byte) (*frameSealer, error) {
	sealingKey, err := deriveKey(fileKey.Bytes(), hkdfInfoFrameSealing)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(sealingKey.Bytes())
	if err != nil {
		sealingKey.Close()
		return nil, fmt.Errorf("creating ChaCha20-Poly1305 cipher: %w", err)
	}

	aad := make([]byte, 1+len(headerBytes))
	aad[0] = formatVersion
	copy(aad[1:], headerBytes)

	return &frameSealer{aead: aead, aad: aad, sealingKey: sealingKey}, nil
}

func (s *frameSealer) seal(seq uint64, plaintext []byte) []byte {
	return s.aead.Seal(nil, s.nonce(seq), plaintext, s.aad)
}

func (s *frameSealer) open(seq uint64, ciphertext []byte) ([]byte, error) {
	plaintext, err := s.aead.Open(nil, s.nonce(seq), ciphertext, s.aad)
	if err != nil {
		return nil, fmt.Errorf("AEAD decryption failed (wrong key or tampered capture): %w", err)
	}
	return plaintext, nil
}

func (s *frameSealer) nonce(seq uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(nonce[chacha20poly1305.NonceSize-8:], seq)
	return nonce
}

// Close zeroes and releases the derived sealing key.
func (s *frameSealer) Close() error {
	return s.sealingKey.Close()
}

// deriveKey derives a 32-byte key from inputKeyMaterial via
// HKDF-SHA256 with the given info parameter. The salt is nil: the IKM
// is already uniformly random (a freshly generated capture key), so
// HKDF's extract phase with nil salt is appropriate per RFC 5869.
func deriveKey(inputKeyMaterial []byte, info []byte) (*secret.Buffer, error) {
	reader := hkdf.New(sha256.New, inputKeyMaterial, nil, info)
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	// NewFromBytes copies into mmap and zeros the heap slice.
	return secret.NewFromBytes(derived)
}
