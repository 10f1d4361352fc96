// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption and decryption for Foredeck
// capture keys. It wraps filippo.io/age for the specific operations
// Foredeck needs: generate x25519 keypairs, encrypt to multiple
// recipients, and decrypt with a private key.
//
// Ciphertext is base64-encoded for storage in capture file headers.
// Callers pass plaintext []byte to [Encrypt] and receive a base64
// string; [Decrypt] accepts a base64 string and returns plaintext.
// Private keys and decrypted plaintext are returned as [secret.Buffer]
// values backed by mmap memory outside the Go heap (locked against
// swap, excluded from core dumps, zeroed on Close).
//
// Key exports:
//
//   - [GenerateKeypair] -- new age x25519 keypair in a secret.Buffer
//   - [Encrypt] -- encrypt to age public key recipients
//   - [Decrypt] -- decrypt with a secret.Buffer key
//   - [ReadIdentityFile] -- load an age-keygen identity file
//   - [ParsePublicKey] / [ParsePrivateKey] -- key validation
//
// Used by lib/capture (wrap and unwrap per-file capture keys) and the
// CLI (load identities for reading encrypted captures).
//
// Depends on lib/secret for secure memory allocation.
package sealed
