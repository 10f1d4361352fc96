// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mustKeypair(t *testing.T) *Keypair {
	t.Helper()
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	t.Cleanup(func() { keypair.Close() })
	return keypair
}

func TestGenerateKeypair(t *testing.T) {
	keypair := mustKeypair(t)

	if !strings.HasPrefix(keypair.PrivateKey.String(), "AGE-SECRET-KEY-1") {
		t.Error("private key does not have AGE-SECRET-KEY-1 prefix")
	}
	if !strings.HasPrefix(keypair.PublicKey, "age1") {
		t.Errorf("PublicKey = %q, want prefix age1", keypair.PublicKey)
	}
}

func TestGenerateKeypairUnique(t *testing.T) {
	keypair1 := mustKeypair(t)
	keypair2 := mustKeypair(t)

	if keypair1.PrivateKey.String() == keypair2.PrivateKey.String() {
		t.Error("two generated keypairs have identical private keys")
	}
	if keypair1.PublicKey == keypair2.PublicKey {
		t.Error("two generated keypairs have identical public keys")
	}
}

func TestEncryptDecryptSingleRecipient(t *testing.T) {
	keypair := mustKeypair(t)

	plaintext := []byte("hello, foredeck captures")
	ciphertext, err := Encrypt(plaintext, []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	// Ciphertext should be valid base64.
	if _, err := base64.StdEncoding.DecodeString(ciphertext); err != nil {
		t.Errorf("Encrypt() returned invalid base64: %v", err)
	}

	decrypted, err := Decrypt(ciphertext, keypair.PrivateKey)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	defer decrypted.Close()

	if decrypted.String() != string(plaintext) {
		t.Errorf("Decrypt() = %q, want %q", decrypted.String(), plaintext)
	}
}

func TestEncryptDecryptMultipleRecipients(t *testing.T) {
	// Two keypairs, simulating a capture encrypted to both the
	// recording operator and a reviewer.
	operator := mustKeypair(t)
	reviewer := mustKeypair(t)

	plaintext := []byte(`{"seq":1,"type":"inbox.task.created"}`)
	ciphertext, err := Encrypt(plaintext, []string{operator.PublicKey, reviewer.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	// Both recipients should be able to decrypt independently.
	for name, keypair := range map[string]*Keypair{"operator": operator, "reviewer": reviewer} {
		decrypted, err := Decrypt(ciphertext, keypair.PrivateKey)
		if err != nil {
			t.Fatalf("Decrypt(%s) error: %v", name, err)
		}
		if decrypted.String() != string(plaintext) {
			t.Errorf("Decrypt(%s) = %q, want %q", name, decrypted.String(), plaintext)
		}
		decrypted.Close()
	}
}

func TestDecryptWrongKey(t *testing.T) {
	keypair := mustKeypair(t)
	wrongKeypair := mustKeypair(t)

	ciphertext, err := Encrypt([]byte("secret data"), []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	if _, err := Decrypt(ciphertext, wrongKeypair.PrivateKey); err == nil {
		t.Error("Decrypt() with wrong key should return error")
	}
}

func TestEncryptNoRecipients(t *testing.T) {
	_, err := Encrypt([]byte("data"), nil)
	if err == nil {
		t.Fatal("Encrypt() with no recipients should return error")
	}
	if !strings.Contains(err.Error(), "at least one recipient") {
		t.Errorf("error = %v, want 'at least one recipient'", err)
	}
}

func TestEncryptInvalidRecipientKey(t *testing.T) {
	_, err := Encrypt([]byte("data"), []string{"not-a-valid-key"})
	if err == nil {
		t.Fatal("Encrypt() with invalid recipient key should return error")
	}
	if !strings.Contains(err.Error(), "parsing recipient key") {
		t.Errorf("error = %v, want 'parsing recipient key'", err)
	}
}

func TestDecryptInvalidBase64(t *testing.T) {
	keypair := mustKeypair(t)

	_, err := Decrypt("not-valid-base64!!!", keypair.PrivateKey)
	if err == nil {
		t.Fatal("Decrypt() with invalid base64 should return error")
	}
	if !strings.Contains(err.Error(), "decoding base64") {
		t.Errorf("error = %v, want 'decoding base64'", err)
	}
}

func TestDecryptCorruptedCiphertext(t *testing.T) {
	keypair := mustKeypair(t)

	// Valid base64 but not valid age ciphertext.
	corrupted := base64.StdEncoding.EncodeToString([]byte("this is not age ciphertext"))

	if _, err := Decrypt(corrupted, keypair.PrivateKey); err == nil {
		t.Error("Decrypt() with corrupted ciphertext should return error")
	}
}

func TestEncryptDecryptLargePlaintext(t *testing.T) {
	keypair := mustKeypair(t)

	largePlaintext := make([]byte, 64*1024)
	for i := range largePlaintext {
		largePlaintext[i] = byte(i % 256)
	}

	ciphertext, err := Encrypt(largePlaintext, []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt(large) error: %v", err)
	}

	decrypted, err := Decrypt(ciphertext, keypair.PrivateKey)
	if err != nil {
		t.Fatalf("Decrypt(large) error: %v", err)
	}
	defer decrypted.Close()

	got := decrypted.Bytes()
	if len(got) != len(largePlaintext) {
		t.Fatalf("Decrypt(large) length = %d, want %d", len(got), len(largePlaintext))
	}
	for i := range largePlaintext {
		if got[i] != largePlaintext[i] {
			t.Errorf("Decrypt(large) byte %d = %d, want %d", i, got[i], largePlaintext[i])
			break
		}
	}
}

func TestReadIdentityFile(t *testing.T) {
	keypair := mustKeypair(t)

	// age-keygen output format: comment lines, then the key.
	path := filepath.Join(t.TempDir(), "identity.txt")
	content := "# created: 2026-03-01T09:00:00Z\n" +
		"# public key: " + keypair.PublicKey + "\n" +
		keypair.PrivateKey.String() + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing identity file: %v", err)
	}

	identity, err := ReadIdentityFile(path)
	if err != nil {
		t.Fatalf("ReadIdentityFile() error: %v", err)
	}
	defer identity.Close()

	if identity.String() != keypair.PrivateKey.String() {
		t.Error("loaded identity does not match the written key")
	}
}

func TestReadIdentityFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ReadIdentityFile(filepath.Join(t.TempDir(), "absent.txt"))
		if err == nil {
			t.Error("ReadIdentityFile(missing) should return error")
		}
	})

	t.Run("no key in file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "comments-only.txt")
		if err := os.WriteFile(path, []byte("# nothing here\n\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := ReadIdentityFile(path)
		if err == nil {
			t.Fatal("ReadIdentityFile(comments only) should return error")
		}
		if !strings.Contains(err.Error(), "no key") {
			t.Errorf("error = %v, want 'no key'", err)
		}
	})

	t.Run("garbage key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "garbage.txt")
		if err := os.WriteFile(path, []byte("not-an-age-key\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadIdentityFile(path); err == nil {
			t.Error("ReadIdentityFile(garbage) should return error")
		}
	})
}

func TestParsePublicKey(t *testing.T) {
	keypair := mustKeypair(t)

	if err := ParsePublicKey(keypair.PublicKey); err != nil {
		t.Errorf("ParsePublicKey(valid) error: %v", err)
	}
	if err := ParsePublicKey("not-a-valid-key"); err == nil {
		t.Error("ParsePublicKey(invalid) should return error")
	}
	if err := ParsePublicKey(""); err == nil {
		t.Error("ParsePublicKey(empty) should return error")
	}
}

func TestParsePrivateKey(t *testing.T) {
	keypair := mustKeypair(t)

	if err := ParsePrivateKey(keypair.PrivateKey); err != nil {
		t.Errorf("ParsePrivateKey(valid) error: %v", err)
	}
}
