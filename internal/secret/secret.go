// Package secret implements the Soul Engine's `SOUL_SECRET_KEY`-driven env
// file encryption backing the `encrypt-env`/`decrypt-env`/`rotate-key`
// CLI subcommands.
//
// Key derivation follows the teacher-adjacent pack's
// internal/crypto.DeriveKey (golang.org/x/crypto/hkdf over a master
// secret, salt and context string) to expand the operator-supplied
// passphrase into a fixed-size key; the encryption itself uses
// golang.org/x/crypto/nacl/secretbox, an authenticated-encryption
// primitive suited to exactly this "one key, one small file" shape
// (no streaming, no associated data) rather than AES-GCM's lower-level
// nonce management.
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	hkdfInfo  = "soulengine-env-secret"
	hkdfSalt  = "soulengine"
)

// DeriveKey expands the SOUL_SECRET_KEY passphrase into a secretbox key.
// An empty passphrase is always rejected rather than silently producing a
// deterministic all-zero-derived key.
func DeriveKey(passphrase string) ([keySize]byte, error) {
	var key [keySize]byte
	if passphrase == "" {
		return key, errors.New("secret: SOUL_SECRET_KEY is empty")
	}
	reader := hkdf.New(sha256.New, []byte(passphrase), []byte(hkdfSalt), []byte(hkdfInfo))
	if _, err := io.ReadFull(reader, key[:]); err != nil {
		return key, fmt.Errorf("secret: derive key: %w", err)
	}
	return key, nil
}

// EncryptFile reads plaintext from path, seals it under key, and writes
// the result to path+".enc" via a sibling temp file and rename.
func EncryptFile(path string, key [keySize]byte) (string, error) {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("secret: read %s: %w", path, err)
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("secret: nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &key)
	encoded := base64.StdEncoding.EncodeToString(sealed)

	outPath := path + ".enc"
	if err := writeAtomic(outPath, []byte(encoded)); err != nil {
		return "", err
	}
	return outPath, nil
}

// DecryptFile opens encPath under key and writes the recovered plaintext
// to outPath.
func DecryptFile(encPath, outPath string, key [keySize]byte) error {
	plaintext, err := openSealed(encPath, key)
	if err != nil {
		return err
	}
	return writeAtomic(outPath, plaintext)
}

// RotateKey decrypts encPath under oldKey and re-seals the recovered
// plaintext under newKey in place, so a SOUL_SECRET_KEY can be replaced
// without ever leaving the plaintext on disk under a predictable path.
func RotateKey(encPath string, oldKey, newKey [keySize]byte) error {
	plaintext, err := openSealed(encPath, oldKey)
	if err != nil {
		return fmt.Errorf("secret: rotate: %w", err)
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("secret: nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &newKey)
	encoded := base64.StdEncoding.EncodeToString(sealed)
	return writeAtomic(encPath, []byte(encoded))
}

func openSealed(encPath string, key [keySize]byte) ([]byte, error) {
	encoded, err := os.ReadFile(encPath)
	if err != nil {
		return nil, fmt.Errorf("secret: read %s: %w", encPath, err)
	}
	sealed, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("secret: decode %s: %w", encPath, err)
	}
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("secret: %s is too short to contain a nonce", encPath)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &key)
	if !ok {
		return nil, fmt.Errorf("secret: %s did not decrypt (wrong key or corrupted file)", encPath)
	}
	return plaintext, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("secret: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("secret: rename %s: %w", path, err)
	}
	return nil
}
