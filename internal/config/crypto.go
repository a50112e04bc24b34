package config

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Encrypted artifact layout: magic || salt || nonce || AES-256-GCM ciphertext.
// The key is derived from the passphrase with PBKDF2-SHA256, so the file can
// sit next to the repo while the passphrase lives in a secret manager.
var artifactMagic = []byte("SMETL1")

const (
	saltSize         = 16
	pbkdf2Iterations = 100_000
	keySize          = 32
)

// Encrypt seals plaintext into the artifact format with a fresh salt and
// nonce per call.
func Encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, len(artifactMagic)+saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, artifactMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// Decrypt opens an artifact produced by Encrypt. A wrong passphrase fails
// authentication; it is indistinguishable from a corrupted file by design of
// GCM.
func Decrypt(artifact []byte, passphrase string) ([]byte, error) {
	if !bytes.HasPrefix(artifact, artifactMagic) {
		return nil, fmt.Errorf("not an encrypted config artifact")
	}
	rest := artifact[len(artifactMagic):]

	if len(rest) < saltSize {
		return nil, fmt.Errorf("artifact truncated")
	}
	salt, rest := rest[:saltSize], rest[saltSize:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("artifact truncated")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt failed (wrong passphrase or corrupted artifact)")
	}
	return plaintext, nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
