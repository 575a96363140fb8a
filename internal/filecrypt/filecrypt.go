// Package filecrypt implements the payload cipher used for stored files:
// a random 16-byte salt prepended to the payload, which is XORed with a
// keystream derived from the key material via PBKDF2-SHA256. This matches
// the wire format of existing archives; it is an obfuscation layer, not a
// cryptographic security boundary.
package filecrypt

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLen   = 16
	keyLen    = 32
	kdfRounds = 10000
)

// ErrTruncated is returned when a ciphertext is too short to carry a salt.
var ErrTruncated = errors.New("ciphertext shorter than salt header")

// Encrypt encrypts payload under keyMaterial (a fingerprint hash string).
// Output is salt || payload XOR keystream.
func Encrypt(payload []byte, keyMaterial string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	out := make([]byte, saltLen+len(payload))
	copy(out, salt)
	xorKeystream(out[saltLen:], payload, deriveKey(keyMaterial, salt))
	return out, nil
}

// Decrypt reverses Encrypt. It cannot detect a wrong key; callers verify the
// credential before calling.
func Decrypt(ciphertext []byte, keyMaterial string) ([]byte, error) {
	if len(ciphertext) < saltLen {
		return nil, ErrTruncated
	}
	salt := ciphertext[:saltLen]
	body := ciphertext[saltLen:]
	out := make([]byte, len(body))
	xorKeystream(out, body, deriveKey(keyMaterial, salt))
	return out, nil
}

func deriveKey(keyMaterial string, salt []byte) []byte {
	return pbkdf2.Key([]byte(keyMaterial), salt, kdfRounds, keyLen, sha256.New)
}

func xorKeystream(dst, src, key []byte) {
	for i := range src {
		dst[i] = src[i] ^ key[i%len(key)]
	}
}
