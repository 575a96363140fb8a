// Package fingerprint normalizes scanner capture artifacts into the hash
// form stored on user records. The artifact is opaque image data; it is
// hashed, never inspected or matched biometrically.
package fingerprint

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrEmptyArtifact is returned for a missing or blank capture artifact.
var ErrEmptyArtifact = errors.New("empty fingerprint artifact")

// ErrBadEncoding is returned when the artifact payload is not valid base64.
var ErrBadEncoding = errors.New("fingerprint artifact is not valid base64")

// Hash converts a capture artifact to its stored hash: strip an optional
// data-URL prefix ("data:image/png;base64,..."), base64-decode the payload,
// and return the lowercase hex SHA-256 of the raw bytes.
func Hash(artifact string) (string, error) {
	artifact = strings.TrimSpace(artifact)
	if artifact == "" {
		return "", ErrEmptyArtifact
	}
	if strings.HasPrefix(artifact, "data:") {
		if i := strings.Index(artifact, ","); i >= 0 {
			artifact = artifact[i+1:]
		}
	}
	raw, err := base64.StdEncoding.DecodeString(artifact)
	if err != nil {
		return "", ErrBadEncoding
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Matches reports whether the artifact hashes to any of the registered
// hashes. An artifact that fails to normalize matches nothing.
func Matches(artifact string, registered []string) bool {
	h, err := Hash(artifact)
	if err != nil {
		return false
	}
	for _, r := range registered {
		if h == r {
			return true
		}
	}
	return false
}
