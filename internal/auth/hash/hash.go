// Package hash derives and verifies Argon2id password hashes in PHC string
// form ($argon2id$v=19$m=...,t=...,p=...$salt$hash).
package hash

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024 // KiB
	argonThreads uint8  = 1
	saltLen             = 16
	keyLen       uint32 = 32
)

var errInvalidPHC = errors.New("invalid phc string")

// Password derives an Argon2id hash of plain and returns it PHC-encoded.
func Password(plain string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	sum := argon2.IDKey([]byte(plain), salt, argonTime, argonMemory, argonThreads, keyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify reports whether plain matches the PHC-encoded hash. Parameters are
// taken from the PHC string, so older records with different costs still
// verify. Comparison is constant-time.
func Verify(phc, plain string) bool {
	t, m, p, salt, sum, err := parsePHC(phc)
	if err != nil {
		return false
	}
	calc := argon2.IDKey([]byte(plain), salt, t, m, p, uint32(len(sum)))
	return subtle.ConstantTimeCompare(calc, sum) == 1
}

func parsePHC(phc string) (t, m uint32, p uint8, salt, sum []byte, err error) {
	parts := strings.Split(phc, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		err = errInvalidPHC
		return
	}
	var version int
	if _, serr := fmt.Sscanf(parts[2], "v=%d", &version); serr != nil || version != argon2.Version {
		err = errInvalidPHC
		return
	}
	if _, serr := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); serr != nil || m == 0 || t == 0 || p == 0 {
		err = errInvalidPHC
		return
	}
	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(salt) == 0 {
		err = errInvalidPHC
		return
	}
	if sum, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(sum) == 0 {
		err = errInvalidPHC
		return
	}
	return
}
