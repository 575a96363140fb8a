package fingerprint

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashStripsDataURLPrefix(t *testing.T) {
	raw := []byte("scan-bytes")
	b64 := base64.StdEncoding.EncodeToString(raw)
	sum := sha256.Sum256(raw)
	want := hex.EncodeToString(sum[:])

	plain, err := Hash(b64)
	require.NoError(t, err)
	withPrefix, err := Hash("data:image/png;base64," + b64)
	require.NoError(t, err)

	assert.Equal(t, want, plain)
	assert.Equal(t, want, withPrefix)
}

func TestHashDeterministic(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	a, err := Hash(b64)
	require.NoError(t, err)
	b, err := Hash(b64)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHashErrors(t *testing.T) {
	_, err := Hash("")
	assert.ErrorIs(t, err, ErrEmptyArtifact)
	_, err = Hash("   ")
	assert.ErrorIs(t, err, ErrEmptyArtifact)
	_, err = Hash("not-base64!!")
	assert.ErrorIs(t, err, ErrBadEncoding)
}

func TestMatches(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte("finger"))
	h, err := Hash(b64)
	require.NoError(t, err)

	assert.True(t, Matches(b64, []string{"other", h}))
	assert.False(t, Matches(b64, []string{"other"}))
	assert.False(t, Matches(b64, nil))
	assert.False(t, Matches("!!", []string{h}))
}
