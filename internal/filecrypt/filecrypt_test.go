package filecrypt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	payload := []byte("the quick brown fox")
	ct, err := Encrypt(payload, "abc123hash")
	require.NoError(t, err)
	require.Len(t, ct, len(payload)+16)
	assert.False(t, bytes.Contains(ct[16:], payload[:8]), "payload leaked in clear")

	pt, err := Decrypt(ct, "abc123hash")
	require.NoError(t, err)
	assert.Equal(t, payload, pt)
}

func TestEncryptRandomSalt(t *testing.T) {
	a, err := Encrypt([]byte("same"), "key")
	require.NoError(t, err)
	b, err := Encrypt([]byte("same"), "key")
	require.NoError(t, err)
	assert.NotEqual(t, a[:16], b[:16])
}

func TestDecryptWrongKeyGarbage(t *testing.T) {
	payload := []byte("secret payload")
	ct, err := Encrypt(payload, "right-key")
	require.NoError(t, err)
	pt, err := Decrypt(ct, "wrong-key")
	require.NoError(t, err)
	assert.NotEqual(t, payload, pt)
}

func TestDecryptTruncated(t *testing.T) {
	_, err := Decrypt(make([]byte, 15), "key")
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestEmptyPayload(t *testing.T) {
	ct, err := Encrypt(nil, "key")
	require.NoError(t, err)
	require.Len(t, ct, 16)
	pt, err := Decrypt(ct, "key")
	require.NoError(t, err)
	assert.Empty(t, pt)
}
