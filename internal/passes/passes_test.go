package passes

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePayload() Payload {
	return Payload{
		RegistrationID: "reg-1",
		EventID:        "evt-1",
		UserID:         "user-1",
		IssuedAt:       time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestTokenRoundTrip(t *testing.T) {
	g, err := NewGenerator("scanner-secret")
	require.NoError(t, err)

	token, err := g.Token(samplePayload())
	require.NoError(t, err)
	assert.NotContains(t, token, "reg-1", "payload must not be readable")

	got, err := g.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, "reg-1", got.RegistrationID)
	assert.True(t, got.IssuedAt.Equal(samplePayload().IssuedAt))
}

func TestDecryptRejectsForeignOrTamperedTokens(t *testing.T) {
	g, err := NewGenerator("scanner-secret")
	require.NoError(t, err)
	other, err := NewGenerator("another-secret")
	require.NoError(t, err)

	token, err := g.Token(samplePayload())
	require.NoError(t, err)

	_, err = other.Decrypt(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	tampered := []byte(token)
	tampered[len(tampered)/2] ^= 0x01
	_, err = g.Decrypt(string(tampered))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = g.Decrypt("not base64 !!")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPNG(t *testing.T) {
	g, err := NewGenerator("scanner-secret")
	require.NoError(t, err)

	png, err := g.PNG(samplePayload())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))
}
