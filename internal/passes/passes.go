// Package passes renders entry passes for confirmed registrations as QR codes.
// The QR content is an encrypted token, so only a scanner holding the secret
// can read which registration it belongs to.
package passes

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/skip2/go-qrcode"
)

var ErrInvalidToken = errors.New("invalid pass token")

type Payload struct {
	RegistrationID string    `json:"registration_id"`
	EventID        string    `json:"event_id"`
	UserID         string    `json:"user_id"`
	IssuedAt       time.Time `json:"issued_at"`
}

type Generator struct {
	aead cipher.AEAD
	size int
}

// NewGenerator derives a 256-bit key from secret.
func NewGenerator(secret string) (*Generator, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Generator{aead: aead, size: 256}, nil
}

// Token encrypts p into a URL-safe string.
func (g *Generator) Token(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, g.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := g.aead.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// PNG renders the encrypted token as a QR code image.
func (g *Generator) PNG(p Payload) ([]byte, error) {
	token, err := g.Token(p)
	if err != nil {
		return nil, fmt.Errorf("encrypt pass: %w", err)
	}
	return qrcode.Encode(token, qrcode.Medium, g.size)
}

// Decrypt recovers the payload from a scanned token.
func (g *Generator) Decrypt(token string) (*Payload, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(sealed) < g.aead.NonceSize() {
		return nil, ErrInvalidToken
	}
	nonce, ciphertext := sealed[:g.aead.NonceSize()], sealed[g.aead.NonceSize():]
	data, err := g.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, ErrInvalidToken
	}
	return &p, nil
}
