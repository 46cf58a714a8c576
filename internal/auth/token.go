package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"campus-events/internal/actor"
	"campus-events/internal/utils"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// LocalIssuer is the "iss" of tokens signed by this service.
const LocalIssuer = "campus-events"

// Claims is the payload of the tokens issued at login. The user id travels in
// "id" and the token's own id in "jti" so it can be revoked.
type Claims struct {
	UserID string     `json:"id"`
	Email  string     `json:"email"`
	Name   string     `json:"name,omitempty"`
	Role   actor.Role `json:"role"`
	jwt.RegisteredClaims
}

// Local reports whether the token was issued by this service rather than an
// external identity provider.
func (c *Claims) Local() bool {
	return c.Issuer == LocalIssuer
}

func (c *Claims) Actor() actor.Actor {
	return actor.Actor{UserID: c.UserID, Email: c.Email, Role: c.Role}
}

// Issuer signs HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for a and its expiry.
func (i *Issuer) Issue(a actor.Actor) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		UserID: a.UserID,
		Email:  a.Email,
		Role:   a.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        utils.NewID(),
			Issuer:    LocalIssuer,
			Subject:   a.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// ExtractTokenFromRequest extracts a JWT token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	// Bearer token format: "Bearer {token}"
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}
