package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-events/internal/actor"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// Verifier turns a bearer token into the claims of its holder.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*Claims, error)
}

// HMACVerifier accepts tokens signed by an Issuer with the same secret.
type HMACVerifier struct {
	secret      []byte
	revocations Revocations
}

func NewHMACVerifier(secret string, revocations Revocations) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), revocations: revocations}
}

func (v *HMACVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(LocalIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: missing identity claims", ErrInvalidToken)
	}

	if v.revocations != nil && claims.ID != "" {
		revoked, err := v.revocations.Revoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: token has been revoked", ErrInvalidToken)
		}
	}
	return claims, nil
}

// OIDCVerifier accepts ID tokens that an external identity provider minted
// for this service's client. The campus role is read from a "role" claim and
// defaults to student.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	if clientID == "" {
		return nil, errors.New("OIDC client id is required")
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("create OIDC provider for %s: %w", issuer, err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var extra struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Role  string `json:"role"`
	}
	if err := idToken.Claims(&extra); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	role, err := actor.ParseRole(extra.Role)
	if err != nil {
		role = actor.RoleStudent
	}

	return &Claims{
		UserID: idToken.Subject,
		Email:  extra.Email,
		Name:   extra.Name,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   idToken.Subject,
			Issuer:    idToken.Issuer,
			Audience:  jwt.ClaimStrings(idToken.Audience),
			ExpiresAt: jwt.NewNumericDate(idToken.Expiry),
			IssuedAt:  jwt.NewNumericDate(idToken.IssuedAt),
		},
	}, nil
}

// Chain tries each verifier in order and returns the first success. A token
// none of them accepts is invalid; any other failure stops the chain.
type Chain []Verifier

func (c Chain) Verify(ctx context.Context, raw string) (*Claims, error) {
	errs := make([]error, 0, len(c))
	for _, v := range c {
		claims, err := v.Verify(ctx, raw)
		if err == nil {
			return claims, nil
		}
		if !errors.Is(err, ErrInvalidToken) {
			return nil, err
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no verifier configured", ErrInvalidToken)
	}
	return nil, errors.Join(errs...)
}

// Accounts ties verified claims to a local account. Resolve may create the
// account for an external subject, and replaces the claimed role and email
// with the stored ones.
type Accounts interface {
	Resolve(ctx context.Context, c *Claims) error
}

// AccountVerifier runs a Verifier and then resolves the claims against local
// accounts, so role changes and removed accounts apply to tokens already
// handed out.
type AccountVerifier struct {
	verifier Verifier
	accounts Accounts
}

func WithAccounts(v Verifier, accounts Accounts) *AccountVerifier {
	return &AccountVerifier{verifier: v, accounts: accounts}
}

func (v *AccountVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := v.accounts.Resolve(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ExpiresIn is how long the token stays valid after now.
func (c *Claims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}
