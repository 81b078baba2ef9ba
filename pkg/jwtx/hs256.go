package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum HMAC secret length in bytes. Shorter secrets
// make brute forcing the signature feasible, so construction fails outright.
const MinSecretLength = 32

var (
	ErrWeakSecret = errors.New("jwtx: signing secret shorter than 32 bytes")

	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrTokenUse    = errors.New("jwtx: wrong token use")
)

// Signer signs claims into a compact JWT string.
type Signer interface {
	Sign(Claims) (string, error)
}

// Verifier validates a JWT string and returns its claims when legitimate.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// HS256 signs and verifies JWTs with a shared HMAC-SHA256 secret. It pins the
// algorithm, issuer and audience so a token minted elsewhere (or with a
// different "alg" header) never verifies.
type HS256 struct {
	secret []byte
	issuer string
	aud    []string
}

// NewHS256 builds a signer/verifier for the given secret. The secret must be
// at least MinSecretLength bytes; services should treat an error here as a
// fatal startup condition.
func NewHS256(secret, issuer string, audience []string) (*HS256, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	return &HS256{secret: []byte(secret), issuer: issuer, aud: audience}, nil
}

// Sign turns claims into a signed JWT string.
func (h *HS256) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

// Verify parses and validates the JWT, enforcing the HS256 algorithm and the
// configured issuer and audience, and returns the claims.
func (h *HS256) Verify(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return h.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse or verify: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("jwtx: invalid token claims")
	}

	if err := claims.ValidateIssuer(h.issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateAudience(h.aud); err != nil {
		return nil, err
	}
	if err := claims.ValidateExpiry(); err != nil {
		return nil, err
	}

	return claims, nil
}
