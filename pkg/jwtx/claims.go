package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Access tokens are deliberately short-lived; refresh
// tokens are long-lived and single-use under rotation.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Token use values carried in the "token_use" claim so an access token can
// never be replayed as a refresh token or vice versa.
const (
	TokenUseAccess  = "access"
	TokenUseRefresh = "refresh"
)

// Claims are the signed token claims shared by access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Role of the authenticated principal, e.g. "customer", "mover", "admin".
	Role string `json:"role,omitempty"`

	// Optional contact identity fields.
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Username string `json:"username,omitempty"`

	// Permissions granted beyond the role, e.g. "bookings:write".
	Permissions []string `json:"permissions,omitempty"`

	// Fingerprint binds the token to the device/network context it was
	// issued to: sha256(userAgent+ip), empty when context was unavailable.
	Fingerprint string `json:"fp,omitempty"`

	// TokenFamily groups a refresh token with all of its rotated successors.
	TokenFamily string `json:"tfam,omitempty"`

	// TokenUse distinguishes access from refresh tokens.
	TokenUse string `json:"token_use,omitempty"`
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks the issuer when one is expected.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks that at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry ensures the token is inside its [nbf, exp] validity window.
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}

// ValidateUse checks the token_use claim.
func (c *Claims) ValidateUse(expected string) error {
	if c.TokenUse != expected {
		return ErrTokenUse
	}
	return nil
}
