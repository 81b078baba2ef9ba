package domain

import "time"

// TokenPair is what token issuance returns: a short-lived access JWT and a
// long-lived refresh JWT minted together. Both carry the same token family.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenID      string        `json:"token_id"`
	TokenType    string        `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // access token lifetime
	Fingerprint  string        `json:"-"`
}

// Identity is the principal a token pair authenticates. Immutable once the
// pair is signed.
type Identity struct {
	UserID      string
	Role        string
	Email       string
	Phone       string
	Username    string
	Permissions []string

	// TokenFamily groups a refresh lineage. Empty means "start a new family".
	TokenFamily string
}

// Blacklist reasons recorded when a token is revoked.
const (
	ReasonRevoked  = "revoked"  // consumed by rotation
	ReasonSecurity = "security" // suspected theft or replay
	ReasonLogout   = "logout"   // explicit user logout
)

// BlacklistEntry is the durable record of a revoked token. ExpiresAt mirrors
// the token's own expiry so entries self-prune. Never mutated after insert.
type BlacklistEntry struct {
	TokenHash string
	UserID    string
	Reason    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// UserRevocation is the per-user "revoked before" cutoff. Any token issued
// before the cutoff fails verification, which makes revoke-all O(1) instead
// of enumerating every issued token.
type UserRevocation struct {
	UserID        string
	RevokedBefore time.Time
	Reason        string
	UpdatedAt     time.Time
}
