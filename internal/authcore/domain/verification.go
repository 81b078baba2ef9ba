package domain

import "time"

// VerificationSession is the ephemeral server-side state for a one-time-code
// exchange, e.g. phone verification. Two independent clocks bound its life:
// CodeExpiry is fixed at creation, and LastAccess drives idle eviction.
type VerificationSession struct {
	ID         string
	Identifier string // what is being verified, e.g. a phone number
	CodeHash   string // argon2id hash, never the raw code
	CodeExpiry time.Time
	CreatedAt  time.Time
	LastAccess time.Time
	IsActive   bool
}
