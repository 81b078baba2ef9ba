package store

import (
	"context"
	"errors"
	"time"

	"github.com/haulaway/authcore/internal/authcore/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface for the durable blacklist state.
// Concrete drivers (sqlite, postgres) implement this.
type Store interface {
	Blacklist() Blacklist

	// ApplyMigrations brings the schema up to date before serving traffic.
	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing store is still reachable.
	Ping(ctx context.Context) error
}

// Blacklist is the durable record of revoked token hashes plus per-user
// revocation cutoffs.
type Blacklist interface {
	// InsertToken records a revoked token hash. The insert is an atomic
	// insert-if-absent: a duplicate hash returns ErrAlreadyExists, which is
	// what makes concurrent refresh rotation single-winner.
	InsertToken(ctx context.Context, e domain.BlacklistEntry) error

	// IsBlacklisted reports whether the token hash has been revoked.
	IsBlacklisted(ctx context.Context, tokenHash string) (bool, error)

	// SetUserCutoff records that every token issued to userID before cutoff
	// is invalid. Overwrites any earlier cutoff.
	SetUserCutoff(ctx context.Context, userID string, cutoff time.Time, reason string) error

	// UserRevocation returns the revoked-before record for userID, or
	// ErrNotFound when the user has never been bulk-revoked.
	UserRevocation(ctx context.Context, userID string) (domain.UserRevocation, error)

	// DeleteExpiredTokens removes blacklist rows whose mirrored token expiry
	// has passed. Housekeeping; entries are useless once the token itself
	// would no longer verify.
	DeleteExpiredTokens(ctx context.Context) error
}
