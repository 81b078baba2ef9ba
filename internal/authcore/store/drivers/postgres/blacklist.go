package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/haulaway/authcore/internal/authcore/domain"
	"github.com/haulaway/authcore/internal/authcore/store"

	"github.com/jackc/pgx/v5"
)

type blacklistRepo struct {
	pool PgxPool
}

func (r *blacklistRepo) InsertToken(ctx context.Context, e domain.BlacklistEntry) error {
	const q = `
INSERT INTO blacklisted_tokens (token_hash, user_id, reason, expires_at, created_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (token_hash) DO NOTHING`

	tag, err := r.pool.Exec(ctx, q, e.TokenHash, e.UserID, e.Reason, e.ExpiresAt.UTC())
	if err != nil {
		return err
	}
	// The conflict path affects zero rows, which is exactly the losing side
	// of a concurrent rotation.
	if tag.RowsAffected() == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *blacklistRepo) IsBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM blacklisted_tokens WHERE token_hash = $1)`

	var hit bool
	if err := r.pool.QueryRow(ctx, q, tokenHash).Scan(&hit); err != nil {
		return false, err
	}
	return hit, nil
}

func (r *blacklistRepo) SetUserCutoff(ctx context.Context, userID string, cutoff time.Time, reason string) error {
	const q = `
INSERT INTO user_revocations (user_id, revoked_before, reason, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id) DO UPDATE SET
	revoked_before = excluded.revoked_before,
	reason = excluded.reason,
	updated_at = excluded.updated_at`

	_, err := r.pool.Exec(ctx, q, userID, cutoff.UTC(), reason)
	return err
}

func (r *blacklistRepo) UserRevocation(ctx context.Context, userID string) (domain.UserRevocation, error) {
	const q = `SELECT revoked_before, reason, updated_at FROM user_revocations WHERE user_id = $1`

	rev := domain.UserRevocation{UserID: userID}
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&rev.RevokedBefore, &rev.Reason, &rev.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserRevocation{}, store.ErrNotFound
		}
		return domain.UserRevocation{}, err
	}
	return rev, nil
}

func (r *blacklistRepo) DeleteExpiredTokens(ctx context.Context) error {
	const q = `DELETE FROM blacklisted_tokens WHERE expires_at <= now()`

	_, err := r.pool.Exec(ctx, q)
	return err
}
