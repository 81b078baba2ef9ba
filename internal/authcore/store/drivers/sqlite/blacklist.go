package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/haulaway/authcore/internal/authcore/domain"
	"github.com/haulaway/authcore/internal/authcore/store"
)

type blacklistRepo struct {
	db *sql.DB
}

func (r *blacklistRepo) InsertToken(ctx context.Context, e domain.BlacklistEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO blacklisted_tokens (token_hash, user_id, reason, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.TokenHash, e.UserID, e.Reason, e.ExpiresAt.UTC(), time.Now().UTC(),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *blacklistRepo) IsBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM blacklisted_tokens WHERE token_hash = ?`,
		tokenHash,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *blacklistRepo) SetUserCutoff(ctx context.Context, userID string, cutoff time.Time, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_revocations (user_id, revoked_before, reason, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			revoked_before = excluded.revoked_before,
			reason = excluded.reason,
			updated_at = excluded.updated_at`,
		userID, cutoff.UTC(), reason, time.Now().UTC(),
	)
	return err
}

func (r *blacklistRepo) UserRevocation(ctx context.Context, userID string) (domain.UserRevocation, error) {
	rev := domain.UserRevocation{UserID: userID}
	err := r.db.QueryRowContext(ctx, `
		SELECT revoked_before, reason, updated_at FROM user_revocations WHERE user_id = ?`,
		userID,
	).Scan(&rev.RevokedBefore, &rev.Reason, &rev.UpdatedAt)
	if err != nil {
		return domain.UserRevocation{}, mapNotFound(err)
	}
	return rev, nil
}

func (r *blacklistRepo) DeleteExpiredTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM blacklisted_tokens WHERE expires_at <= ?`,
		time.Now().UTC(),
	)
	return err
}
