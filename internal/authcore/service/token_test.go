package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haulaway/authcore/internal/authcore/domain"
	"github.com/haulaway/authcore/internal/authcore/store/drivers/sqlite"
	"github.com/haulaway/authcore/pkg/jwtx"
)

const (
	testAccessSecret  = "access-secret-0123456789abcdef-0123"
	testRefreshSecret = "refresh-secret-0123456789abcdef-012"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	access, err := jwtx.NewHS256(testAccessSecret, "authcore", []string{"haulaway-api"})
	require.NoError(t, err)
	refresh, err := jwtx.NewHS256(testRefreshSecret, "authcore", []string{"haulaway-api"})
	require.NoError(t, err)

	return NewTokenService(access, refresh, st, "authcore", []string{"haulaway-api"})
}

func testIdentity() domain.Identity {
	return domain.Identity{
		UserID:      "user-1",
		Role:        "customer",
		Phone:       "+61400000001",
		Permissions: []string{"bookings:write"},
	}
}

func TestGenerateTokenPairRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestTokenService(t)
	ctx := context.Background()

	pair, err := s.GenerateTokenPair(ctx, testIdentity(), "Mozilla/5.0", "203.0.113.7")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEmpty(t, pair.TokenID)
	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, s.AccessTTL, pair.ExpiresIn)

	claims := s.VerifyAccessToken(ctx, pair.AccessToken)
	require.NotNil(t, claims)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "customer", claims.Role)
	require.Equal(t, "+61400000001", claims.Phone)
	require.Equal(t, []string{"bookings:write"}, claims.Permissions)
	require.NotEmpty(t, claims.TokenFamily)
	require.NotEmpty(t, claims.Fingerprint)
	require.Equal(t, pair.TokenID, claims.ID)

	// The refresh token carries its own jti.
	refreshClaims := s.VerifyRefreshToken(ctx, pair.RefreshToken)
	require.NotNil(t, refreshClaims)
	require.NotEmpty(t, refreshClaims.ID)
	require.NotEqual(t, claims.ID, refreshClaims.ID)
}

func TestTokenUseSeparation(t *testing.T) {
	t.Parallel()

	s := newTestTokenService(t)
	ctx := context.Background()

	pair, err := s.GenerateTokenPair(ctx, testIdentity(), "", "")
	require.NoError(t, err)

	require.Nil(t, s.VerifyAccessToken(ctx, pair.RefreshToken), "refresh token must not verify as access")
	require.Nil(t, s.VerifyRefreshToken(ctx, pair.AccessToken), "access token must not verify as refresh")
}

func TestVerifyAccessTokenGarbage(t *testing.T) {
	t.Parallel()

	s := newTestTokenService(t)
	ctx := context.Background()

	require.Nil(t, s.VerifyAccessToken(ctx, ""))
	require.Nil(t, s.VerifyAccessToken(ctx, "not.a.jwt"))
}

func TestGenerateTokenPairWithoutContextSkipsFingerprint(t *testing.T) {
	t.Parallel()

	s := newTestTokenService(t)
	ctx := context.Background()

	pair, err := s.GenerateTokenPair(ctx, testIdentity(), "", "203.0.113.7")
	require.NoError(t, err)
	require.Empty(t, pair.Fingerprint)

	claims := s.VerifyRefreshToken(ctx, pair.RefreshToken)
	require.NotNil(t, claims)
	require.Empty(t, claims.Fingerprint)
}

func TestRefreshRotationSingleUse(t *testing.T) {
	t.Parallel()

	s := newTestTokenService(t)
	ctx := context.Background()

	pair, err := s.GenerateTokenPair(ctx, testIdentity(), "Mozilla/5.0", "203.0.113.7")
	require.NoError(t, err)

	rotated, err := s.RefreshAccessToken(ctx, pair.RefreshToken, "Mozilla/5.0", "203.0.113.7")
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// Second use of the consumed token fails.
	_, err = s.RefreshAccessToken(ctx, pair.RefreshToken, "Mozilla/5.0", "203.0.113.7")
	require.ErrorIs(t, err, ErrInvalidRefresh)

	// The rotated token still works and stays in the same family.
	oldClaims := s.VerifyAccessToken(ctx, pair.AccessToken)
	newClaims := s.VerifyAccessToken(ctx, rotated.AccessToken)
	require.NotNil(t, oldClaims)
	require.NotNil(t, newClaims)
	require.Equal(t, oldClaims.TokenFamily, newClaims.TokenFamily)
}

func TestRefreshFingerprintMismatchRevokes(t *testing.T) {
	t.Parallel()

	s := newTestTokenService(t)
	ctx := context.Background()

	pair, err := s.GenerateTokenPair(ctx, testIdentity(), "Mozilla/5.0", "203.0.113.7")
	require.NoError(t, err)

	// Different device context: treated as compromise.
	_, err = s.RefreshAccessToken(ctx, pair.RefreshToken, "curl/8.0", "198.51.100.9")
	require.ErrorIs(t, err, ErrTokenCompromised)

	// The token is now revoked even from the original context.
	_, err = s.RefreshAccessToken(ctx, pair.RefreshToken, "Mozilla/5.0", "203.0.113.7")
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestBlacklistTokenRejectsFurtherUse(t *testing.T) {
	t.Parallel()

	s := newTestTokenService(t)
	ctx := context.Background()

	pair, err := s.GenerateTokenPair(ctx, testIdentity(), "", "")
	require.NoError(t, err)

	require.NoError(t, s.BlacklistToken(ctx, pair.AccessToken, domain.ReasonLogout))
	require.Nil(t, s.VerifyAccessToken(ctx, pair.AccessToken))

	// Revoking twice is not an error.
	require.NoError(t, s.BlacklistToken(ctx, pair.AccessToken, domain.ReasonLogout))

	// Garbage tokens are a no-op.
	require.NoError(t, s.BlacklistToken(ctx, "not.a.jwt", domain.ReasonLogout))
}

func TestRevokeAllUserTokens(t *testing.T) {
	t.Parallel()

	s := newTestTokenService(t)
	ctx := context.Background()

	issued := time.Now().Add(-time.Minute)
	s.now = func() time.Time { return issued }

	pair, err := s.GenerateTokenPair(ctx, testIdentity(), "", "")
	require.NoError(t, err)
	require.NotNil(t, s.VerifyAccessToken(ctx, pair.AccessToken))

	s.now = time.Now
	require.NoError(t, s.RevokeAllUserTokens(ctx, "user-1", domain.ReasonSecurity))

	require.Nil(t, s.VerifyAccessToken(ctx, pair.AccessToken))
	require.Nil(t, s.VerifyRefreshToken(ctx, pair.RefreshToken))

	// Tokens issued after the cutoff verify again.
	fresh, err := s.GenerateTokenPair(ctx, testIdentity(), "", "")
	require.NoError(t, err)
	require.NotNil(t, s.VerifyAccessToken(ctx, fresh.AccessToken))
}
