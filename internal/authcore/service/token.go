package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/haulaway/authcore/internal/authcore/domain"
	"github.com/haulaway/authcore/internal/authcore/store"
	"github.com/haulaway/authcore/pkg/cryptox"
	"github.com/haulaway/authcore/pkg/idx"
	"github.com/haulaway/authcore/pkg/jwtx"
	"github.com/haulaway/authcore/pkg/slogx"
)

var (
	ErrInvalidRefresh   = errors.New("invalid_refresh_token")
	ErrTokenCompromised = errors.New("token_compromised")
)

// TokenService mints and validates access/refresh token pairs. Access and
// refresh tokens are signed with independent secrets so one can never be
// replayed as the other even if the token_use claim check were bypassed.
type TokenService struct {
	Access   *jwtx.HS256
	Refresh  *jwtx.HS256
	Store    store.Store
	Issuer   string
	Audience []string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	now func() time.Time
}

func NewTokenService(access, refresh *jwtx.HS256, st store.Store, issuer string, audience []string) *TokenService {
	return &TokenService{
		Access:     access,
		Refresh:    refresh,
		Store:      st,
		Issuer:     issuer,
		Audience:   audience,
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
		now:        time.Now,
	}
}

// GenerateTokenPair mints an access/refresh pair for the identity. When both
// userAgent and ip are available, the pair is bound to that context via the
// fingerprint claim; refresh calls must then present a matching context.
// An empty identity.TokenFamily starts a new refresh lineage.
func (s *TokenService) GenerateTokenPair(ctx context.Context, identity domain.Identity, userAgent, ip string) (*domain.TokenPair, error) {
	now := s.now().UTC()

	var fingerprint string
	if userAgent != "" && ip != "" {
		fingerprint = cryptox.FingerprintToken(userAgent + ip)
	}

	family := identity.TokenFamily
	if family == "" {
		family = idx.New().String()
	}

	tokenID := jwtx.NewJTI()

	access, err := s.Access.Sign(s.buildClaims(identity, jwtx.TokenUseAccess, tokenID, family, fingerprint, now, s.AccessTTL))
	if err != nil {
		return nil, err
	}

	refresh, err := s.Refresh.Sign(s.buildClaims(identity, jwtx.TokenUseRefresh, jwtx.NewJTI(), family, fingerprint, now, s.RefreshTTL))
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenID:      tokenID,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
		Fingerprint:  fingerprint,
	}, nil
}

// VerifyAccessToken validates an access token. It returns nil claims on ANY
// failure, including store errors (fail closed), so optional-auth call sites
// degrade to anonymous instead of propagating an error.
func (s *TokenService) VerifyAccessToken(ctx context.Context, token string) *jwtx.Claims {
	return s.verify(ctx, s.Access, token, jwtx.TokenUseAccess)
}

// VerifyRefreshToken validates a refresh token with the same nil-on-failure
// contract as VerifyAccessToken.
func (s *TokenService) VerifyRefreshToken(ctx context.Context, token string) *jwtx.Claims {
	return s.verify(ctx, s.Refresh, token, jwtx.TokenUseRefresh)
}

func (s *TokenService) verify(ctx context.Context, verifier jwtx.Verifier, token, use string) *jwtx.Claims {
	l := slogx.FromContext(ctx)

	claims, err := verifier.Verify(token)
	if err != nil {
		l.Debug("token verification failed", "error", err)
		return nil
	}
	if err := claims.ValidateUse(use); err != nil {
		l.Debug("token use mismatch", "error", err)
		return nil
	}

	blacklisted, err := s.Store.Blacklist().IsBlacklisted(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		l.Error("blacklist lookup failed", "error", err)
		return nil
	}
	if blacklisted {
		l.Info("rejected blacklisted token", "user_id", claims.Subject)
		return nil
	}

	rev, err := s.Store.Blacklist().UserRevocation(ctx, claims.Subject)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Never bulk-revoked.
	case err != nil:
		l.Error("revocation cutoff lookup failed", "error", err)
		return nil
	case claims.IssuedAt != nil && claims.IssuedAt.Time.Before(rev.RevokedBefore):
		l.Info("rejected token issued before revocation cutoff",
			"user_id", claims.Subject, "reason", rev.Reason)
		return nil
	}

	return claims
}

// RefreshAccessToken rotates a refresh token: the presented token is
// blacklisted and a fresh pair is minted within the same token family.
// Rotation is single-winner: if two requests present the same token
// concurrently, the blacklist insert-if-absent decides who succeeds.
//
// A fingerprint mismatch is treated as compromise, not mere failure: the
// presented token is revoked so it stops working even from the original
// context, and the caller gets ErrTokenCompromised.
func (s *TokenService) RefreshAccessToken(ctx context.Context, refreshToken, userAgent, ip string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	claims := s.VerifyRefreshToken(ctx, refreshToken)
	if claims == nil {
		return nil, ErrInvalidRefresh
	}

	if claims.Fingerprint != "" {
		presented := ""
		if userAgent != "" && ip != "" {
			presented = cryptox.FingerprintToken(userAgent + ip)
		}
		if !cryptox.ConstantTimeEquals(claims.Fingerprint, presented) {
			l.Warn("refresh fingerprint mismatch, revoking token",
				"user_id", claims.Subject,
				"token_family", claims.TokenFamily,
				"ip", ip,
			)
			if err := s.blacklistClaims(ctx, refreshToken, claims, domain.ReasonSecurity); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
				return nil, err
			}
			return nil, ErrTokenCompromised
		}
	}

	// Single-use: consume the presented token before minting. Losing the
	// insert race means another request already rotated this token.
	err := s.blacklistClaims(ctx, refreshToken, claims, domain.ReasonRevoked)
	if errors.Is(err, store.ErrAlreadyExists) {
		l.Warn("refresh token replayed", "user_id", claims.Subject, "token_family", claims.TokenFamily)
		return nil, ErrInvalidRefresh
	}
	if err != nil {
		return nil, err
	}

	identity := domain.Identity{
		UserID:      claims.Subject,
		Role:        claims.Role,
		Email:       claims.Email,
		Phone:       claims.Phone,
		Username:    claims.Username,
		Permissions: claims.Permissions,
		TokenFamily: claims.TokenFamily,
	}

	return s.GenerateTokenPair(ctx, identity, userAgent, ip)
}

// BlacklistToken revokes a single token (access or refresh) by hash. An
// unverifiable or already-expired token is a no-op since it cannot be used
// anyway. Duplicate revocation is not an error.
func (s *TokenService) BlacklistToken(ctx context.Context, token, reason string) error {
	claims := s.VerifyRefreshToken(ctx, token)
	if claims == nil {
		claims = s.VerifyAccessToken(ctx, token)
	}
	if claims == nil {
		return nil
	}

	err := s.blacklistClaims(ctx, token, claims, reason)
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil
	}
	return err
}

// RevokeAllUserTokens invalidates every token issued to the user before now.
// O(1): verification compares each token's issued-at against the cutoff
// instead of enumerating issued tokens.
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID, reason string) error {
	l := slogx.FromContext(ctx)

	// Truncated to seconds to match iat precision: a token minted in the
	// same second as the revocation is not retroactively caught.
	cutoff := s.now().UTC().Truncate(time.Second)
	if err := s.Store.Blacklist().SetUserCutoff(ctx, userID, cutoff, reason); err != nil {
		return err
	}
	l.Info("revoked all user tokens", "user_id", userID, "reason", reason)
	return nil
}

func (s *TokenService) blacklistClaims(ctx context.Context, token string, claims *jwtx.Claims, reason string) error {
	expiresAt := s.now().UTC().Add(s.RefreshTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return s.Store.Blacklist().InsertToken(ctx, domain.BlacklistEntry{
		TokenHash: cryptox.FingerprintToken(token),
		UserID:    claims.Subject,
		Reason:    reason,
		ExpiresAt: expiresAt,
		CreatedAt: s.now().UTC(),
	})
}

func (s *TokenService) buildClaims(identity domain.Identity, use, jti, family, fingerprint string, now time.Time, ttl time.Duration) jwtx.Claims {
	return jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   identity.UserID,
			Issuer:    s.Issuer,
			Audience:  jwt.ClaimStrings(s.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:        identity.Role,
		Email:       identity.Email,
		Phone:       identity.Phone,
		Username:    identity.Username,
		Permissions: identity.Permissions,
		Fingerprint: fingerprint,
		TokenFamily: family,
		TokenUse:    use,
	}
}
