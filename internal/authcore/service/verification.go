package service

import (
	"context"
	"errors"

	"github.com/haulaway/authcore/internal/authcore/domain"
	"github.com/haulaway/authcore/internal/authcore/verification"
	"github.com/haulaway/authcore/pkg/cryptox"
	"github.com/haulaway/authcore/pkg/slogx"
)

// CodeDigits is the length of dispatched one-time codes.
const CodeDigits = 6

var (
	ErrSessionExpired = errors.New("verification_expired")
	ErrCodeInvalid    = errors.New("invalid_code")
)

// SMSDispatcher delivers one-time codes. The real implementation talks to an
// external provider; tests substitute a recorder.
type SMSDispatcher interface {
	SendCode(ctx context.Context, phone, code string) error
}

// IdentityResolver maps a verified phone number to the principal tokens get
// minted for. The user directory lives outside this service.
type IdentityResolver interface {
	ResolveByPhone(ctx context.Context, phone string) (domain.Identity, error)
}

// VerificationService drives the phone verification flow: dispatch a one-time
// code, confirm it, and mint a token pair for the verified principal.
type VerificationService struct {
	Sessions *verification.Manager
	Tokens   *TokenService
	SMS      SMSDispatcher
	Resolver IdentityResolver
}

// StartVerification creates a code session for the phone number and dispatches
// the code. Only the opaque session id goes back to the caller; the code
// travels exclusively over the SMS channel.
func (s *VerificationService) StartVerification(ctx context.Context, phone string) (string, error) {
	l := slogx.FromContext(ctx)

	code, err := cryptox.GenerateCode(CodeDigits)
	if err != nil {
		return "", err
	}

	sessionID, err := s.Sessions.CreateSession(phone, code)
	if err != nil {
		return "", err
	}

	if err := s.SMS.SendCode(ctx, phone, code); err != nil {
		// Without the code the session can never be completed.
		s.Sessions.DeleteSession(sessionID)
		l.Error("code dispatch failed", "error", err)
		return "", err
	}

	l.Info("verification session created", "session_id", sessionID)
	return sessionID, nil
}

// ConfirmCode checks the code against the session. On success the session is
// consumed and a token pair is minted for the verified phone, bound to the
// caller's device context.
//
// An unknown session id means expired-or-never-existed; the two cases are
// deliberately indistinguishable to the caller.
func (s *VerificationService) ConfirmCode(ctx context.Context, sessionID, code, userAgent, ip string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	phone, err := s.Sessions.VerifyCode(sessionID, code)
	switch {
	case errors.Is(err, verification.ErrSessionNotFound):
		return nil, ErrSessionExpired
	case errors.Is(err, verification.ErrCodeMismatch):
		l.Info("verification code mismatch", "session_id", sessionID)
		return nil, ErrCodeInvalid
	case err != nil:
		return nil, err
	}

	identity, err := s.resolve(ctx, phone)
	if err != nil {
		return nil, err
	}

	pair, err := s.Tokens.GenerateTokenPair(ctx, identity, userAgent, ip)
	if err != nil {
		return nil, err
	}

	l.Info("phone verified", "user_id", identity.UserID)
	return pair, nil
}

// ExtendSession bumps the session's idle clock.
func (s *VerificationService) ExtendSession(sessionID string) error {
	if !s.Sessions.UpdateActivity(sessionID) {
		return ErrSessionExpired
	}
	return nil
}

// CancelSession discards the session if it still exists.
func (s *VerificationService) CancelSession(sessionID string) {
	s.Sessions.DeleteSession(sessionID)
}

func (s *VerificationService) resolve(ctx context.Context, phone string) (domain.Identity, error) {
	if s.Resolver != nil {
		return s.Resolver.ResolveByPhone(ctx, phone)
	}
	// Default: the phone is the principal, as for first-time signups before a
	// profile exists.
	return domain.Identity{UserID: phone, Phone: phone, Role: "customer"}, nil
}
