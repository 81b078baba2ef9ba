package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haulaway/authcore/internal/authcore/domain"
	"github.com/haulaway/authcore/internal/authcore/service"
	"github.com/haulaway/authcore/internal/authcore/store/drivers/sqlite"
	"github.com/haulaway/authcore/internal/authcore/threat"
	"github.com/haulaway/authcore/internal/authcore/verification"
	"github.com/haulaway/authcore/pkg/jwtx"
)

type stubDispatcher struct {
	code string
}

func (d *stubDispatcher) SendCode(_ context.Context, _, code string) error {
	d.code = code
	return nil
}

func newTestRouter(t *testing.T) (*Router, *stubDispatcher) {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	access, err := jwtx.NewHS256("access-secret-0123456789abcdef-0123", "authcore", []string{"haulaway-api"})
	require.NoError(t, err)
	refresh, err := jwtx.NewHS256("refresh-secret-0123456789abcdef-012", "authcore", []string{"haulaway-api"})
	require.NoError(t, err)

	tokens := service.NewTokenService(access, refresh, st, "authcore", []string{"haulaway-api"})

	manager, err := verification.NewManager(verification.NewMemoryStore(), slog.Default(), verification.Options{})
	require.NoError(t, err)

	sms := &stubDispatcher{}

	events := threat.NewEventLog(64)

	r := NewRouter("test", st, slog.Default())
	r.TokenService = tokens
	r.VerificationService = &service.VerificationService{
		Sessions: manager,
		Tokens:   tokens,
		SMS:      sms,
	}
	r.Events = events
	r.Analyzer = threat.NewAnalyzer(events)
	r.BlockList = threat.NewBlockList(5*time.Minute, time.Minute, slog.Default())
	r.ApplyRoutes()

	return r, sms
}

func doJSON(t *testing.T, r *Router, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("User-Agent", "Mozilla/5.0 (test)")
	req.RemoteAddr = "203.0.113.7:52811"
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestVerificationFlowOverHTTP(t *testing.T) {
	t.Parallel()

	r, sms := newTestRouter(t)

	// Create the session.
	rec := doJSON(t, r, "POST", "/v1/verification/sessions", map[string]string{"phone": "+61400000001"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.SessionID)
	require.NotEmpty(t, sms.code)
	require.NotContains(t, rec.Body.String(), sms.code, "the code only travels over SMS")

	// Wrong code: 401 and the session survives.
	rec = doJSON(t, r, "POST", "/v1/verification/sessions/"+created.SessionID+"/verify",
		map[string]string{"code": "000000"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Ping still works.
	rec = doJSON(t, r, "POST", "/v1/verification/sessions/"+created.SessionID+"/ping", nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Correct code: tokens come back.
	rec = doJSON(t, r, "POST", "/v1/verification/sessions/"+created.SessionID+"/verify",
		map[string]string{"code": sms.code}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var pair TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)

	// The session is consumed: a replay reads as expired.
	rec = doJSON(t, r, "POST", "/v1/verification/sessions/"+created.SessionID+"/verify",
		map[string]string{"code": sms.code}, nil)
	require.Equal(t, http.StatusGone, rec.Code)
	require.Contains(t, rec.Body.String(), "verification_expired")

	// Refresh once succeeds.
	rec = doJSON(t, r, "POST", "/v1/auth/refresh", map[string]string{"refresh_token": pair.RefreshToken}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rotated TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// Replaying the consumed refresh token fails.
	rec = doJSON(t, r, "POST", "/v1/auth/refresh", map[string]string{"refresh_token": pair.RefreshToken}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionPingUnknownIDGone(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	rec := doJSON(t, r, "POST", "/v1/verification/sessions/nope/ping", nil, nil)
	require.Equal(t, http.StatusGone, rec.Code)

	rec = doJSON(t, r, "DELETE", "/v1/verification/sessions/nope", nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGuardBlocksInjectionAndBansIP(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	req := httptest.NewRequest("POST", "/v1/verification/sessions",
		strings.NewReader(`{"phone":"<script>alert(1)</script>"}`))
	req.Header.Set("User-Agent", "Mozilla/5.0 (test)")
	req.RemoteAddr = "203.0.113.7:52811"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.NotContains(t, rec.Body.String(), "xss", "the matched signature never leaks")

	// The IP is now banned, so even a clean request fails, and the rejection
	// lands in the event log.
	rec = doJSON(t, r, "GET", "/v1/auth/introspect", nil, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.True(t, hasEvent(r.Events, domain.EventIPBlocked, "203.0.113.7"))

	// A different IP is unaffected.
	other := httptest.NewRequest("GET", "/v1/auth/introspect", nil)
	other.Header.Set("User-Agent", "Mozilla/5.0 (test)")
	other.RemoteAddr = "198.51.100.9:40000"
	clean := httptest.NewRecorder()
	r.ServeHTTP(clean, other)
	require.Equal(t, http.StatusOK, clean.Code)
}

func TestGuardRateLimits(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	r.Limiter = threat.NewAdaptiveLimiter(threat.LimiterConfig{
		ServiceKeys: []string{"svc-key-1"},
		Service:     threat.TierLimit{RequestsPerWindow: 100, Window: 15 * time.Minute, Burst: 100},
		Anonymous:   threat.TierLimit{RequestsPerWindow: 2, Window: 15 * time.Minute, Burst: 2},
		Burst:       threat.TierLimit{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000},
	})

	for range 2 {
		rec := doJSON(t, r, "GET", "/v1/auth/introspect", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, r, "GET", "/v1/auth/introspect", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	// A privileged key from the same IP has its own, higher ceiling.
	rec = doJSON(t, r, "GET", "/v1/auth/introspect", nil, map[string]string{"X-Api-Key": "svc-key-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Probes stay exempt even for the throttled IP.
	rec = doJSON(t, r, "GET", "/livez", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshFromForeignContextRecordsCompromise(t *testing.T) {
	t.Parallel()

	r, sms := newTestRouter(t)
	pair := mintPair(t, r, sms)

	// Present the refresh token from a different device context than the one
	// it was minted for.
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]string{"refresh_token": pair.RefreshToken}))
	req := httptest.NewRequest("POST", "/v1/auth/refresh", &buf)
	req.Header.Set("User-Agent", "Mozilla/5.0 (elsewhere)")
	req.RemoteAddr = "198.51.100.9:40000"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	// The response is the same generic 401 as plain invalidity; only the
	// internal event log learns the difference.
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid_token")
	require.True(t, hasEvent(r.Events, domain.EventTokenCompromise, "198.51.100.9"))

	// The token is revoked for good, even from the original context.
	rec = doJSON(t, r, "POST", "/v1/auth/refresh", map[string]string{"refresh_token": pair.RefreshToken}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIntrospect(t *testing.T) {
	t.Parallel()

	r, sms := newTestRouter(t)

	rec := doJSON(t, r, "GET", "/v1/auth/introspect", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var inactive IntrospectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inactive))
	require.False(t, inactive.Active)

	pair := mintPair(t, r, sms)

	rec = doJSON(t, r, "GET", "/v1/auth/introspect", nil, map[string]string{
		"Authorization": "Bearer " + pair.AccessToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var active IntrospectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	require.True(t, active.Active)
	require.Equal(t, "+61400000001", active.Phone)
	require.NotZero(t, active.ExpiresAt)
}

func TestLogoutKillsRefreshToken(t *testing.T) {
	t.Parallel()

	r, sms := newTestRouter(t)
	pair := mintPair(t, r, sms)

	rec := doJSON(t, r, "POST", "/v1/auth/logout", map[string]string{
		"refresh_token": pair.RefreshToken,
		"access_token":  pair.AccessToken,
	}, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, r, "POST", "/v1/auth/refresh", map[string]string{"refresh_token": pair.RefreshToken}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, r, "GET", "/v1/auth/introspect", nil, map[string]string{
		"Authorization": "Bearer " + pair.AccessToken,
	})
	var resp IntrospectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Active)
}

func TestRevokeRequiresAuth(t *testing.T) {
	t.Parallel()

	r, sms := newTestRouter(t)

	rec := doJSON(t, r, "POST", "/v1/auth/revoke", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	pair := mintPair(t, r, sms)

	// A customer cannot revoke someone else.
	rec = doJSON(t, r, "POST", "/v1/auth/revoke", map[string]string{"user_id": "someone-else"}, map[string]string{
		"Authorization": "Bearer " + pair.AccessToken,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Self-revoke works.
	rec = doJSON(t, r, "POST", "/v1/auth/revoke", nil, map[string]string{
		"Authorization": "Bearer " + pair.AccessToken,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	rec := doJSON(t, r, "GET", "/livez", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, "GET", "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "ok", health.Status)
	require.NotNil(t, health.Checks)
}

func hasEvent(log *threat.EventLog, eventType, ip string) bool {
	for _, e := range log.Recent(32) {
		if e.Type == eventType && e.IP == ip {
			return true
		}
	}
	return false
}

// mintPair walks the verification flow to get a real token pair.
func mintPair(t *testing.T, r *Router, sms *stubDispatcher) TokenResponse {
	t.Helper()

	rec := doJSON(t, r, "POST", "/v1/verification/sessions", map[string]string{"phone": "+61400000001"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, r, "POST", "/v1/verification/sessions/"+created.SessionID+"/verify",
		map[string]string{"code": sms.code}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var pair TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	return pair
}
