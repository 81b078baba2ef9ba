package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/haulaway/authcore/internal/authcore/domain"
	"github.com/haulaway/authcore/internal/authcore/service"
	"github.com/haulaway/authcore/pkg/httpx"
	"github.com/haulaway/authcore/pkg/slogx"
)

// RefreshHandler serves POST /v1/auth/refresh.
type RefreshHandler struct {
	TokenService *service.TokenService

	// RecordEvent feeds the security event log; nil disables recording.
	RecordEvent func(domain.SecurityEvent)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ServeHTTP godoc
//
//	@Summary		Refresh Token Endpoint
//	@Description	Rotates a refresh token: the presented token is consumed and a new access/refresh pair is returned.
//	@Description	A refresh token is single-use; presenting it twice fails. The token must be presented from the
//	@Description	device context it was issued to.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		refreshRequest			true	"refresh_token"
//	@Success		200		{object}	TokenResponse			"access_token, refresh_token, token_type, expires_in"
//	@Failure		400		{object}	httpx.ErrorResponse		"error, error_description"
//	@Failure		401		{object}	httpx.ErrorResponse		"error, error_description"
//	@Failure		500		{object}	httpx.ErrorResponse		"error, error_description"
//	@Header			200		{string}	Cache-Control			"no-store"
//	@Router			/v1/auth/refresh [post].
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var body refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	pair, err := h.TokenService.RefreshAccessToken(ctx, body.RefreshToken, r.UserAgent(), httpx.ClientIP(r))
	if err != nil {
		// Compromise and plain invalidity are indistinguishable to the caller;
		// only the internal event log learns the difference.
		switch {
		case errors.Is(err, service.ErrTokenCompromised):
			if h.RecordEvent != nil {
				h.RecordEvent(domain.SecurityEvent{
					Type:      domain.EventTokenCompromise,
					IP:        httpx.ClientIP(r),
					UserAgent: r.UserAgent(),
					Path:      r.URL.Path,
					Severity:  domain.SeverityHigh,
					Details:   "refresh presented from foreign device context",
				})
			}
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Refresh token is not valid.")
		case errors.Is(err, service.ErrInvalidRefresh):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Refresh token is not valid.")
		default:
			log.Error("refresh failed", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
	})
}
