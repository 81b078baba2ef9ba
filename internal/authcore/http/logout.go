package http

import (
	"encoding/json"
	"net/http"

	"github.com/haulaway/authcore/internal/authcore/domain"
	"github.com/haulaway/authcore/internal/authcore/service"
	"github.com/haulaway/authcore/pkg/httpx"
	"github.com/haulaway/authcore/pkg/slogx"
)

// LogoutHandler serves POST /v1/auth/logout.
type LogoutHandler struct {
	TokenService *service.TokenService
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token,omitempty"`
}

// ServeHTTP godoc
//
//	@Summary		Logout Endpoint
//	@Description	Revokes the presented refresh token (and optionally the access token) so the session cannot
//	@Description	be resumed. Always returns 204: revoking an already-dead token is not an error.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body	logoutRequest	true	"refresh_token, optional access_token"
//	@Success		204		"no content"
//	@Failure		400		{object}	httpx.ErrorResponse	"error, error_description"
//	@Failure		500		{object}	httpx.ErrorResponse	"error, error_description"
//	@Router			/v1/auth/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var body logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	if err := h.TokenService.BlacklistToken(ctx, body.RefreshToken, domain.ReasonLogout); err != nil {
		log.Error("logout failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	if body.AccessToken != "" {
		if err := h.TokenService.BlacklistToken(ctx, body.AccessToken, domain.ReasonLogout); err != nil {
			log.Error("logout failed", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
