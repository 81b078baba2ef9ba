package http

import (
	"encoding/json"
	"net/http"

	"github.com/haulaway/authcore/internal/authcore/domain"
	"github.com/haulaway/authcore/internal/authcore/service"
	"github.com/haulaway/authcore/pkg/httpx"
	"github.com/haulaway/authcore/pkg/slogx"
)

// RevokeHandler serves POST /v1/auth/revoke. Registered behind RequireAuth.
type RevokeHandler struct {
	TokenService *service.TokenService
}

type revokeRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// ServeHTTP godoc
//
//	@Summary		Revoke All Tokens Endpoint
//	@Description	Invalidates every token issued to a user before now. Callers may revoke their own tokens;
//	@Description	revoking another user requires the admin role.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body	revokeRequest	false	"user_id, defaults to the caller"
//	@Success		204		"no content"
//	@Failure		401		{object}	httpx.ErrorResponse	"error, error_description"
//	@Failure		403		{object}	httpx.ErrorResponse	"error, error_description"
//	@Failure		500		{object}	httpx.ErrorResponse	"error, error_description"
//	@Router			/v1/auth/revoke [post].
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	claims := ClaimsFromContext(ctx)

	var body revokeRequest
	_ = json.NewDecoder(r.Body).Decode(&body)

	userID := body.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID != claims.Subject && claims.Role != "admin" {
		writeForbidden(w)
		return
	}

	if err := h.TokenService.RevokeAllUserTokens(ctx, userID, domain.ReasonRevoked); err != nil {
		log.Error("revoke all failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
