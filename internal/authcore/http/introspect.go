package http

import (
	"net/http"

	"github.com/haulaway/authcore/internal/authcore/service"
	"github.com/haulaway/authcore/pkg/httpx"
)

// IntrospectHandler serves GET /v1/auth/introspect.
type IntrospectHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		Token Introspection Endpoint
//	@Description	Reports whether the presented Bearer access token is live. A dead token gets
//	@Description	{"active": false} with 200, never an error; the caller decides what to do.
//	@Tags			Auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	IntrospectResponse	"active plus identity fields when active"
//	@Router			/v1/auth/introspect [get].
func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims := h.TokenService.VerifyAccessToken(r.Context(), bearerToken(r))
	if claims == nil {
		httpx.WriteJSON(w, http.StatusOK, IntrospectResponse{Active: false})
		return
	}

	resp := IntrospectResponse{
		Active:      true,
		Subject:     claims.Subject,
		Role:        claims.Role,
		Phone:       claims.Phone,
		Email:       claims.Email,
		Username:    claims.Username,
		Permissions: claims.Permissions,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Unix()
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}
