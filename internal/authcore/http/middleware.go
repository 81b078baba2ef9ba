package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/haulaway/authcore/pkg/httpx"
	"github.com/haulaway/authcore/pkg/jwtx"
)

type ctxKey int

const ctxKeyClaims ctxKey = iota

// ClaimsFromContext returns the verified access token claims for the request,
// or nil when the request is anonymous.
func ClaimsFromContext(ctx context.Context) *jwtx.Claims {
	claims, _ := ctx.Value(ctxKeyClaims).(*jwtx.Claims)
	return claims
}

// RequireAuth rejects requests without a valid Bearer access token and puts
// the verified claims on the context. Verification never errors; any failure
// reads as anonymous and anonymous is a 401 here.
func (r *Router) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		claims := r.TokenService.VerifyAccessToken(req.Context(), bearerToken(req))
		if claims == nil {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "A valid access token is required.")
			return
		}

		ctx := context.WithValue(req.Context(), ctxKeyClaims, claims)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
