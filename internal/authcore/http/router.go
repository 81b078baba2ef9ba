package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/haulaway/authcore/internal/authcore/service"
	"github.com/haulaway/authcore/internal/authcore/store"
	"github.com/haulaway/authcore/internal/authcore/threat"
	"github.com/haulaway/authcore/pkg/httpx"
	"github.com/haulaway/authcore/pkg/slogx"

	_ "github.com/haulaway/authcore/api/authcore" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	TokenService        *service.TokenService
	VerificationService *service.VerificationService

	Analyzer  *threat.Analyzer
	Limiter   *threat.AdaptiveLimiter
	BlockList *threat.BlockList
	Events    *threat.EventLog
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		r.Guard(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerVerification()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
//
//	@title			Haulaway Auth Service API
//	@version		0.1.0
//	@description	Authentication and abuse prevention for the Haulaway marketplace: JWT access/refresh
//	@description	token lifecycle with rotation and device binding, phone verification sessions, and
//	@description	adaptive request screening.
//
//	@contact.name				Haulaway Platform Team
//	@contact.url				https://github.com/haulaway/authcore
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	refreshHandler := &RefreshHandler{TokenService: r.TokenService, RecordEvent: r.recordEvent}
	logoutHandler := &LogoutHandler{TokenService: r.TokenService}
	revokeHandler := &RevokeHandler{TokenService: r.TokenService}
	introspectHandler := &IntrospectHandler{TokenService: r.TokenService}

	r.Mux.Handle("POST /v1/auth/refresh", refreshHandler)
	r.Mux.Handle("POST /v1/auth/logout", logoutHandler)
	r.Mux.Handle("POST /v1/auth/revoke", r.RequireAuth(revokeHandler))
	r.Mux.Handle("GET /v1/auth/introspect", introspectHandler)
}

func (r *Router) registerVerification() {
	h := &VerificationHandler{VerificationService: r.VerificationService}

	r.Mux.HandleFunc("POST /v1/verification/sessions", h.HandleCreate)
	r.Mux.HandleFunc("POST /v1/verification/sessions/{id}/verify", h.HandleVerify)
	r.Mux.HandleFunc("POST /v1/verification/sessions/{id}/ping", h.HandlePing)
	r.Mux.HandleFunc("DELETE /v1/verification/sessions/{id}", h.HandleDelete)
}

func (r *Router) registerSystem() {
	r.Mux.HandleFunc("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.HandleFunc("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
