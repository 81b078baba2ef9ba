package http

// TokenResponse is the body returned whenever a token pair is minted.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// SessionResponse is returned by verification session creation.
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// IntrospectResponse reports whether a presented access token is live and,
// if so, the identity it authenticates.
type IntrospectResponse struct {
	Active      bool     `json:"active"`
	Subject     string   `json:"sub,omitempty"`
	Role        string   `json:"role,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Email       string   `json:"email,omitempty"`
	Username    string   `json:"username,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	ExpiresAt   int64    `json:"exp,omitempty"`
}

// HealthResponse is returned by the liveness and readiness probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports per-dependency readiness.
type HealthChecks struct {
	Database string `json:"database"`
}
