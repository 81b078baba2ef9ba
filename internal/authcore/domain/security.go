package domain

import "time"

// SecurityEvent types.
const (
	EventRiskBlocked     = "risk_blocked"
	EventRiskMonitored   = "risk_monitored"
	EventRateLimited     = "rate_limited"
	EventIPBlocked       = "ip_blocked"
	EventTokenCompromise = "token_compromise"
)

// SecurityEvent severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// SecurityEvent is an append-only audit record kept in a bounded in-process
// ring. Full context stays internal; none of it is echoed to callers.
type SecurityEvent struct {
	Type      string
	IP        string
	UserAgent string
	Path      string
	Timestamp time.Time
	Severity  string
	Details   string
}

// Risk recommendations.
const (
	RecommendAllow   = "allow"
	RecommendMonitor = "monitor"
	RecommendBlock   = "block"
)

// RiskAssessment is the per-request output of the threat analyzer. Ephemeral,
// never persisted.
type RiskAssessment struct {
	Score           int
	MatchedPatterns []string
	Recommendation  string
}

// BlockedIPEntry is a temporary IP ban. ExpiresAt is always set; the
// automated path never produces an indefinite block.
type BlockedIPEntry struct {
	IP        string
	Reason    string
	ExpiresAt time.Time
}
