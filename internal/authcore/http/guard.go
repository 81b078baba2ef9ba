package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/haulaway/authcore/internal/authcore/domain"
	"github.com/haulaway/authcore/internal/authcore/threat"
	"github.com/haulaway/authcore/pkg/httpx"
	"github.com/haulaway/authcore/pkg/slogx"
)

// Guard is the edge screening middleware: blocked IPs are rejected first,
// then the tiered quota, then the content risk analysis. Denials are
// deliberately generic; the trigger is only ever logged internally.
func (r *Router) Guard() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			log := slogx.FromContext(ctx)
			ip := httpx.ClientIP(req)

			if r.BlockList != nil && r.BlockList.IsBlocked(ip) {
				r.recordEvent(domain.SecurityEvent{
					Type:      domain.EventIPBlocked,
					IP:        ip,
					UserAgent: req.UserAgent(),
					Path:      req.URL.Path,
					Severity:  domain.SeverityMedium,
					Details:   "request while ip banned",
				})
				log.Warn("request from blocked ip rejected", "ip", ip)
				writeForbidden(w)
				return
			}

			if r.Limiter != nil {
				decision := r.Limiter.CheckRequest(req)
				if !decision.Allowed {
					r.recordEvent(domain.SecurityEvent{
						Type:      domain.EventRateLimited,
						IP:        ip,
						UserAgent: req.UserAgent(),
						Path:      req.URL.Path,
						Severity:  domain.SeverityLow,
						Details:   "tier " + string(decision.Tier),
					})
					log.Warn("rate limit exceeded", "ip", ip, "tier", decision.Tier)

					w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
					httpx.WriteError(w, http.StatusTooManyRequests,
						"rate_limit_exceeded", "Too many requests. Please try again later.")
					return
				}

				if r.Limiter.Exempt(req.URL.Path) {
					next.ServeHTTP(w, req)
					return
				}
			}

			if r.Analyzer != nil {
				sig := threat.SignalFromRequest(req)
				assessment := r.Analyzer.Analyze(sig)

				switch assessment.Recommendation {
				case domain.RecommendBlock:
					if r.BlockList != nil {
						r.BlockList.Block(ip, "risk score over block threshold")
					}
					r.recordEvent(domain.SecurityEvent{
						Type:      domain.EventRiskBlocked,
						IP:        ip,
						UserAgent: req.UserAgent(),
						Path:      req.URL.Path,
						Severity:  domain.SeverityHigh,
						Details:   patternSummary(assessment),
					})
					log.Warn("request blocked by risk analysis",
						"ip", ip,
						"score", assessment.Score,
						"patterns", assessment.MatchedPatterns,
					)
					writeForbidden(w)
					return

				case domain.RecommendMonitor:
					r.recordEvent(domain.SecurityEvent{
						Type:      domain.EventRiskMonitored,
						IP:        ip,
						UserAgent: req.UserAgent(),
						Path:      req.URL.Path,
						Severity:  domain.SeverityMedium,
						Details:   patternSummary(assessment),
					})
					log.Info("request flagged for monitoring",
						"ip", ip,
						"score", assessment.Score,
						"patterns", assessment.MatchedPatterns,
					)
				}
			}

			next.ServeHTTP(w, req)
		})
	}
}

func (r *Router) recordEvent(e domain.SecurityEvent) {
	if r.Events == nil {
		return
	}
	e.Timestamp = time.Now()
	r.Events.Append(e)
}

func writeForbidden(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusForbidden, "forbidden", "Request denied.")
}

func patternSummary(a domain.RiskAssessment) string {
	return "score " + strconv.Itoa(a.Score) + ": " + strings.Join(a.MatchedPatterns, ",")
}
