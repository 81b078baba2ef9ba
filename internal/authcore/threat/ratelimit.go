package threat

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/haulaway/authcore/pkg/cryptox"
	"github.com/haulaway/authcore/pkg/httpx"
)

// Tier classifies the caller for quota purposes.
type Tier string

const (
	TierService   Tier = "service"
	TierPartner   Tier = "partner"
	TierWhitelist Tier = "whitelist"
	TierAnonymous Tier = "anonymous"
)

// TierLimit is the budget of one identity class over the main window.
type TierLimit struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// Default tier ceilings over a 15 minute window, plus the independent
// short-window burst guard that applies to every tier.
var (
	DefaultServiceLimit   = TierLimit{RequestsPerWindow: 5000, Window: 15 * time.Minute, Burst: 200}
	DefaultPartnerLimit   = TierLimit{RequestsPerWindow: 1500, Window: 15 * time.Minute, Burst: 100}
	DefaultWhitelistLimit = TierLimit{RequestsPerWindow: 600, Window: 15 * time.Minute, Burst: 50}
	DefaultAnonymousLimit = TierLimit{RequestsPerWindow: 150, Window: 15 * time.Minute, Burst: 20}
	DefaultBurstLimit     = TierLimit{RequestsPerWindow: 60, Window: time.Minute, Burst: 30}
)

// DefaultExemptPaths are never rate limited.
var DefaultExemptPaths = []string{"/livez", "/readyz", "/swagger/"}

// LimiterConfig wires the adaptive limiter. Keys are compared in constant
// time; empty keys disable their tier.
type LimiterConfig struct {
	ServiceKeys    []string
	PartnerKeys    []string
	WhitelistedIPs []string

	Service   TierLimit
	Partner   TierLimit
	Whitelist TierLimit
	Anonymous TierLimit
	Burst     TierLimit

	ExemptPaths []string
}

// Decision is the limiter's verdict for one request.
type Decision struct {
	Allowed    bool
	Tier       Tier
	RetryAfter time.Duration
}

// tierBuckets manages per-key token buckets for one tier.
type tierBuckets struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

func newTierBuckets(limit TierLimit) *tierBuckets {
	return &tierBuckets{
		rate:        rate.Limit(float64(limit.RequestsPerWindow) / limit.Window.Seconds()),
		burst:       limit.Burst,
		lastCleanup: time.Now(),
	}
}

func (tb *tierBuckets) get(key string) *rate.Limiter {
	if limiter, ok := tb.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(tb.rate, tb.burst)
	actual, _ := tb.limiters.LoadOrStore(key, limiter)

	tb.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup drops idle limiters so ephemeral keys don't accumulate.
// A limiter with a full bucket hasn't been used for at least one window.
func (tb *tierBuckets) maybeCleanup() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if time.Since(tb.lastCleanup) < 5*time.Minute {
		return
	}
	tb.lastCleanup = time.Now()

	tb.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(tb.burst) {
			tb.limiters.Delete(key)
		}
		return true
	})
}

// AdaptiveLimiter applies tiered quotas plus an independent short-window
// burst guard. Identity resolution precedence: service key, partner key,
// whitelisted IP, anonymous.
type AdaptiveLimiter struct {
	cfg LimiterConfig

	service   *tierBuckets
	partner   *tierBuckets
	whitelist *tierBuckets
	anonymous *tierBuckets
	burst     *tierBuckets
}

func NewAdaptiveLimiter(cfg LimiterConfig) *AdaptiveLimiter {
	if cfg.Service.Window <= 0 {
		cfg.Service = DefaultServiceLimit
	}
	if cfg.Partner.Window <= 0 {
		cfg.Partner = DefaultPartnerLimit
	}
	if cfg.Whitelist.Window <= 0 {
		cfg.Whitelist = DefaultWhitelistLimit
	}
	if cfg.Anonymous.Window <= 0 {
		cfg.Anonymous = DefaultAnonymousLimit
	}
	if cfg.Burst.Window <= 0 {
		cfg.Burst = DefaultBurstLimit
	}
	if cfg.ExemptPaths == nil {
		cfg.ExemptPaths = DefaultExemptPaths
	}

	return &AdaptiveLimiter{
		cfg:       cfg,
		service:   newTierBuckets(cfg.Service),
		partner:   newTierBuckets(cfg.Partner),
		whitelist: newTierBuckets(cfg.Whitelist),
		anonymous: newTierBuckets(cfg.Anonymous),
		burst:     newTierBuckets(cfg.Burst),
	}
}

// Exempt reports whether the path skips rate limiting entirely.
func (l *AdaptiveLimiter) Exempt(path string) bool {
	for _, p := range l.cfg.ExemptPaths {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(path, p) {
				return true
			}
		} else if path == p {
			return true
		}
	}
	return false
}

// ResolveTier classifies the request by precedence. API keys are matched in
// constant time so the lookup does not leak which configured key was closest.
func (l *AdaptiveLimiter) ResolveTier(apiKey, ip string) Tier {
	if apiKey != "" {
		if matchKey(apiKey, l.cfg.ServiceKeys) {
			return TierService
		}
		if matchKey(apiKey, l.cfg.PartnerKeys) {
			return TierPartner
		}
	}
	for _, w := range l.cfg.WhitelistedIPs {
		if ip == w {
			return TierWhitelist
		}
	}
	return TierAnonymous
}

func matchKey(presented string, keys []string) bool {
	var matched bool
	for _, k := range keys {
		if cryptox.ConstantTimeEquals(presented, k) {
			matched = true
		}
	}
	return matched
}

// Check consumes one token from the caller's tier bucket and the shared
// burst bucket. Both must allow; the burst guard applies regardless of tier.
func (l *AdaptiveLimiter) Check(apiKey, ip, path string) Decision {
	if l.Exempt(path) {
		return Decision{Allowed: true, Tier: TierAnonymous}
	}

	tier := l.ResolveTier(apiKey, ip)

	var buckets *tierBuckets
	switch tier {
	case TierService:
		buckets = l.service
	case TierPartner:
		buckets = l.partner
	case TierWhitelist:
		buckets = l.whitelist
	default:
		buckets = l.anonymous
	}

	key := ip
	if tier == TierService || tier == TierPartner {
		key = apiKey
	}

	main := buckets.get(key)
	if !main.Allow() {
		return Decision{Tier: tier, RetryAfter: retryAfter(main)}
	}

	spike := l.burst.get(key)
	if !spike.Allow() {
		return Decision{Tier: tier, RetryAfter: retryAfter(spike)}
	}

	return Decision{Allowed: true, Tier: tier}
}

// retryAfter peeks at when the next token becomes available without
// consuming it.
func retryAfter(limiter *rate.Limiter) time.Duration {
	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()
	if delay < time.Second {
		delay = time.Second
	}
	return delay
}

// CheckRequest is the HTTP-shaped entry point.
func (l *AdaptiveLimiter) CheckRequest(r *http.Request) Decision {
	return l.Check(r.Header.Get("X-Api-Key"), httpx.ClientIP(r), r.URL.Path)
}
