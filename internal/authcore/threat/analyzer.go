package threat

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haulaway/authcore/internal/authcore/domain"
	"github.com/haulaway/authcore/pkg/httpx"
)

// Analyzer defaults. Thresholds sit below the weight of a single
// high-confidence signature so one hard match is enough to block.
const (
	DefaultMonitorThreshold = 12
	DefaultBlockThreshold   = 25
	DefaultMaxContentLength = 1 << 20 // 1 MiB
	DefaultBurstWindow      = time.Minute
	DefaultBurstEvents      = 20

	// maxInspectedBody caps how much of the body feeds the pattern scan.
	maxInspectedBody = 64 * 1024
)

// Soft heuristic weights, below any single-signature block.
const (
	weightOversizedPayload = 15
	weightMissingUserAgent = 10
	weightBotUserAgent     = 8
	weightBurstVolume      = 15
)

var botUserAgentMarkers = []string{
	"curl", "wget", "python-requests", "go-http-client", "scrapy",
	"sqlmap", "nikto", "masscan", "nmap",
}

// Signal is the typed per-request view the analyzer scores. It is assembled
// once per request so the catalogue can be tested without a transport layer.
type Signal struct {
	IP            string
	Method        string
	Path          string
	Query         string
	Body          string
	UserAgent     string
	ContentLength int64
	HeaderValues  []string
}

// SignalFromRequest builds a Signal, reading at most maxInspectedBody bytes
// of the body and putting them back so the handler still sees the full body.
func SignalFromRequest(r *http.Request) Signal {
	sig := Signal{
		IP:            httpx.ClientIP(r),
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.RawQuery,
		UserAgent:     r.UserAgent(),
		ContentLength: r.ContentLength,
	}

	for name, values := range r.Header {
		if name == "Authorization" || name == "Cookie" {
			continue
		}
		sig.HeaderValues = append(sig.HeaderValues, values...)
	}

	if r.Body != nil && r.Body != http.NoBody {
		peek, _ := io.ReadAll(io.LimitReader(r.Body, maxInspectedBody))
		r.Body = replayBody{
			Reader: io.MultiReader(bytes.NewReader(peek), r.Body),
			Closer: r.Body,
		}
		sig.Body = string(peek)
	}

	return sig
}

// replayBody stitches the inspected prefix back in front of the undrained
// remainder. The tail stays on the wire; inspection never buffers more than
// maxInspectedBody bytes no matter how large the body is.
type replayBody struct {
	io.Reader
	io.Closer
}

// haystack flattens the signal into one searchable string.
func (s Signal) haystack() string {
	var b strings.Builder
	b.WriteString(s.Path)
	b.WriteByte('\n')
	b.WriteString(s.Query)
	b.WriteByte('\n')
	b.WriteString(s.Body)
	b.WriteByte('\n')
	for _, v := range s.HeaderValues {
		b.WriteString(v)
		b.WriteByte('\n')
	}
	return b.String()
}

// Analyzer scores inbound requests against the signature catalogue plus
// volume and shape heuristics.
type Analyzer struct {
	Catalogue        []PatternCategory
	Events           *EventLog
	MonitorThreshold int
	BlockThreshold   int
	MaxContentLength int64
	BurstWindow      time.Duration
	BurstEvents      int

	now func() time.Time
}

func NewAnalyzer(events *EventLog) *Analyzer {
	return &Analyzer{
		Catalogue:        DefaultCatalogue(),
		Events:           events,
		MonitorThreshold: DefaultMonitorThreshold,
		BlockThreshold:   DefaultBlockThreshold,
		MaxContentLength: DefaultMaxContentLength,
		BurstWindow:      DefaultBurstWindow,
		BurstEvents:      DefaultBurstEvents,
		now:              time.Now,
	}
}

// Analyze computes the risk assessment for one request signal.
func (a *Analyzer) Analyze(sig Signal) domain.RiskAssessment {
	var assessment domain.RiskAssessment

	haystack := sig.haystack()
	for _, cat := range a.Catalogue {
		if cat.Match(haystack) {
			assessment.Score += cat.Weight
			assessment.MatchedPatterns = append(assessment.MatchedPatterns, cat.Name)
		}
	}

	if sig.ContentLength > a.MaxContentLength {
		assessment.Score += weightOversizedPayload
		assessment.MatchedPatterns = append(assessment.MatchedPatterns, "oversized_payload")
	}

	switch {
	case sig.UserAgent == "":
		assessment.Score += weightMissingUserAgent
		assessment.MatchedPatterns = append(assessment.MatchedPatterns, "missing_user_agent")
	case isBotUserAgent(sig.UserAgent):
		assessment.Score += weightBotUserAgent
		assessment.MatchedPatterns = append(assessment.MatchedPatterns, "bot_user_agent")
	}

	if a.Events != nil && sig.IP != "" {
		since := a.now().Add(-a.BurstWindow)
		if a.Events.CountByIP(sig.IP, since) > a.BurstEvents {
			assessment.Score += weightBurstVolume
			assessment.MatchedPatterns = append(assessment.MatchedPatterns, "burst_volume")
		}
	}

	switch {
	case assessment.Score > a.BlockThreshold:
		assessment.Recommendation = domain.RecommendBlock
	case assessment.Score > a.MonitorThreshold:
		assessment.Recommendation = domain.RecommendMonitor
	default:
		assessment.Recommendation = domain.RecommendAllow
	}

	return assessment
}

func isBotUserAgent(ua string) bool {
	lower := strings.ToLower(ua)
	for _, marker := range botUserAgentMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
