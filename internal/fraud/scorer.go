// Package fraud computes a per-click suspicion score and automated-client flag
// from request signals. Scoring is pure and deterministic: the same context
// always produces the same result, and malformed input degrades to the
// maximum-uncertainty contribution for that signal instead of failing.
package fraud

import (
	"regexp"
	"strings"

	"click-router/internal/requestctx"
)

// Signal weights, additive and capped at MaxScore.
const (
	MaxScore             = 100
	weightEmptyUserAgent = 30
	weightBotSignature   = 40
	weightNoReferrer     = 10
)

// automatedPattern matches generic automated-client markers in a user agent.
var automatedPattern = regexp.MustCompile(`(?i)bot|crawler|spider|headless`)

// crawlerTokens are known crawler user-agent substrings (lowercase) that the
// generic pattern alone would miss.
var crawlerTokens = []string{
	"slurp", "facebookexternalhit", "embedly", "quora link preview",
	"outbrain", "pinterest/0.", "bytespider", "curl/", "wget/",
	"python-requests", "go-http-client", "phantomjs",
}

// Result is the scorer output. IsBot is a hard boolean set solely by
// user-agent signature matching; the numeric score is independent of it.
type Result struct {
	FraudScore int      `json:"fraud_score"`
	IsBot      bool     `json:"is_bot"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Scorer computes fraud results for click contexts.
type Scorer struct {
	// expectReferrer adds the missing-referrer signal; set for routing
	// modes where organic traffic normally carries one.
	expectReferrer bool
}

// NewScorer creates a scorer. expectReferrer should be true when the routing
// mode expects a referrer on legitimate traffic.
func NewScorer(expectReferrer bool) *Scorer {
	return &Scorer{expectReferrer: expectReferrer}
}

// Score evaluates the context. It never panics and never does I/O; a nil
// context yields the maximum-uncertainty result for every signal.
func (s *Scorer) Score(ctx *requestctx.ClickContext) Result {
	var result Result

	ua := ""
	referrer := ""
	if ctx != nil {
		ua = strings.TrimSpace(ctx.UserAgent)
		referrer = strings.TrimSpace(ctx.Referrer)
	}

	if ua == "" {
		// An empty user agent contributes to the score but never alone
		// marks the client as a bot.
		result.FraudScore += weightEmptyUserAgent
		result.Reasons = append(result.Reasons, "empty-user-agent")
	} else if matchesBotSignature(ua) {
		result.IsBot = true
		result.FraudScore += weightBotSignature
		result.Reasons = append(result.Reasons, "bot-signature")
	}

	if s.expectReferrer && referrer == "" {
		result.FraudScore += weightNoReferrer
		result.Reasons = append(result.Reasons, "missing-referrer")
	}

	if result.FraudScore > MaxScore {
		result.FraudScore = MaxScore
	}

	return result
}

func matchesBotSignature(ua string) bool {
	if automatedPattern.MatchString(ua) {
		return true
	}
	lowered := strings.ToLower(ua)
	for _, token := range crawlerTokens {
		if strings.Contains(lowered, token) {
			return true
		}
	}
	return false
}
