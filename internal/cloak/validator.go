// Package cloak classifies ad-launch traffic as pass (monetized destination)
// or block (compliance-safe destination). A request passes only when it looks
// like a real mobile ad click: mobile device class, a platform click
// identifier in the query string, and a referrer that is either absent or
// from a known advertising platform domain.
package cloak

import (
	"net/url"
	"strings"

	"click-router/internal/requestctx"
)

// Failed-check tags, in evaluation order.
const (
	CheckMobile   = "mobile-check"
	CheckClickID  = "click-id-check"
	CheckReferrer = "referrer-check"
)

// DefaultClickIDParams are the platform click-identifier query parameters
// accepted when none are configured.
var DefaultClickIDParams = []string{"ttclid", "gclid", "fbclid", "click_id"}

// DefaultAllowedReferrers are advertising platform domains accepted as
// referrer origins (exact or suffix match).
var DefaultAllowedReferrers = []string{
	"tiktok.com", "tiktokv.com", "bytedance.com",
	"facebook.com", "instagram.com", "google.com",
}

// Verdict is the validation outcome. FailedCheck names the first failing
// condition and is empty on pass.
type Verdict struct {
	Pass        bool   `json:"pass"`
	FailedCheck string `json:"failed_check,omitempty"`
	Bypassed    bool   `json:"bypassed,omitempty"`
}

// Config controls validation behavior.
type Config struct {
	// ClickIDParams are query parameter names accepted as ad-click identifiers.
	ClickIDParams []string
	// AllowedReferrers are platform domains accepted as referrer origins.
	AllowedReferrers []string
	// BypassParam, when non-empty, names a query flag that forces pass for QA
	// traffic. Disabled by default.
	BypassParam string
}

// Validator applies the cloak policy to click contexts.
type Validator struct {
	clickIDParams    []string
	allowedReferrers []string
	bypassParam      string
}

// NewValidator creates a validator, falling back to the default parameter and
// referrer lists where the config leaves them empty.
func NewValidator(cfg Config) *Validator {
	params := cfg.ClickIDParams
	if len(params) == 0 {
		params = DefaultClickIDParams
	}
	referrers := cfg.AllowedReferrers
	if len(referrers) == 0 {
		referrers = DefaultAllowedReferrers
	}
	return &Validator{
		clickIDParams:    params,
		allowedReferrers: referrers,
		bypassParam:      cfg.BypassParam,
	}
}

// Validate classifies the request. All three checks must hold for a pass;
// the verdict carries the first failing check for observability.
func (v *Validator) Validate(ctx *requestctx.ClickContext) Verdict {
	if ctx == nil {
		return Verdict{Pass: false, FailedCheck: CheckMobile}
	}

	// Explicit QA bypass, never default-on.
	if v.bypassParam != "" && ctx.QueryValue(v.bypassParam) != "" {
		return Verdict{Pass: true, Bypassed: true}
	}

	if ctx.Device() != requestctx.DeviceMobile {
		return Verdict{Pass: false, FailedCheck: CheckMobile}
	}

	if !v.hasClickID(ctx) {
		return Verdict{Pass: false, FailedCheck: CheckClickID}
	}

	if !v.referrerAllowed(ctx.Referrer) {
		return Verdict{Pass: false, FailedCheck: CheckReferrer}
	}

	return Verdict{Pass: true}
}

func (v *Validator) hasClickID(ctx *requestctx.ClickContext) bool {
	for _, param := range v.clickIDParams {
		if strings.TrimSpace(ctx.QueryValue(param)) != "" {
			return true
		}
	}
	return false
}

// referrerAllowed accepts an empty referrer (in-app webviews often strip it)
// or a referrer whose host exactly matches or is a subdomain of an allowed
// platform domain.
func (v *Validator) referrerAllowed(referrer string) bool {
	if strings.TrimSpace(referrer) == "" {
		return true
	}

	parsed, err := url.Parse(referrer)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		// Bare hostnames without a scheme parse into Path.
		host = strings.ToLower(strings.Split(parsed.Path, "/")[0])
	}
	if host == "" {
		return false
	}

	for _, allowed := range v.allowedReferrers {
		allowed = strings.ToLower(allowed)
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
