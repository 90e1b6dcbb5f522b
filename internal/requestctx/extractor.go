// Package requestctx normalizes an inbound HTTP request into the canonical
// decision input consumed by the scoring, cloaking, and routing packages.
//
// Extraction never fails: fields that cannot be derived from the request are
// left empty and downstream components degrade accordingly. Geo attributes are
// supplied by the edge network as headers; this package does no geo-IP lookups.
package requestctx

import (
	"fmt"
	"hash/fnv"
	"net"
	"net/http"
	"strings"
	"time"
)

// DeviceClass identifies the coarse device category derived from the user agent.
type DeviceClass string

const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceDesktop DeviceClass = "desktop"
	DeviceUnknown DeviceClass = "unknown"
)

// ClickContext is the canonical, immutable snapshot of one inbound click.
// All string matching downstream is case-insensitive, so values are kept
// as received and lowered at comparison time.
type ClickContext struct {
	IP          string            `json:"ip"`
	UserAgent   string            `json:"user_agent"`
	Referrer    string            `json:"referrer"`
	Query       map[string]string `json:"query"`
	Country     string            `json:"country"`
	Region      string            `json:"region"`
	City        string            `json:"city"`
	Timezone    string            `json:"timezone"`
	Fingerprint string            `json:"fingerprint"`
	ReceivedAt  time.Time         `json:"received_at"`
}

// mobileTokens are user-agent substrings indicating a mobile OS (lowercase).
var mobileTokens = []string{
	"android", "iphone", "ipad", "ipod", "mobile",
	"windows phone", "blackberry", "opera mini", "opera mobi",
}

// osTokens maps a canonical OS name to its user-agent markers (lowercase).
// Order matters: more specific tokens are checked first.
var osTokens = []struct {
	name   string
	tokens []string
}{
	{"ios", []string{"iphone", "ipad", "ipod"}},
	{"android", []string{"android"}},
	{"windows", []string{"windows nt", "windows phone"}},
	{"macos", []string{"macintosh", "mac os x"}},
	{"linux", []string{"linux", "x11"}},
}

// FromHTTP builds a ClickContext from an inbound request.
func FromHTTP(r *http.Request) *ClickContext {
	ctx := &ClickContext{
		IP:         clientIP(r),
		UserAgent:  r.UserAgent(),
		Referrer:   r.Referer(),
		Query:      flattenQuery(r),
		Country:    geoHeader(r, "CF-IPCountry", "X-Geo-Country"),
		Region:     geoHeader(r, "X-Geo-Region"),
		City:       geoHeader(r, "X-Geo-City"),
		Timezone:   geoHeader(r, "X-Geo-Timezone"),
		ReceivedAt: time.Now().UTC(),
	}
	ctx.Fingerprint = fingerprint(ctx.IP, ctx.UserAgent)
	return ctx
}

// QueryValue returns the named query parameter or "".
func (c *ClickContext) QueryValue(name string) string {
	if c.Query == nil {
		return ""
	}
	return c.Query[name]
}

// Device classifies the user agent into a coarse device category.
func (c *ClickContext) Device() DeviceClass {
	ua := strings.ToLower(c.UserAgent)
	if ua == "" {
		return DeviceUnknown
	}
	for _, token := range mobileTokens {
		if strings.Contains(ua, token) {
			return DeviceMobile
		}
	}
	return DeviceDesktop
}

// OS returns the canonical operating system name, or "" when unrecognized.
func (c *ClickContext) OS() string {
	ua := strings.ToLower(c.UserAgent)
	if ua == "" {
		return ""
	}
	for _, entry := range osTokens {
		for _, token := range entry.tokens {
			if strings.Contains(ua, token) {
				return entry.name
			}
		}
	}
	return ""
}

// clientIP resolves the client address with proxy-header precedence:
// X-Forwarded-For (first hop), then X-Real-IP, then the socket address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return strings.TrimSpace(rip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func flattenQuery(r *http.Request) map[string]string {
	values := r.URL.Query()
	if len(values) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			flat[key] = vals[0]
		}
	}
	return flat
}

func geoHeader(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := r.Header.Get(name); v != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// fingerprint derives a stable per-visitor token from IP and user agent.
func fingerprint(ip, ua string) string {
	h := fnv.New64a()
	h.Write([]byte(ip))
	h.Write([]byte{'|'})
	h.Write([]byte(ua))
	return fmt.Sprintf("%016x", h.Sum64())
}
