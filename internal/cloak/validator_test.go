package cloak

import (
	"testing"

	"click-router/internal/requestctx"
)

const (
	mobileUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_5 like Mac OS X) Safari/604.1"
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/119.0"
)

func passingContext() *requestctx.ClickContext {
	return &requestctx.ClickContext{
		UserAgent: mobileUA,
		Referrer:  "https://www.tiktok.com/@someone",
		Query:     map[string]string{"ttclid": "E.abc123"},
	}
}

func TestValidate_AllConditionsPass(t *testing.T) {
	v := NewValidator(Config{})

	verdict := v.Validate(passingContext())

	if !verdict.Pass {
		t.Fatalf("expected pass, got block on %s", verdict.FailedCheck)
	}
	if verdict.FailedCheck != "" {
		t.Errorf("FailedCheck = %q, want empty", verdict.FailedCheck)
	}
}

func TestValidate_EmptyReferrerPasses(t *testing.T) {
	v := NewValidator(Config{})
	ctx := passingContext()
	ctx.Referrer = ""

	if verdict := v.Validate(ctx); !verdict.Pass {
		t.Errorf("empty referrer should pass, blocked on %s", verdict.FailedCheck)
	}
}

func TestValidate_FirstFailingReason(t *testing.T) {
	v := NewValidator(Config{})

	tests := []struct {
		name   string
		mutate func(*requestctx.ClickContext)
		want   string
	}{
		{
			name:   "desktop fails mobile check",
			mutate: func(c *requestctx.ClickContext) { c.UserAgent = desktopUA },
			want:   CheckMobile,
		},
		{
			name:   "missing click id",
			mutate: func(c *requestctx.ClickContext) { delete(c.Query, "ttclid") },
			want:   CheckClickID,
		},
		{
			name:   "blank click id",
			mutate: func(c *requestctx.ClickContext) { c.Query["ttclid"] = "  " },
			want:   CheckClickID,
		},
		{
			name:   "foreign referrer",
			mutate: func(c *requestctx.ClickContext) { c.Referrer = "https://news.ycombinator.com/" },
			want:   CheckReferrer,
		},
		{
			name: "desktop with foreign referrer reports mobile first",
			mutate: func(c *requestctx.ClickContext) {
				c.UserAgent = desktopUA
				c.Referrer = "https://news.ycombinator.com/"
			},
			want: CheckMobile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := passingContext()
			tt.mutate(ctx)

			verdict := v.Validate(ctx)
			if verdict.Pass {
				t.Fatal("expected block")
			}
			if verdict.FailedCheck != tt.want {
				t.Errorf("FailedCheck = %q, want %q", verdict.FailedCheck, tt.want)
			}
		})
	}
}

func TestValidate_ReferrerSuffixMatch(t *testing.T) {
	v := NewValidator(Config{})

	tests := []struct {
		referrer string
		pass     bool
	}{
		{"https://www.tiktok.com/", true},
		{"https://ads.tiktok.com/some/path", true},
		{"https://m.facebook.com/", true},
		{"https://eviltiktok.com/", false},
		{"https://tiktok.com.evil.net/", false},
		{"://bad url", false},
	}

	for _, tt := range tests {
		ctx := passingContext()
		ctx.Referrer = tt.referrer
		verdict := v.Validate(ctx)
		if verdict.Pass != tt.pass {
			t.Errorf("referrer %q: pass = %v, want %v (%s)", tt.referrer, verdict.Pass, tt.pass, verdict.FailedCheck)
		}
	}
}

func TestValidate_QABypass(t *testing.T) {
	ctx := &requestctx.ClickContext{
		UserAgent: desktopUA,
		Query:     map[string]string{"qa_pass": "1"},
	}

	// Bypass only works when explicitly configured.
	if verdict := NewValidator(Config{}).Validate(ctx); verdict.Pass {
		t.Error("bypass must not be default-on")
	}

	verdict := NewValidator(Config{BypassParam: "qa_pass"}).Validate(ctx)
	if !verdict.Pass || !verdict.Bypassed {
		t.Errorf("configured bypass should force pass, got %+v", verdict)
	}
}

func TestValidate_CustomClickIDParams(t *testing.T) {
	v := NewValidator(Config{ClickIDParams: []string{"xclid"}})

	ctx := passingContext() // carries ttclid, not xclid
	if verdict := v.Validate(ctx); verdict.Pass {
		t.Error("ttclid should not satisfy a validator configured for xclid")
	}

	ctx.Query["xclid"] = "abc"
	if verdict := v.Validate(ctx); !verdict.Pass {
		t.Errorf("xclid should pass, blocked on %s", verdict.FailedCheck)
	}
}

func TestValidate_NilContextBlocks(t *testing.T) {
	if verdict := NewValidator(Config{}).Validate(nil); verdict.Pass {
		t.Error("nil context must block")
	}
}
