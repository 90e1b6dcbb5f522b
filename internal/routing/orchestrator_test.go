package routing

import (
	"math/rand"
	"testing"
	"time"

	"click-router/internal/cloak"
	"click-router/internal/requestctx"
)

// captureRecorder records everything it receives for assertions.
type captureRecorder struct {
	decisions []*Decision
	counters  []CounterKind
	expired   []string
}

func (r *captureRecorder) Record(d *Decision) { r.decisions = append(r.decisions, d) }
func (r *captureRecorder) IncrementCounters(_ string, kind CounterKind) {
	r.counters = append(r.counters, kind)
}
func (r *captureRecorder) MarkExpired(id string) { r.expired = append(r.expired, id) }

// panicValidator simulates a broken cloak stage.
type panicValidator struct{}

func (panicValidator) Validate(*requestctx.ClickContext) cloak.Verdict { panic("boom") }

func mobileAdContext() *requestctx.ClickContext {
	return &requestctx.ClickContext{
		IP:          "203.0.113.7",
		UserAgent:   "Mozilla/5.0 (iPhone; CPU iPhone OS 16_5 like Mac OS X) Safari/604.1",
		Referrer:    "https://www.tiktok.com/",
		Country:     "US",
		Query:       map[string]string{"ttclid": "E.abc"},
		Fingerprint: "fp-1",
	}
}

func desktopContext() *requestctx.ClickContext {
	return &requestctx.ClickContext{
		IP:        "203.0.113.8",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/119.0",
		Country:   "US",
	}
}

func cloakEntity() *RoutableEntity {
	return &RoutableEntity{
		ID:     "ent-1",
		Alias:  "camp1:1",
		Mode:   ModeCloak,
		Status: StatusActive,
		Destinations: []Destination{
			{ID: "offer-a", URL: "https://offer-a.example", Weight: 0.9},
			{ID: "offer-b", URL: "https://offer-b.example", Weight: 0.1},
		},
		SafeURL:    "https://safe.example",
		PrimaryURL: "https://primary.example",
	}
}

func splitEntity() *RoutableEntity {
	e := cloakEntity()
	e.Mode = ModeSplit
	return e
}

func newTestOrchestrator(rec Recorder) *Orchestrator {
	return NewOrchestrator(OrchestratorConfig{
		Selector:  NewSelectorWithSource(rand.NewSource(1)),
		Validator: cloak.NewValidator(cloak.Config{}),
		Recorder:  rec,
	})
}

func TestDecide_ScenarioA_CloakPassWeighted(t *testing.T) {
	rec := &captureRecorder{}
	orch := newTestOrchestrator(rec)

	decision, err := orch.Decide(cloakEntity(), mobileAdContext())
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	if decision.Tag != TagWeighted {
		t.Errorf("Tag = %s, want weighted", decision.Tag)
	}
	if decision.URL != "https://offer-a.example" && decision.URL != "https://offer-b.example" {
		t.Errorf("URL = %s, want an offer destination", decision.URL)
	}
	if len(rec.decisions) != 1 {
		t.Fatalf("recorded %d decisions, want 1", len(rec.decisions))
	}
	if rec.counters[0] != CounterPassed {
		t.Errorf("counter kind = %s, want passed", rec.counters[0])
	}
}

func TestDecide_ScenarioB_DesktopBlocked(t *testing.T) {
	rec := &captureRecorder{}
	orch := newTestOrchestrator(rec)

	decision, err := orch.Decide(cloakEntity(), desktopContext())
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	if decision.Tag != TagBlocked {
		t.Errorf("Tag = %s, want blocked", decision.Tag)
	}
	if decision.URL != "https://safe.example" {
		t.Errorf("URL = %s, want safe destination", decision.URL)
	}
	if decision.FailedCheck != cloak.CheckMobile {
		t.Errorf("FailedCheck = %s, want mobile-check", decision.FailedCheck)
	}
	if rec.counters[0] != CounterBlocked {
		t.Errorf("counter kind = %s, want blocked", rec.counters[0])
	}
}

func TestDecide_ScenarioC_ExpiredStatusShortCircuits(t *testing.T) {
	rec := &captureRecorder{}
	orch := newTestOrchestrator(rec)
	entity := cloakEntity()
	entity.Status = StatusExpired

	decision, err := orch.Decide(entity, mobileAdContext())
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	if decision.Tag != TagExpired {
		t.Errorf("Tag = %s, want expired", decision.Tag)
	}
	if decision.URL != "https://safe.example" {
		t.Errorf("URL = %s, want safe destination", decision.URL)
	}
	// Scorer never ran: fraud fields stay zero even for pristine traffic.
	if decision.FraudScore != 0 || decision.IsBot {
		t.Error("scorer must not run for lifecycle terminals")
	}
	if rec.counters[0] != CounterDisabled {
		t.Errorf("counter kind = %s, want disabled", rec.counters[0])
	}
}

func TestDecide_ScenarioD_RuleBypassesWeighting(t *testing.T) {
	rec := &captureRecorder{}
	orch := newTestOrchestrator(rec)
	entity := splitEntity()
	entity.Destinations = append(entity.Destinations, Destination{ID: "us-dest", URL: "https://us.example", Weight: 0})
	entity.Rules = []TargetingRule{{
		ID:            "us-rule",
		Conditions:    []RuleCondition{{Attribute: "country", Operator: "eq", Value: "US"}},
		DestinationID: "us-dest",
	}}

	decision, err := orch.Decide(entity, mobileAdContext())
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	if decision.Tag != TagRule {
		t.Errorf("Tag = %s, want rule", decision.Tag)
	}
	if decision.MatchedRuleID != "us-rule" {
		t.Errorf("MatchedRuleID = %s, want us-rule", decision.MatchedRuleID)
	}
	if decision.URL != "https://us.example" {
		t.Errorf("URL = %s, want rule destination", decision.URL)
	}
}

func TestDecide_ClickCapBoundary(t *testing.T) {
	orch := newTestOrchestrator(&captureRecorder{})

	// One below the cap: routes normally.
	entity := splitEntity()
	entity.ClickLimit = 10
	entity.ClickCount = 9
	decision, err := orch.Decide(entity, mobileAdContext())
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Tag == TagCapped {
		t.Error("clickCount == clickLimit-1 must route normally")
	}

	// At the cap: safe destination.
	entity = splitEntity()
	entity.ClickLimit = 10
	entity.ClickCount = 10
	decision, err = orch.Decide(entity, mobileAdContext())
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Tag != TagCapped || decision.URL != "https://safe.example" {
		t.Errorf("at cap: tag=%s url=%s, want capped/safe", decision.Tag, decision.URL)
	}
}

func TestDecide_ExpiryBoundaryInclusive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &captureRecorder{}
	orch := NewOrchestrator(OrchestratorConfig{
		Recorder: rec,
		Now:      func() time.Time { return now },
	})

	entity := splitEntity()
	expiry := now // exactly now counts as expired
	entity.ExpiresAt = &expiry

	decision, err := orch.Decide(entity, mobileAdContext())
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Tag != TagExpired {
		t.Errorf("Tag = %s, want expired at exact boundary", decision.Tag)
	}
	if len(rec.expired) != 1 || rec.expired[0] != entity.ID {
		t.Errorf("MarkExpired calls = %v, want [%s]", rec.expired, entity.ID)
	}

	// One second in the future: still active.
	rec2 := &captureRecorder{}
	orch2 := NewOrchestrator(OrchestratorConfig{
		Recorder: rec2,
		Now:      func() time.Time { return now },
	})
	entity2 := splitEntity()
	future := now.Add(time.Second)
	entity2.ExpiresAt = &future

	decision, err = orch2.Decide(entity2, mobileAdContext())
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Tag == TagExpired {
		t.Error("entity expiring in the future must route normally")
	}
	if len(rec2.expired) != 0 {
		t.Error("MarkExpired must not fire before expiry")
	}
}

func TestDecide_IdempotentRuleAndCloakOutcome(t *testing.T) {
	orch := newTestOrchestrator(&captureRecorder{})
	entity := cloakEntity()
	entity.Rules = []TargetingRule{{
		ID:            "us-rule",
		Conditions:    []RuleCondition{{Attribute: "country", Operator: "eq", Value: "US"}},
		DestinationID: "offer-a",
	}}
	ctx := mobileAdContext()

	first, err := orch.Decide(entity, ctx)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := orch.Decide(entity, ctx)
		if err != nil {
			t.Fatalf("Decide() error = %v", err)
		}
		if again.MatchedRuleID != first.MatchedRuleID || again.Tag != first.Tag {
			t.Fatal("matched rule / cloak outcome changed across identical invocations")
		}
	}
}

func TestDecide_TagFilterFallsBackToFullList(t *testing.T) {
	orch := newTestOrchestrator(&captureRecorder{})
	entity := splitEntity()
	// Every destination is tagged for a country the request is not from.
	entity.Destinations = []Destination{
		{ID: "de-a", URL: "https://de-a.example", Weight: 1, Tags: map[string]string{"country": "DE"}},
		{ID: "de-b", URL: "https://de-b.example", Weight: 1, Tags: map[string]string{"country": "DE"}},
	}

	decision, err := orch.Decide(entity, mobileAdContext())
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Tag != TagFallback {
		t.Errorf("Tag = %s, want fallback", decision.Tag)
	}
	if decision.URL != "https://de-a.example" && decision.URL != "https://de-b.example" {
		t.Errorf("URL = %s, want a full-list destination", decision.URL)
	}
}

func TestDecide_NoDestinationsUsesPrimaryURL(t *testing.T) {
	orch := newTestOrchestrator(&captureRecorder{})
	entity := splitEntity()
	entity.Destinations = nil

	decision, err := orch.Decide(entity, mobileAdContext())
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.URL != "https://primary.example" || decision.Tag != TagFallback {
		t.Errorf("got tag=%s url=%s, want fallback/primary", decision.Tag, decision.URL)
	}
}

func TestDecide_Unresolvable(t *testing.T) {
	orch := newTestOrchestrator(&captureRecorder{})
	entity := splitEntity()
	entity.Destinations = nil
	entity.PrimaryURL = ""
	entity.SafeURL = ""

	if _, err := orch.Decide(entity, mobileAdContext()); err != ErrUnresolvable {
		t.Errorf("error = %v, want ErrUnresolvable", err)
	}

	// Same for a terminal state with no safe or primary URL.
	entity = splitEntity()
	entity.Status = StatusPaused
	entity.SafeURL = ""
	entity.PrimaryURL = ""
	if _, err := orch.Decide(entity, mobileAdContext()); err != ErrUnresolvable {
		t.Errorf("terminal error = %v, want ErrUnresolvable", err)
	}
}

func TestDecide_NilEntity(t *testing.T) {
	orch := newTestOrchestrator(&captureRecorder{})
	if _, err := orch.Decide(nil, mobileAdContext()); err != ErrEntityNotFound {
		t.Errorf("error = %v, want ErrEntityNotFound", err)
	}
}

func TestDecide_ValidatorPanicDegradesToBlock(t *testing.T) {
	rec := &captureRecorder{}
	orch := NewOrchestrator(OrchestratorConfig{
		Validator: panicValidator{},
		Recorder:  rec,
	})

	decision, err := orch.Decide(cloakEntity(), mobileAdContext())
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	// A broken validator must not leak the paid path.
	if decision.Tag != TagBlocked || decision.URL != "https://safe.example" {
		t.Errorf("got tag=%s url=%s, want blocked/safe", decision.Tag, decision.URL)
	}
}

func TestDecide_MissingValidatorBlocksCloakTraffic(t *testing.T) {
	orch := NewOrchestrator(OrchestratorConfig{Recorder: &captureRecorder{}})

	decision, err := orch.Decide(cloakEntity(), mobileAdContext())
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Tag != TagBlocked {
		t.Errorf("Tag = %s, want blocked when no validator is wired", decision.Tag)
	}
}

func TestDecide_RuleWithMissingDestinationDegradesToWeighted(t *testing.T) {
	orch := newTestOrchestrator(&captureRecorder{})
	entity := splitEntity()
	entity.Rules = []TargetingRule{{
		ID:            "dangling",
		Conditions:    []RuleCondition{{Attribute: "country", Operator: "eq", Value: "US"}},
		DestinationID: "no-such-destination",
	}}

	decision, err := orch.Decide(entity, mobileAdContext())
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Tag != TagWeighted {
		t.Errorf("Tag = %s, want weighted after dangling rule", decision.Tag)
	}
	if decision.MatchedRuleID != "" {
		t.Error("dangling rule must not be reported as matched")
	}
}

func TestDecide_SplitModeSkipsCloak(t *testing.T) {
	orch := newTestOrchestrator(&captureRecorder{})

	// Desktop traffic would be blocked in cloak mode; split mode routes it.
	decision, err := orch.Decide(splitEntity(), desktopContext())
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Tag == TagBlocked {
		t.Error("split mode must not apply cloak validation")
	}
}
