// Package routing implements the click-time targeting and redirect decision
// engine. Given a snapshot of a routable entity (a split link or an ad-launch
// variant) and a normalized request context, it deterministically applies the
// entity lifecycle gate, cloak validation, first-match-wins targeting rules,
// and weighted random selection to produce exactly one destination URL plus a
// decision record.
//
// The engine holds no mutable state on the decision path: every invocation
// receives the full entity snapshot and returns synchronously, so concurrent
// requests need no coordination. Persistence of decisions and counters is
// delegated to a Recorder collaborator invoked fire-and-forget.
//
// Example usage:
//
//	orch := routing.NewOrchestrator(routing.OrchestratorConfig{
//		Validator: cloak.NewValidator(cloak.Config{}),
//		Recorder:  recorder,
//	})
//
//	decision, err := orch.Decide(entity, requestctx.FromHTTP(r))
//	if err != nil {
//		// NotFound / Unresolvable handled by the caller
//	}
//	http.Redirect(w, r, decision.URL, http.StatusFound)
package routing

import (
	"time"

	"click-router/internal/requestctx"
)

// RoutingMode selects the decision pipeline for an entity. The mode is fixed
// at authoring time, never inferred from which fields happen to be populated.
type RoutingMode string

const (
	// ModeSplit is a plain weighted split test: rules, then weighted selection.
	ModeSplit RoutingMode = "split"
	// ModeCloak gates traffic through ad-compliance validation before routing.
	ModeCloak RoutingMode = "cloak"
)

// Status is the entity lifecycle state. Only active entities participate in
// routing; every other status resolves unconditionally to the safe destination.
type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusExpired  Status = "expired"
	StatusDisabled Status = "disabled"
)

// Decision tags describing which terminal state produced the chosen URL.
const (
	TagDisabled = "disabled" // status != active
	TagExpired  = "expired"  // expiry reached
	TagCapped   = "capped"   // click limit reached
	TagBlocked  = "blocked"  // cloak validation failed
	TagRule     = "rule"     // targeting rule matched
	TagWeighted = "weighted" // weighted random selection
	TagFallback = "fallback" // no destination survived tag filtering
)

// CounterKind is the aggregate counter bucket for a decision.
type CounterKind string

const (
	CounterPassed   CounterKind = "passed"
	CounterBlocked  CounterKind = "blocked"
	CounterDisabled CounterKind = "disabled"
)

// RoutableEntity is the addressable routing configuration resolved by alias
// or campaign/launch key at request time. The engine treats it as an immutable
// snapshot: configuration is authored and mutated elsewhere.
type RoutableEntity struct {
	ID    string      `json:"id"`
	Alias string      `json:"alias"` // short code or "campaign:launch" composite key
	Mode  RoutingMode `json:"mode"`

	Status     Status     `json:"status"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ClickLimit int64      `json:"click_limit,omitempty"` // 0 = unlimited
	ClickCount int64      `json:"click_count"`

	// Destinations must contain at least one entry while the entity is active.
	Destinations []Destination   `json:"destinations"`
	Rules        []TargetingRule `json:"rules,omitempty"`

	// SafeURL receives blocked, expired, capped, and disabled traffic.
	SafeURL string `json:"safe_url,omitempty"`
	// PrimaryURL is the last-resort destination when everything else is empty.
	PrimaryURL string `json:"primary_url"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Destination is one candidate URL with a selection weight and exact-match
// targeting tags (geo/device/OS keys such as "country", "device", "os").
type Destination struct {
	ID     string            `json:"id"`
	URL    string            `json:"url"` // https only, validated at authoring time
	Weight float64           `json:"weight"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// TargetingRule routes matching requests to a fixed destination. Rules are
// evaluated in list order; the list order IS the priority.
type TargetingRule struct {
	ID            string          `json:"id"`
	Conditions    []RuleCondition `json:"conditions"` // AND-combined
	DestinationID string          `json:"destination_id"`
}

// RuleCondition compares one request attribute against a literal or set.
//
// Attributes: country, region, city, device, os, referrer, user_agent, ip,
// query (Field names the parameter).
// Operators: eq, ne, in, contains, regex, cidr.
// String comparison is case-insensitive.
type RuleCondition struct {
	Attribute string   `json:"attribute"`
	Field     string   `json:"field,omitempty"` // for query conditions
	Operator  string   `json:"operator"`
	Value     string   `json:"value,omitempty"`
	Values    []string `json:"values,omitempty"` // for the in operator
}

// Decision is the outcome of one routing invocation, handed to the Recorder
// before the HTTP response is issued.
type Decision struct {
	DecisionID    string                   `json:"decision_id"`
	EntityID      string                   `json:"entity_id"`
	URL           string                   `json:"url"`
	Tag           string                   `json:"tag"`
	MatchedRuleID string                   `json:"matched_rule_id,omitempty"`
	FailedCheck   string                   `json:"failed_check,omitempty"` // cloak block reason
	FraudScore    int                      `json:"fraud_score"`
	IsBot         bool                     `json:"is_bot"`
	Fingerprint   string                   `json:"fingerprint"`
	Context       *requestctx.ClickContext `json:"context,omitempty"`
	DecidedAt     time.Time                `json:"decided_at"`
}

// Recorder receives decisions and lifecycle signals fire-and-forget. Every
// method must return promptly and must never fail the routing path; dropped
// or duplicated records are acceptable (at-least-once, eventually consistent).
type Recorder interface {
	// Record persists a click decision with its request metadata.
	Record(decision *Decision)

	// IncrementCounters bumps the aggregate traffic counter for an entity.
	IncrementCounters(entityID string, kind CounterKind)

	// MarkExpired lazily persists the active to expired transition
	// detected during routing.
	MarkExpired(entityID string)
}

// NopRecorder discards everything. Useful for tests and dry runs.
type NopRecorder struct{}

func (NopRecorder) Record(*Decision)                      {}
func (NopRecorder) IncrementCounters(string, CounterKind) {}
func (NopRecorder) MarkExpired(string)                    {}
