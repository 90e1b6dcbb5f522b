package routing

import (
	"net"
	"regexp"
	"strings"
	"sync"

	"click-router/internal/requestctx"
)

// RuleEvaluator matches ordered targeting rules against a click context.
// Rules are compiled once (regex compilation, literal lowering, set indexing)
// and cached by rule ID so the hot path pays no per-request compilation cost.
type RuleEvaluator struct {
	compiled map[string]*compiledRule
	mu       sync.RWMutex
}

type compiledRule struct {
	conditions []*compiledCondition
}

type compiledCondition struct {
	condition    RuleCondition
	regex        *regexp.Regexp      // nil when the configured pattern is invalid
	network      *net.IPNet          // for the cidr operator
	valueSet     map[string]struct{} // lowered values for the in operator
	loweredValue string
}

func NewRuleEvaluator() *RuleEvaluator {
	return &RuleEvaluator{
		compiled: make(map[string]*compiledRule),
	}
}

// Evaluate iterates rules in list order, ANDs each rule's conditions, and
// returns the first rule where all conditions hold, or nil when none match.
// For a fixed rule list and context the result is always identical.
func (re *RuleEvaluator) Evaluate(rules []TargetingRule, ctx *requestctx.ClickContext) *TargetingRule {
	if ctx == nil {
		return nil
	}

	for i := range rules {
		rule := &rules[i]
		if re.matches(rule, ctx) {
			return rule
		}
	}
	return nil
}

func (re *RuleEvaluator) matches(rule *TargetingRule, ctx *requestctx.ClickContext) bool {
	if len(rule.Conditions) == 0 {
		return false
	}

	compiled := re.getCompiled(rule)
	for _, cond := range compiled.conditions {
		if !evaluateCondition(cond, ctx) {
			return false
		}
	}
	return true
}

func (re *RuleEvaluator) getCompiled(rule *TargetingRule) *compiledRule {
	// A rule without an ID has no stable cache key; compile it per
	// evaluation so it can never collide with another entity's rules.
	if rule.ID == "" {
		return compileRule(rule)
	}

	re.mu.RLock()
	compiled, exists := re.compiled[rule.ID]
	re.mu.RUnlock()

	if exists {
		return compiled
	}

	compiled = compileRule(rule)
	re.mu.Lock()
	re.compiled[rule.ID] = compiled
	re.mu.Unlock()
	return compiled
}

// Invalidate drops cached compilations; call after rule configuration changes.
func (re *RuleEvaluator) Invalidate() {
	re.mu.Lock()
	defer re.mu.Unlock()
	re.compiled = make(map[string]*compiledRule)
}

func compileRule(rule *TargetingRule) *compiledRule {
	compiled := &compiledRule{
		conditions: make([]*compiledCondition, 0, len(rule.Conditions)),
	}

	for _, cond := range rule.Conditions {
		cc := &compiledCondition{
			condition:    cond,
			loweredValue: strings.ToLower(cond.Value),
		}

		switch cond.Operator {
		case "regex":
			// Invalid regex configuration is treated as never-matching,
			// not as a fatal error.
			if rx, err := regexp.Compile(cond.Value); err == nil {
				cc.regex = rx
			}
		case "cidr":
			if _, network, err := net.ParseCIDR(cond.Value); err == nil {
				cc.network = network
			}
		case "in":
			cc.valueSet = make(map[string]struct{}, len(cond.Values))
			for _, v := range cond.Values {
				cc.valueSet[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
			}
			// Authors sometimes put a comma-separated list in Value.
			if len(cond.Values) == 0 && cond.Value != "" {
				for _, v := range strings.Split(cond.Value, ",") {
					cc.valueSet[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
				}
			}
		}

		compiled.conditions = append(compiled.conditions, cc)
	}

	return compiled
}

func evaluateCondition(cc *compiledCondition, ctx *requestctx.ClickContext) bool {
	testValue, ok := extractAttribute(cc.condition.Attribute, cc.condition.Field, ctx)
	if !ok {
		return false
	}
	lowered := strings.ToLower(testValue)

	switch cc.condition.Operator {
	case "eq":
		return testValue != "" && lowered == cc.loweredValue

	case "ne":
		return lowered != cc.loweredValue

	case "contains":
		return testValue != "" && strings.Contains(lowered, cc.loweredValue)

	case "in":
		if testValue == "" {
			return false
		}
		_, found := cc.valueSet[lowered]
		return found

	case "regex":
		if cc.regex == nil || testValue == "" {
			return false
		}
		return cc.regex.MatchString(testValue)

	case "cidr":
		if cc.network == nil {
			return false
		}
		ip := net.ParseIP(testValue)
		if ip == nil {
			return false
		}
		return cc.network.Contains(ip)

	default:
		return false
	}
}

// extractAttribute returns the request value for a condition attribute. The
// second return is false for unknown attributes, which makes the owning rule
// a non-match rather than an error.
func extractAttribute(attribute, field string, ctx *requestctx.ClickContext) (string, bool) {
	switch attribute {
	case "country":
		return ctx.Country, true
	case "region":
		return ctx.Region, true
	case "city":
		return ctx.City, true
	case "device":
		return string(ctx.Device()), true
	case "os":
		return ctx.OS(), true
	case "referrer":
		return ctx.Referrer, true
	case "user_agent":
		return ctx.UserAgent, true
	case "ip":
		return ctx.IP, true
	case "query":
		if field == "" {
			return "", false
		}
		return ctx.QueryValue(field), true
	default:
		return "", false
	}
}
