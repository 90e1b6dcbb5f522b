package routing

import (
	"time"

	"github.com/google/uuid"

	"click-router/internal/cloak"
	"click-router/internal/common/logging"
	"click-router/internal/fraud"
	"click-router/internal/requestctx"
)

// CloakValidator classifies a request as pass or block in ad-cloak mode.
type CloakValidator interface {
	Validate(ctx *requestctx.ClickContext) cloak.Verdict
}

// Orchestrator drives the per-request decision state machine. It is stateless
// with respect to routing logic: each call receives a full entity snapshot and
// returns synchronously, so it is safe for concurrent use.
type Orchestrator struct {
	evaluator   *RuleEvaluator
	selector    *Selector
	validator   CloakValidator
	recorder    Recorder
	splitScorer *fraud.Scorer
	cloakScorer *fraud.Scorer
	logger      logging.Logger
	now         func() time.Time
}

// OrchestratorConfig configures an Orchestrator. Zero-value fields get
// working defaults; only Validator is required for cloak-mode entities.
type OrchestratorConfig struct {
	Evaluator *RuleEvaluator
	Selector  *Selector
	Validator CloakValidator
	Recorder  Recorder
	Logger    logging.Logger
	Now       func() time.Time
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	o := &Orchestrator{
		evaluator: cfg.Evaluator,
		selector:  cfg.Selector,
		validator: cfg.Validator,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
		now:       cfg.Now,
		// Organic split-link traffic normally arrives from a page; paid
		// in-app traffic routinely strips the referrer.
		splitScorer: fraud.NewScorer(true),
		cloakScorer: fraud.NewScorer(false),
	}
	if o.evaluator == nil {
		o.evaluator = NewRuleEvaluator()
	}
	if o.selector == nil {
		o.selector = NewSelector()
	}
	if o.recorder == nil {
		o.recorder = NopRecorder{}
	}
	if o.logger == nil {
		o.logger = logging.GetGlobalLogger()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Decide runs the lifecycle gate, cloak validation, rule evaluation, and
// weighted selection for one request, in that order, first applicable wins:
//
//  1. status != active: safe destination
//  2. expiry reached (inclusive): mark expired, safe destination
//  3. click limit reached: safe destination
//  4. cloak block (cloak mode): safe destination
//  5. first matching rule: rule destination
//  6. tag-filtered weighted pick: chosen destination
//  7. unfiltered weighted pick, then primary URL as last resort
//
// Every terminal hands a Decision to the Recorder before returning. Failures
// inside scoring, evaluation, or validation degrade (skip the stage) rather
// than failing the request; the only returned errors are ErrEntityNotFound
// and ErrUnresolvable.
func (o *Orchestrator) Decide(entity *RoutableEntity, ctx *requestctx.ClickContext) (*Decision, error) {
	if entity == nil {
		return nil, ErrEntityNotFound
	}

	now := o.now()
	decision := &Decision{
		DecisionID: uuid.NewString(),
		EntityID:   entity.ID,
		Context:    ctx,
		DecidedAt:  now.UTC(),
	}
	if ctx != nil {
		decision.Fingerprint = ctx.Fingerprint
	}

	// 1. Lifecycle: only active entities route.
	if entity.Status != StatusActive {
		tag := TagDisabled
		if entity.Status == StatusExpired {
			tag = TagExpired
		}
		return o.terminate(decision, entity, tag, CounterDisabled)
	}

	// 2. Lazy expiration, inclusive boundary.
	if entity.ExpiresAt != nil && !now.Before(*entity.ExpiresAt) {
		o.recorder.MarkExpired(entity.ID)
		return o.terminate(decision, entity, TagExpired, CounterDisabled)
	}

	// 3. Click cap.
	if entity.ClickLimit > 0 && entity.ClickCount >= entity.ClickLimit {
		return o.terminate(decision, entity, TagCapped, CounterDisabled)
	}

	o.score(decision, entity.Mode, ctx)

	// 4. Cloak validation.
	if entity.Mode == ModeCloak {
		verdict := o.validate(ctx)
		if !verdict.Pass {
			decision.FailedCheck = verdict.FailedCheck
			return o.terminate(decision, entity, TagBlocked, CounterBlocked)
		}
	}

	// 5. Targeting rules, first match wins.
	if matched := o.evaluate(entity.Rules, ctx); matched != nil {
		if dest := findDestination(entity.Destinations, matched.DestinationID); dest != nil {
			decision.MatchedRuleID = matched.ID
			decision.URL = dest.URL
			decision.Tag = TagRule
			return o.emit(decision, CounterPassed)
		}
		// Rule references a missing destination: configuration defect,
		// degrade to weighted selection.
		o.logger.Warn("matched rule references unknown destination",
			logging.Field{Key: "entity_id", Value: entity.ID},
			logging.Field{Key: "rule_id", Value: matched.ID},
		)
	}

	// 6. Weighted selection over tag-compatible destinations.
	candidates := FilterByTags(entity.Destinations, ctx)
	tag := TagWeighted
	if len(candidates) == 0 {
		// 7. Nothing survived the tag filter: fall back to the full list.
		candidates = entity.Destinations
		tag = TagFallback
	}

	if chosen, err := o.selector.Select(candidates); err == nil {
		decision.URL = chosen.URL
		decision.Tag = tag
		return o.emit(decision, CounterPassed)
	}

	// No destinations at all: primary URL is the last resort.
	if entity.PrimaryURL == "" {
		o.logger.Error("entity unresolvable", ErrUnresolvable,
			logging.Field{Key: "entity_id", Value: entity.ID},
		)
		return nil, ErrUnresolvable
	}
	decision.URL = entity.PrimaryURL
	decision.Tag = TagFallback
	return o.emit(decision, CounterPassed)
}

// terminate resolves a lifecycle or cloak terminal to the safe destination.
func (o *Orchestrator) terminate(decision *Decision, entity *RoutableEntity, tag string, kind CounterKind) (*Decision, error) {
	url := entity.SafeURL
	if url == "" {
		url = entity.PrimaryURL
	}
	if url == "" {
		o.logger.Error("entity unresolvable", ErrUnresolvable,
			logging.Field{Key: "entity_id", Value: entity.ID},
			logging.Field{Key: "tag", Value: tag},
		)
		return nil, ErrUnresolvable
	}

	decision.URL = url
	decision.Tag = tag
	return o.emit(decision, kind)
}

// emit hands the decision to the recorder fire-and-forget and returns it.
func (o *Orchestrator) emit(decision *Decision, kind CounterKind) (*Decision, error) {
	o.recorder.Record(decision)
	o.recorder.IncrementCounters(decision.EntityID, kind)
	return decision, nil
}

// score fills fraud fields, degrading to zero values if the scorer fails.
func (o *Orchestrator) score(decision *Decision, mode RoutingMode, ctx *requestctx.ClickContext) {
	defer o.recoverStage("fraud scorer")

	scorer := o.splitScorer
	if mode == ModeCloak {
		scorer = o.cloakScorer
	}
	result := scorer.Score(ctx)
	decision.FraudScore = result.FraudScore
	decision.IsBot = result.IsBot
}

// validate runs the cloak validator, degrading to block when it panics or is
// missing (a cloak entity without a validator must not leak the paid path).
func (o *Orchestrator) validate(ctx *requestctx.ClickContext) (verdict cloak.Verdict) {
	verdict = cloak.Verdict{Pass: false, FailedCheck: cloak.CheckMobile}
	defer o.recoverStage("cloak validator")

	if o.validator == nil {
		return verdict
	}
	verdict = o.validator.Validate(ctx)
	return verdict
}

// evaluate runs the rule evaluator, degrading to no-match on panic.
func (o *Orchestrator) evaluate(rules []TargetingRule, ctx *requestctx.ClickContext) (matched *TargetingRule) {
	defer o.recoverStage("rule evaluator")
	return o.evaluator.Evaluate(rules, ctx)
}

func (o *Orchestrator) recoverStage(stage string) {
	if r := recover(); r != nil {
		o.logger.Warn("decision stage degraded",
			logging.Field{Key: "stage", Value: stage},
			logging.Field{Key: "panic", Value: r},
		)
	}
}

func findDestination(destinations []Destination, id string) *Destination {
	if id == "" {
		return nil
	}
	for i := range destinations {
		if destinations[i].ID == id {
			return &destinations[i]
		}
	}
	return nil
}
