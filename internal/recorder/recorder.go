// Package recorder persists routing decisions off the request path. Work is
// queued on a bounded channel and drained by background workers; when the
// queue is full the record is dropped and counted rather than blocking a
// redirect.
package recorder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"click-router/internal/common/logging"
	"click-router/internal/redis"
	"click-router/internal/routing"
	"click-router/internal/sinks"
	"click-router/internal/storage"
)

// fingerprintWindow bounds how long a visitor fingerprint counts as a
// distinct visitor in redis.
const fingerprintWindow = 24 * time.Hour

const opTimeout = 5 * time.Second

type jobKind int

const (
	jobRecord jobKind = iota
	jobCounter
	jobExpire
)

type job struct {
	kind     jobKind
	decision *routing.Decision
	entityID string
	counter  routing.CounterKind
}

type Config struct {
	QueueSize int
	Workers   int
}

// Recorder implements routing.Recorder. The redis client and sinks are
// optional; a nil dependency simply skips that fan-out leg.
type Recorder struct {
	store  storage.Storage
	redis  *redis.Client
	sinks  []sinks.Sink
	logger logging.Logger

	queue   chan job
	wg      sync.WaitGroup
	closed  chan struct{}
	once    sync.Once
	dropped int64
}

func New(store storage.Storage, redisClient *redis.Client, eventSinks []sinks.Sink, logger logging.Logger, cfg Config) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4096
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	r := &Recorder{
		store:  store,
		redis:  redisClient,
		sinks:  eventSinks,
		logger: logger.WithFields(logging.Field{Key: "component", Value: "recorder"}),
		queue:  make(chan job, cfg.QueueSize),
		closed: make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}

	return r
}

func (r *Recorder) Record(decision *routing.Decision) {
	if decision == nil {
		return
	}
	if decision.DecisionID == "" {
		decision.DecisionID = uuid.New().String()
	}
	r.enqueue(job{kind: jobRecord, decision: decision})
}

func (r *Recorder) IncrementCounters(entityID string, kind routing.CounterKind) {
	r.enqueue(job{kind: jobCounter, entityID: entityID, counter: kind})
}

func (r *Recorder) MarkExpired(entityID string) {
	r.enqueue(job{kind: jobExpire, entityID: entityID})
}

// Dropped reports how many records were discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	return atomic.LoadInt64(&r.dropped)
}

// Close stops accepting work, drains the queue, and waits for the workers.
// The queue channel itself is never closed: producers may still race a send
// against shutdown, and those late records are simply dropped.
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.closed)
	})
	r.wg.Wait()
}

func (r *Recorder) enqueue(j job) {
	select {
	case <-r.closed:
		return
	default:
	}

	select {
	case r.queue <- j:
	default:
		dropped := atomic.AddInt64(&r.dropped, 1)
		r.logger.Warn("decision queue full, record dropped",
			logging.Field{Key: "dropped_total", Value: dropped},
		)
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for {
		select {
		case j := <-r.queue:
			r.process(j)
		case <-r.closed:
			// Drain whatever made it into the queue before the close.
			for {
				select {
				case j := <-r.queue:
					r.process(j)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) process(j job) {
	switch j.kind {
	case jobRecord:
		r.handleRecord(j.decision)
	case jobCounter:
		r.handleCounter(j.entityID, j.counter)
	case jobExpire:
		r.handleExpire(j.entityID)
	}
}

func (r *Recorder) handleRecord(decision *routing.Decision) {
	record := toClickRecord(decision)
	if err := r.store.InsertClick(record); err != nil {
		r.logger.Error("failed to persist click decision", err,
			logging.Field{Key: "entity_id", Value: decision.EntityID},
			logging.Field{Key: "decision_id", Value: decision.DecisionID},
		)
	}

	if r.redis != nil && decision.Fingerprint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		if _, err := r.redis.RecordFingerprint(ctx, decision.EntityID, decision.Fingerprint, fingerprintWindow); err != nil {
			r.logger.Warn("failed to record visitor fingerprint",
				logging.Field{Key: "entity_id", Value: decision.EntityID},
				logging.Field{Key: "error", Value: err.Error()},
			)
		}
		cancel()
	}

	event := toEvent(decision)
	for _, sink := range r.sinks {
		if err := sink.Publish(event); err != nil {
			r.logger.Warn("failed to publish click event",
				logging.Field{Key: "sink", Value: sink.Name()},
				logging.Field{Key: "entity_id", Value: decision.EntityID},
				logging.Field{Key: "error", Value: err.Error()},
			)
		}
	}
}

func (r *Recorder) handleCounter(entityID string, kind routing.CounterKind) {
	if kind == routing.CounterPassed {
		if _, err := r.store.IncrementClickCount(entityID); err != nil {
			r.logger.Warn("failed to increment click count",
				logging.Field{Key: "entity_id", Value: entityID},
				logging.Field{Key: "error", Value: err.Error()},
			)
		}
	}

	if r.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := r.redis.IncrementDecisionCounter(ctx, entityID, string(kind), time.Now()); err != nil {
			r.logger.Warn("failed to increment decision counter",
				logging.Field{Key: "entity_id", Value: entityID},
				logging.Field{Key: "kind", Value: string(kind)},
				logging.Field{Key: "error", Value: err.Error()},
			)
		}
	}
}

func (r *Recorder) handleExpire(entityID string) {
	if err := r.store.MarkExpired(entityID); err != nil {
		r.logger.Warn("failed to mark entity expired",
			logging.Field{Key: "entity_id", Value: entityID},
			logging.Field{Key: "error", Value: err.Error()},
		)
	}
}

func toClickRecord(decision *routing.Decision) *storage.ClickRecord {
	record := &storage.ClickRecord{
		ID:            decision.DecisionID,
		EntityID:      decision.EntityID,
		URL:           decision.URL,
		Tag:           decision.Tag,
		MatchedRuleID: decision.MatchedRuleID,
		FailedCheck:   decision.FailedCheck,
		FraudScore:    decision.FraudScore,
		IsBot:         decision.IsBot,
		Fingerprint:   decision.Fingerprint,
		DecidedAt:     decision.DecidedAt,
	}
	if ctx := decision.Context; ctx != nil {
		record.IP = ctx.IP
		record.UserAgent = ctx.UserAgent
		record.Referrer = ctx.Referrer
		record.Country = ctx.Country
		record.Device = string(ctx.Device())
		record.OS = ctx.OS()
	}
	return record
}

func toEvent(decision *routing.Decision) *sinks.Event {
	event := &sinks.Event{
		DecisionID:    decision.DecisionID,
		EntityID:      decision.EntityID,
		URL:           decision.URL,
		Tag:           decision.Tag,
		MatchedRuleID: decision.MatchedRuleID,
		FailedCheck:   decision.FailedCheck,
		FraudScore:    decision.FraudScore,
		IsBot:         decision.IsBot,
		Fingerprint:   decision.Fingerprint,
		DecidedAt:     decision.DecidedAt,
	}
	if ctx := decision.Context; ctx != nil {
		event.IP = ctx.IP
		event.Country = ctx.Country
		event.Device = string(ctx.Device())
		event.OS = ctx.OS()
	}
	return event
}
