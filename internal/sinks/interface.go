// Package sinks publishes click decision events to external consumers.
// Sinks are write-only: recording is fire-and-forget and a failed publish
// never affects the redirect already served.
package sinks

import (
	"encoding/json"
	"time"
)

type Sink interface {
	Name() string
	Publish(event *Event) error
	Health() error
	Close() error
}

type SinkConfig interface {
	Validate() error
	GetConnectionString() string
	GetType() string
}

type SinkFactory interface {
	Create(config SinkConfig) (Sink, error)
	GetType() string
}

// Event is the wire form of one routing decision.
type Event struct {
	DecisionID    string    `json:"decision_id"`
	EntityID      string    `json:"entity_id"`
	URL           string    `json:"url,omitempty"`
	Tag           string    `json:"tag"`
	MatchedRuleID string    `json:"matched_rule_id,omitempty"`
	FailedCheck   string    `json:"failed_check,omitempty"`
	FraudScore    int       `json:"fraud_score"`
	IsBot         bool      `json:"is_bot"`
	Fingerprint   string    `json:"fingerprint,omitempty"`
	IP            string    `json:"ip,omitempty"`
	Country       string    `json:"country,omitempty"`
	Device        string    `json:"device,omitempty"`
	OS            string    `json:"os,omitempty"`
	DecidedAt     time.Time `json:"decided_at"`
}

// Encode renders the event as JSON for transport.
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
