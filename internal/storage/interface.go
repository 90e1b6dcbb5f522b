package storage

import (
	"time"

	"click-router/internal/routing"
)

// Storage is the persistence boundary for routable entities and the click
// decision log. Adapters register themselves with the registry and are
// selected by configuration at startup.
type Storage interface {
	// Connection management
	Connect(config StorageConfig) error
	Close() error
	Health() error

	// Routable entities
	CreateEntity(entity *routing.RoutableEntity) error
	GetEntity(id string) (*routing.RoutableEntity, error)

	// GetEntityByAlias resolves the public alias used on the redirect path.
	// Composite campaign/launch keys are stored as "campaign:launch".
	GetEntityByAlias(alias string) (*routing.RoutableEntity, error)

	ListEntities(filters EntityFilters) ([]*routing.RoutableEntity, error)
	UpdateEntity(entity *routing.RoutableEntity) error
	DeleteEntity(id string) error

	// IncrementClickCount atomically bumps the entity's click counter and
	// returns the new value. Used for click-cap accounting under
	// concurrent decisions.
	IncrementClickCount(id string) (int64, error)

	// MarkExpired transitions a single entity to the expired status.
	MarkExpired(id string) error

	// MarkExpiredBefore transitions every active entity whose expiry has
	// passed, returning how many rows changed. Run by the expiry janitor.
	MarkExpiredBefore(now time.Time) (int64, error)

	// Click decision log
	InsertClick(click *ClickRecord) error
	ListClicks(entityID string, limit, offset int) ([]*ClickRecord, error)

	// GetClickStats aggregates decisions for an entity since the given
	// time, broken down by terminal tag.
	GetClickStats(entityID string, since time.Time) (*ClickStats, error)

	// DeleteClicksBefore prunes decision log rows older than the cutoff.
	DeleteClicksBefore(before time.Time) (int64, error)
}

type StorageConfig interface {
	Validate() error
	GetType() string
	GetConnectionString() string
}

type StorageFactory interface {
	Create(config StorageConfig) (Storage, error)
	GetType() string
}

// EntityFilters narrows ListEntities results. Zero values match everything.
type EntityFilters struct {
	Status routing.Status
	Mode   routing.RoutingMode
}

// ClickRecord is one row of the decision log. It flattens the decision and
// the click context fields worth querying on.
type ClickRecord struct {
	ID            string    `json:"id"`
	EntityID      string    `json:"entity_id"`
	URL           string    `json:"url"`
	Tag           string    `json:"tag"`
	MatchedRuleID string    `json:"matched_rule_id,omitempty"`
	FailedCheck   string    `json:"failed_check,omitempty"`
	FraudScore    int       `json:"fraud_score"`
	IsBot         bool      `json:"is_bot"`
	Fingerprint   string    `json:"fingerprint"`
	IP            string    `json:"ip"`
	UserAgent     string    `json:"user_agent"`
	Referrer      string    `json:"referrer,omitempty"`
	Country       string    `json:"country,omitempty"`
	Device        string    `json:"device,omitempty"`
	OS            string    `json:"os,omitempty"`
	DecidedAt     time.Time `json:"decided_at"`
}

// ClickStats aggregates the decision log for one entity.
type ClickStats struct {
	Total     int64            `json:"total"`
	Routed    int64            `json:"routed"`
	Blocked   int64            `json:"blocked"`
	Bots      int64            `json:"bots"`
	ByTag     map[string]int64 `json:"by_tag"`
	Since     time.Time        `json:"since"`
	LastClick *time.Time       `json:"last_click,omitempty"`
}

// GenericConfig is a map-based StorageConfig used by the factory layer so
// adapters can be constructed without importing their concrete config types.
type GenericConfig map[string]interface{}

func (gc GenericConfig) Validate() error {
	return nil
}

func (gc GenericConfig) GetType() string {
	if t, ok := gc["type"].(string); ok {
		return t
	}
	return "unknown"
}

func (gc GenericConfig) GetConnectionString() string {
	if cs, ok := gc["connection_string"].(string); ok {
		return cs
	}
	return ""
}

// GetString reads a string key with a fallback.
func (gc GenericConfig) GetString(key, fallback string) string {
	if v, ok := gc[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
