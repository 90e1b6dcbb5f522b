// Package memory provides an in-memory storage adapter. It backs tests and
// single-process deployments where durability is not needed.
package memory

import (
	"sort"
	"sync"
	"time"

	"click-router/internal/routing"
	"click-router/internal/storage"
)

type Store struct {
	mu       sync.RWMutex
	entities map[string]*routing.RoutableEntity // by ID
	aliases  map[string]string                  // alias -> ID
	clicks   []*storage.ClickRecord
}

func NewStore() *Store {
	return &Store{
		entities: make(map[string]*routing.RoutableEntity),
		aliases:  make(map[string]string),
	}
}

func (s *Store) Connect(config storage.StorageConfig) error { return nil }
func (s *Store) Close() error                               { return nil }
func (s *Store) Health() error                              { return nil }

func (s *Store) CreateEntity(entity *routing.RoutableEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entities[entity.ID]; exists {
		return routing.ErrDuplicateEntity
	}
	if _, exists := s.aliases[entity.Alias]; exists {
		return routing.ErrDuplicateEntity
	}

	now := time.Now()
	entity.CreatedAt = now
	entity.UpdatedAt = now
	s.entities[entity.ID] = cloneEntity(entity)
	s.aliases[entity.Alias] = entity.ID
	return nil
}

func (s *Store) GetEntity(id string) (*routing.RoutableEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entity, ok := s.entities[id]
	if !ok {
		return nil, routing.ErrEntityNotFound
	}
	return cloneEntity(entity), nil
}

func (s *Store) GetEntityByAlias(alias string) (*routing.RoutableEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.aliases[alias]
	if !ok {
		return nil, routing.ErrEntityNotFound
	}
	return cloneEntity(s.entities[id]), nil
}

func (s *Store) ListEntities(filters storage.EntityFilters) ([]*routing.RoutableEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*routing.RoutableEntity, 0, len(s.entities))
	for _, entity := range s.entities {
		if filters.Status != "" && entity.Status != filters.Status {
			continue
		}
		if filters.Mode != "" && entity.Mode != filters.Mode {
			continue
		}
		out = append(out, cloneEntity(entity))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateEntity(entity *routing.RoutableEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entities[entity.ID]
	if !ok {
		return routing.ErrEntityNotFound
	}

	if existing.Alias != entity.Alias {
		if _, taken := s.aliases[entity.Alias]; taken {
			return routing.ErrDuplicateEntity
		}
		delete(s.aliases, existing.Alias)
		s.aliases[entity.Alias] = entity.ID
	}

	entity.CreatedAt = existing.CreatedAt
	entity.UpdatedAt = time.Now()
	s.entities[entity.ID] = cloneEntity(entity)
	return nil
}

func (s *Store) DeleteEntity(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[id]
	if !ok {
		return routing.ErrEntityNotFound
	}
	delete(s.aliases, entity.Alias)
	delete(s.entities, id)
	return nil
}

func (s *Store) IncrementClickCount(id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[id]
	if !ok {
		return 0, routing.ErrEntityNotFound
	}
	entity.ClickCount++
	entity.UpdatedAt = time.Now()
	return entity.ClickCount, nil
}

func (s *Store) MarkExpired(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[id]
	if !ok {
		return routing.ErrEntityNotFound
	}
	entity.Status = routing.StatusExpired
	entity.UpdatedAt = time.Now()
	return nil
}

func (s *Store) MarkExpiredBefore(now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for _, entity := range s.entities {
		if entity.Status != routing.StatusActive || entity.ExpiresAt == nil {
			continue
		}
		if !now.Before(*entity.ExpiresAt) {
			entity.Status = routing.StatusExpired
			entity.UpdatedAt = time.Now()
			changed++
		}
	}
	return changed, nil
}

func (s *Store) InsertClick(click *storage.ClickRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *click
	s.clicks = append(s.clicks, &stored)
	return nil
}

func (s *Store) ListClicks(entityID string, limit, offset int) ([]*storage.ClickRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*storage.ClickRecord, 0)
	for i := len(s.clicks) - 1; i >= 0; i-- { // newest first
		if s.clicks[i].EntityID == entityID {
			matched = append(matched, s.clicks[i])
		}
	}

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	out := make([]*storage.ClickRecord, len(matched))
	for i, c := range matched {
		copied := *c
		out[i] = &copied
	}
	return out, nil
}

func (s *Store) GetClickStats(entityID string, since time.Time) (*storage.ClickStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.ClickStats{
		ByTag: make(map[string]int64),
		Since: since,
	}
	for _, click := range s.clicks {
		if click.EntityID != entityID || click.DecidedAt.Before(since) {
			continue
		}
		stats.Total++
		stats.ByTag[click.Tag]++
		switch click.Tag {
		case routing.TagWeighted, routing.TagRule, routing.TagFallback:
			stats.Routed++
		case routing.TagBlocked:
			stats.Blocked++
		}
		if click.IsBot {
			stats.Bots++
		}
		if stats.LastClick == nil || click.DecidedAt.After(*stats.LastClick) {
			decided := click.DecidedAt
			stats.LastClick = &decided
		}
	}
	return stats, nil
}

func (s *Store) DeleteClicksBefore(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.clicks[:0]
	var removed int64
	for _, click := range s.clicks {
		if click.DecidedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, click)
	}
	s.clicks = kept
	return removed, nil
}

func cloneEntity(entity *routing.RoutableEntity) *routing.RoutableEntity {
	copied := *entity
	if entity.ExpiresAt != nil {
		expires := *entity.ExpiresAt
		copied.ExpiresAt = &expires
	}
	copied.Destinations = make([]routing.Destination, len(entity.Destinations))
	for i, d := range entity.Destinations {
		copied.Destinations[i] = d
		if d.Tags != nil {
			tags := make(map[string]string, len(d.Tags))
			for k, v := range d.Tags {
				tags[k] = v
			}
			copied.Destinations[i].Tags = tags
		}
	}
	copied.Rules = make([]routing.TargetingRule, len(entity.Rules))
	for i, r := range entity.Rules {
		copied.Rules[i] = r
		copied.Rules[i].Conditions = append([]routing.RuleCondition(nil), r.Conditions...)
		for j, c := range r.Conditions {
			copied.Rules[i].Conditions[j].Values = append([]string(nil), c.Values...)
		}
	}
	return &copied
}
