package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"click-router/internal/routing"
	"click-router/internal/storage"
)

type Adapter struct {
	db     *sql.DB
	config *Config
}

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		db:     db,
		config: config,
	}

	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Connect(config storage.StorageConfig) error {
	sqliteConfig, ok := config.(*Config)
	if !ok {
		return fmt.Errorf("invalid config type for SQLite storage")
	}

	newAdapter, err := NewAdapter(sqliteConfig)
	if err != nil {
		return err
	}

	if a.db != nil {
		a.db.Close()
	}

	a.db = newAdapter.db
	a.config = newAdapter.config

	return nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health() error {
	return a.db.Ping()
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			alias TEXT NOT NULL UNIQUE,
			mode TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			expires_at DATETIME,
			click_limit INTEGER NOT NULL DEFAULT 0,
			click_count INTEGER NOT NULL DEFAULT 0,
			destinations TEXT NOT NULL DEFAULT '[]',
			rules TEXT NOT NULL DEFAULT '[]',
			safe_url TEXT NOT NULL DEFAULT '',
			primary_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS clicks (
			id TEXT PRIMARY KEY,
			entity_id TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			tag TEXT NOT NULL,
			matched_rule_id TEXT NOT NULL DEFAULT '',
			failed_check TEXT NOT NULL DEFAULT '',
			fraud_score INTEGER NOT NULL DEFAULT 0,
			is_bot BOOLEAN NOT NULL DEFAULT 0,
			fingerprint TEXT NOT NULL DEFAULT '',
			ip TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			referrer TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			device TEXT NOT NULL DEFAULT '',
			os TEXT NOT NULL DEFAULT '',
			decided_at DATETIME NOT NULL,
			FOREIGN KEY (entity_id) REFERENCES entities (id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_entities_alias ON entities(alias)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_status ON entities(status)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_expires_at ON entities(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_clicks_entity_id ON clicks(entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_clicks_decided_at ON clicks(decided_at)`,
		`CREATE INDEX IF NOT EXISTS idx_clicks_tag ON clicks(tag)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

func (a *Adapter) CreateEntity(entity *routing.RoutableEntity) error {
	destinations, rules, err := marshalEntityParts(entity)
	if err != nil {
		return err
	}

	query := `INSERT INTO entities (id, alias, mode, status, expires_at, click_limit, click_count, destinations, rules, safe_url, primary_url)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = a.db.Exec(query, entity.ID, entity.Alias, string(entity.Mode), string(entity.Status),
		entity.ExpiresAt, entity.ClickLimit, entity.ClickCount, destinations, rules,
		entity.SafeURL, entity.PrimaryURL)
	if err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}

	return nil
}

const entityColumns = `id, alias, mode, status, expires_at, click_limit, click_count, destinations, rules, safe_url, primary_url, created_at, updated_at`

func (a *Adapter) GetEntity(id string) (*routing.RoutableEntity, error) {
	row := a.db.QueryRow(`SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	return scanEntity(row)
}

func (a *Adapter) GetEntityByAlias(alias string) (*routing.RoutableEntity, error) {
	row := a.db.QueryRow(`SELECT `+entityColumns+` FROM entities WHERE alias = ?`, alias)
	return scanEntity(row)
}

func (a *Adapter) ListEntities(filters storage.EntityFilters) ([]*routing.RoutableEntity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE 1=1`
	args := []interface{}{}

	if filters.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filters.Status))
	}
	if filters.Mode != "" {
		query += ` AND mode = ?`
		args = append(args, string(filters.Mode))
	}
	query += ` ORDER BY created_at`

	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var entities []*routing.RoutableEntity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

func (a *Adapter) UpdateEntity(entity *routing.RoutableEntity) error {
	destinations, rules, err := marshalEntityParts(entity)
	if err != nil {
		return err
	}

	query := `UPDATE entities SET alias = ?, mode = ?, status = ?, expires_at = ?, click_limit = ?,
			  destinations = ?, rules = ?, safe_url = ?, primary_url = ?, updated_at = CURRENT_TIMESTAMP
			  WHERE id = ?`

	result, err := a.db.Exec(query, entity.Alias, string(entity.Mode), string(entity.Status),
		entity.ExpiresAt, entity.ClickLimit, destinations, rules,
		entity.SafeURL, entity.PrimaryURL, entity.ID)
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}

	return requireRow(result)
}

func (a *Adapter) DeleteEntity(id string) error {
	result, err := a.db.Exec(`DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	return requireRow(result)
}

func (a *Adapter) IncrementClickCount(id string) (int64, error) {
	tx, err := a.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE entities SET click_count = click_count + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to increment click count: %w", err)
	}
	if err := requireRow(result); err != nil {
		return 0, err
	}

	var count int64
	if err := tx.QueryRow(`SELECT click_count FROM entities WHERE id = ?`, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to read click count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit click count: %w", err)
	}
	return count, nil
}

func (a *Adapter) MarkExpired(id string) error {
	result, err := a.db.Exec(`UPDATE entities SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(routing.StatusExpired), id)
	if err != nil {
		return fmt.Errorf("failed to mark entity expired: %w", err)
	}
	return requireRow(result)
}

func (a *Adapter) MarkExpiredBefore(now time.Time) (int64, error) {
	result, err := a.db.Exec(`UPDATE entities SET status = ?, updated_at = CURRENT_TIMESTAMP
							  WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		string(routing.StatusExpired), string(routing.StatusActive), now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire entities: %w", err)
	}
	return result.RowsAffected()
}

func (a *Adapter) InsertClick(click *storage.ClickRecord) error {
	query := `INSERT INTO clicks (id, entity_id, url, tag, matched_rule_id, failed_check, fraud_score, is_bot, fingerprint, ip, user_agent, referrer, country, device, os, decided_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := a.db.Exec(query, click.ID, click.EntityID, click.URL, click.Tag,
		click.MatchedRuleID, click.FailedCheck, click.FraudScore, click.IsBot,
		click.Fingerprint, click.IP, click.UserAgent, click.Referrer,
		click.Country, click.Device, click.OS, click.DecidedAt)
	if err != nil {
		return fmt.Errorf("failed to insert click: %w", err)
	}
	return nil
}

func (a *Adapter) ListClicks(entityID string, limit, offset int) ([]*storage.ClickRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, entity_id, url, tag, matched_rule_id, failed_check, fraud_score, is_bot, fingerprint, ip, user_agent, referrer, country, device, os, decided_at
			  FROM clicks WHERE entity_id = ? ORDER BY decided_at DESC LIMIT ? OFFSET ?`

	rows, err := a.db.Query(query, entityID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list clicks: %w", err)
	}
	defer rows.Close()

	var clicks []*storage.ClickRecord
	for rows.Next() {
		click := &storage.ClickRecord{}
		err := rows.Scan(&click.ID, &click.EntityID, &click.URL, &click.Tag,
			&click.MatchedRuleID, &click.FailedCheck, &click.FraudScore, &click.IsBot,
			&click.Fingerprint, &click.IP, &click.UserAgent, &click.Referrer,
			&click.Country, &click.Device, &click.OS, &click.DecidedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan click: %w", err)
		}
		clicks = append(clicks, click)
	}
	return clicks, rows.Err()
}

func (a *Adapter) GetClickStats(entityID string, since time.Time) (*storage.ClickStats, error) {
	stats := &storage.ClickStats{
		ByTag: make(map[string]int64),
		Since: since,
	}

	rows, err := a.db.Query(`SELECT tag, COUNT(*), SUM(CASE WHEN is_bot THEN 1 ELSE 0 END)
							 FROM clicks WHERE entity_id = ? AND decided_at >= ? GROUP BY tag`,
		entityID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate clicks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tag string
		var count, bots int64
		if err := rows.Scan(&tag, &count, &bots); err != nil {
			return nil, fmt.Errorf("failed to scan click stats: %w", err)
		}
		stats.ByTag[tag] = count
		stats.Total += count
		stats.Bots += bots
		switch tag {
		case routing.TagWeighted, routing.TagRule, routing.TagFallback:
			stats.Routed += count
		case routing.TagBlocked:
			stats.Blocked += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var last sql.NullTime
	err = a.db.QueryRow(`SELECT MAX(decided_at) FROM clicks WHERE entity_id = ? AND decided_at >= ?`,
		entityID, since).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to read last click: %w", err)
	}
	if last.Valid {
		stats.LastClick = &last.Time
	}

	return stats, nil
}

func (a *Adapter) DeleteClicksBefore(before time.Time) (int64, error) {
	result, err := a.db.Exec(`DELETE FROM clicks WHERE decided_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune clicks: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row rowScanner) (*routing.RoutableEntity, error) {
	entity := &routing.RoutableEntity{}
	var mode, status string
	var expiresAt sql.NullTime
	var destinations, rules []byte

	err := row.Scan(&entity.ID, &entity.Alias, &mode, &status, &expiresAt,
		&entity.ClickLimit, &entity.ClickCount, &destinations, &rules,
		&entity.SafeURL, &entity.PrimaryURL, &entity.CreatedAt, &entity.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, routing.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}

	entity.Mode = routing.RoutingMode(mode)
	entity.Status = routing.Status(status)
	if expiresAt.Valid {
		entity.ExpiresAt = &expiresAt.Time
	}
	if err := json.Unmarshal(destinations, &entity.Destinations); err != nil {
		return nil, fmt.Errorf("failed to decode destinations: %w", err)
	}
	if err := json.Unmarshal(rules, &entity.Rules); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}

	return entity, nil
}

func marshalEntityParts(entity *routing.RoutableEntity) ([]byte, []byte, error) {
	destinations := entity.Destinations
	if destinations == nil {
		destinations = []routing.Destination{}
	}
	rules := entity.Rules
	if rules == nil {
		rules = []routing.TargetingRule{}
	}

	destinationsJSON, err := json.Marshal(destinations)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode destinations: %w", err)
	}
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode rules: %w", err)
	}
	return destinationsJSON, rulesJSON, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return routing.ErrEntityNotFound
	}
	return nil
}
