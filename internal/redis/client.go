package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client wraps the redis connection used for decision counters, fingerprint
// accounting, and rate limiting on the redirect hot path.
type Client struct {
	rdb    *redis.Client
	config *Config
}

type Config struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{
		rdb:    rdb,
		config: config,
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// counterRetention keeps per-day decision counters around long enough for
// reporting before redis reclaims them.
const counterRetention = 48 * time.Hour

func counterKey(entityID string, day time.Time) string {
	return fmt.Sprintf("counters:%s:%s", entityID, day.UTC().Format("2006-01-02"))
}

// IncrementDecisionCounter bumps the per-day counter for an entity and
// decision kind (passed, blocked, disabled).
func (c *Client) IncrementDecisionCounter(ctx context.Context, entityID, kind string, day time.Time) error {
	key := counterKey(entityID, day)
	pipe := c.rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, kind, 1)
	pipe.Expire(ctx, key, counterRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment decision counter: %w", err)
	}
	return nil
}

// DayCounters returns the per-kind decision counts recorded for an entity on
// the given day. Missing keys yield an empty map.
func (c *Client) DayCounters(ctx context.Context, entityID string, day time.Time) (map[string]int64, error) {
	values, err := c.rdb.HGetAll(ctx, counterKey(entityID, day)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read decision counters: %w", err)
	}
	counts := make(map[string]int64, len(values))
	for field, raw := range values {
		var n int64
		if _, err := fmt.Sscanf(raw, "%d", &n); err == nil {
			counts[field] = n
		}
	}
	return counts, nil
}

// RecordFingerprint adds a visitor fingerprint to the entity's rolling set
// and returns the distinct visitor count within the retention window.
func (c *Client) RecordFingerprint(ctx context.Context, entityID, fingerprint string, window time.Duration) (int64, error) {
	key := fmt.Sprintf("fingerprints:%s", entityID)
	pipe := c.rdb.TxPipeline()
	pipe.SAdd(ctx, key, fingerprint)
	pipe.Expire(ctx, key, window)
	cardCmd := pipe.SCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to record fingerprint: %w", err)
	}
	return cardCmd.Val(), nil
}

// CheckRateLimit applies a sliding window counter keyed by caller identity.
// It returns whether the request is allowed and the count observed before
// this request was added.
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	pipe := c.rdb.TxPipeline()

	now := time.Now().UnixNano()
	windowStart := now - window.Nanoseconds()

	// Remove old entries
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))

	// Count current entries
	countCmd := pipe.ZCard(ctx, key)

	// Add current request
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(now), Member: now})

	// Set expiration
	pipe.Expire(ctx, key, window*2) // Keep data a bit longer than window

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("failed to check rate limit: %w", err)
	}

	count := int(countCmd.Val())
	allowed := count < limit

	return allowed, count, nil
}
