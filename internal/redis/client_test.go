package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	config := &Config{
		Address:  mr.Addr(),
		Password: "",
		DB:       0,
		PoolSize: 10,
	}

	client, err := NewClient(config)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("requires config", func(t *testing.T) {
		_, err := NewClient(nil)
		assert.Error(t, err)
	})

	t.Run("fails when server is unreachable", func(t *testing.T) {
		_, err := NewClient(&Config{Address: "localhost:1"})
		assert.Error(t, err)
	})

	t.Run("connects to a running server", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		assert.NoError(t, client.Health())
	})
}

func TestDecisionCounters(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()
	day := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, client.IncrementDecisionCounter(ctx, "offer-1", "passed", day))
	require.NoError(t, client.IncrementDecisionCounter(ctx, "offer-1", "passed", day))
	require.NoError(t, client.IncrementDecisionCounter(ctx, "offer-1", "blocked", day))

	counts, err := client.DayCounters(ctx, "offer-1", day)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["passed"])
	assert.Equal(t, int64(1), counts["blocked"])

	t.Run("days are isolated", func(t *testing.T) {
		other, err := client.DayCounters(ctx, "offer-1", day.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("entities are isolated", func(t *testing.T) {
		other, err := client.DayCounters(ctx, "offer-2", day)
		require.NoError(t, err)
		assert.Empty(t, other)
	})
}

func TestRecordFingerprint(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	count, err := client.RecordFingerprint(ctx, "offer-1", "fp-a", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Same fingerprint does not grow the distinct set.
	count, err = client.RecordFingerprint(ctx, "offer-1", "fp-a", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = client.RecordFingerprint(ctx, "offer-1", "fp-b", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestCheckRateLimit(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	t.Run("allows until limit is reached", func(t *testing.T) {
		key := "ratelimit:10.0.0.1"
		for i := 0; i < 3; i++ {
			allowed, count, err := client.CheckRateLimit(ctx, key, 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed, "request %d should be allowed", i)
			assert.Equal(t, i, count)
			// Distinct score members need distinct timestamps.
			time.Sleep(time.Millisecond)
		}

		allowed, count, err := client.CheckRateLimit(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, 3, count)
	})

	t.Run("keys are independent", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			key := fmt.Sprintf("ratelimit:10.0.0.%d", i)
			allowed, _, err := client.CheckRateLimit(ctx, key, 1, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
	})
}
