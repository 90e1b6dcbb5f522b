package storage_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"click-router/internal/routing"
	"click-router/internal/storage"
	"click-router/internal/storage/memory"
	"click-router/internal/storage/sqlite"
)

// The same conformance suite runs against every adapter so redirect behavior
// does not depend on which backend is configured.
func adapters(t *testing.T) map[string]storage.Storage {
	sqliteAdapter, err := sqlite.NewAdapter(&sqlite.Config{
		DatabasePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { sqliteAdapter.Close() })

	return map[string]storage.Storage{
		"memory": memory.NewStore(),
		"sqlite": sqliteAdapter,
	}
}

func testEntity(id, alias string) *routing.RoutableEntity {
	return &routing.RoutableEntity{
		ID:     id,
		Alias:  alias,
		Mode:   routing.ModeSplit,
		Status: routing.StatusActive,
		Destinations: []routing.Destination{
			{ID: "d1", URL: "https://landing-a.example.com", Weight: 70},
			{ID: "d2", URL: "https://landing-b.example.com", Weight: 30, Tags: map[string]string{"device": "mobile"}},
		},
		Rules: []routing.TargetingRule{
			{
				ID:            "r1",
				DestinationID: "d2",
				Conditions: []routing.RuleCondition{
					{Attribute: "country", Operator: "eq", Value: "US"},
				},
			},
		},
		PrimaryURL: "https://landing-a.example.com",
	}
}

func TestEntityLifecycle(t *testing.T) {
	for name, store := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			entity := testEntity("e1", "summer-sale")
			require.NoError(t, store.CreateEntity(entity))

			t.Run("duplicate id rejected", func(t *testing.T) {
				err := store.CreateEntity(testEntity("e1", "other-alias"))
				assert.Error(t, err)
			})

			t.Run("duplicate alias rejected", func(t *testing.T) {
				err := store.CreateEntity(testEntity("e2", "summer-sale"))
				assert.Error(t, err)
			})

			t.Run("get by id", func(t *testing.T) {
				got, err := store.GetEntity("e1")
				require.NoError(t, err)
				assert.Equal(t, "summer-sale", got.Alias)
				assert.Len(t, got.Destinations, 2)
				assert.Len(t, got.Rules, 1)
				assert.Equal(t, "mobile", got.Destinations[1].Tags["device"])
			})

			t.Run("get by alias", func(t *testing.T) {
				got, err := store.GetEntityByAlias("summer-sale")
				require.NoError(t, err)
				assert.Equal(t, "e1", got.ID)
			})

			t.Run("composite alias", func(t *testing.T) {
				composite := testEntity("e3", "camp-1:launch-2")
				require.NoError(t, store.CreateEntity(composite))
				got, err := store.GetEntityByAlias("camp-1:launch-2")
				require.NoError(t, err)
				assert.Equal(t, "e3", got.ID)
			})

			t.Run("missing entity", func(t *testing.T) {
				_, err := store.GetEntity("nope")
				assert.ErrorIs(t, err, routing.ErrEntityNotFound)

				_, err = store.GetEntityByAlias("nope")
				assert.ErrorIs(t, err, routing.ErrEntityNotFound)
			})

			t.Run("update", func(t *testing.T) {
				entity.Status = routing.StatusPaused
				entity.SafeURL = "https://safe.example.com"
				require.NoError(t, store.UpdateEntity(entity))

				got, err := store.GetEntity("e1")
				require.NoError(t, err)
				assert.Equal(t, routing.StatusPaused, got.Status)
				assert.Equal(t, "https://safe.example.com", got.SafeURL)
			})

			t.Run("delete", func(t *testing.T) {
				deletable := testEntity("e4", "short-lived")
				require.NoError(t, store.CreateEntity(deletable))
				require.NoError(t, store.DeleteEntity("e4"))
				_, err := store.GetEntity("e4")
				assert.ErrorIs(t, err, routing.ErrEntityNotFound)
			})
		})
	}
}

func TestIncrementClickCount(t *testing.T) {
	for name, store := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.CreateEntity(testEntity("e1", "a1")))

			for want := int64(1); want <= 5; want++ {
				count, err := store.IncrementClickCount("e1")
				require.NoError(t, err)
				assert.Equal(t, want, count)
			}

			got, err := store.GetEntity("e1")
			require.NoError(t, err)
			assert.Equal(t, int64(5), got.ClickCount)

			_, err = store.IncrementClickCount("missing")
			assert.ErrorIs(t, err, routing.ErrEntityNotFound)
		})
	}
}

func TestExpirySweep(t *testing.T) {
	for name, store := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			now := time.Now().UTC().Truncate(time.Second)
			past := now.Add(-time.Hour)
			future := now.Add(time.Hour)

			expired := testEntity("e-past", "past")
			expired.ExpiresAt = &past
			live := testEntity("e-future", "future")
			live.ExpiresAt = &future
			forever := testEntity("e-none", "none")

			require.NoError(t, store.CreateEntity(expired))
			require.NoError(t, store.CreateEntity(live))
			require.NoError(t, store.CreateEntity(forever))

			changed, err := store.MarkExpiredBefore(now)
			require.NoError(t, err)
			assert.Equal(t, int64(1), changed)

			got, err := store.GetEntity("e-past")
			require.NoError(t, err)
			assert.Equal(t, routing.StatusExpired, got.Status)

			got, err = store.GetEntity("e-future")
			require.NoError(t, err)
			assert.Equal(t, routing.StatusActive, got.Status)

			got, err = store.GetEntity("e-none")
			require.NoError(t, err)
			assert.Equal(t, routing.StatusActive, got.Status)

			// A second sweep finds nothing new.
			changed, err = store.MarkExpiredBefore(now)
			require.NoError(t, err)
			assert.Equal(t, int64(0), changed)
		})
	}
}

func TestMarkExpired(t *testing.T) {
	for name, store := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.CreateEntity(testEntity("e1", "a1")))
			require.NoError(t, store.MarkExpired("e1"))

			got, err := store.GetEntity("e1")
			require.NoError(t, err)
			assert.Equal(t, routing.StatusExpired, got.Status)

			assert.ErrorIs(t, store.MarkExpired("missing"), routing.ErrEntityNotFound)
		})
	}
}

func TestClickLog(t *testing.T) {
	for name, store := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.CreateEntity(testEntity("e1", "a1")))

			base := time.Now().UTC().Truncate(time.Second)
			records := []*storage.ClickRecord{
				{ID: "c1", EntityID: "e1", URL: "https://landing-a.example.com", Tag: routing.TagWeighted, Fingerprint: "fp-1", DecidedAt: base.Add(-3 * time.Hour)},
				{ID: "c2", EntityID: "e1", URL: "https://landing-b.example.com", Tag: routing.TagRule, MatchedRuleID: "r1", DecidedAt: base.Add(-2 * time.Hour)},
				{ID: "c3", EntityID: "e1", Tag: routing.TagBlocked, FailedCheck: "referrer", FraudScore: 50, IsBot: true, DecidedAt: base.Add(-time.Hour)},
				{ID: "c4", EntityID: "e1", URL: "https://landing-a.example.com", Tag: routing.TagFallback, DecidedAt: base},
			}
			for _, r := range records {
				require.NoError(t, store.InsertClick(r))
			}

			t.Run("list newest first", func(t *testing.T) {
				clicks, err := store.ListClicks("e1", 2, 0)
				require.NoError(t, err)
				require.Len(t, clicks, 2)
				assert.Equal(t, "c4", clicks[0].ID)
				assert.Equal(t, "c3", clicks[1].ID)
			})

			t.Run("pagination", func(t *testing.T) {
				clicks, err := store.ListClicks("e1", 2, 2)
				require.NoError(t, err)
				require.Len(t, clicks, 2)
				assert.Equal(t, "c2", clicks[0].ID)
			})

			t.Run("stats", func(t *testing.T) {
				stats, err := store.GetClickStats("e1", base.Add(-4*time.Hour))
				require.NoError(t, err)
				assert.Equal(t, int64(4), stats.Total)
				assert.Equal(t, int64(3), stats.Routed)
				assert.Equal(t, int64(1), stats.Blocked)
				assert.Equal(t, int64(1), stats.Bots)
				assert.Equal(t, int64(1), stats.ByTag[routing.TagRule])
				require.NotNil(t, stats.LastClick)
				assert.True(t, stats.LastClick.Equal(base))
			})

			t.Run("stats respect since", func(t *testing.T) {
				stats, err := store.GetClickStats("e1", base.Add(-90*time.Minute))
				require.NoError(t, err)
				assert.Equal(t, int64(2), stats.Total)
			})

			t.Run("prune", func(t *testing.T) {
				removed, err := store.DeleteClicksBefore(base.Add(-150 * time.Minute))
				require.NoError(t, err)
				assert.Equal(t, int64(1), removed)

				clicks, err := store.ListClicks("e1", 10, 0)
				require.NoError(t, err)
				assert.Len(t, clicks, 3)
			})
		})
	}
}

func TestRegistry(t *testing.T) {
	assert.True(t, storage.DefaultRegistry.IsRegistered("memory"))
	assert.True(t, storage.DefaultRegistry.IsRegistered("sqlite"))

	_, err := storage.Create("unknown-backend", storage.GenericConfig{})
	assert.Error(t, err)
}
