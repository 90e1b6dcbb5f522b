package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"click-router/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.DatabaseType = "memory"
	cfg.RedisAddress = ""
	cfg.SinkType = "none"
	return cfg
}

func TestAppLifecycle(t *testing.T) {
	app, err := New(testConfig())
	require.NoError(t, err)
	defer app.Cleanup()

	require.NotNil(t, app.Storage)
	require.NotNil(t, app.Recorder)
	require.NotNil(t, app.Orchestrator)
	assert.Nil(t, app.RedisClient)
	assert.Empty(t, app.Sinks)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))
}

func TestAppServesEndToEnd(t *testing.T) {
	app, err := New(testConfig())
	require.NoError(t, err)
	defer app.Cleanup()

	_, handler := app.RunServer()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	body, _ := json.Marshal(map[string]interface{}{
		"alias": "summer-sale",
		"mode":  "split",
		"destinations": []map[string]interface{}{
			{"url": "https://landing.example.com", "weight": 1},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/entities", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/r/summer-sale", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://landing.example.com", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/r/no-such-alias", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInitializeSinksRejectsUnknownType(t *testing.T) {
	cfg := testConfig()
	cfg.SinkType = "carrier-pigeon"

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported sink type")
}
