package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moroccoguide/platform/pkg/auth"
	"github.com/moroccoguide/platform/pkg/logger"
	"github.com/moroccoguide/platform/services/review/internal/config"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("REVIEW_STORE", config.StoreMemory)
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("IDEMPOTENCY_ENABLED", "false")
	t.Setenv("OTEL_ENABLED", "false")

	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestNewApp_MemoryStoreServesRequests(t *testing.T) {
	cfg := memoryConfig(t)

	a, err := NewApp(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, accessTokenExpiry).
		GenerateAccessToken("u1", "Amina", "", "MA")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/places/p1/reviews",
		strings.NewReader(`{"rating":5,"title":"Great riad"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/v1/places/p1/reviews/stats", nil)
	rec = httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_reviews":1`)

	req = httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec = httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApp_RedisDownDisablesIdempotency(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.IdempotencyEnabled = true
	cfg.RedisAddr = "127.0.0.1:1"

	a, err := NewApp(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	assert.Nil(t, a.redis)
}
