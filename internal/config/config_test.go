package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "anthropic", cfg.DefaultLLM)
	assert.Equal(t, 60, cfg.RateLimitRequests)
	assert.Equal(t, 10*time.Minute, cfg.DedupeTTL)
	assert.Equal(t, 15*time.Second, cfg.BackgroundTaskTimeout)
	assert.False(t, cfg.TracingEnabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("DATABASE_URL", "postgres://localhost/platform")
	t.Setenv("WIDGET_RATE_REQUESTS", "5")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("DEDUPE_TTL", "30s")

	cfg := Load()
	assert.Equal(t, "9999", cfg.ServerPort)
	assert.Equal(t, "postgres://localhost/platform", cfg.DatabaseURL)
	assert.Equal(t, 5, cfg.WidgetRateRequests)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, 30*time.Second, cfg.DedupeTTL)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_REQUESTS", "lots")
	t.Setenv("TRACING_ENABLED", "si")
	t.Setenv("RATE_LIMIT_WINDOW", "soon")

	cfg := Load()
	assert.Equal(t, 60, cfg.RateLimitRequests)
	assert.False(t, cfg.TracingEnabled)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
}
