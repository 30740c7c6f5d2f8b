package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAutomationFromEnv(t *testing.T) {
	t.Setenv("AUTOMATION_INTERVAL", "15m")
	t.Setenv("AUTOMATION_INITIAL_DELAY", "not-a-duration")
	t.Setenv("AUTOMATION_QUEUE_WORKERS", "4")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Automation.Interval)
	assert.Equal(t, 5*time.Second, cfg.Automation.InitialDelay)
	assert.Equal(t, 4, cfg.Automation.QueueWorkers)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Automation.Enabled)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Hour, parseDuration("", time.Hour))
	assert.Equal(t, time.Hour, parseDuration("soon", time.Hour))
	assert.Equal(t, 90*time.Second, parseDuration("90s", time.Hour))
}
