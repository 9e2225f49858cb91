package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "data/msgboard.db", cfg.Database.Path)
	assert.Equal(t, 200*time.Millisecond, cfg.Stream.PollInterval)
	assert.Equal(t, 16, cfg.Stream.BufferFrames)
	assert.Equal(t, time.Duration(0), cfg.Stream.IdleTimeout)
	assert.Equal(t, 20, cfg.Messages.PageLimitMax)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 10.0, cfg.RateLimit.RPS)
	assert.Equal(t, 30, cfg.RateLimit.Burst)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MSGBOARD_SERVER_ADDR", "127.0.0.1:9090")
	t.Setenv("MSGBOARD_STREAM_POLLINTERVAL", "1s")
	t.Setenv("MSGBOARD_MESSAGES_PAGELIMITMAX", "50")
	t.Setenv("MSGBOARD_RATELIMIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, time.Second, cfg.Stream.PollInterval)
	assert.Equal(t, 50, cfg.Messages.PageLimitMax)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("MSGBOARD_STREAM_POLLINTERVAL", "-5s")

	_, err := Load()
	assert.Error(t, err)
}
