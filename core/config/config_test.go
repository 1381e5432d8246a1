package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("APP_BASE_DIR", "storages")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "storages/crm.db", cfg.Database.Name)
	assert.Equal(t, 3500, cfg.AI.DebounceMs)
	assert.Equal(t, 30, cfg.Dispatch.MaxRepliesPerHour)
	assert.Equal(t, 15*time.Second, cfg.Gateway.Timeout)
	assert.Same(t, cfg, Global)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("APP_DEBUG", "on")
	t.Setenv("APP_BASIC_AUTH", "admin:secret,ops:pw")
	t.Setenv("GATEWAY_BASE_URL", "http://gw:9000/")
	t.Setenv("GATEWAY_TIMEOUT", "7")
	t.Setenv("VALKEY_ENABLED", "yes")
	t.Setenv("DISPATCH_MIN_REPLY_INTERVAL_MS", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.App.Debug)
	assert.Equal(t, []string{"admin:secret", "ops:pw"}, cfg.App.BasicAuth)
	assert.Equal(t, "http://gw:9000", cfg.Gateway.BaseURL)
	assert.Equal(t, 7*time.Second, cfg.Gateway.Timeout)
	assert.True(t, cfg.Database.ValkeyEnabled)
	assert.Equal(t, 5000, cfg.Dispatch.MinReplyIntervalMs)
}

func TestSettings_HidesSecrets(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "s3cret")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	settings := cfg.Settings()
	assert.Equal(t, true, settings["webhook_signed"])
	for _, v := range settings {
		assert.NotEqual(t, "s3cret", v)
		assert.NotEqual(t, "sk-test", v)
	}
}
