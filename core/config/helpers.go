package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings returns the non-secret runtime settings, used by the health endpoint.
func (c *Config) Settings() map[string]any {
	return map[string]any{
		"app_version":                    c.App.Version,
		"app_debug":                      c.App.Debug,
		"db_driver":                      c.Database.Driver,
		"valkey_enabled":                 c.Database.ValkeyEnabled,
		"ai_default_provider":            c.AI.DefaultProvider,
		"ai_debounce_ms":                 c.AI.DebounceMs,
		"ai_wait_contact_idle_ms":        c.AI.WaitContactIdleMs,
		"dispatch_min_reply_interval_ms": c.Dispatch.MinReplyIntervalMs,
		"dispatch_max_replies_per_hour":  c.Dispatch.MaxRepliesPerHour,
		"feedback_driver":                c.Feedback.Driver,
		"webhook_signed":                 c.Webhook.Secret != "",
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		vLower := strings.ToLower(v)
		return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
	}
	return fallback
}

// getEnvDuration accepts Go durations ("15s") or plain seconds ("15").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	sec, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	if sec <= 0 {
		return 0
	}
	return time.Duration(sec) * time.Second
}
