package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App        AppConfig
	Paths      PathsConfig
	Database   DatabaseConfig
	Webhook    WebhookConfig
	Gateway    GatewayConfig
	AI         AIConfig
	Dispatch   DispatchConfig
	Feedback   FeedbackConfig
	WorkerPool WorkerPoolConfig
	Security   SecurityConfig
	Monitor    MonitorConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	CorsAllowedOrigins []string
	ServerID           string
}

type PathsConfig struct {
	BaseDir  string
	Storages string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB Name for Postgres
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

type WebhookConfig struct {
	Secret       string
	MaxBodyBytes int
}

// GatewayConfig points at the WhatsApp provider that owns the sessions and delivers outbound messages.
type GatewayConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type AIConfig struct {
	DefaultProvider   string
	DefaultModel      string
	SystemPrompt      string
	OpenAIKey         string
	GeminiKey         string
	Timeout           time.Duration
	DebounceMs        int
	WaitContactIdleMs int
	HistoryLimit      int
}

type DispatchConfig struct {
	MinReplyIntervalMs     int
	MaxRepliesPerHour      int
	TakeoverCooldownMinute int
}

type FeedbackConfig struct {
	Driver string // http | sqlite3 | postgres | "" (disabled)
	DSN    string
	URL    string
	Token  string
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

type SecurityConfig struct {
	SecretKey string
}

type MonitorConfig struct {
	BufferSize int
	TTL        time.Duration
}

// Global provides access to the loaded configuration globally
var Global *Config

// LoadConfig loads configuration from Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	baseDir := getEnv("APP_BASE_DIR", "storages")

	debug := false
	if v := os.Getenv("APP_DEBUG"); v == "true" || v == "1" || v == "on" {
		debug = true
	} else if v := os.Getenv("DEBUG"); v == "true" || v == "1" {
		debug = true
	}

	var basicAuth []string
	if v := os.Getenv("APP_BASIC_AUTH"); v != "" {
		basicAuth = strings.Split(v, ",")
	}

	corsOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := os.Getenv("APP_CORS_ALLOWED_ORIGINS"); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v1.0.0",
		Port:               getEnv("APP_PORT", "3000"),
		Debug:              debug,
		Environment:        getEnv("APP_ENV", "development"),
		BasicAuth:          basicAuth,
		BasePath:           getEnv("APP_BASE_PATH", ""),
		CorsAllowedOrigins: corsOrigins,
		ServerID:           getEnv("SERVER_ID", ""),
	}
	if v := os.Getenv("APP_TRUSTED_PROXIES"); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	pathsCfg := PathsConfig{
		BaseDir:  baseDir,
		Storages: baseDir,
	}

	dbDriver := getEnv("DB_DRIVER", "sqlite")
	dbName := getEnv("DB_NAME", filepath.Join(pathsCfg.Storages, "crm.db"))
	dbCfg := DatabaseConfig{
		Driver:          dbDriver,
		Name:            dbName,
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
		ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:        getEnvInt("VALKEY_DB", 0),
		ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "azcrm:"),
	}

	cfg := &Config{
		App:      appCfg,
		Paths:    pathsCfg,
		Database: dbCfg,
		Webhook: WebhookConfig{
			Secret:       getEnv("WEBHOOK_SECRET", ""),
			MaxBodyBytes: getEnvInt("WEBHOOK_MAX_BODY_BYTES", 4*1024*1024),
		},
		Gateway: GatewayConfig{
			BaseURL: strings.TrimRight(getEnv("GATEWAY_BASE_URL", "http://localhost:3001"), "/"),
			Token:   getEnv("GATEWAY_TOKEN", ""),
			Timeout: getEnvDuration("GATEWAY_TIMEOUT", 15*time.Second),
		},
		AI: AIConfig{
			DefaultProvider:   getEnv("AI_DEFAULT_PROVIDER", "openai"),
			DefaultModel:      getEnv("AI_DEFAULT_MODEL", ""),
			SystemPrompt:      getEnv("AI_SYSTEM_PROMPT", ""),
			OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
			GeminiKey:         getEnv("GEMINI_API_KEY", ""),
			Timeout:           getEnvDuration("AI_TIMEOUT", 60*time.Second),
			DebounceMs:        getEnvInt("AI_DEBOUNCE_MS", 3500),
			WaitContactIdleMs: getEnvInt("AI_WAIT_CONTACT_IDLE_MS", 10000),
			HistoryLimit:      getEnvInt("AI_HISTORY_LIMIT", 20),
		},
		Dispatch: DispatchConfig{
			MinReplyIntervalMs:     getEnvInt("DISPATCH_MIN_REPLY_INTERVAL_MS", 5000),
			MaxRepliesPerHour:      getEnvInt("DISPATCH_MAX_REPLIES_PER_HOUR", 30),
			TakeoverCooldownMinute: getEnvInt("DISPATCH_TAKEOVER_COOLDOWN_MINUTES", 30),
		},
		Feedback: FeedbackConfig{
			Driver: getEnv("FEEDBACK_DRIVER", ""),
			DSN:    getEnv("FEEDBACK_DSN", ""),
			URL:    getEnv("FEEDBACK_URL", ""),
			Token:  getEnv("FEEDBACK_TOKEN", ""),
		},
		WorkerPool: WorkerPoolConfig{
			Size:      getEnvInt("MESSAGE_WORKER_POOL_SIZE", 20),
			QueueSize: getEnvInt("MESSAGE_WORKER_QUEUE_SIZE", 1000),
		},
		Security: SecurityConfig{SecretKey: getEnv("APP_SECRET_KEY", "")},
		Monitor: MonitorConfig{
			BufferSize: getEnvInt("DISPATCH_MONITOR_BUFFER", 200),
			TTL:        getEnvDuration("DISPATCH_MONITOR_TTL", 0),
		},
	}

	Global = cfg
	return cfg, nil
}
