package cmd

import (
	"os"
	"time"

	coreconfig "github.com/AzielCF/az-crm/core/config"
	"github.com/AzielCF/az-crm/pkg/crypto"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "az-crm",
	Short: "Multi-tenant CRM messaging core for WhatsApp",
	Long: `az-crm receives WhatsApp provider webhooks, keeps one canonical conversation
per contact and session, and answers automatically with an AI agent when allowed.`,
}

func init() {
	// .env es opcional; las variables de entorno reales tienen prioridad.
	_ = godotenv.Load()

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initEnvConfig, initApp)
}

// initEnvConfig carga la configuración del entorno y aplica encima los flags.
func initEnvConfig() {
	viper.AutomaticEnv()

	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	if viper.IsSet("app_port") {
		cfg.App.Port = viper.GetString("app_port")
	}
	if viper.IsSet("app_debug") {
		cfg.App.Debug = viper.GetBool("app_debug")
	}
	if v := viper.GetStringSlice("app_basic_auth"); viper.IsSet("app_basic_auth") && len(v) > 0 {
		cfg.App.BasicAuth = v
	}
	if viper.IsSet("app_base_path") {
		cfg.App.BasePath = viper.GetString("app_base_path")
	}
	if v := viper.GetStringSlice("app_trusted_proxies"); viper.IsSet("app_trusted_proxies") && len(v) > 0 {
		cfg.App.TrustedProxies = v
	}

	if viper.IsSet("db_driver") {
		cfg.Database.Driver = viper.GetString("db_driver")
	}
	if viper.IsSet("db_name") {
		cfg.Database.Name = viper.GetString("db_name")
	}
	if viper.IsSet("valkey_enabled") {
		cfg.Database.ValkeyEnabled = viper.GetBool("valkey_enabled")
	}

	if viper.IsSet("webhook_secret") {
		cfg.Webhook.Secret = viper.GetString("webhook_secret")
	}
	if viper.IsSet("gateway_base_url") {
		cfg.Gateway.BaseURL = viper.GetString("gateway_base_url")
	}

	if n := viper.GetInt("message_worker_pool_size"); n > 0 {
		cfg.WorkerPool.Size = n
	}
	if n := viper.GetInt("message_worker_queue_size"); n > 0 {
		cfg.WorkerPool.QueueSize = n
	}
}

func initFlags() {
	flags := rootCmd.PersistentFlags()

	// Application flags
	flags.StringP("port", "p", "", "change port number with --port <number> | example: --port=8080")
	flags.BoolP("debug", "d", false, "hide or displaying log with --debug <true/false> | example: --debug=true")
	flags.StringSliceP("basic-auth", "b", nil, "basic auth credential | -b=yourUsername:yourPassword")
	flags.String("base-path", "", `base path for subpath deployment --base-path <string> | example: --base-path="/crm"`)
	flags.StringSlice("trusted-proxies", nil, `trusted proxy IP ranges for reverse proxy deployments | example: --trusted-proxies="10.0.0.0/8"`)

	// Database flags
	flags.String("db-driver", "", `database driver --db-driver <sqlite|postgres>`)
	flags.String("db-name", "", `sqlite file or postgres database name | example: --db-name="storages/crm.db"`)
	flags.Bool("valkey", false, "use Valkey for locks, rate limits and websocket fan-out")

	// Webhook / gateway flags
	flags.String("webhook-secret", "", `HMAC secret expected in X-Webhook-Signature | example: --webhook-secret="super-secret-key"`)
	flags.String("gateway-url", "", `base URL of the WhatsApp gateway used to send replies | example: --gateway-url="http://gateway:3001"`)

	// Message Worker Pool flags
	flags.Int("message-workers", 0, "number of concurrent message workers --message-workers <number> | example: --message-workers=30 (default: 20)")
	flags.Int("message-queue-size", 0, "queue size per message worker --message-queue-size <number> | example: --message-queue-size=1500 (default: 1000)")

	bindings := map[string]string{
		"app_port":                  "port",
		"app_debug":                 "debug",
		"app_basic_auth":            "basic-auth",
		"app_base_path":             "base-path",
		"app_trusted_proxies":       "trusted-proxies",
		"db_driver":                 "db-driver",
		"db_name":                   "db-name",
		"valkey_enabled":            "valkey",
		"webhook_secret":            "webhook-secret",
		"gateway_base_url":          "gateway-url",
		"message_worker_pool_size":  "message-workers",
		"message_worker_queue_size": "message-queue-size",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			logrus.Fatalf("failed to bind flag %s: %v", flag, err)
		}
	}
}

func initApp() {
	cfg := coreconfig.Global
	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	// preparing folder if not exist
	if err := os.MkdirAll(cfg.Paths.Storages, 0o755); err != nil {
		logrus.Errorln(err)
	}

	crypto.SetEncryptionKey(cfg.Security.SecretKey)
	if !crypto.Enabled() {
		logrus.Warn("[APP] APP_SECRET_KEY is not set; agent API keys are stored without encryption")
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
