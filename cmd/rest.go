package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	agentApp "github.com/AzielCF/az-crm/agent/application"
	agentDomain "github.com/AzielCF/az-crm/agent/domain"
	agentInfra "github.com/AzielCF/az-crm/agent/infrastructure"
	"github.com/AzielCF/az-crm/agent/providers"
	agentRepo "github.com/AzielCF/az-crm/agent/repository"
	convApp "github.com/AzielCF/az-crm/conversation/application"
	convInfra "github.com/AzielCF/az-crm/conversation/infrastructure"
	convRepo "github.com/AzielCF/az-crm/conversation/repository"
	coreconfig "github.com/AzielCF/az-crm/core/config"
	coreDB "github.com/AzielCF/az-crm/core/database"
	settingsApp "github.com/AzielCF/az-crm/core/settings/application"
	settingsInfra "github.com/AzielCF/az-crm/core/settings/infrastructure"
	"github.com/AzielCF/az-crm/infrastructure/valkey"
	"github.com/AzielCF/az-crm/infrastructure/whatsapp"
	"github.com/AzielCF/az-crm/integrations/feedback"
	"github.com/AzielCF/az-crm/pkg/dispatchmonitor"
	"github.com/AzielCF/az-crm/pkg/msgworker"
	"github.com/AzielCF/az-crm/pkg/presence"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/AzielCF/az-crm/ui/rest"
	"github.com/AzielCF/az-crm/ui/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	backlogJanitorEvery = time.Hour
	backlogMaxAge       = 24 * time.Hour
	shutdownTimeout     = 30 * time.Second
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the webhook ingress and the CRM API over http",
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

func restServer(_ *cobra.Command, _ []string) {
	cfg := coreconfig.Global
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Database ---
	db, err := coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("[APP] %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logrus.Fatalf("[APP] %v", err)
	}
	if err := migrateSchema(db); err != nil {
		logrus.Fatalf("[MIGRATION] %v", err)
	}

	// --- Valkey (opcional) ---
	var vk *valkey.Client
	if cfg.Database.ValkeyEnabled {
		vk, err = valkey.NewClient(valkey.Config{
			Address:   cfg.Database.ValkeyAddress,
			Password:  cfg.Database.ValkeyPassword,
			DB:        cfg.Database.ValkeyDB,
			KeyPrefix: cfg.Database.ValkeyKeyPrefix,
		})
		if err != nil {
			logrus.Warnf("[VALKEY] Unavailable, falling back to in-memory locks and limits: %v", err)
			vk = nil
		} else {
			logrus.WithField("address", cfg.Database.ValkeyAddress).Info("[VALKEY] Connected")
		}
	}

	serverID := utils.GetPersistentServerID(cfg.App.ServerID, cfg.Paths.Storages)
	hub := websocket.NewHub(vk, serverID)

	var (
		locker    convApp.Locker       = convInfra.NewMemoryLocker()
		rateLimit agentApp.RateLimiter = agentInfra.NewMemoryRateLimiter()
	)
	if vk != nil {
		locker = convInfra.NewValkeyLocker(vk)
		rateLimit = agentInfra.NewValkeyRateLimiter(vk)
	}

	// --- Conversations ---
	convRepository := convRepo.NewGormRepository(db)
	sessions := convApp.NewSessionService(convRepository, hub)
	resolver := convApp.NewResolver(convRepository, locker, hub)
	recorder := convApp.NewRecorder(convRepository, hub)
	conversations := convApp.NewConversationService(convRepository, hub)

	// --- Agents ---
	defaultProvider, ok := agentDomain.ParseProvider(cfg.AI.DefaultProvider)
	if !ok {
		logrus.Warnf("[AGENTS] Unknown AI_DEFAULT_PROVIDER %q, using %s", cfg.AI.DefaultProvider, agentDomain.ProviderOpenAI)
		defaultProvider = agentDomain.ProviderOpenAI
	}
	agentRepository := agentRepo.NewGormRepository(db)
	settings := settingsApp.NewSettingsService(settingsInfra.NewGlobalSettingsGormRepository(db))
	agents := agentApp.NewAgentService(agentRepository, agentDomain.Defaults{
		Provider:                defaultProvider,
		Model:                   cfg.AI.DefaultModel,
		SystemPrompt:            cfg.AI.SystemPrompt,
		DebounceMs:              cfg.AI.DebounceMs,
		WaitContactIdleMs:       cfg.AI.WaitContactIdleMs,
		MinReplyIntervalMs:      cfg.Dispatch.MinReplyIntervalMs,
		MaxRepliesPerHour:       cfg.Dispatch.MaxRepliesPerHour,
		TakeoverCooldownMinutes: cfg.Dispatch.TakeoverCooldownMinute,
		HistoryLimit:            cfg.AI.HistoryLimit,
	})
	agents.SetDefaultsSource(settings)

	registry := providers.NewRegistry().
		Register(agentDomain.ProviderOpenAI, providers.NewOpenAIProvider("")).
		Register(agentDomain.ProviderGemini, providers.NewGeminiProvider(""))

	sink, err := feedback.New(cfg.Feedback)
	if err != nil {
		logrus.Errorf("[FEEDBACK] %v; outcomes will not be exported", err)
		sink = feedback.Noop{}
	}

	monitor := dispatchmonitor.New(cfg.Monitor.BufferSize, cfg.Monitor.TTL)
	tracker := presence.NewTracker()
	gateway := whatsapp.NewGatewayClient(cfg.Gateway.BaseURL, cfg.Gateway.Token, cfg.Gateway.Timeout)

	dispatcher := agentApp.NewDispatcher(agentApp.Deps{
		Agents:        agentRepository,
		Conversations: convRepository,
		Recorder:      recorder,
		Generator:     registry,
		Sender:        gateway,
		Limiter:       rateLimit,
		Presence:      tracker,
		Sink:          sink,
		Monitor:       monitor,
	}, agentApp.DispatcherConfig{
		GenerationTimeout: cfg.AI.Timeout,
		SendTimeout:       cfg.Gateway.Timeout,
		APIKeys: map[agentDomain.Provider]string{
			agentDomain.ProviderOpenAI: cfg.AI.OpenAIKey,
			agentDomain.ProviderGemini: cfg.AI.GeminiKey,
		},
		DefaultPrompt: cfg.AI.SystemPrompt,
	})

	// --- Workers ---
	pool := msgworker.NewPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	pool.Start(ctx)
	go hub.Run(ctx)
	go runBacklogJanitor(ctx, convRepository)

	ingress := &whatsapp.Ingress{
		Sessions:   sessions,
		Resolver:   resolver,
		Recorder:   recorder,
		Dispatcher: dispatcher,
		Queue:      pool,
		Presence:   tracker,
	}

	// --- HTTP ---
	app := rest.NewApp(rest.AppOptions{
		BodyLimit:      cfg.Webhook.MaxBodyBytes,
		TrustedProxies: cfg.App.TrustedProxies,
	})
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.App.CorsAllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Tenant-ID, X-Request-ID",
	}))
	app.Use(helmet.New(helmet.Config{
		XFrameOptions:  "SAMEORIGIN",
		HSTSMaxAge:     31536000,
		ReferrerPolicy: "strict-origin-when-cross-origin",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        1000,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))
	if cfg.App.Debug {
		app.Use(logger.New())
	}

	basePath := strings.TrimRight(cfg.App.BasePath, "/")
	apiGroup := app.Group(basePath + "/api")

	if account := basicAuthAccounts(cfg.App.BasicAuth); len(account) > 0 {
		public := []string{basePath + "/api/webhooks", basePath + "/api/health"}
		apiGroup.Use(basicauth.New(basicauth.Config{
			Users: account,
			Next: func(c *fiber.Ctx) bool {
				// El preflight CORS, los webhooks firmados y el health no llevan credenciales.
				if c.Method() == fiber.MethodOptions {
					return true
				}
				for _, prefix := range public {
					if strings.HasPrefix(c.Path(), prefix) {
						return true
					}
				}
				return false
			},
		}))
	} else {
		logrus.Warn("[APP] APP_BASIC_AUTH is not set; the API is reachable without credentials")
	}

	checks := map[string]rest.HealthCheck{
		"database": sqlDB.PingContext,
	}
	if vk != nil {
		checks["valkey"] = vk.Ping
	}

	tenantGroup := rest.RegisterRoutes(apiGroup, rest.Services{
		Ingress:       ingress,
		Sessions:      sessions,
		Conversations: conversations,
		Agents:        agents,
		Merger:        resolver,
		Settings:      settings,
		Monitor:       monitor,
		Pool:          pool,
		Health: rest.HealthOptions{
			Version:   cfg.App.Version,
			ServerID:  serverID,
			StartedAt: time.Now(),
			Checks:    checks,
			Settings:  cfg.Settings(),
			Pool:      pool,
			Pending:   dispatcher.Pending,
		},
		WebhookSecret: cfg.Webhook.Secret,
	})
	hub.RegisterRoutes(tenantGroup)

	apiGroup.All("/*", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "API endpoint not found: "+c.Path())
	})

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Reception of termination signal, shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
	}()

	logrus.WithFields(logrus.Fields{
		"port":      cfg.App.Port,
		"server_id": serverID,
		"valkey":    vk != nil,
	}).Info("[APP] Listening")
	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Errorf("[REST] Failed to start: %v", err)
	}

	// Orden: dejar de aceptar trabajo, vaciar respuestas pendientes, cerrar dependencias.
	pool.Stop()
	drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	if err := dispatcher.Shutdown(drainCtx); err != nil {
		logrus.Warnf("[DISPATCHER] Shutdown incomplete: %v", err)
	}
	drainCancel()
	cancel()

	if err := sink.Close(); err != nil {
		logrus.Warnf("[FEEDBACK] Close: %v", err)
	}
	if vk != nil {
		vk.Close()
	}
	if err := sqlDB.Close(); err != nil {
		logrus.Warnf("[APP] Database close: %v", err)
	}
	logrus.Info("[APP] Stopped")
}

// basicAuthAccounts parsea user:secret; las entradas mal formadas detienen el arranque.
func basicAuthAccounts(entries []string) map[string]string {
	account := make(map[string]string)
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		user, secret, ok := strings.Cut(entry, ":")
		if !ok || user == "" || secret == "" {
			logrus.Fatalln("Basic auth is not valid, please this following format <user>:<secret>")
		}
		account[user] = secret
	}
	return account
}

// runBacklogJanitor borra los estados huérfanos cuyo mensaje nunca llegó.
func runBacklogJanitor(ctx context.Context, repo *convRepo.GormRepository) {
	ticker := time.NewTicker(backlogJanitorEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PurgeStatusBacklog(ctx, time.Now().Add(-backlogMaxAge))
			if err != nil {
				logrus.Warnf("[RECORDER] Status backlog purge failed: %v", err)
				continue
			}
			if n > 0 {
				logrus.Debugf("[RECORDER] Purged %d orphan statuses", n)
			}
		}
	}
}
