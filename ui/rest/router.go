package rest

import (
	"github.com/AzielCF/az-crm/pkg/dispatchmonitor"
	"github.com/AzielCF/az-crm/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
)

type Services struct {
	Ingress       WebhookIngress
	Sessions      SessionUsecase
	Conversations ConversationUsecase
	Agents        AgentUsecase
	Merger        DuplicateMerger
	Settings      SettingsUsecase
	Monitor       *dispatchmonitor.Monitor
	Pool          PoolStatsProvider
	Health        HealthOptions
	WebhookSecret string
}

// RegisterRoutes monta la API bajo api. Health y webhooks van antes del
// middleware de tenant; el resto exige X-Tenant-ID.
func RegisterRoutes(api fiber.Router, svc Services) fiber.Router {
	InitRestHealth(api, svc.Health)
	InitRestWebhook(api, svc.Ingress, svc.WebhookSecret)

	tenant := api.Group("", middleware.Tenant())
	InitRestSession(tenant, svc.Sessions, svc.Agents, svc.Merger)
	InitRestConversation(tenant, svc.Conversations, svc.Agents)
	InitRestMonitoring(tenant, svc.Monitor, svc.Pool)
	if svc.Settings != nil {
		InitRestSettings(tenant, svc.Settings)
	}
	return tenant
}
