package rest

import (
	"github.com/AzielCF/az-crm/pkg/dispatchmonitor"
	"github.com/AzielCF/az-crm/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
)

type MonitoringHandler struct {
	monitor *dispatchmonitor.Monitor
	pool    PoolStatsProvider
}

// InitRestMonitoring registra los endpoints de monitoreo del pipeline de respuesta.
func InitRestMonitoring(app fiber.Router, monitor *dispatchmonitor.Monitor, pool PoolStatsProvider) {
	h := &MonitoringHandler{monitor: monitor, pool: pool}

	g := app.Group("/monitoring")
	g.Get("/dispatch", h.GetDispatchStats)
	g.Get("/worker-pool", h.GetWorkerPoolStats)
}

// GetDispatchStats devuelve los contadores globales y los eventos recientes del tenant.
func (h *MonitoringHandler) GetDispatchStats(c *fiber.Ctx) error {
	return success(c, "Dispatch monitor retrieved", h.monitor.Stats(middleware.TenantID(c)))
}
