package rest

import (
	"github.com/AzielCF/az-crm/pkg/msgworker"
	"github.com/gofiber/fiber/v2"
)

type PoolStatsProvider interface {
	Stats() msgworker.PoolStats
}

// GetWorkerPoolStats returns real-time worker pool statistics
func (h *MonitoringHandler) GetWorkerPoolStats(c *fiber.Ctx) error {
	if h.pool == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Message worker pool not initialized",
		})
	}
	return success(c, "Worker pool stats retrieved", h.pool.Stats())
}
