package middleware

import (
	"strings"

	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/gofiber/fiber/v2"
)

const (
	TenantHeader = "X-Tenant-ID"
	tenantLocal  = "tenant_id"
)

// Tenant exige la cabecera X-Tenant-ID y la deja en Locals.
// El websocket del navegador no puede enviar cabeceras: ahí se acepta ?tenant_id=.
func Tenant() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(TenantHeader))
		if id == "" {
			id = strings.TrimSpace(c.Query(tenantLocal))
		}
		if id == "" {
			return pkgError.ValidationError(TenantHeader + " header is required")
		}
		c.Locals(tenantLocal, id)
		return c.Next()
	}
}

func TenantID(c *fiber.Ctx) string {
	id, _ := c.Locals(tenantLocal).(string)
	return id
}
