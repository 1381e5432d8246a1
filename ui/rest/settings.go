package rest

import (
	"github.com/AzielCF/az-crm/core/settings/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/gofiber/fiber/v2"
)

type Settings struct {
	Service SettingsUsecase
}

func InitRestSettings(app fiber.Router, service SettingsUsecase) Settings {
	handler := Settings{Service: service}

	group := app.Group("/settings")
	group.Get("/", handler.List)
	group.Get("/agent-defaults", handler.GetAgentDefaults)
	group.Put("/agent-defaults", handler.UpdateAgentDefaults)

	return handler
}

func (h *Settings) List(c *fiber.Ctx) error {
	settings, err := h.Service.List(c.UserContext())
	if err != nil {
		return err
	}
	return success(c, "Settings retrieved", settings)
}

func (h *Settings) GetAgentDefaults(c *fiber.Ctx) error {
	ds, err := h.Service.GetAgentDefaults(c.UserContext())
	if err != nil {
		return err
	}
	return success(c, "Agent defaults retrieved", ds)
}

func (h *Settings) UpdateAgentDefaults(c *fiber.Ctx) error {
	var req domain.AgentDefaults
	if err := c.BodyParser(&req); err != nil {
		return pkgError.ValidationError("invalid request body: " + err.Error())
	}
	ds, err := h.Service.UpdateAgentDefaults(c.UserContext(), req)
	if err != nil {
		return err
	}
	return success(c, "Agent defaults updated", ds)
}
