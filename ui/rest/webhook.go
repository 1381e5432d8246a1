package rest

import (
	"github.com/AzielCF/az-crm/infrastructure/whatsapp"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/AzielCF/az-crm/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type Webhook struct {
	Ingress WebhookIngress
}

// InitRestWebhook registra la entrada de eventos del proveedor de WhatsApp.
// Va fuera del middleware de tenant: el tenant sale de la sesión.
func InitRestWebhook(app fiber.Router, ingress WebhookIngress, secret string) Webhook {
	handler := Webhook{Ingress: ingress}

	group := app.Group("/webhooks/whatsapp", middleware.WebhookSignature(secret))
	group.Post("/", handler.Receive)
	group.Post("/:session", handler.Receive)

	return handler
}

func (h *Webhook) Receive(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)
	res, err := h.Ingress.Handle(c.UserContext(), c.Params("session"), body)
	if err != nil {
		logrus.WithError(err).WithField("session", c.Params("session")).Debug("[WEBHOOK] Event rejected")
		return err
	}

	status := fiber.StatusOK
	if res.Status == whatsapp.ResultQueued {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(utils.ResponseData{
		Status:  status,
		Code:    "SUCCESS",
		Message: "Event " + res.Status,
		Results: res,
	})
}
