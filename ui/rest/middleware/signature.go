package middleware

import (
	"github.com/AzielCF/az-crm/pkg/crypto"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const SignatureHeader = "X-Webhook-Signature"

// WebhookSignature valida el HMAC del cuerpo cuando hay secreto configurado.
func WebhookSignature(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}
		if !crypto.VerifySignature(secret, c.Body(), c.Get(SignatureHeader)) {
			logrus.WithFields(logrus.Fields{"ip": c.IP(), "path": c.Path()}).Warn("[WEBHOOK] Rejected request with invalid signature")
			return pkgError.UnauthorizedError("invalid webhook signature")
		}
		return c.Next()
	}
}
