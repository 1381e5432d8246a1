package middleware

import (
	"fmt"

	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Recovery convierte un panic en la respuesta estándar; un GenericError conserva su código.
func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			err := recover()
			if err != nil {
				var res utils.ResponseData
				res.Status = 500
				res.Code = "INTERNAL_SERVER_ERROR"
				res.Message = fmt.Sprintf("%v", err)

				logrus.WithFields(logrus.Fields{
					"path":       ctx.Path(),
					"tenant":     ctx.Get(TenantHeader),
					"request_id": ctx.GetRespHeader(fiber.HeaderXRequestID),
				}).Errorf("[REST] Panic recovered: %v", err)

				if e, ok := err.(error); ok {
					if generic, isGeneric := pkgError.AsGeneric(e); isGeneric {
						res.Status = generic.StatusCode()
						res.Code = generic.ErrCode()
						res.Message = generic.Error()
					}
				}

				_ = ctx.Status(res.Status).JSON(res)
			}
		}()

		return ctx.Next()
	}
}
