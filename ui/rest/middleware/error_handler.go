package middleware

import (
	"errors"
	"strings"

	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/gofiber/fiber/v2"
	fiberUtils "github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

// ErrorHandler convierte los errores devueltos por los handlers en ResponseData.
func ErrorHandler(c *fiber.Ctx, err error) error {
	res := utils.ResponseData{
		Status:  fiber.StatusInternalServerError,
		Code:    "INTERNAL_SERVER_ERROR",
		Message: err.Error(),
	}

	var fe *fiber.Error
	if generic, ok := pkgError.AsGeneric(err); ok {
		res.Status = generic.StatusCode()
		res.Code = generic.ErrCode()
		res.Message = generic.Error()
	} else if errors.As(err, &fe) {
		res.Status = fe.Code
		res.Code = strings.ToUpper(strings.ReplaceAll(fiberUtils.StatusMessage(fe.Code), " ", "_"))
		res.Message = fe.Message
	}

	if res.Status >= fiber.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{"method": c.Method(), "path": c.Path()}).Error("[REST] Request failed")
	}
	return c.Status(res.Status).JSON(res)
}
