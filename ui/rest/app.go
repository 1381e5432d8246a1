package rest

import (
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/AzielCF/az-crm/ui/rest/middleware"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

type AppOptions struct {
	Name           string
	BodyLimit      int
	TrustedProxies []string
}

// NewApp crea la app de fiber con el codec JSON y el manejo de errores comunes.
func NewApp(opts AppOptions) *fiber.App {
	cfg := fiber.Config{
		AppName:               opts.Name,
		BodyLimit:             opts.BodyLimit,
		Network:               "tcp",
		ServerHeader:          "Hidden",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          middleware.ErrorHandler,
	}
	if cfg.AppName == "" {
		cfg.AppName = "Az-CRM Messaging Core"
	}
	if len(opts.TrustedProxies) > 0 {
		cfg.EnableTrustedProxyCheck = true
		cfg.TrustedProxies = opts.TrustedProxies
		cfg.ProxyHeader = fiber.HeaderXForwardedFor
	}
	app := fiber.New(cfg)
	app.Use(middleware.Recovery())
	return app
}

func success(c *fiber.Ctx, message string, results any) error {
	return c.JSON(utils.ResponseData{
		Status:  fiber.StatusOK,
		Code:    "SUCCESS",
		Message: message,
		Results: results,
	})
}

func created(c *fiber.Ctx, message string, results any) error {
	return c.Status(fiber.StatusCreated).JSON(utils.ResponseData{
		Status:  fiber.StatusCreated,
		Code:    "SUCCESS",
		Message: message,
		Results: results,
	})
}
