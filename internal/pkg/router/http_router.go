package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/TimoLindner/WaxCrate/app/controllers"
	"github.com/TimoLindner/WaxCrate/internal/pkg/middleware"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Use(middleware.UserContextMiddleware)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	// Webhook deliveries are authenticated by signature, not by user context.
	app.Post("/webhooks/stripe", controllers.HandleStripeWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
