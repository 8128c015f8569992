package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/TimoLindner/WaxCrate/app/controllers"
	"github.com/TimoLindner/WaxCrate/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())

	v1 := api.Group("/v1")

	v1.Get("/entitlement", middleware.RequireAuth, controllers.HandleGetEntitlement)
	v1.Get("/entitlement/require/:tier", middleware.RequireAuth, controllers.HandleRequireTier)
	v1.Post("/scans", middleware.RequireAuth, controllers.HandleConsumeScan)

	billing := v1.Group("/billing", middleware.RequireAuth)
	billing.Post("/checkout", controllers.HandleCreateCheckoutSession)
	billing.Post("/portal", controllers.HandleCreatePortalSession)

	admin := v1.Group("/admin", middleware.RequireAdmin)
	admin.Put("/entitlements", controllers.HandleAdminEntitlementOverride)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
