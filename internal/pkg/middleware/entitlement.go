package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/TimoLindner/WaxCrate/internal/pkg/entitlements"
	"github.com/TimoLindner/WaxCrate/internal/pkg/usercontext"
)

// RequireTier gates a route on a minimum plan tier. Refusals answer with the
// structured upgrade payload so clients can render a prompt; store failures
// surface as retryable 503s.
func RequireTier(svc *entitlements.Service, required entitlements.Plan) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userCtx := usercontext.GetUserContext(c)
		if !userCtx.IsLoggedIn {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "login required",
			})
		}

		refusal, err := svc.RequireTier(c.Context(), userCtx.UserID, required)
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "entitlement_check_failed",
				"message": "please retry",
			})
		}
		if refusal != nil {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "insufficient_plan",
				"refusal": refusal,
			})
		}
		return c.Next()
	}
}
