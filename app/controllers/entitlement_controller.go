package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/TimoLindner/WaxCrate/internal/pkg/entitlements"
	"github.com/TimoLindner/WaxCrate/internal/pkg/usercontext"
)

// HandleGetEntitlement returns the caller's derived entitlement view. Stale
// trial/quota fields are corrected on this read.
func HandleGetEntitlement(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	eff, err := evaluator.Evaluate(c.UserContext(), userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "store_unavailable"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"entitlement":     eff,
		"scans_remaining": eff.ScansRemaining(),
	})
}

// HandleRequireTier answers the tier gating question for feature services:
// 200 when the caller's plan meets the requested tier, 403 with the
// structured refusal otherwise.
func HandleRequireTier(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	tier := c.Params("tier")
	if !entitlements.IsValidPlan(tier) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_tier"})
	}

	refusal, err := evaluator.RequireTier(c.UserContext(), userCtx.UserID, entitlements.Plan(tier))
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "store_unavailable"})
	}
	if refusal != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "insufficient_plan", "refusal": refusal})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleConsumeScan spends one scan from the caller's quota. The refusal
// payload carries what the client needs for an upgrade prompt.
func HandleConsumeScan(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	refusal, err := evaluator.ConsumeScan(c.UserContext(), userCtx.UserID)
	if err != nil {
		log.Errorf("[Entitlements] scan consumption for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "store_unavailable"})
	}
	if refusal != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "scan_refused", "refusal": refusal})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
