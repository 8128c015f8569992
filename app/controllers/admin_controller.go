package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/TimoLindner/WaxCrate/internal/pkg/billing"
)

type adminOverrideRequest struct {
	UserID uint   `json:"user_id" validate:"required,min=1"`
	Plan   string `json:"plan" validate:"required,oneof=collector curator enthusiast"`
	Status string `json:"status" validate:"required,oneof=trialing active past_due canceled incomplete expired"`
}

// HandleAdminEntitlementOverride writes an operator-supplied plan/status
// pair. Invalid enums or an unknown user are rejected synchronously; nothing
// is written partially.
func HandleAdminEntitlementOverride(c *fiber.Ctx) error {
	var req adminOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}
	if err := validator.New().Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "detail": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := reconciler.ApplyAdminOverride(ctx, req.UserID, req.Plan, req.Status); err != nil {
		if errors.Is(err, billing.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "detail": err.Error()})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "store_unavailable"})
	}

	eff, err := evaluator.Evaluate(ctx, req.UserID)
	if err != nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "entitlement": eff})
}
