package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/TimoLindner/WaxCrate/app/models"
	"github.com/TimoLindner/WaxCrate/internal/pkg/billing"
	"github.com/TimoLindner/WaxCrate/internal/pkg/database"
	"github.com/TimoLindner/WaxCrate/internal/pkg/entitlements"
	"github.com/TimoLindner/WaxCrate/internal/pkg/env"
	"github.com/TimoLindner/WaxCrate/internal/pkg/usercontext"
)

// webhookBudget bounds processing so Stripe's delivery never times out and
// retries; whatever cannot finish in time is acknowledged and parked on the
// retry queue.
const webhookBudget = 15 * time.Second

// HandleStripeWebhook receives billing events. The signature is verified
// before any payload content is parsed; a bad signature is the only cause
// for a non-2xx answer. Processing failures of a verified event are logged
// and redelivered out-of-band, because failing the acknowledgment would only
// make Stripe retry into the same fault and eventually disable the endpoint.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")

	event, err := billing.VerifyEvent(rawBody, signature, secret)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookBudget)
	defer cancel()

	if err := reconciler.Dispatch(ctx, event); err != nil {
		log.Errorf("[Billing] processing event %s (type=%s) failed: %v", event.ID, event.Type, err)
		if retryQueue != nil {
			if _, qerr := retryQueue.Enqueue(event); qerr != nil {
				log.Errorf("[Billing] parking event %s for redelivery failed: %v", event.ID, qerr)
			}
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

type checkoutRequest struct {
	PriceID string `json:"price_id" validate:"required"`
}

// HandleCreateCheckoutSession opens a hosted checkout for the logged-in user
// and returns its URL. Local state is untouched; the webhook stream is the
// only writer.
func HandleCreateCheckoutSession(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.PriceID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "price_id is required"})
	}

	user, err := models.FindUserByID(database.GetDB(), userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unknown user"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	existing, err := store.Get(ctx, userCtx.UserID)
	if err != nil && !errors.Is(err, entitlements.ErrNotFound) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "store_unavailable"})
	}

	url, err := billing.CreateCheckoutSession(ctx, user, existing, req.PriceID)
	if err != nil {
		log.Errorf("[Billing] checkout session for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "checkout_unavailable"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"url": url})
}

// HandleCreatePortalSession opens the hosted billing portal for users with a
// billing identity.
func HandleCreatePortalSession(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	existing, err := store.Get(ctx, userCtx.UserID)
	if err != nil {
		if errors.Is(err, entitlements.ErrNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no_billing_identity"})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "store_unavailable"})
	}

	url, err := billing.CreatePortalSession(ctx, existing)
	if err != nil {
		log.Errorf("[Billing] portal session for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no_billing_identity"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"url": url})
}
