package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	portalsession "github.com/stripe/stripe-go/v78/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/stripe/stripe-go/v78/customer"

	"github.com/TimoLindner/WaxCrate/app/models"
	"github.com/TimoLindner/WaxCrate/internal/pkg/cache"
	"github.com/TimoLindner/WaxCrate/internal/pkg/env"
)

// The checkout/portal bridge is a pass-through to Stripe's hosted surfaces.
// It writes no local state; plan changes only ever arrive via webhook.

const pendingCheckoutTTL = 30 * time.Minute

// SetupStripe installs the API key. Call once at startup.
func SetupStripe() {
	stripe.Key = env.GetEnv("STRIPE_API_KEY", "")
}

// CreateCheckoutSession opens a hosted checkout for the given price. A
// pending session URL is cached briefly so double-clicks reuse it instead of
// stacking sessions.
func CreateCheckoutSession(ctx context.Context, user *models.User, existing *models.Subscription, priceID string) (string, error) {
	if strings.TrimSpace(priceID) == "" {
		return "", errors.New("price id is required")
	}

	cacheKey := fmt.Sprintf("billing:pending_checkout:%d", user.ID)
	if url, err := cache.Get(cacheKey); err == nil && url != "" {
		return url, nil
	}

	customerID, err := ensureCustomer(ctx, user, existing)
	if err != nil {
		return "", err
	}

	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000"), "/")
	params := &stripe.CheckoutSessionParams{
		Customer:          stripe.String(customerID),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(strconv.FormatUint(uint64(user.ID), 10)),
		SuccessURL:        stripe.String(base + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(base + "/billing/cancel"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", err
	}

	_ = cache.Set(cacheKey, sess.URL, pendingCheckoutTTL)
	return sess.URL, nil
}

// CreatePortalSession opens the hosted billing portal for a user who already
// has a billing identity.
func CreatePortalSession(ctx context.Context, existing *models.Subscription) (string, error) {
	if existing == nil || !existing.HasBillingIdentity() {
		return "", errors.New("user has no billing identity")
	}

	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000"), "/")
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(existing.BillingCustomerID),
		ReturnURL: stripe.String(base + "/settings/membership"),
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// ensureCustomer returns the user's Stripe customer ID, creating the customer
// on first checkout. The new ID is not persisted here; the webhook's full
// state write records it.
func ensureCustomer(ctx context.Context, user *models.User, existing *models.Subscription) (string, error) {
	if existing != nil && existing.HasBillingIdentity() {
		return existing.BillingCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Name:  stripe.String(user.Name),
		Email: stripe.String(user.Email),
	}
	params.Context = ctx

	c, err := customer.New(params)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}
