package billing

import (
	"strings"

	"github.com/stripe/stripe-go/v78"

	"github.com/TimoLindner/WaxCrate/app/models"
	"github.com/TimoLindner/WaxCrate/internal/pkg/entitlements"
	"github.com/TimoLindner/WaxCrate/internal/pkg/env"
)

// PlanResolver maps Stripe price identifiers to internal plans. The mapping
// is configuration; an unknown price falls back to the free tier and the
// caller logs a warning.
type PlanResolver struct {
	byPrice map[string]entitlements.Plan
}

// NewPlanResolver creates a resolver from an explicit price → plan map.
func NewPlanResolver(byPrice map[string]entitlements.Plan) *PlanResolver {
	m := make(map[string]entitlements.Plan, len(byPrice))
	for price, plan := range byPrice {
		if p := strings.TrimSpace(price); p != "" {
			m[p] = plan
		}
	}
	return &PlanResolver{byPrice: m}
}

// NewPlanResolverFromEnv reads the configured price identifiers.
func NewPlanResolverFromEnv() *PlanResolver {
	return NewPlanResolver(map[string]entitlements.Plan{
		env.GetEnv("STRIPE_PRICE_CURATOR_MONTHLY", ""):    entitlements.PlanCurator,
		env.GetEnv("STRIPE_PRICE_CURATOR_YEARLY", ""):     entitlements.PlanCurator,
		env.GetEnv("STRIPE_PRICE_ENTHUSIAST_MONTHLY", ""): entitlements.PlanEnthusiast,
		env.GetEnv("STRIPE_PRICE_ENTHUSIAST_YEARLY", ""):  entitlements.PlanEnthusiast,
	})
}

// Resolve maps a price identifier to a plan. ok is false when the price is
// not in the known set.
func (r *PlanResolver) Resolve(priceID string) (entitlements.Plan, bool) {
	plan, ok := r.byPrice[strings.TrimSpace(priceID)]
	if !ok {
		return entitlements.PlanCollector, false
	}
	return plan, true
}

// firstPriceID extracts the price identifier from a subscription's first line
// item.
func firstPriceID(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil {
		return ""
	}
	for _, item := range sub.Items.Data {
		if item != nil && item.Price != nil && item.Price.ID != "" {
			return item.Price.ID
		}
	}
	return ""
}

// MapStripeStatus maps a Stripe subscription status onto the closed local
// status set.
func MapStripeStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive:
		return models.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return models.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return models.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return models.SubscriptionStatusCanceled
	case stripe.SubscriptionStatusIncompleteExpired:
		return models.SubscriptionStatusExpired
	case stripe.SubscriptionStatusIncomplete:
		return models.SubscriptionStatusIncomplete
	default:
		return models.SubscriptionStatusIncomplete
	}
}
