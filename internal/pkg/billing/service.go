package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/subscription"
	"gorm.io/gorm"

	"github.com/TimoLindner/WaxCrate/app/models"
	"github.com/TimoLindner/WaxCrate/internal/pkg/entitlements"
)

// ErrInvalidInput marks synchronously rejected admin input.
var ErrInvalidInput = errors.New("invalid input")

// SubscriptionFetcher loads the full subscription object when a webhook
// event only carries its identifier.
type SubscriptionFetcher interface {
	Fetch(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

type stripeFetcher struct{}

func (stripeFetcher) Fetch(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return subscription.Get(subscriptionID, params)
}

// UserFinder resolves local users referenced by billing events.
type UserFinder interface {
	FindUser(ctx context.Context, userID uint) (*models.User, error)
}

type gormUserFinder struct {
	db *gorm.DB
}

func (f gormUserFinder) FindUser(ctx context.Context, userID uint) (*models.User, error) {
	return models.FindUserByID(f.db.WithContext(ctx), userID)
}

// Service is the reconciler: it translates billing events and administrative
// overrides into full entitlement-record writes. Every transition computes
// the complete new state, so duplicate or reordered deliveries converge on
// the same record.
type Service struct {
	repo    entitlements.Repository
	users   UserFinder
	plans   *PlanResolver
	fetcher SubscriptionFetcher
	now     func() time.Time
}

// NewService creates a reconciler with explicit collaborators.
func NewService(repo entitlements.Repository, users UserFinder, plans *PlanResolver, fetcher SubscriptionFetcher) *Service {
	return &Service{repo: repo, users: users, plans: plans, fetcher: fetcher, now: time.Now}
}

// NewServiceFromDB wires the reconciler against GORM and the live Stripe API.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(entitlements.NewRepository(db), gormUserFinder{db: db}, NewPlanResolverFromEnv(), stripeFetcher{})
}

// WithClock overrides the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ApplyCheckoutCompleted handles a completed checkout: it resolves the local
// user, loads the new subscription and writes the full resulting state.
func (s *Service) ApplyCheckoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	customerID := customerIDOf(sess)
	userID, ok := s.resolveCheckoutUser(ctx, sess, customerID)
	if !ok {
		// Retrying cannot resolve a mapping that does not exist.
		log.Warnf("[Billing] checkout completed for unresolvable customer %q, dropping", customerID)
		return nil
	}

	if sess.Subscription == nil || sess.Subscription.ID == "" {
		log.Warnf("[Billing] checkout session %s carries no subscription, dropping", sess.ID)
		return nil
	}
	stripeSub, err := s.fetcher.Fetch(ctx, sess.Subscription.ID)
	if err != nil {
		return fmt.Errorf("fetch subscription %s: %w", sess.Subscription.ID, err)
	}

	record := s.recordFromStripe(userID, customerID, stripeSub)
	return s.repo.Upsert(ctx, record, []string{
		"plan", "status", "trial_start", "trial_end",
		"billing_customer_id", "billing_subscription_id",
		"current_period_start", "current_period_end",
	})
}

// ApplySubscriptionUpdated mirrors the provider's current subscription state.
func (s *Service) ApplySubscriptionUpdated(ctx context.Context, stripeSub *stripe.Subscription) error {
	existing, err := s.resolveByCustomer(ctx, customerIDOfSubscription(stripeSub))
	if err != nil || existing == nil {
		return err
	}

	record := s.recordFromStripe(existing.UserID, existing.BillingCustomerID, stripeSub)
	return s.repo.Upsert(ctx, record, []string{
		"plan", "status", "trial_start", "trial_end",
		"billing_subscription_id",
		"current_period_start", "current_period_end",
	})
}

// ApplySubscriptionDeleted drops the user back to the free tier.
func (s *Service) ApplySubscriptionDeleted(ctx context.Context, stripeSub *stripe.Subscription) error {
	existing, err := s.resolveByCustomer(ctx, customerIDOfSubscription(stripeSub))
	if err != nil || existing == nil {
		return err
	}

	now := s.now()
	record := &models.Subscription{
		UserID:                existing.UserID,
		Plan:                  string(entitlements.PlanCollector),
		Status:                models.SubscriptionStatusCanceled,
		BillingCustomerID:     existing.BillingCustomerID,
		BillingSubscriptionID: "",
		CurrentPeriodEnd:      &now,
		ScansResetAt:          existing.ScansResetAt,
	}
	return s.repo.Upsert(ctx, record, []string{
		"plan", "status", "billing_subscription_id", "current_period_end",
	})
}

// ApplyPaymentFailed marks the record past due. The plan is untouched; a
// failed payment does not change what the user bought.
func (s *Service) ApplyPaymentFailed(ctx context.Context, inv *stripe.Invoice) error {
	var customerID string
	if inv != nil && inv.Customer != nil {
		customerID = inv.Customer.ID
	}
	existing, err := s.resolveByCustomer(ctx, customerID)
	if err != nil || existing == nil {
		return err
	}

	existing.Status = models.SubscriptionStatusPastDue
	return s.repo.Upsert(ctx, existing, []string{"status"})
}

// ApplyAdminOverride writes an operator-supplied plan/status pair. Activating
// overrides get a one-year period and a fresh quota window.
func (s *Service) ApplyAdminOverride(ctx context.Context, userID uint, plan, status string) error {
	if !entitlements.IsValidPlan(plan) {
		return fmt.Errorf("%w: unknown plan %q", ErrInvalidInput, plan)
	}
	if !models.IsValidSubscriptionStatus(status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	if _, err := s.users.FindUser(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: unknown user %d", ErrInvalidInput, userID)
		}
		return err
	}

	now := s.now()
	record := &models.Subscription{
		UserID: userID,
		Plan:   string(entitlements.NormalizePlan(plan)),
		Status: status,
	}
	columns := []string{"plan", "status"}

	if status == models.SubscriptionStatusActive || status == models.SubscriptionStatusTrialing {
		periodEnd := now.AddDate(1, 0, 0)
		record.CurrentPeriodEnd = &periodEnd
		record.ScansUsed = 0
		record.ScansResetAt = entitlements.NextResetBoundary(now)
		columns = append(columns, "current_period_end", "scans_used", "scans_reset_at")
	} else {
		record.ScansResetAt = now
	}

	return s.repo.Upsert(ctx, record, columns)
}

// recordFromStripe builds the complete local state a Stripe subscription
// implies. Nothing here depends on the record's prior value.
func (s *Service) recordFromStripe(userID uint, customerID string, stripeSub *stripe.Subscription) *models.Subscription {
	status := MapStripeStatus(stripeSub.Status)

	priceID := firstPriceID(stripeSub)
	plan, known := s.plans.Resolve(priceID)
	if !known {
		log.Warnf("[Billing] unmapped price %q on subscription %s, falling back to %s", priceID, stripeSub.ID, entitlements.PlanCollector)
	}

	record := &models.Subscription{
		UserID:                userID,
		Plan:                  string(plan),
		Status:                status,
		BillingCustomerID:     customerID,
		BillingSubscriptionID: stripeSub.ID,
		CurrentPeriodStart:    unixTime(stripeSub.CurrentPeriodStart),
		CurrentPeriodEnd:      unixTime(stripeSub.CurrentPeriodEnd),
		ScansResetAt:          s.now(),
	}
	if status == models.SubscriptionStatusTrialing {
		record.TrialStart = unixTime(stripeSub.TrialStart)
		record.TrialEnd = unixTime(stripeSub.TrialEnd)
	}
	return record
}

// resolveCheckoutUser prefers the checkout session's client reference (set by
// our own checkout bridge), falling back to an already-linked customer ID.
func (s *Service) resolveCheckoutUser(ctx context.Context, sess *stripe.CheckoutSession, customerID string) (uint, bool) {
	if userID, err := models.ParseUserID(sess.ClientReferenceID); err == nil {
		if _, err := s.users.FindUser(ctx, userID); err == nil {
			return userID, true
		}
	}
	if existing, err := s.repo.FindByBillingCustomerID(ctx, customerID); err == nil {
		return existing.UserID, true
	}
	return 0, false
}

// resolveByCustomer looks up the record linked to a billing customer. A miss
// is logged and treated as handled; store failures propagate as retryable.
func (s *Service) resolveByCustomer(ctx context.Context, customerID string) (*models.Subscription, error) {
	existing, err := s.repo.FindByBillingCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, entitlements.ErrNotFound) {
			log.Warnf("[Billing] event for unresolvable customer %q, dropping", customerID)
			return nil, nil
		}
		return nil, fmt.Errorf("customer lookup %q: %w", customerID, err)
	}
	return existing, nil
}

func customerIDOf(sess *stripe.CheckoutSession) string {
	if sess == nil || sess.Customer == nil {
		return ""
	}
	return sess.Customer.ID
}

func customerIDOfSubscription(sub *stripe.Subscription) string {
	if sub == nil || sub.Customer == nil {
		return ""
	}
	return sub.Customer.ID
}

func unixTime(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
