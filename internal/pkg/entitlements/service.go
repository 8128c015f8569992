package entitlements

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/TimoLindner/WaxCrate/app/models"
)

// Refusal reasons returned to gating callers.
const (
	RefusalInactive       = "subscription_inactive"
	RefusalUpgradeNeeded  = "upgrade_required"
	RefusalQuotaExhausted = "scan_quota_exhausted"
)

const writeBackTimeout = 5 * time.Second

// Effective is the derived, point-in-time entitlement view.
type Effective struct {
	Plan       Plan   `json:"plan"`
	Status     string `json:"status"`
	IsActive   bool   `json:"is_active"`
	ScansUsed  int    `json:"scans_used"`
	ScansLimit int    `json:"scans_limit"`
	Unlimited  bool   `json:"unlimited"`
}

// ScansRemaining returns the remaining scan quota; unlimited plans report 0,
// check Unlimited first.
func (e Effective) ScansRemaining() int {
	if e.Unlimited {
		return 0
	}
	if r := e.ScansLimit - e.ScansUsed; r > 0 {
		return r
	}
	return 0
}

// CanConsumeScan reports whether one more scan is allowed right now.
func (e Effective) CanConsumeScan() bool {
	if !e.IsActive {
		return false
	}
	return e.Unlimited || e.ScansUsed < e.ScansLimit
}

// Refusal is the structured gating failure handed to callers so they can
// render an upgrade prompt. It is not an error.
type Refusal struct {
	Reason       string `json:"reason"`
	RequiredPlan Plan   `json:"required_plan,omitempty"`
	Plan         Plan   `json:"plan"`
	Status       string `json:"status"`
}

// Service evaluates entitlement records, self-healing stale time-derived
// fields on read without making the caller wait on the write.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates an evaluator over the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock overrides the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// DefaultSubscription synthesizes the free-tier record returned for users
// with no row. It is not persisted until a mutation happens.
func DefaultSubscription(userID uint, now time.Time) *models.Subscription {
	return &models.Subscription{
		UserID:       userID,
		Plan:         string(PlanCollector),
		Status:       models.SubscriptionStatusActive,
		ScansUsed:    0,
		ScansResetAt: now,
	}
}

// Evaluate reads the user's record, applies lazy trial expiry and quota
// rollover, and returns the derived view. Corrections are written back on a
// detached goroutine; the returned view already reflects them.
func (s *Service) Evaluate(ctx context.Context, userID uint) (*Effective, error) {
	now := s.now()

	synthesized := false
	sub, err := s.repo.Get(ctx, userID)
	if err != nil {
		if err != ErrNotFound {
			return nil, err
		}
		sub = DefaultSubscription(userID, now)
		synthesized = true
	}

	corrected := applyLazyCorrections(sub, now)
	if len(corrected) > 0 && !synthesized {
		// A synthesized default is not persisted; the first real mutation
		// materializes it.
		s.writeBack(*sub, corrected)
	}

	return s.effectiveView(sub), nil
}

// RequireTier answers the tier gating question. A nil Refusal means access is
// granted.
func (s *Service) RequireTier(ctx context.Context, userID uint, required Plan) (*Refusal, error) {
	eff, err := s.Evaluate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !eff.IsActive {
		return &Refusal{Reason: RefusalInactive, RequiredPlan: required, Plan: eff.Plan, Status: eff.Status}, nil
	}
	if !HasTier(eff.Plan, required) {
		return &Refusal{Reason: RefusalUpgradeNeeded, RequiredPlan: required, Plan: eff.Plan, Status: eff.Status}, nil
	}
	return nil, nil
}

// ConsumeScan consumes one scan from the user's quota. The counter update is
// a single atomic increment against the store; the rollover logic stays a
// read-time concern and is not re-run here.
func (s *Service) ConsumeScan(ctx context.Context, userID uint) (*Refusal, error) {
	eff, err := s.Evaluate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !eff.IsActive {
		return &Refusal{Reason: RefusalInactive, Plan: eff.Plan, Status: eff.Status}, nil
	}
	if !eff.CanConsumeScan() {
		return &Refusal{Reason: RefusalQuotaExhausted, Plan: eff.Plan, Status: eff.Status}, nil
	}

	err = s.repo.IncrementScansUsed(ctx, userID)
	if err == ErrNotFound {
		// First mutation for this user: materialize the row, then count.
		now := s.now()
		sub := DefaultSubscription(userID, now)
		applyLazyCorrections(sub, now)
		if err = s.repo.Upsert(ctx, sub, subscriptionAllColumns); err != nil {
			return nil, err
		}
		err = s.repo.IncrementScansUsed(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	return nil, nil
}

// subscriptionAllColumns lists every mutable column, used when a transition
// writes the complete record.
var subscriptionAllColumns = []string{
	"plan", "status", "trial_start", "trial_end",
	"billing_customer_id", "billing_subscription_id",
	"current_period_start", "current_period_end",
	"scans_used", "scans_reset_at",
}

// applyLazyCorrections mutates sub in place and returns the columns that
// changed. Repeating it on an already-current record is a no-op, which makes
// the concurrent write-back from multiple readers safe.
func applyLazyCorrections(sub *models.Subscription, now time.Time) []string {
	var columns []string

	if TrialExpired(sub, now) {
		sub.Status = models.SubscriptionStatusExpired
		sub.Plan = string(PlanCollector)
		columns = append(columns, "plan", "status")
	}

	if QuotaStale(sub, now) {
		sub.ScansUsed = 0
		sub.ScansResetAt = NextResetBoundary(now)
		columns = append(columns, "scans_used", "scans_reset_at")
	}

	return columns
}

// writeBack persists a lazy correction without blocking the read path. The
// write is idempotent; if the process dies first, the next read recomputes
// the same correction.
func (s *Service) writeBack(sub models.Subscription, columns []string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeBackTimeout)
		defer cancel()
		if err := s.repo.Upsert(ctx, &sub, columns); err != nil {
			log.Errorf("[Entitlements] lazy write-back failed for user %d: %v", sub.UserID, err)
		}
	}()
}

func (s *Service) effectiveView(sub *models.Subscription) *Effective {
	plan := NormalizePlan(sub.Plan)
	limits := LimitsFor(plan)
	return &Effective{
		Plan:       plan,
		Status:     sub.Status,
		IsActive:   sub.Status == models.SubscriptionStatusActive || sub.Status == models.SubscriptionStatusTrialing,
		ScansUsed:  sub.ScansUsed,
		ScansLimit: limits.Scans,
		Unlimited:  limits.Unlimited,
	}
}
