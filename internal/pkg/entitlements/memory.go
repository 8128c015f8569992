package entitlements

import (
	"context"
	"sync"

	"github.com/TimoLindner/WaxCrate/app/models"
)

// MemoryRepository is a mutex-guarded in-memory Repository. It exists for
// tests and the local dev profile and mirrors the SQL implementation's
// per-row atomicity contract.
type MemoryRepository struct {
	mu     sync.Mutex
	byUser map[uint]*models.Subscription
	nextID uint
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byUser: make(map[uint]*models.Subscription), nextID: 1}
}

func (m *MemoryRepository) Get(_ context.Context, userID uint) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *MemoryRepository) FindByBillingCustomerID(_ context.Context, customerID string) (*models.Subscription, error) {
	if customerID == "" {
		return nil, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.byUser {
		if sub.BillingCustomerID == customerID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) Upsert(_ context.Context, sub *models.Subscription, columns []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.byUser[sub.UserID]
	if !ok {
		cp := *sub
		cp.ID = m.nextID
		m.nextID++
		m.byUser[sub.UserID] = &cp
		*sub = cp
		return nil
	}

	for _, col := range columns {
		applyColumn(existing, sub, col)
	}
	*sub = *existing
	return nil
}

func (m *MemoryRepository) IncrementScansUsed(_ context.Context, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.byUser[userID]
	if !ok {
		return ErrNotFound
	}
	sub.ScansUsed++
	return nil
}

// applyColumn copies a single upsert column from src onto dst, matching the
// assignment-column semantics of the GORM implementation.
func applyColumn(dst, src *models.Subscription, col string) {
	switch col {
	case "plan":
		dst.Plan = src.Plan
	case "status":
		dst.Status = src.Status
	case "trial_start":
		dst.TrialStart = src.TrialStart
	case "trial_end":
		dst.TrialEnd = src.TrialEnd
	case "billing_customer_id":
		dst.BillingCustomerID = src.BillingCustomerID
	case "billing_subscription_id":
		dst.BillingSubscriptionID = src.BillingSubscriptionID
	case "current_period_start":
		dst.CurrentPeriodStart = src.CurrentPeriodStart
	case "current_period_end":
		dst.CurrentPeriodEnd = src.CurrentPeriodEnd
	case "scans_used":
		dst.ScansUsed = src.ScansUsed
	case "scans_reset_at":
		dst.ScansResetAt = src.ScansResetAt
	}
}
