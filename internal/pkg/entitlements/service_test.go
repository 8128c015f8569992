package entitlements

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimoLindner/WaxCrate/app/models"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seed(t *testing.T, repo Repository, sub *models.Subscription) {
	t.Helper()
	require.NoError(t, repo.Upsert(context.Background(), sub, subscriptionAllColumns))
}

func TestEvaluateMissingRowSynthesizesDefault(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository()
	svc := NewService(repo).WithClock(fixedClock(now))

	eff, err := svc.Evaluate(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, PlanCollector, eff.Plan)
	assert.Equal(t, models.SubscriptionStatusActive, eff.Status)
	assert.True(t, eff.IsActive)
	assert.Equal(t, 0, eff.ScansUsed)
	assert.Equal(t, 10, eff.ScansLimit)
	assert.False(t, eff.Unlimited)
	assert.Equal(t, 10, eff.ScansRemaining())

	// reads never materialize the row
	_, err = repo.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvaluateExpiresLapsedTrial(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	trialEnd := now.Add(-24 * time.Hour)

	repo := NewMemoryRepository()
	svc := NewService(repo).WithClock(fixedClock(now))
	seed(t, repo, &models.Subscription{
		UserID:       7,
		Plan:         string(PlanEnthusiast),
		Status:       models.SubscriptionStatusTrialing,
		TrialEnd:     &trialEnd,
		ScansUsed:    4,
		ScansResetAt: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	})

	eff, err := svc.Evaluate(context.Background(), 7)
	require.NoError(t, err)

	// the returned view is already corrected
	assert.Equal(t, PlanCollector, eff.Plan)
	assert.Equal(t, models.SubscriptionStatusExpired, eff.Status)
	assert.False(t, eff.IsActive)

	// the correction lands in the store without blocking the read
	assert.Eventually(t, func() bool {
		sub, err := repo.Get(context.Background(), 7)
		if err != nil {
			return false
		}
		return sub.Status == models.SubscriptionStatusExpired && sub.Plan == string(PlanCollector)
	}, time.Second, 10*time.Millisecond)
}

func TestEvaluateRollsOverStaleQuota(t *testing.T) {
	now := time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)

	repo := NewMemoryRepository()
	svc := NewService(repo).WithClock(fixedClock(now))
	seed(t, repo, &models.Subscription{
		UserID:       9,
		Plan:         string(PlanCollector),
		Status:       models.SubscriptionStatusActive,
		ScansUsed:    10,
		ScansResetAt: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	})

	eff, err := svc.Evaluate(context.Background(), 9)
	require.NoError(t, err)

	assert.Equal(t, 0, eff.ScansUsed)
	assert.Equal(t, 10, eff.ScansRemaining())

	assert.Eventually(t, func() bool {
		sub, err := repo.Get(context.Background(), 9)
		if err != nil {
			return false
		}
		return sub.ScansUsed == 0 && sub.ScansResetAt.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	}, time.Second, 10*time.Millisecond)
}

func TestEvaluateFreshRecordUntouched(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	repo := NewMemoryRepository()
	svc := NewService(repo).WithClock(fixedClock(now))
	seed(t, repo, &models.Subscription{
		UserID:       3,
		Plan:         string(PlanCurator),
		Status:       models.SubscriptionStatusActive,
		ScansUsed:    123,
		ScansResetAt: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	})

	eff, err := svc.Evaluate(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, PlanCurator, eff.Plan)
	assert.True(t, eff.Unlimited)
	assert.Equal(t, 123, eff.ScansUsed)
}

func TestRequireTier(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	future := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	repo := NewMemoryRepository()
	svc := NewService(repo).WithClock(fixedClock(now))
	seed(t, repo, &models.Subscription{
		UserID: 1, Plan: string(PlanCurator), Status: models.SubscriptionStatusActive, ScansResetAt: future,
	})
	seed(t, repo, &models.Subscription{
		UserID: 2, Plan: string(PlanEnthusiast), Status: models.SubscriptionStatusPastDue, ScansResetAt: future,
	})

	// plan meets the requirement
	refusal, err := svc.RequireTier(context.Background(), 1, PlanCurator)
	require.NoError(t, err)
	assert.Nil(t, refusal)

	// plan below the requirement
	refusal, err = svc.RequireTier(context.Background(), 1, PlanEnthusiast)
	require.NoError(t, err)
	require.NotNil(t, refusal)
	assert.Equal(t, RefusalUpgradeNeeded, refusal.Reason)
	assert.Equal(t, PlanEnthusiast, refusal.RequiredPlan)
	assert.Equal(t, PlanCurator, refusal.Plan)

	// inactive status refuses regardless of plan rank
	refusal, err = svc.RequireTier(context.Background(), 2, PlanCollector)
	require.NoError(t, err)
	require.NotNil(t, refusal)
	assert.Equal(t, RefusalInactive, refusal.Reason)
	assert.Equal(t, models.SubscriptionStatusPastDue, refusal.Status)
}

func TestConsumeScanMaterializesDefaultRow(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	repo := NewMemoryRepository()
	svc := NewService(repo).WithClock(fixedClock(now))

	refusal, err := svc.ConsumeScan(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, refusal)

	sub, err := repo.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, string(PlanCollector), sub.Plan)
	assert.Equal(t, 1, sub.ScansUsed)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), sub.ScansResetAt)
}

func TestConsumeScanExhaustsQuota(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	repo := NewMemoryRepository()
	svc := NewService(repo).WithClock(fixedClock(now))
	seed(t, repo, &models.Subscription{
		UserID:       5,
		Plan:         string(PlanCollector),
		Status:       models.SubscriptionStatusActive,
		ScansUsed:    9,
		ScansResetAt: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	})

	refusal, err := svc.ConsumeScan(context.Background(), 5)
	require.NoError(t, err)
	assert.Nil(t, refusal)

	refusal, err = svc.ConsumeScan(context.Background(), 5)
	require.NoError(t, err)
	require.NotNil(t, refusal)
	assert.Equal(t, RefusalQuotaExhausted, refusal.Reason)
	assert.Equal(t, PlanCollector, refusal.Plan)

	sub, err := repo.Get(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 10, sub.ScansUsed)
}

func TestConsumeScanRefusesInactive(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	repo := NewMemoryRepository()
	svc := NewService(repo).WithClock(fixedClock(now))
	seed(t, repo, &models.Subscription{
		UserID:       6,
		Plan:         string(PlanEnthusiast),
		Status:       models.SubscriptionStatusCanceled,
		ScansResetAt: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	})

	refusal, err := svc.ConsumeScan(context.Background(), 6)
	require.NoError(t, err)
	require.NotNil(t, refusal)
	assert.Equal(t, RefusalInactive, refusal.Reason)
}

func TestConsumeScanConcurrentNoLostUpdates(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	repo := NewMemoryRepository()
	svc := NewService(repo).WithClock(fixedClock(now))
	seed(t, repo, &models.Subscription{
		UserID:       8,
		Plan:         string(PlanEnthusiast),
		Status:       models.SubscriptionStatusActive,
		ScansResetAt: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	})

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _ = svc.ConsumeScan(context.Background(), 8)
		}()
	}
	wg.Wait()

	sub, err := repo.Get(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, n, sub.ScansUsed)
}

func TestEffectiveScansRemaining(t *testing.T) {
	eff := Effective{ScansUsed: 7, ScansLimit: 10}
	assert.Equal(t, 3, eff.ScansRemaining())

	eff.ScansUsed = 12
	assert.Equal(t, 0, eff.ScansRemaining())

	eff.Unlimited = true
	assert.Equal(t, 0, eff.ScansRemaining())
}
