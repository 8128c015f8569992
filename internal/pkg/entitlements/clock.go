package entitlements

import (
	"time"

	"github.com/TimoLindner/WaxCrate/app/models"
)

// The quota clock: pure time checks evaluated on every read. None of these
// touch the store; callers write back corrections themselves.

// TrialExpired reports whether a trialing record's trial window has lapsed.
func TrialExpired(sub *models.Subscription, now time.Time) bool {
	if sub.Status != models.SubscriptionStatusTrialing || sub.TrialEnd == nil {
		return false
	}
	return sub.TrialEnd.Before(now)
}

// QuotaStale reports whether the scan counter must be treated as stale.
// scans_reset_at is the first moment the counter is considered stale, so the
// boundary instant itself already counts.
func QuotaStale(sub *models.Subscription, now time.Time) bool {
	return !sub.ScansResetAt.After(now)
}

// NextResetBoundary returns the first instant of the next calendar month in
// UTC.
func NextResetBoundary(now time.Time) time.Time {
	t := now.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
