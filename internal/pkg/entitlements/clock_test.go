package entitlements

import (
	"testing"
	"time"

	"github.com/TimoLindner/WaxCrate/app/models"
)

func TestTrialExpired(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		sub  models.Subscription
		want bool
	}{
		{
			name: "trial lapsed",
			sub:  models.Subscription{Status: models.SubscriptionStatusTrialing, TrialEnd: &past},
			want: true,
		},
		{
			name: "trial still running",
			sub:  models.Subscription{Status: models.SubscriptionStatusTrialing, TrialEnd: &future},
			want: false,
		},
		{
			name: "not trialing",
			sub:  models.Subscription{Status: models.SubscriptionStatusActive, TrialEnd: &past},
			want: false,
		},
		{
			name: "trialing without end date",
			sub:  models.Subscription{Status: models.SubscriptionStatusTrialing},
			want: false,
		},
	}

	for _, tt := range tests {
		if got := TrialExpired(&tt.sub, now); got != tt.want {
			t.Fatalf("%s: TrialExpired = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestQuotaStale(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		resetAt time.Time
		want    bool
	}{
		{name: "boundary in the past", resetAt: now.Add(-time.Minute), want: true},
		{name: "exactly at the boundary", resetAt: now, want: true},
		{name: "boundary in the future", resetAt: now.Add(time.Minute), want: false},
	}

	for _, tt := range tests {
		sub := models.Subscription{ScansResetAt: tt.resetAt}
		if got := QuotaStale(&sub, now); got != tt.want {
			t.Fatalf("%s: QuotaStale = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNextResetBoundary(t *testing.T) {
	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{
			now:  time.Date(2025, 3, 15, 12, 30, 0, 0, time.UTC),
			want: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			// year rollover
			now:  time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC),
			want: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			// already at a boundary moves to the next one
			now:  time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		if got := NextResetBoundary(tt.now); !got.Equal(tt.want) {
			t.Fatalf("NextResetBoundary(%s) = %s, want %s", tt.now, got, tt.want)
		}
	}
}
