package models

import (
	"time"
)

// Subscription status values. This is a closed set: every external billing
// status must be mapped into it before a record is written.
const (
	SubscriptionStatusTrialing   = "trialing"
	SubscriptionStatusActive     = "active"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusExpired    = "expired"
)

// Subscription is the durable entitlement record, one row per user. It mirrors
// the billing provider's view of the user plus the local scan quota counter.
// Rows are created lazily on the first mutation; reads on missing users get a
// synthesized free-tier default instead.
type Subscription struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	UserID                uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	Plan                  string     `gorm:"type:varchar(50);not null;default:'collector';index" json:"plan"`
	Status                string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	TrialStart            *time.Time `gorm:"type:timestamp;default:null" json:"trial_start,omitempty"`
	TrialEnd              *time.Time `gorm:"type:timestamp;default:null" json:"trial_end,omitempty"`
	BillingCustomerID     string     `gorm:"type:varchar(191);not null;default:'';index" json:"billing_customer_id"`
	BillingSubscriptionID string     `gorm:"type:varchar(191);not null;default:''" json:"billing_subscription_id"`
	CurrentPeriodStart    *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd      *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	ScansUsed             int        `gorm:"not null;default:0" json:"scans_used"`
	ScansResetAt          time.Time  `gorm:"not null" json:"scans_reset_at"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsValidSubscriptionStatus reports whether s is a member of the closed
// status set.
func IsValidSubscriptionStatus(s string) bool {
	switch s {
	case SubscriptionStatusTrialing, SubscriptionStatusActive, SubscriptionStatusPastDue,
		SubscriptionStatusCanceled, SubscriptionStatusIncomplete, SubscriptionStatusExpired:
		return true
	default:
		return false
	}
}

// HasBillingIdentity reports whether the user ever initiated billing.
func (s *Subscription) HasBillingIdentity() bool {
	return s.BillingCustomerID != ""
}
