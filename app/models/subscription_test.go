package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidSubscriptionStatus(t *testing.T) {
	for _, status := range []string{"trialing", "active", "past_due", "canceled", "incomplete", "expired"} {
		assert.True(t, IsValidSubscriptionStatus(status), "expected %q to be valid", status)
	}
	for _, status := range []string{"", "paused", "unpaid", "ACTIVE"} {
		assert.False(t, IsValidSubscriptionStatus(status), "expected %q to be invalid", status)
	}
}

func TestSubscriptionHasBillingIdentity(t *testing.T) {
	sub := &Subscription{UserID: 1}
	assert.False(t, sub.HasBillingIdentity())

	sub.BillingCustomerID = "cus_1"
	assert.True(t, sub.HasBillingIdentity())
}

func TestParseUserID(t *testing.T) {
	id, err := ParseUserID("42")
	assert.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, raw := range []string{"", "0", "-1", "abc", "1.5"} {
		_, err := ParseUserID(raw)
		assert.Error(t, err, "expected %q to be rejected", raw)
	}
}

func TestUserValidate(t *testing.T) {
	user := &User{Name: "Ada Lovelace", Email: "ada@example.com", Role: ROLE_USER}
	assert.NoError(t, user.Validate())

	user.Email = "not-an-email"
	assert.Error(t, user.Validate())

	user.Email = "ada@example.com"
	user.Role = "superuser"
	assert.Error(t, user.Validate())
}

func TestUserIsAdmin(t *testing.T) {
	assert.False(t, (&User{Role: ROLE_USER}).IsAdmin())
	assert.True(t, (&User{Role: ROLE_ADMIN}).IsAdmin())
}
