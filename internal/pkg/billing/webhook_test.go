package billing

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/TimoLindner/WaxCrate/app/models"
	"github.com/TimoLindner/WaxCrate/internal/pkg/entitlements"
)

const testWebhookSecret = "whsec_test_secret"

func signPayload(payload []byte, secret string, at time.Time) string {
	sig := webhook.ComputeSignature(at, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))
}

func TestVerifyEventAcceptsValidSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"invoice.payment_failed","data":{"object":{"id":"in_1"}}}`)
	header := signPayload(payload, testWebhookSecret, time.Now())

	event, err := VerifyEvent(payload, header, testWebhookSecret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventPaymentFailed, string(event.Type))
}

func TestVerifyEventRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"invoice.payment_failed","data":{"object":{"id":"in_1"}}}`)
	header := signPayload(payload, testWebhookSecret, time.Now())

	tampered := []byte(`{"id":"evt_1","object":"event","type":"customer.subscription.deleted","data":{"object":{"id":"sub_1"}}}`)
	_, err := VerifyEvent(tampered, header, testWebhookSecret)
	assert.Error(t, err)
}

func TestVerifyEventRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"invoice.payment_failed","data":{"object":{"id":"in_1"}}}`)
	header := signPayload(payload, "whsec_other", time.Now())

	_, err := VerifyEvent(payload, header, testWebhookSecret)
	assert.Error(t, err)
}

func TestVerifyEventRejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"invoice.payment_failed","data":{"object":{"id":"in_1"}}}`)
	header := signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour))

	_, err := VerifyEvent(payload, header, testWebhookSecret)
	assert.Error(t, err)
}

func TestDispatchRoutesPaymentFailed(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	repo := entitlements.NewMemoryRepository()
	svc := newTestService(repo, stubFetcher{}, now)
	require.NoError(t, repo.Upsert(context.Background(), &models.Subscription{
		UserID:            1,
		Plan:              string(entitlements.PlanCurator),
		Status:            models.SubscriptionStatusActive,
		BillingCustomerID: "cus_1",
		ScansResetAt:      now.AddDate(0, 1, 0),
	}, []string{"plan", "status", "billing_customer_id", "scans_reset_at"}))

	event := stripe.Event{
		Type: stripe.EventType(EventPaymentFailed),
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id":"in_1","customer":"cus_1"}`)},
	}
	require.NoError(t, svc.Dispatch(context.Background(), event))

	sub, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPastDue, sub.Status)
}

func TestDispatchIgnoresUnknownEventType(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestService(entitlements.NewMemoryRepository(), stubFetcher{}, now)

	event := stripe.Event{
		Type: stripe.EventType("charge.refunded"),
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	assert.NoError(t, svc.Dispatch(context.Background(), event))
}
