package webhookqueue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobDecodeEvent(t *testing.T) {
	job := &Job{
		ID:        "job_1",
		EventID:   "evt_1",
		EventType: "invoice.payment_failed",
		Event:     json.RawMessage(`{"id":"evt_1","type":"invoice.payment_failed","data":{"object":{"id":"in_1"}}}`),
	}

	event, err := job.DecodeEvent()
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "invoice.payment_failed", string(event.Type))
	assert.NotNil(t, event.Data)
}

func TestJobDecodeEventInvalidPayload(t *testing.T) {
	job := &Job{ID: "job_2", Event: json.RawMessage(`not-json`)}

	_, err := job.DecodeEvent()
	assert.Error(t, err)
}

func TestJobRoundTrip(t *testing.T) {
	job := &Job{
		ID:         "job_3",
		EventID:    "evt_3",
		EventType:  "customer.subscription.updated",
		Event:      json.RawMessage(`{"id":"evt_3"}`),
		Status:     JobStatusPending,
		RetryCount: 2,
		MaxRetries: DefaultMaxRetries,
	}

	data, err := json.Marshal(job)
	require.NoError(t, err)

	var decoded Job
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, job.ID, decoded.ID)
	assert.Equal(t, job.Status, decoded.Status)
	assert.Equal(t, job.RetryCount, decoded.RetryCount)
	assert.JSONEq(t, string(job.Event), string(decoded.Event))
}
