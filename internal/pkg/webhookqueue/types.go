package webhookqueue

import (
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v78"
)

// JobStatus defines the status of a redelivery job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusFailed     JobStatus = "failed"
)

// Job wraps a verified webhook event whose processing failed after the
// delivery was already acknowledged. It is redelivered out-of-band until it
// succeeds or runs out of attempts; the TTL on the stored job bounds the
// queue either way.
type Job struct {
	ID         string          `json:"id"`
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	Event      json.RawMessage `json:"event"`
	Status     JobStatus       `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	ErrorMsg   string          `json:"error_msg,omitempty"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
}

// DecodeEvent unmarshals the stored Stripe event.
func (j *Job) DecodeEvent() (stripe.Event, error) {
	var event stripe.Event
	err := json.Unmarshal(j.Event, &event)
	return event, err
}
