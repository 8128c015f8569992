package webhookqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v78"

	"github.com/TimoLindner/WaxCrate/internal/pkg/cache"
)

const (
	// Redis key prefixes
	JobKeyPrefix     = "webhook_retry:"
	JobQueueKey      = "webhook_retry_queue"
	JobProcessingKey = "webhook_retry_processing"

	// Job settings
	DefaultMaxRetries = 5
	JobTTL            = 24 * time.Hour // Jobs expire after 24 hours
	retryBackoff      = 30 * time.Second
)

// Dispatcher re-runs a verified webhook event through the reconciler.
type Dispatcher interface {
	Dispatch(ctx context.Context, event stripe.Event) error
}

// Queue redelivers webhook events that were acknowledged but failed to
// process, using Redis as the backing store.
type Queue struct {
	client     *redis.Client
	dispatcher Dispatcher
	workers    int
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewQueue creates a redelivery queue over the shared cache connection.
func NewQueue(dispatcher Dispatcher, workers int) *Queue {
	if workers <= 0 {
		workers = 2
	}

	return &Queue{
		client:     cache.GetClient(),
		dispatcher: dispatcher,
		workers:    workers,
		stopCh:     make(chan struct{}),
	}
}

// Start starts the redelivery workers.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}

	q.running = true
	log.Infof("[WebhookQueue] Starting %d workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Stop stops the redelivery workers.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}

	log.Info("[WebhookQueue] Stopping workers...")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[WebhookQueue] All workers stopped")
}

// Enqueue parks a verified event for out-of-band redelivery.
func (q *Queue) Enqueue(event stripe.Event) (*Job, error) {
	ctx := context.Background()

	raw, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	job := &Job{
		ID:         uuid.New().String(),
		EventID:    event.ID,
		EventType:  string(event.Type),
		Event:      raw,
		Status:     JobStatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, JobKeyPrefix+job.ID, jobData, JobTTL)
	pipe.LPush(ctx, JobQueueKey, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	log.Infof("[WebhookQueue] Enqueued event %s (type=%s) as job %s", job.EventID, job.EventType, job.ID)
	return job, nil
}

// worker redelivers jobs from the queue until stopped.
func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log.Infof("[WebhookQueue] Worker %d started", id)

	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			log.Infof("[WebhookQueue] Worker %d stopping", id)
			return
		default:
			job, err := q.dequeueJob(ctx)
			if err != nil {
				if err != redis.Nil {
					log.Errorf("[WebhookQueue] Worker %d: Error dequeuing job: %v", id, err)
					time.Sleep(time.Second)
				}
				continue
			}
			if job != nil {
				q.processJob(ctx, job)
			}
		}
	}
}

// dequeueJob moves the next job into the processing list and loads it.
func (q *Queue) dequeueJob(ctx context.Context) (*Job, error) {
	jobID, err := q.client.BRPopLPush(ctx, JobQueueKey, JobProcessingKey, time.Second).Result()
	if err != nil {
		return nil, err
	}

	jobData, err := q.client.Get(ctx, JobKeyPrefix+jobID).Result()
	if err != nil {
		// Job data expired or missing; drop the stray entry.
		q.client.LRem(ctx, JobProcessingKey, 1, jobID)
		return nil, fmt.Errorf("job data not found for ID %s", jobID)
	}

	var job Job
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		q.client.LRem(ctx, JobProcessingKey, 1, jobID)
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", jobID, err)
	}

	return &job, nil
}

// processJob redispatches a single event. Failures requeue with a backoff
// until MaxRetries is exhausted.
func (q *Queue) processJob(ctx context.Context, job *Job) {
	job.Status = JobStatusProcessing
	job.UpdatedAt = time.Now()
	q.updateJob(ctx, job)

	event, err := job.DecodeEvent()
	if err == nil {
		err = q.dispatcher.Dispatch(ctx, event)
	}

	q.client.LRem(ctx, JobProcessingKey, 1, job.ID)

	if err == nil {
		log.Infof("[WebhookQueue] Job %s (event %s) redelivered", job.ID, job.EventID)
		q.client.Del(ctx, JobKeyPrefix+job.ID)
		return
	}

	job.RetryCount++
	job.ErrorMsg = err.Error()
	job.UpdatedAt = time.Now()

	if job.RetryCount >= job.MaxRetries {
		log.Errorf("[WebhookQueue] Job %s (event %s) failed permanently after %d attempts: %v",
			job.ID, job.EventID, job.RetryCount, err)
		job.Status = JobStatusFailed
		q.updateJob(ctx, job)
		return
	}

	log.Warnf("[WebhookQueue] Job %s (event %s) failed (attempt %d/%d), requeueing: %v",
		job.ID, job.EventID, job.RetryCount, job.MaxRetries, err)
	job.Status = JobStatusPending
	q.updateJob(ctx, job)

	// Delay the requeue so a struggling store is not hammered.
	time.AfterFunc(retryBackoff, func() {
		if err := q.client.RPush(context.Background(), JobQueueKey, job.ID).Err(); err != nil {
			log.Errorf("[WebhookQueue] Requeue of job %s failed: %v", job.ID, err)
		}
	})
}

func (q *Queue) updateJob(ctx context.Context, job *Job) {
	jobData, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[WebhookQueue] Failed to marshal job %s: %v", job.ID, err)
		return
	}
	if err := q.client.Set(ctx, JobKeyPrefix+job.ID, jobData, JobTTL).Err(); err != nil {
		log.Errorf("[WebhookQueue] Failed to update job %s: %v", job.ID, err)
	}
}
