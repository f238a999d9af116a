package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueAccessEvents = "jobs:access_events"
	QueueEmail        = "jobs:email"

	JobTypeAccessEvent = "access_event"
	JobTypeEmail       = "email"

	// maxAttempts bounds handler retries before a job is dead-lettered.
	maxAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler processes one decoded job payload. A returned error is retried
// with backoff; wrap it in backoff.Permanent to dead-letter immediately.
type Handler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// WorkerHandlers holds the per-queue processors wired at the composition root.
type WorkerHandlers struct {
	AccessEvents Handler
	Email        Handler
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueAccessEvent pushes a scan decision for audit persistence.
func (d *Dispatcher) EnqueueAccessEvent(ctx context.Context, payload AccessEventJob) error {
	return d.enqueue(ctx, QueueAccessEvents, JobTypeAccessEvent, payload)
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJob) error {
	return d.enqueue(ctx, QueueEmail, JobTypeEmail, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// pool routes dequeued jobs to their handlers.
type pool struct {
	handlers   *WorkerHandlers
	newBackOff func() backoff.BackOff
	deadLetter func(ctx context.Context, queue, jobType string, payload json.RawMessage, reason string, attempts int)
	// errPause is how long a worker waits after a failed BRPOP before polling again.
	errPause time.Duration
}

// StartWorkerPool launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, numWorkers int) {
	p := &pool{
		handlers:   handlers,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		deadLetter: func(ctx context.Context, queue, jobType string, payload json.RawMessage, reason string, attempts int) {
			SendToDLQ(ctx, rdb, queue, jobType, payload, reason, attempts)
		},
		errPause: 2 * time.Second,
	}
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, rdb, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *pool) run(ctx context.Context, rdb *redis.Client, id int) {
	queues := []string{QueueAccessEvents, QueueEmail}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				log.Warn().Err(err).Int("worker", id).Msg("worker: dequeue failed, pausing")
				select {
				case <-ctx.Done():
				case <-time.After(p.errPause):
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.process(ctx, result[0], result[1])
		}
	}
}

func (p *pool) process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		p.deadLetter(ctx, queue, "", json.RawMessage(raw), "undecodable envelope", 0)
		return
	}

	h := p.handlerFor(job.Type)
	if h == nil {
		log.Error().Str("type", job.Type).Str("queue", queue).Msg("no handler for job type")
		p.deadLetter(ctx, queue, job.Type, job.Payload, "no handler", 0)
		return
	}

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		return struct{}{}, h.Process(ctx, job.Payload)
	},
		backoff.WithBackOff(p.newBackOff()),
		backoff.WithMaxTries(maxAttempts),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		p.deadLetter(ctx, queue, job.Type, job.Payload, err.Error(), attempts)
		return
	}
	log.Debug().Str("type", job.Type).Int("attempts", attempts).Msg("job processed")
}

func (p *pool) handlerFor(jobType string) Handler {
	if p.handlers == nil {
		return nil
	}
	switch jobType {
	case JobTypeAccessEvent:
		return p.handlers.AccessEvents
	case JobTypeEmail:
		return p.handlers.Email
	}
	return nil
}
