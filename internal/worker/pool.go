package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueBoletas = "jobs:boletas"
	QueueEmail   = "jobs:email"

	JobBoleta = "boleta"
	JobEmail  = "email"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Broker is the part of redis the queue uses. *redis.Client satisfies it.
type Broker interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// JobHandler processes one job payload. A returned error parks the job in its dead-letter list.
type JobHandler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// BoletaJobPayload asks the worker to submit an issued boleta to the SII,
// render its PDF and mail it when the customer left an address.
type BoletaJobPayload struct {
	BoletaID string `json:"boleta_id"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	broker Broker
}

func NewDispatcher(broker Broker) *Dispatcher {
	return &Dispatcher{broker: broker}
}

func (d *Dispatcher) EnqueueBoleta(ctx context.Context, payload BoletaJobPayload) error {
	return d.enqueue(ctx, QueueBoletas, JobBoleta, payload)
}

func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, JobEmail, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.broker.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP, so idle workers cost nothing. The returned
// WaitGroup is done once every worker has observed ctx cancellation.
func StartWorkerPool(ctx context.Context, broker Broker, numWorkers int, handlers map[string]JobHandler) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runWorker(ctx, broker, id, handlers)
		}(i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
	return &wg
}

func runWorker(ctx context.Context, broker Broker, id int, handlers map[string]JobHandler) {
	queues := []string{QueueBoletas, QueueEmail}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop, waits up to 5s then loops to check ctx
			result, err := broker.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, broker, handlers, result[0], result[1])
		}
	}
}

func processJob(ctx context.Context, broker Broker, handlers map[string]JobHandler, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		deadLetter(ctx, broker, queue, "unknown", json.RawMessage(fmt.Sprintf("%q", raw)), "malformed envelope: "+err.Error(), 0)
		return
	}
	h, ok := handlers[job.Type]
	if !ok {
		log.Error().Str("type", job.Type).Str("queue", queue).Msg("no handler for job type")
		deadLetter(ctx, broker, queue, job.Type, job.Payload, "no handler registered", 0)
		return
	}

	start := time.Now()
	if err := safeProcess(ctx, h, job.Payload); err != nil {
		log.Error().Err(err).Str("type", job.Type).Str("queue", queue).Msg("job failed")
		deadLetter(ctx, broker, queue, job.Type, job.Payload, err.Error(), 1)
		return
	}
	log.Debug().Str("type", job.Type).Dur("took", time.Since(start)).Msg("job processed")
}

// safeProcess turns a handler panic into an error so one bad job cannot kill a worker.
func safeProcess(ctx context.Context, h JobHandler, payload json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Process(ctx, payload)
}
