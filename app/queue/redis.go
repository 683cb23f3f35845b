package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/zapflowbr/zapflow/utils"
)

var (
	jobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_processed_total",
			Help: "Total job deliveries partitioned by queue and disposition",
		},
		[]string{"queue", "disposition"},
	)

	jobsDeadLetteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_dead_lettered_total",
			Help: "Jobs moved to a dead-letter queue",
		},
		[]string{"queue"},
	)

	jobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queue_jobs_in_flight",
			Help: "Jobs currently being processed",
		},
	)
)

// RedisQueue is the Redis-backed queue runtime. Each queue keeps a pending
// list, per-consumer processing lists holding in-flight deliveries, a
// delayed ZSET (score = ready time) for backoff re-deliveries, and its
// dead-letter list. A job is moved from pending to its consumer's processing
// list for the duration of one delivery and removed only after the
// disposition landed, so a crashed worker leaves the job recoverable.
// Succeeded and discarded jobs are pruned; exhausted or fatal jobs are
// explicitly moved to the mapped DLQ with the payload and last failure
// reason intact.
type RedisQueue struct {
	rc     *redis.Client
	prefix string
	logger *log.Logger

	mu       sync.Mutex
	configs  map[string]Config
	handlers map[string]Handler

	wg sync.WaitGroup
}

// NewRedisQueue creates the runtime with the static queue declarations
func NewRedisQueue(rc *redis.Client, prefix string, logger *log.Logger) *RedisQueue {
	if logger == nil {
		logger = log.Default()
	}
	configs := make(map[string]Config)
	for _, c := range Configs() {
		configs[c.Name] = c
	}
	return &RedisQueue{
		rc:       rc,
		prefix:   prefix,
		logger:   logger,
		configs:  configs,
		handlers: make(map[string]Handler),
	}
}

func (q *RedisQueue) pendingKey(queueName string) string {
	return q.prefix + "queue:" + queueName + ":pending"
}

func (q *RedisQueue) delayedKey(queueName string) string {
	return q.prefix + "queue:" + queueName + ":delayed"
}

// processingKey is stable across restarts so a restarted worker can recover
// the in-flight jobs of its crashed predecessor
func (q *RedisQueue) processingKey(queueName string, consumer int) string {
	return q.prefix + "queue:" + queueName + ":processing:" + strconv.Itoa(consumer)
}

func (q *RedisQueue) dlqKey(queueName string) string {
	return q.prefix + "queue:" + DLQFor(queueName)
}

func (q *RedisQueue) configFor(queueName string) Config {
	if c, ok := q.configs[queueName]; ok {
		return c
	}
	return Config{Name: queueName, DLQ: queueName + DLQSuffix, Policy: DefaultPolicy(), Concurrency: 1}
}

// Enqueue wraps the payload in a job envelope and pushes it onto the
// queue's pending list. Returns the generated job id.
func (q *RedisQueue) Enqueue(ctx context.Context, queueName, jobType string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	cfg := q.configFor(queueName)
	job := Job{
		ID:          uuid.NewString(),
		Queue:       queueName,
		Type:        jobType,
		Payload:     raw,
		Attempt:     0,
		MaxAttempts: cfg.Policy.MaxAttempts,
		EnqueuedAt:  utils.UTCNow(),
	}
	encoded, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job envelope: %w", err)
	}

	if err := q.rc.LPush(ctx, q.pendingKey(queueName), encoded).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue job on %s: %w", queueName, err)
	}
	return job.ID, nil
}

// SetConcurrency overrides the consumer count of a queue. Must be called
// before Start. Non-positive values keep the declared default.
func (q *RedisQueue) SetConcurrency(queueName string, n int) {
	if n <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if c, ok := q.configs[queueName]; ok {
		c.Concurrency = n
		q.configs[queueName] = c
	}
}

// Register binds the single handler of a queue. Must be called before Start.
func (q *RedisQueue) Register(queueName string, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[queueName] = handler
}

// Start launches consumers and delayed-job promoters for every registered
// queue and returns a stop function that drains in-flight work. Jobs left
// on processing lists by a crashed predecessor are pushed back to pending
// before consumption begins.
func (q *RedisQueue) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	q.mu.Lock()
	for name, handler := range q.handlers {
		cfg := q.configFor(name)

		for i := 0; i < cfg.Concurrency; i++ {
			if err := q.recoverProcessing(ctx, name, q.processingKey(name, i)); err != nil {
				q.logger.Printf("queue %s: recover processing list %d failed: %v", name, i, err)
			}
		}

		q.wg.Add(1)
		go func(name string) {
			defer q.wg.Done()
			q.promoteLoop(ctx, name)
		}(name)

		for i := 0; i < cfg.Concurrency; i++ {
			q.wg.Add(1)
			go func(name string, consumer int, handler Handler, cfg Config) {
				defer q.wg.Done()
				q.consumeLoop(ctx, name, consumer, handler, cfg)
			}(name, i, handler, cfg)
		}
	}
	q.mu.Unlock()

	return func() {
		cancel()
		q.wg.Wait()
	}
}

// recoverProcessing requeues jobs a dead consumer left in flight
func (q *RedisQueue) recoverProcessing(ctx context.Context, queueName, procKey string) error {
	for {
		_, err := q.rc.LMove(ctx, procKey, q.pendingKey(queueName), "RIGHT", "LEFT").Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return err
		}
	}
}

// promoteLoop moves due delayed jobs back onto the pending list
func (q *RedisQueue) promoteLoop(ctx context.Context, queueName string) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.promoteDue(ctx, queueName); err != nil && !errors.Is(err, context.Canceled) {
				q.logger.Printf("queue %s: promote delayed jobs failed: %v", queueName, err)
			}
		}
	}
}

func (q *RedisQueue) promoteDue(ctx context.Context, queueName string) error {
	now := strconv.FormatInt(utils.UTCNow().UnixMilli(), 10)
	entries, err := q.rc.ZRangeByScore(ctx, q.delayedKey(queueName), &redis.ZRangeBy{
		Min: "-inf", Max: now, Count: 100,
	}).Result()
	if err != nil {
		return err
	}

	for _, raw := range entries {
		// ZRem guards against double promotion by concurrent promoters
		removed, err := q.rc.ZRem(ctx, q.delayedKey(queueName), raw).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		if err := q.rc.LPush(ctx, q.pendingKey(queueName), raw).Err(); err != nil {
			return err
		}
	}
	return nil
}

// consumeLoop moves pending jobs onto its processing list, runs deliveries,
// and removes each entry once its disposition landed
func (q *RedisQueue) consumeLoop(ctx context.Context, queueName string, consumer int, handler Handler, cfg Config) {
	procKey := q.processingKey(queueName, consumer)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, err := q.rc.BLMove(ctx, q.pendingKey(queueName), procKey, "RIGHT", "LEFT", 2*time.Second).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			q.logger.Printf("queue %s: pop failed: %v", queueName, err)
			time.Sleep(time.Second)
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			// Undecodable envelopes can never succeed; park them for inspection
			q.logger.Printf("queue %s: dropping undecodable job to DLQ: %v", queueName, err)
			dctx, cancel := dispositionContext(ctx)
			_ = q.rc.LPush(dctx, q.dlqKey(queueName), raw).Err()
			q.ack(dctx, procKey, raw)
			cancel()
			jobsDeadLetteredTotal.WithLabelValues(queueName).Inc()
			continue
		}

		q.deliver(ctx, &job, handler, cfg)

		dctx, cancel := dispositionContext(ctx)
		q.ack(dctx, procKey, raw)
		cancel()
	}
}

// dispositionTimeout bounds retry, DLQ, and ack writes after a delivery
const dispositionTimeout = 10 * time.Second

// dispositionContext detaches from the consumer context's cancellation so
// disposition writes still land while the runtime is shutting down. A job
// caught mid-flight by Stop must end up on the delayed ZSET, the DLQ, or
// back on pending, never nowhere.
func dispositionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), dispositionTimeout)
}

// ack removes a disposed delivery from the consumer's processing list
func (q *RedisQueue) ack(ctx context.Context, procKey, raw string) {
	if err := q.rc.LRem(ctx, procKey, 1, raw).Err(); err != nil {
		q.logger.Printf("queue: ack on %s failed: %v", procKey, err)
	}
}

// deliver runs one attempt of a job under the queue's timeout and applies
// the resulting disposition.
func (q *RedisQueue) deliver(ctx context.Context, job *Job, handler Handler, cfg Config) {
	job.Attempt++

	jobsInFlight.Inc()
	jobCtx, cancel := context.WithTimeout(ctx, cfg.Policy.Timeout)
	out := q.runHandler(jobCtx, job, handler)
	cancel()
	jobsInFlight.Dec()

	dctx, dcancel := dispositionContext(ctx)
	defer dcancel()

	step := NextStep(job, out, cfg.Policy)
	switch step.Kind {
	case StepComplete:
		jobsProcessedTotal.WithLabelValues(job.Queue, "completed").Inc()
	case StepRetry:
		jobsProcessedTotal.WithLabelValues(job.Queue, "retried").Inc()
		if err := q.scheduleRetry(dctx, job, step); err != nil {
			q.logger.Printf("queue %s: schedule retry for job %s failed: %v", job.Queue, job.ID, err)
		}
	case StepDeadLetter:
		jobsProcessedTotal.WithLabelValues(job.Queue, "dead_lettered").Inc()
		if err := q.moveToDLQ(dctx, job, step.Reason); err != nil {
			q.logger.Printf("queue %s: move job %s to DLQ failed: %v", job.Queue, job.ID, err)
		}
	}
}

// runHandler isolates handler panics so one broken job cannot kill a consumer
func (q *RedisQueue) runHandler(ctx context.Context, job *Job, handler Handler) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Printf("queue %s: handler panic for job %s: %v", job.Queue, job.ID, r)
			out = Fatal(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return handler(ctx, job)
}

func (q *RedisQueue) scheduleRetry(ctx context.Context, job *Job, step Step) error {
	job.LastError = step.Reason
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	readyAt := utils.UTCNow().Add(step.Delay)
	return q.rc.ZAdd(ctx, q.delayedKey(job.Queue), redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: encoded,
	}).Err()
}

// moveToDLQ preserves the full envelope plus the last failure reason so
// operators can inspect and replay dead jobs.
func (q *RedisQueue) moveToDLQ(ctx context.Context, job *Job, reason string) error {
	job.LastError = reason
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.rc.LPush(ctx, q.dlqKey(job.Queue), encoded).Err(); err != nil {
		return fmt.Errorf("failed to push job %s to %s: %w", job.ID, DLQFor(job.Queue), err)
	}
	jobsDeadLetteredTotal.WithLabelValues(job.Queue).Inc()
	q.logger.Printf("queue %s: job %s dead-lettered after %d attempts: %s", job.Queue, job.ID, job.Attempt, reason)
	return nil
}

// DeadLetters returns up to limit jobs parked on a queue's DLQ, newest first
func (q *RedisQueue) DeadLetters(ctx context.Context, queueName string, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}
	entries, err := q.rc.LRange(ctx, q.dlqKey(queueName), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read DLQ for %s: %w", queueName, err)
	}
	jobs := make([]*Job, 0, len(entries))
	for _, raw := range entries {
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}
