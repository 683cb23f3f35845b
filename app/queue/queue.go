// Package queue implements the multi-queue dispatch system: named work
// queues with per-queue retry policies, exponential backoff, and a static
// dead-letter queue mapping.
package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Queue names. Every primary queue has exactly one dead-letter queue,
// named by DLQSuffix.
const (
	QueueCampaigns        = "campaigns"
	QueueMessages         = "messages"
	QueueSimplifiedPublic = "simplified-public"
	QueueCustomPublic     = "custom-public"

	DLQSuffix = "-dlq"
)

// Job types carried on the queues
const (
	JobTypeDispatchCampaign = "dispatch-campaign"
	JobTypeSendMessage      = "send-message"
	JobTypeResolvePublic    = "resolve-public"
)

// Policy is the retry policy of a queue: total attempts, exponential
// backoff between attempts, and the per-job execution timeout.
type Policy struct {
	MaxAttempts   int           `json:"max_attempts"`
	BackoffBase   time.Duration `json:"backoff_base"`
	BackoffFactor int           `json:"backoff_factor"`
	BackoffCap    time.Duration `json:"backoff_cap"`
	Timeout       time.Duration `json:"timeout"`
}

// DefaultPolicy is applied to queues without a domain-specific override
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		BackoffBase:   2 * time.Second,
		BackoffFactor: 2,
		BackoffCap:    60 * time.Second,
		Timeout:       60 * time.Second,
	}
}

// BackoffFor returns the delay before the next attempt, given the 1-based
// attempt that just failed: base, base*factor, base*factor^2, ... capped.
func (p Policy) BackoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= time.Duration(p.BackoffFactor)
		if d >= p.BackoffCap {
			return p.BackoffCap
		}
	}
	if d > p.BackoffCap {
		return p.BackoffCap
	}
	return d
}

// Config declares one primary queue: its retry policy, its dead-letter
// queue, and how many concurrent consumers drain it.
type Config struct {
	Name        string
	DLQ         string
	Policy      Policy
	Concurrency int
}

// Configs returns the static queue declarations. Failure costs differ per
// domain: campaigns are expensive to recompute and retry longest, plain
// messages are cheap and retry fast, public resolution sits in between.
func Configs() []Config {
	return []Config{
		{
			Name: QueueCampaigns,
			DLQ:  QueueCampaigns + DLQSuffix,
			Policy: Policy{
				MaxAttempts:   5,
				BackoffBase:   5 * time.Second,
				BackoffFactor: 2,
				BackoffCap:    60 * time.Second,
				Timeout:       60 * time.Second,
			},
			Concurrency: 2,
		},
		{
			Name: QueueMessages,
			DLQ:  QueueMessages + DLQSuffix,
			Policy: Policy{
				MaxAttempts:   3,
				BackoffBase:   2 * time.Second,
				BackoffFactor: 2,
				BackoffCap:    60 * time.Second,
				Timeout:       60 * time.Second,
			},
			Concurrency: 8,
		},
		{
			Name: QueueSimplifiedPublic,
			DLQ:  QueueSimplifiedPublic + DLQSuffix,
			Policy: Policy{
				MaxAttempts:   4,
				BackoffBase:   3 * time.Second,
				BackoffFactor: 2,
				BackoffCap:    60 * time.Second,
				Timeout:       60 * time.Second,
			},
			Concurrency: 2,
		},
		{
			Name: QueueCustomPublic,
			DLQ:  QueueCustomPublic + DLQSuffix,
			Policy: Policy{
				MaxAttempts:   4,
				BackoffBase:   3 * time.Second,
				BackoffFactor: 2,
				BackoffCap:    60 * time.Second,
				Timeout:       60 * time.Second,
			},
			Concurrency: 2,
		},
	}
}

// DLQFor returns the dead-letter queue mapped to a primary queue. The
// mapping is total: unknown queues fall back to name + DLQSuffix.
func DLQFor(name string) string {
	for _, c := range Configs() {
		if c.Name == name {
			return c.DLQ
		}
	}
	return name + DLQSuffix
}

// Job is the envelope carried on a queue. Payload stays opaque JSON here;
// processors decode it into their typed payload structs.
type Job struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	LastError   string          `json:"last_error,omitempty"`
}

// Decode unmarshals the job payload into a typed payload struct
func (j *Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}

// outcomeKind classifies what a handler reported for a job
type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRetry
	outcomeFatal
	outcomeDiscard
)

// Outcome is the handler's verdict on one delivery of a job.
//   - Success: work done, prune the job
//   - Retry: transient failure, re-deliver with backoff until attempts run out
//   - Fatal: structurally broken or unfixable, straight to the DLQ
//   - Discard: benign no-op (canceled or already-done work), prune the job
type Outcome struct {
	kind   outcomeKind
	reason string
}

func Success() Outcome               { return Outcome{kind: outcomeSuccess} }
func Discard(reason string) Outcome  { return Outcome{kind: outcomeDiscard, reason: reason} }
func Retry(err error) Outcome        { return Outcome{kind: outcomeRetry, reason: err.Error()} }
func Fatal(err error) Outcome        { return Outcome{kind: outcomeFatal, reason: err.Error()} }

// Reason returns the failure reason attached to the outcome, if any
func (o Outcome) Reason() string { return o.reason }

// Terminal reports whether the outcome ends the job's deliveries regardless
// of the retry policy. Only Retry can lead to another attempt.
func (o Outcome) Terminal() bool { return o.kind != outcomeRetry }

// Handler processes one job delivery
type Handler func(ctx context.Context, job *Job) Outcome

// Dispatcher is the enqueue side of the queue runtime, the only surface
// the scheduler and processors need for producing work.
type Dispatcher interface {
	Enqueue(ctx context.Context, queueName, jobType string, payload any) (string, error)
}

// StepKind is the runtime's disposition for a job after a handler outcome
type StepKind int

const (
	// StepComplete prunes the job (removeOnComplete)
	StepComplete StepKind = iota
	// StepRetry re-delivers the job after Delay
	StepRetry
	// StepDeadLetter moves the job to its mapped DLQ with Reason attached
	StepDeadLetter
)

// Step is the decided disposition
type Step struct {
	Kind   StepKind
	Delay  time.Duration
	Reason string
}

// NextStep decides what happens to a job after one delivery. Retryable
// failures back off until the attempt budget is exhausted, then dead-letter;
// fatal failures dead-letter immediately; everything else completes.
func NextStep(job *Job, out Outcome, p Policy) Step {
	switch out.kind {
	case outcomeRetry:
		if job.Attempt >= p.MaxAttempts {
			return Step{Kind: StepDeadLetter, Reason: out.reason}
		}
		return Step{Kind: StepRetry, Delay: p.BackoffFor(job.Attempt), Reason: out.reason}
	case outcomeFatal:
		return Step{Kind: StepDeadLetter, Reason: out.reason}
	default:
		return Step{Kind: StepComplete}
	}
}
