package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyBackoffFor(t *testing.T) {
	p := Policy{
		MaxAttempts:   5,
		BackoffBase:   2 * time.Second,
		BackoffFactor: 2,
		BackoffCap:    60 * time.Second,
	}

	tests := []struct {
		name     string
		attempt  int
		expected time.Duration
	}{
		{name: "first failure", attempt: 1, expected: 2 * time.Second},
		{name: "second failure doubles", attempt: 2, expected: 4 * time.Second},
		{name: "third failure", attempt: 3, expected: 8 * time.Second},
		{name: "growth is capped", attempt: 10, expected: 60 * time.Second},
		{name: "zero attempt treated as first", attempt: 0, expected: 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.BackoffFor(tt.attempt))
		})
	}
}

func TestNextStep(t *testing.T) {
	p := Policy{
		MaxAttempts:   3,
		BackoffBase:   time.Second,
		BackoffFactor: 2,
		BackoffCap:    time.Minute,
	}

	t.Run("success completes", func(t *testing.T) {
		step := NextStep(&Job{Attempt: 1}, Success(), p)
		assert.Equal(t, StepComplete, step.Kind)
	})

	t.Run("discard completes", func(t *testing.T) {
		step := NextStep(&Job{Attempt: 1}, Discard("already done"), p)
		assert.Equal(t, StepComplete, step.Kind)
	})

	t.Run("retry backs off while budget remains", func(t *testing.T) {
		step := NextStep(&Job{Attempt: 1}, Retry(errors.New("provider timeout")), p)
		assert.Equal(t, StepRetry, step.Kind)
		assert.Equal(t, time.Second, step.Delay)
		assert.Equal(t, "provider timeout", step.Reason)
	})

	t.Run("retry backoff grows with attempts", func(t *testing.T) {
		step := NextStep(&Job{Attempt: 2}, Retry(errors.New("provider timeout")), p)
		assert.Equal(t, StepRetry, step.Kind)
		assert.Equal(t, 2*time.Second, step.Delay)
	})

	t.Run("retry on last attempt dead-letters", func(t *testing.T) {
		step := NextStep(&Job{Attempt: 3}, Retry(errors.New("still failing")), p)
		assert.Equal(t, StepDeadLetter, step.Kind)
		assert.Equal(t, "still failing", step.Reason)
	})

	t.Run("fatal dead-letters immediately", func(t *testing.T) {
		step := NextStep(&Job{Attempt: 1}, Fatal(errors.New("undecodable payload")), p)
		assert.Equal(t, StepDeadLetter, step.Kind)
		assert.Equal(t, "undecodable payload", step.Reason)
	})
}

func TestOutcomeTerminal(t *testing.T) {
	assert.True(t, Success().Terminal())
	assert.True(t, Discard("already done").Terminal())
	assert.True(t, Fatal(errors.New("undecodable payload")).Terminal())
	assert.False(t, Retry(errors.New("provider timeout")).Terminal())
}

func TestDLQFor(t *testing.T) {
	assert.Equal(t, "campaigns-dlq", DLQFor(QueueCampaigns))
	assert.Equal(t, "messages-dlq", DLQFor(QueueMessages))
	assert.Equal(t, "simplified-public-dlq", DLQFor(QueueSimplifiedPublic))
	assert.Equal(t, "custom-public-dlq", DLQFor(QueueCustomPublic))
	// Unknown queues still map somewhere deterministic
	assert.Equal(t, "nonexistent-dlq", DLQFor("nonexistent"))
}

func TestConfigsDeclareDLQPerQueue(t *testing.T) {
	for _, c := range Configs() {
		assert.Equal(t, c.Name+DLQSuffix, c.DLQ, "queue %s", c.Name)
		assert.Greater(t, c.Policy.MaxAttempts, 0, "queue %s", c.Name)
		assert.Greater(t, c.Concurrency, 0, "queue %s", c.Name)
	}
}

func TestJobDecode(t *testing.T) {
	job := &Job{Payload: []byte(`{"campaign_id":42,"user_id":7}`)}

	var payload CampaignJob
	require.NoError(t, job.Decode(&payload))
	assert.Equal(t, uint(42), payload.CampaignID)
	assert.Equal(t, uint(7), payload.UserID)

	bad := &Job{Payload: []byte(`{`)}
	assert.Error(t, bad.Decode(&payload))
}
