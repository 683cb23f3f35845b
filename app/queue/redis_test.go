package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispositionContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	// A shutdown-canceled consumer context must not take the retry, DLQ,
	// and ack writes of the job it was processing down with it
	dctx, dcancel := dispositionContext(parent)
	defer dcancel()

	assert.NoError(t, dctx.Err())
	deadline, ok := dctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(dispositionTimeout), deadline, time.Second)
}

// newTestRedisQueue connects to a disposable Redis database, skipping when
// none is reachable. Each call gets its own key prefix.
func newTestRedisQueue(t *testing.T) (*RedisQueue, *redis.Client) {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rc := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	if err := rc.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { rc.Close() })

	prefix := fmt.Sprintf("test:%s:", uuid.NewString()[:8])
	return NewRedisQueue(rc, prefix, log.New(io.Discard, "", 0)), rc
}

func encodeTestJob(t *testing.T, queueName, id string) string {
	t.Helper()
	raw, err := json.Marshal(Job{
		ID:          id,
		Queue:       queueName,
		Type:        JobTypeSendMessage,
		Payload:     json.RawMessage(`{}`),
		MaxAttempts: 3,
	})
	require.NoError(t, err)
	return string(raw)
}

func TestRedisQueueRecoverProcessing(t *testing.T) {
	q, rc := newTestRedisQueue(t)
	ctx := context.Background()

	procKey := q.processingKey(QueueMessages, 0)
	require.NoError(t, rc.LPush(ctx, procKey, encodeTestJob(t, QueueMessages, "orphan-1")).Err())
	require.NoError(t, rc.LPush(ctx, procKey, encodeTestJob(t, QueueMessages, "orphan-2")).Err())

	require.NoError(t, q.recoverProcessing(ctx, QueueMessages, procKey))

	pending, err := rc.LLen(ctx, q.pendingKey(QueueMessages)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	processing, err := rc.LLen(ctx, procKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), processing)
}

func TestRedisQueueDeliveryAcksProcessing(t *testing.T) {
	q, rc := newTestRedisQueue(t)
	ctx := context.Background()

	var handled atomic.Int32
	q.SetConcurrency(QueueMessages, 1)
	q.Register(QueueMessages, func(ctx context.Context, job *Job) Outcome {
		handled.Add(1)
		return Success()
	})

	_, err := q.Enqueue(ctx, QueueMessages, JobTypeSendMessage, map[string]string{"k": "v"})
	require.NoError(t, err)

	stop := q.Start(ctx)
	assert.Eventually(t, func() bool { return handled.Load() == 1 }, 5*time.Second, 50*time.Millisecond)
	stop()

	// The delivery must leave no trace: completed jobs are pruned and the
	// processing entry is removed after disposition
	for _, key := range []string{
		q.pendingKey(QueueMessages),
		q.processingKey(QueueMessages, 0),
		q.dlqKey(QueueMessages),
	} {
		n, err := rc.LLen(ctx, key).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(0), n, key)
	}
}

func TestRedisQueueRetryLandsOnDelayed(t *testing.T) {
	q, rc := newTestRedisQueue(t)
	ctx := context.Background()

	q.SetConcurrency(QueueMessages, 1)
	q.Register(QueueMessages, func(ctx context.Context, job *Job) Outcome {
		return Retry(fmt.Errorf("provider timeout"))
	})

	_, err := q.Enqueue(ctx, QueueMessages, JobTypeSendMessage, map[string]string{"k": "v"})
	require.NoError(t, err)

	stop := q.Start(ctx)
	assert.Eventually(t, func() bool {
		n, err := rc.ZCard(ctx, q.delayedKey(QueueMessages)).Result()
		return err == nil && n == 1
	}, 5*time.Second, 50*time.Millisecond)
	stop()

	processing, err := rc.LLen(ctx, q.processingKey(QueueMessages, 0)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), processing)
}
