package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflowbr/zapflow/app/dto"
	"github.com/zapflowbr/zapflow/app/queue"
)

// fakeDeadLetterReader serves a fixed DLQ snapshot
type fakeDeadLetterReader struct {
	jobs []*queue.Job
	err  error

	lastQueue string
	lastLimit int
}

func (f *fakeDeadLetterReader) DeadLetters(ctx context.Context, queueName string, limit int) ([]*queue.Job, error) {
	f.lastQueue = queueName
	f.lastLimit = limit
	return f.jobs, f.err
}

func newAdminTestApp(reader DeadLetterReader) *fiber.App {
	app := fiber.New()
	handler := NewAdminHandler(reader)
	app.Get("/api/v1/admin/queues/:queue/dead-letters", handler.ListDeadLetters)
	return app
}

func decodeAPIResponse(t *testing.T, resp *http.Response) dto.APIResponse {
	t.Helper()
	var body dto.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestAdminHandlerListDeadLetters(t *testing.T) {
	t.Run("returns parked jobs", func(t *testing.T) {
		reader := &fakeDeadLetterReader{jobs: []*queue.Job{
			{ID: "job-1", Queue: queue.QueueMessages, Type: queue.JobTypeSendMessage, LastError: "instance disconnected"},
		}}
		app := newAdminTestApp(reader)

		req := httptest.NewRequest(fiber.MethodGet, "/api/v1/admin/queues/messages/dead-letters", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, queue.QueueMessages, reader.lastQueue)
		assert.Equal(t, 100, reader.lastLimit)

		body := decodeAPIResponse(t, resp)
		assert.True(t, body.Success)
		data, ok := body.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "messages-dlq", data["dlq"])
		assert.Equal(t, float64(1), data["count"])
	})

	t.Run("limit query is forwarded", func(t *testing.T) {
		reader := &fakeDeadLetterReader{}
		app := newAdminTestApp(reader)

		req := httptest.NewRequest(fiber.MethodGet, "/api/v1/admin/queues/campaigns/dead-letters?limit=25", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, 25, reader.lastLimit)
	})

	t.Run("unknown queue is rejected", func(t *testing.T) {
		reader := &fakeDeadLetterReader{}
		app := newAdminTestApp(reader)

		req := httptest.NewRequest(fiber.MethodGet, "/api/v1/admin/queues/no-such-queue/dead-letters", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		assert.Empty(t, reader.lastQueue)
	})

	t.Run("out of range limit is rejected", func(t *testing.T) {
		app := newAdminTestApp(&fakeDeadLetterReader{})

		req := httptest.NewRequest(fiber.MethodGet, "/api/v1/admin/queues/messages/dead-letters?limit=0", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("reader failure maps to 500", func(t *testing.T) {
		reader := &fakeDeadLetterReader{err: errors.New("redis unavailable")}
		app := newAdminTestApp(reader)

		req := httptest.NewRequest(fiber.MethodGet, "/api/v1/admin/queues/messages/dead-letters", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		body := decodeAPIResponse(t, resp)
		assert.False(t, body.Success)
		detail, ok := body.Error.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "DEAD_LETTER_LIST_FAILED", detail["code"])
	})
}
