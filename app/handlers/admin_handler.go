package handlers

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/zapflowbr/zapflow/app/dto"
	"github.com/zapflowbr/zapflow/app/queue"
)

// AdminHandlerInterface defines the contract for operational admin handlers
type AdminHandlerInterface interface {
	ListDeadLetters(c fiber.Ctx) error
}

// DeadLetterReader exposes the jobs parked on a queue's dead-letter list
type DeadLetterReader interface {
	DeadLetters(ctx context.Context, queueName string, limit int) ([]*queue.Job, error)
}

// AdminHandler handles queue inspection HTTP requests
type AdminHandler struct {
	deadLetters DeadLetterReader
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(deadLetters DeadLetterReader) *AdminHandler {
	return &AdminHandler{deadLetters: deadLetters}
}

func (h *AdminHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AdminHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ListDeadLetters returns the jobs parked on a queue's dead-letter list
// @Summary List Dead-Lettered Jobs
// @Description Retrieve the jobs parked on the dead-letter list of a dispatch queue, newest first
// @Tags Admin
// @Produce json
// @Param queue path string true "Queue name (campaigns, messages, simplified-public, custom-public)"
// @Param limit query int false "Maximum number of jobs to return (default 100, max 500)"
// @Success 200 {object} dto.APIResponse "Dead-lettered jobs retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Invalid limit"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Unknown queue"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/queues/{queue}/dead-letters [get]
func (h *AdminHandler) ListDeadLetters(c fiber.Ctx) error {
	queueName := c.Params("queue")
	if !knownQueue(queueName) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Unknown queue", "QUEUE_NOT_FOUND", nil)
	}

	limit := fiber.Query(c, "limit", 100)
	if limit < 1 || limit > 500 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "limit must be between 1 and 500", "INVALID_LIMIT", nil)
	}

	jobs, err := h.deadLetters.DeadLetters(createRequestContext(c, "/api/v1/admin/queues/"+queueName+"/dead-letters"), queueName, limit)
	if err != nil {
		log.Println("Dead letter listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list dead letters", "DEAD_LETTER_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Dead letters retrieved successfully", fiber.Map{
		"queue": queueName,
		"dlq":   queue.DLQFor(queueName),
		"count": len(jobs),
		"jobs":  jobs,
	})
}

func knownQueue(name string) bool {
	for _, cfg := range queue.Configs() {
		if cfg.Name == name {
			return true
		}
	}
	return false
}
