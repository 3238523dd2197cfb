package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/statustracker/backend/internal/infrastructure/logger"
)

type QueueDepth interface {
	Len(ctx context.Context) (int64, error)
}

type HealthHandler struct {
	queue  QueueDepth
	logger *logger.Logger
}

func NewHealthHandler(queue QueueDepth, logger *logger.Logger) *HealthHandler {
	return &HealthHandler{queue: queue, logger: logger}
}

// Check reports the pending job count; an unreachable queue answers 503.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	if h.queue == nil {
		return c.JSON(fiber.Map{"status": "ok"})
	}
	depth, err := h.queue.Len(c.UserContext())
	if err != nil {
		h.logger.Warnw("health_queue_unreachable", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"error":  "job queue unreachable",
		})
	}
	return c.JSON(fiber.Map{"status": "ok", "queue_depth": depth})
}
