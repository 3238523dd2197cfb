package handlers

import (
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/domain"
	"github.com/statustracker/backend/internal/infrastructure/logger"
	"github.com/statustracker/backend/internal/infrastructure/workbook"
	"github.com/statustracker/backend/internal/transport/http/dto"
)

// OutputLocator resolves where a task's annotated workbook lives.
type OutputLocator interface {
	OutputPath(taskID string) string
}

type TaskHandler struct {
	tracker ports.TaskTracker
	results ports.ResultStore
	outputs OutputLocator
	logger  *logger.Logger
}

func NewTaskHandler(tracker ports.TaskTracker, results ports.ResultStore, outputs OutputLocator, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{tracker: tracker, results: results, outputs: outputs, logger: logger}
}

func (h *TaskHandler) ListTasks(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	tasks, err := h.tracker.List(c.UserContext(), limit)
	if err != nil {
		return respondError(c, h.logger, "tasks_list_failed", err)
	}
	return c.JSON(dto.TasksToResponse(tasks))
}

func (h *TaskHandler) GetTask(c *fiber.Ctx) error {
	id := c.Params("id")
	task, err := h.tracker.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, "task_get_failed", err, "task_id", id)
	}
	return c.JSON(dto.TaskToResponse(task))
}

func (h *TaskHandler) GetTaskResults(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.tracker.Get(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, "task_results_lookup_failed", err, "task_id", id)
	}
	records, err := h.results.ByTask(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, "task_results_failed", err, "task_id", id)
	}
	return c.JSON(dto.ResultsToResponse(records))
}

func (h *TaskHandler) Download(c *fiber.Ctx) error {
	id := c.Params("id")
	task, err := h.tracker.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, "task_download_lookup_failed", err, "task_id", id)
	}
	if task.Status != domain.TaskStatusCompleted {
		return respondError(c, h.logger, "task_download_not_ready",
			fmt.Errorf("%w: task is %s", domain.ErrInvalidState, task.Status), "task_id", id)
	}

	path := h.outputs.OutputPath(id)
	if _, err := os.Stat(path); err != nil {
		h.logger.Warnw("task_download_missing", "task_id", id, "path", path, "error", err)
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "output file not found"})
	}

	h.logger.Infow("task_download", "task_id", id)
	return c.Download(path, workbook.OutputName(id))
}
