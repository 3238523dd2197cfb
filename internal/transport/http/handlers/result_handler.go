package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/domain"
	"github.com/statustracker/backend/internal/infrastructure/logger"
	"github.com/statustracker/backend/internal/transport/http/dto"
)

type ResultHandler struct {
	results ports.ResultStore
	logger  *logger.Logger
}

func NewResultHandler(results ports.ResultStore, logger *logger.Logger) *ResultHandler {
	return &ResultHandler{results: results, logger: logger}
}

func (h *ResultHandler) ListRecent(c *fiber.Ctx) error {
	records, err := h.results.Recent(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return respondError(c, h.logger, "results_recent_failed", err)
	}
	return c.JSON(dto.ResultsToResponse(records))
}

func (h *ResultHandler) MarkSynced(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.results.MarkSynced(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, "result_mark_synced_failed", err, "id", id)
	}
	h.logger.Infow("result_mark_synced", "id", id)
	return c.JSON(dto.SuccessResponse{Message: "result marked as synced"})
}

// Latest answers with 404 when the subject was never checked.
func (h *ResultHandler) Latest(c *fiber.Ctx) error {
	subject := subjectParam(c)
	record, err := h.results.Latest(c.UserContext(), subject)
	if err != nil {
		return respondError(c, h.logger, "subject_latest_failed", err, "subject", subject)
	}
	if record == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "no results for subject"})
	}
	return c.JSON(dto.ResultToResponse(record))
}

func (h *ResultHandler) History(c *fiber.Ctx) error {
	subject := subjectParam(c)
	records, err := h.results.History(c.UserContext(), subject, c.QueryInt("limit", 50))
	if err != nil {
		return respondError(c, h.logger, "subject_history_failed", err, "subject", subject)
	}
	return c.JSON(dto.ResultsToResponse(records))
}

// subjectParam accepts formatted EINs such as 12-3456789 and looks them up
// by their stored digits-only form.
func subjectParam(c *fiber.Ctx) string {
	raw := strings.TrimSpace(c.Params("id"))
	if ein, ok := domain.NormalizeEIN(raw); ok {
		return ein
	}
	return raw
}
