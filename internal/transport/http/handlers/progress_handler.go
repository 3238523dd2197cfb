package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/domain"
	"github.com/statustracker/backend/internal/infrastructure/logger"
	"github.com/statustracker/backend/internal/transport/http/dto"
)

// ProgressHandler streams task snapshots over a websocket until the task
// reaches a terminal status or the client goes away.
type ProgressHandler struct {
	tracker  ports.TaskTracker
	interval time.Duration
	logger   *logger.Logger
}

func NewProgressHandler(tracker ports.TaskTracker, interval time.Duration, logger *logger.Logger) *ProgressHandler {
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressHandler{tracker: tracker, interval: interval, logger: logger}
}

func (h *ProgressHandler) Handle(c *websocket.Conn) {
	defer c.Close()
	id := c.Params("id")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Drain inbound frames so close messages are seen.
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last dto.TaskResponse
	first := true
	for {
		task, err := h.tracker.Get(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			msg := "failed to load task"
			if errors.Is(err, domain.ErrNotFound) {
				msg = "task not found"
			}
			h.logger.Warnw("progress_stream_lookup_failed", "task_id", id, "error", err)
			if err := c.WriteJSON(dto.ErrorResponse{Error: msg}); err != nil {
				h.logger.Debugw("progress_stream_write_failed", "task_id", id, "error", err)
				return
			}
			h.closeStream(c, id, msg)
			return
		}

		snap := dto.TaskToResponse(task)
		if first || snap.ProcessedCount != last.ProcessedCount || snap.Status != last.Status {
			if err := c.WriteJSON(snap); err != nil {
				h.logger.Debugw("progress_stream_write_failed", "task_id", id, "error", err)
				return
			}
			last, first = snap, false
		}
		if task.IsTerminal() {
			h.logger.Infow("progress_stream_done", "task_id", id, "status", task.Status)
			h.closeStream(c, id, "task "+string(task.Status))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *ProgressHandler) closeStream(c *websocket.Conn, id, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	if err := c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		h.logger.Debugw("progress_stream_close_failed", "task_id", id, "error", err)
	}
}
