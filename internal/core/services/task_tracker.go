package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/domain"
	"github.com/statustracker/backend/internal/infrastructure/logger"
)

type taskTracker struct {
	repo   ports.TaskRepository
	logger *logger.Logger
	now    func() time.Time
}

type TaskTrackerConfig struct {
	Repository ports.TaskRepository
	Logger     *logger.Logger
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

func NewTaskTracker(cfg TaskTrackerConfig) ports.TaskTracker {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &taskTracker{
		repo:   cfg.Repository,
		logger: cfg.Logger,
		now:    now,
	}
}

func (s *taskTracker) Create(ctx context.Context, fileName string, totalCount int) (string, error) {
	if totalCount < 0 {
		return "", fmt.Errorf("%w: total count must not be negative, got %d", domain.ErrValidation, totalCount)
	}
	if strings.TrimSpace(fileName) == "" {
		return "", fmt.Errorf("%w: file name is required", domain.ErrValidation)
	}

	now := s.now().UTC()
	task := &domain.Task{
		ID:             uuid.New().String(),
		FileName:       fileName,
		Status:         domain.TaskStatusPending,
		TotalCount:     totalCount,
		ProcessedCount: 0,
		StartedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return "", err
	}

	s.logger.Infow("task_created", "task_id", task.ID, "file", fileName, "total", totalCount)
	return task.ID, nil
}

func (s *taskTracker) RecordProgress(ctx context.Context, taskID string, increment int) error {
	if increment <= 0 {
		return fmt.Errorf("%w: increment must be positive, got %d", domain.ErrValidation, increment)
	}

	applied, err := s.repo.IncrementProgress(ctx, taskID, increment, s.now().UTC())
	if err != nil {
		return err
	}
	if applied {
		s.logger.Debugw("task_progress_recorded", "task_id", taskID, "increment", increment)
		return nil
	}

	task, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.IsTerminal() {
		s.logger.Warnw("task_progress_rejected", "task_id", taskID, "status", task.Status)
		return fmt.Errorf("%w: task %s is already %s", domain.ErrInvalidState, taskID, task.Status)
	}
	s.logger.Warnw("task_progress_overflow", "task_id", taskID, "processed", task.ProcessedCount, "total", task.TotalCount, "increment", increment)
	return fmt.Errorf("%w: increment of %d would exceed total %d (processed %d)",
		domain.ErrInvalidState, increment, task.TotalCount, task.ProcessedCount)
}

func (s *taskTracker) MarkError(ctx context.Context, taskID string, message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: error message is required", domain.ErrValidation)
	}

	applied, err := s.repo.MarkError(ctx, taskID, message, s.now().UTC())
	if err != nil {
		return err
	}
	if applied {
		s.logger.Warnw("task_marked_error", "task_id", taskID, "message", message)
		return nil
	}

	task, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status == domain.TaskStatusError && task.ErrorMessage != nil && *task.ErrorMessage == message {
		return nil
	}
	return fmt.Errorf("%w: task %s is already %s", domain.ErrInvalidState, taskID, task.Status)
}

func (s *taskTracker) Get(ctx context.Context, taskID string) (*domain.Task, error) {
	return s.repo.GetByID(ctx, taskID)
}

func (s *taskTracker) List(ctx context.Context, limit int) ([]domain.Task, error) {
	return s.repo.List(ctx, clampLimit(limit, 20))
}

func clampLimit(limit, def int) int {
	const maxLimit = 500
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
