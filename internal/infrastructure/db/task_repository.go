package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/domain"
	"github.com/statustracker/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type taskRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepository(db *gorm.DB, log *logger.Logger) ports.TaskRepository {
	return &taskRepository{
		db:  db,
		log: log,
	}
}

func activeStatuses() []string {
	return []string{string(domain.TaskStatusPending), string(domain.TaskStatusProcessing)}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		r.log.Errorw("task_repo_create_failed", "id", task.ID, "file", task.FileName, "error", err)
		return storageError("create task", err)
	}
	r.log.Infow("task_repo_create_ok", "id", task.ID, "file", task.FileName, "total", task.TotalCount)
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, id)
		}
		r.log.Errorw("task_repo_get_failed", "id", id, "error", err)
		return nil, storageError("get task", err)
	}
	return &task, nil
}

func (r *taskRepository) List(ctx context.Context, limit int) ([]domain.Task, error) {
	var tasks []domain.Task
	err := r.db.WithContext(ctx).
		Order("started_at desc").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		r.log.Errorw("task_repo_list_failed", "error", err)
		return nil, storageError("list tasks", err)
	}
	return tasks, nil
}

// IncrementProgress is a single conditional UPDATE. Every SET expression
// reads the pre-update row, so status and completed_at are derived from the
// same processed_count that the guard checked.
func (r *taskRepository) IncrementProgress(ctx context.Context, id string, n int, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("id = ? AND status IN ? AND processed_count + ? <= total_count", id, activeStatuses(), n).
		Updates(map[string]interface{}{
			"processed_count": gorm.Expr("processed_count + ?", n),
			"status": gorm.Expr("CASE WHEN processed_count + ? >= total_count THEN ? ELSE ? END",
				n, string(domain.TaskStatusCompleted), string(domain.TaskStatusProcessing)),
			"completed_at": gorm.Expr("CASE WHEN processed_count + ? >= total_count THEN ? ELSE completed_at END", n, now),
			"updated_at":   now,
		})
	if res.Error != nil {
		r.log.Errorw("task_repo_increment_failed", "id", id, "n", n, "error", res.Error)
		return false, storageError("increment task progress", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *taskRepository) MarkError(ctx context.Context, id string, message string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("id = ? AND status IN ?", id, activeStatuses()).
		Updates(map[string]interface{}{
			"status":        string(domain.TaskStatusError),
			"error_message": message,
			"completed_at":  now,
			"updated_at":    now,
		})
	if res.Error != nil {
		r.log.Errorw("task_repo_mark_error_failed", "id", id, "error", res.Error)
		return false, storageError("mark task error", res.Error)
	}
	if res.RowsAffected == 1 {
		r.log.Infow("task_repo_mark_error_ok", "id", id)
	}
	return res.RowsAffected == 1, nil
}
