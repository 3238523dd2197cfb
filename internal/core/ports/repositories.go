package ports

import (
	"context"
	"time"

	"github.com/statustracker/backend/internal/domain"
)

// TaskRepository persists processing tasks. The conditional methods report
// whether a row changed; callers reload the task to find out why not.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, limit int) ([]domain.Task, error)
	// IncrementProgress adds n to processed_count only while the task is
	// pending or processing and the result stays within total_count.
	IncrementProgress(ctx context.Context, id string, n int, now time.Time) (bool, error)
	// MarkError moves a pending or processing task to error.
	MarkError(ctx context.Context, id string, message string, now time.Time) (bool, error)
}

type ResultRepository interface {
	Create(ctx context.Context, record *domain.ResultRecord) error
	GetByID(ctx context.Context, id string) (*domain.ResultRecord, error)
	// LatestBySubject returns nil, nil when the subject has no records.
	LatestBySubject(ctx context.Context, subjectID string) (*domain.ResultRecord, error)
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]domain.ResultRecord, error)
	ListByTask(ctx context.Context, taskID string) ([]domain.ResultRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ResultRecord, error)
	ListUnsynced(ctx context.Context, limit int) ([]domain.ResultRecord, error)
	MarkSynced(ctx context.Context, id string, externalItemID string, now time.Time) error
}

type JobQueue interface {
	Enqueue(ctx context.Context, job domain.ProcessingJob) error
	// Dequeue blocks up to wait and returns nil, nil when nothing arrived.
	Dequeue(ctx context.Context, wait time.Duration) (*domain.ProcessingJob, error)
	Len(ctx context.Context) (int64, error)
}
