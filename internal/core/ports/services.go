package ports

import (
	"context"
	"io"

	"github.com/statustracker/backend/internal/domain"
)

type TaskTracker interface {
	Create(ctx context.Context, fileName string, totalCount int) (string, error)
	RecordProgress(ctx context.Context, taskID string, increment int) error
	MarkError(ctx context.Context, taskID string, message string) error
	Get(ctx context.Context, taskID string) (*domain.Task, error)
	List(ctx context.Context, limit int) ([]domain.Task, error)
}

type ResultStore interface {
	Append(ctx context.Context, subjectID, outcome, taskID string) (string, error)
	AppendRecord(ctx context.Context, record *domain.ResultRecord) (string, error)
	Latest(ctx context.Context, subjectID string) (*domain.ResultRecord, error)
	MarkSynced(ctx context.Context, recordID string) error
	MarkSyncedWithItem(ctx context.Context, recordID, externalItemID string) error
	History(ctx context.Context, subjectID string, limit int) ([]domain.ResultRecord, error)
	ByTask(ctx context.Context, taskID string) ([]domain.ResultRecord, error)
	Recent(ctx context.Context, limit int) ([]domain.ResultRecord, error)
	Unsynced(ctx context.Context, limit int) ([]domain.ResultRecord, error)
}

type ValidationResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

type FileValidator interface {
	Validate(r io.ReadSeeker, declaredName string) ValidationResult
}

// RegistryClient looks up the registration status of one charity by EIN.
type RegistryClient interface {
	LookupStatus(ctx context.Context, ein string) (string, error)
}

// BoardClient mirrors check outcomes onto the external work board.
type BoardClient interface {
	FindItemID(ctx context.Context, ein string) (string, error)
	UpdateStatus(ctx context.Context, itemID string, status string) error
}
