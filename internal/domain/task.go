package domain

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusError      TaskStatus = "error"
)

// ActiveTaskStatuses are the statuses a task may still leave.
var ActiveTaskStatuses = []TaskStatus{TaskStatusPending, TaskStatusProcessing}

func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusError
}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusError:
		return true
	}
	return false
}

// Task tracks one uploaded file being checked subject by subject.
type Task struct {
	ID             string     `gorm:"primaryKey;size:36" bson:"_id" json:"task_id"`
	FileName       string     `gorm:"size:255;not null" bson:"file_name" json:"file_name"`
	Status         TaskStatus `gorm:"size:20;not null;default:'pending';index" bson:"status" json:"status"`
	TotalCount     int        `gorm:"not null;default:0" bson:"total_count" json:"total_count"`
	ProcessedCount int        `gorm:"not null;default:0" bson:"processed_count" json:"processed_count"`
	StartedAt      time.Time  `gorm:"not null;index" bson:"started_at" json:"started_at"`
	CompletedAt    *time.Time `bson:"completed_at,omitempty" json:"completed_at"`
	ErrorMessage   *string    `gorm:"type:text" bson:"error_message,omitempty" json:"error_message,omitempty"`
	UpdatedAt      time.Time  `bson:"updated_at" json:"updated_at"`
}

func (Task) TableName() string {
	return "processing_tasks"
}

func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// Progress returns the completion percentage (0-100).
func (t *Task) Progress() int {
	if t.TotalCount == 0 {
		if t.Status == TaskStatusCompleted {
			return 100
		}
		return 0
	}
	return t.ProcessedCount * 100 / t.TotalCount
}
