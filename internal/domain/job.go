package domain

import "time"

// ProcessingJob is the queue message asking a worker to check every subject
// of an uploaded file on behalf of a task.
type ProcessingJob struct {
	TaskID     string    `json:"task_id"`
	FilePath   string    `json:"file_path"`
	FileName   string    `json:"file_name"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
