package dto

import (
	"time"

	"github.com/statustracker/backend/internal/domain"
)

type TaskResponse struct {
	TaskID         string     `json:"task_id"`
	FileName       string     `json:"file_name"`
	Status         string     `json:"status"`
	TotalCount     int        `json:"total"`
	ProcessedCount int        `json:"processed"`
	Progress       int        `json:"progress"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	DownloadURL    string     `json:"download_url,omitempty"`
}

func TaskToResponse(t *domain.Task) TaskResponse {
	resp := TaskResponse{
		TaskID:         t.ID,
		FileName:       t.FileName,
		Status:         string(t.Status),
		TotalCount:     t.TotalCount,
		ProcessedCount: t.ProcessedCount,
		Progress:       t.Progress(),
		StartedAt:      t.StartedAt,
		CompletedAt:    t.CompletedAt,
	}
	if t.ErrorMessage != nil {
		resp.ErrorMessage = *t.ErrorMessage
	}
	if t.Status == domain.TaskStatusCompleted && t.TotalCount > 0 {
		resp.DownloadURL = "/api/v1/tasks/" + t.ID + "/download"
	}
	return resp
}

func TasksToResponse(tasks []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, TaskToResponse(&tasks[i]))
	}
	return out
}

type UploadResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}
