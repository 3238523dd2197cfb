package dto

import (
	"time"

	"github.com/statustracker/backend/internal/domain"
)

type ResultResponse struct {
	ID             string     `json:"id"`
	SubjectID      string     `json:"ein"`
	Outcome        string     `json:"status"`
	CheckedAt      time.Time  `json:"check_date"`
	TaskID         string     `json:"task_id,omitempty"`
	FileName       string     `json:"file_name,omitempty"`
	ExternalItemID string     `json:"board_item_id,omitempty"`
	Synced         bool       `json:"board_updated"`
	SyncedAt       *time.Time `json:"board_updated_at,omitempty"`
}

func ResultToResponse(r *domain.ResultRecord) ResultResponse {
	return ResultResponse{
		ID:             r.ID,
		SubjectID:      r.SubjectID,
		Outcome:        r.Outcome,
		CheckedAt:      r.CheckedAt,
		TaskID:         r.TaskID,
		FileName:       r.FileName,
		ExternalItemID: r.ExternalItemID,
		Synced:         r.Synced,
		SyncedAt:       r.SyncedAt,
	}
}

func ResultsToResponse(records []domain.ResultRecord) []ResultResponse {
	out := make([]ResultResponse, 0, len(records))
	for i := range records {
		out = append(out, ResultToResponse(&records[i]))
	}
	return out
}
