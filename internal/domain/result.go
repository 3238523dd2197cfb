package domain

import "time"

// ResultRecord is the outcome of checking one subject within a task. Records
// are never overwritten; the newest CheckedAt per subject is the current status.
type ResultRecord struct {
	ID             string     `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	SubjectID      string     `gorm:"size:20;not null" bson:"subject_id" json:"subject_id"`
	Outcome        string     `gorm:"size:200;not null" bson:"outcome" json:"outcome"`
	CheckedAt      time.Time  `gorm:"not null;index" bson:"checked_at" json:"checked_at"`
	TaskID         string     `gorm:"size:36;index" bson:"task_id" json:"task_id"`
	FileName       string     `gorm:"size:255" bson:"file_name,omitempty" json:"file_name,omitempty"`
	ExternalItemID string     `gorm:"size:50" bson:"external_item_id,omitempty" json:"external_item_id,omitempty"`
	Synced         bool       `gorm:"not null;default:false;index" bson:"synced" json:"synced"`
	SyncedAt       *time.Time `bson:"synced_at,omitempty" json:"synced_at,omitempty"`
}

func (ResultRecord) TableName() string {
	return "result_records"
}
