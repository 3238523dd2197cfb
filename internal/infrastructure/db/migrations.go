package db

import (
	"github.com/statustracker/backend/internal/domain"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.Task{},
		&domain.ResultRecord{},
	)
	if err != nil {
		return err
	}

	return createCustomIndexes(db)
}

func createCustomIndexes(db *gorm.DB) error {
	// latest-first lookup per subject
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_result_records_subject_checked
		ON result_records (subject_id, checked_at DESC)
	`).Error; err != nil {
		return err
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_processing_tasks_status_started
		ON processing_tasks (status, started_at DESC)
	`).Error; err != nil {
		return err
	}

	return nil
}
