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

type resultRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResultRepository(db *gorm.DB, log *logger.Logger) ports.ResultRepository {
	return &resultRepository{
		db:  db,
		log: log,
	}
}

func (r *resultRepository) Create(ctx context.Context, record *domain.ResultRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		r.log.Errorw("result_repo_create_failed", "subject", record.SubjectID, "task", record.TaskID, "error", err)
		return storageError("create result", err)
	}
	r.log.Debugw("result_repo_create_ok", "id", record.ID, "subject", record.SubjectID, "outcome", record.Outcome)
	return nil
}

func (r *resultRepository) GetByID(ctx context.Context, id string) (*domain.ResultRecord, error) {
	var record domain.ResultRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: result %s", domain.ErrNotFound, id)
		}
		r.log.Errorw("result_repo_get_failed", "id", id, "error", err)
		return nil, storageError("get result", err)
	}
	return &record, nil
}

func (r *resultRepository) LatestBySubject(ctx context.Context, subjectID string) (*domain.ResultRecord, error) {
	var record domain.ResultRecord
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("checked_at desc, id desc").
		Limit(1).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorw("result_repo_latest_failed", "subject", subjectID, "error", err)
		return nil, storageError("latest result", err)
	}
	return &record, nil
}

func (r *resultRepository) ListBySubject(ctx context.Context, subjectID string, limit int) ([]domain.ResultRecord, error) {
	var records []domain.ResultRecord
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("checked_at desc, id desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		r.log.Errorw("result_repo_list_by_subject_failed", "subject", subjectID, "error", err)
		return nil, storageError("list subject results", err)
	}
	return records, nil
}

func (r *resultRepository) ListByTask(ctx context.Context, taskID string) ([]domain.ResultRecord, error) {
	var records []domain.ResultRecord
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("checked_at asc").
		Find(&records).Error
	if err != nil {
		r.log.Errorw("result_repo_list_by_task_failed", "task", taskID, "error", err)
		return nil, storageError("list task results", err)
	}
	return records, nil
}

func (r *resultRepository) ListRecent(ctx context.Context, limit int) ([]domain.ResultRecord, error) {
	var records []domain.ResultRecord
	err := r.db.WithContext(ctx).
		Order("checked_at desc, id desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		r.log.Errorw("result_repo_list_recent_failed", "error", err)
		return nil, storageError("list recent results", err)
	}
	return records, nil
}

func (r *resultRepository) ListUnsynced(ctx context.Context, limit int) ([]domain.ResultRecord, error) {
	var records []domain.ResultRecord
	err := r.db.WithContext(ctx).
		Where("synced = ?", false).
		Order("checked_at desc, id desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		r.log.Errorw("result_repo_list_unsynced_failed", "error", err)
		return nil, storageError("list unsynced results", err)
	}
	return records, nil
}

// MarkSynced only touches unsynced rows so the first acknowledgement time sticks.
func (r *resultRepository) MarkSynced(ctx context.Context, id string, externalItemID string, now time.Time) error {
	updates := map[string]interface{}{
		"synced":    true,
		"synced_at": now,
	}
	if externalItemID != "" {
		updates["external_item_id"] = externalItemID
	}

	res := r.db.WithContext(ctx).
		Model(&domain.ResultRecord{}).
		Where("id = ? AND synced = ?", id, false).
		Updates(updates)
	if res.Error != nil {
		r.log.Errorw("result_repo_mark_synced_failed", "id", id, "error", res.Error)
		return storageError("mark result synced", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return nil
	}
	r.log.Infow("result_repo_mark_synced_ok", "id", id, "item", externalItemID)
	return nil
}
