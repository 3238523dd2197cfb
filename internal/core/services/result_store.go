package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/domain"
	"github.com/statustracker/backend/internal/infrastructure/logger"
)

const (
	maxSubjectLen = 20
	maxOutcomeLen = 200
)

type resultStore struct {
	repo   ports.ResultRepository
	logger *logger.Logger
	now    func() time.Time
}

type ResultStoreConfig struct {
	Repository ports.ResultRepository
	Logger     *logger.Logger
	Now        func() time.Time
}

func NewResultStore(cfg ResultStoreConfig) ports.ResultStore {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &resultStore{
		repo:   cfg.Repository,
		logger: cfg.Logger,
		now:    now,
	}
}

func (s *resultStore) Append(ctx context.Context, subjectID, outcome, taskID string) (string, error) {
	return s.AppendRecord(ctx, &domain.ResultRecord{
		SubjectID: subjectID,
		Outcome:   outcome,
		TaskID:    taskID,
	})
}

// AppendRecord stores a new record. ID, CheckedAt and the sync fields are
// always assigned here; whatever the caller put there is ignored.
func (s *resultStore) AppendRecord(ctx context.Context, record *domain.ResultRecord) (string, error) {
	record.SubjectID = strings.TrimSpace(record.SubjectID)
	record.Outcome = strings.TrimSpace(record.Outcome)

	if record.SubjectID == "" {
		return "", fmt.Errorf("%w: subject id is required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(record.SubjectID) > maxSubjectLen {
		return "", fmt.Errorf("%w: subject id longer than %d characters", domain.ErrValidation, maxSubjectLen)
	}
	if record.Outcome == "" {
		return "", fmt.Errorf("%w: outcome is required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(record.Outcome) > maxOutcomeLen {
		return "", fmt.Errorf("%w: outcome longer than %d characters", domain.ErrValidation, maxOutcomeLen)
	}

	// Time-ordered ids break checked_at ties in insertion order.
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate result id: %w", err)
	}
	record.ID = id.String()
	record.CheckedAt = s.now().UTC()
	record.Synced = false
	record.SyncedAt = nil

	if err := s.repo.Create(ctx, record); err != nil {
		return "", err
	}
	return record.ID, nil
}

func (s *resultStore) Latest(ctx context.Context, subjectID string) (*domain.ResultRecord, error) {
	return s.repo.LatestBySubject(ctx, strings.TrimSpace(subjectID))
}

func (s *resultStore) MarkSynced(ctx context.Context, recordID string) error {
	return s.MarkSyncedWithItem(ctx, recordID, "")
}

func (s *resultStore) MarkSyncedWithItem(ctx context.Context, recordID, externalItemID string) error {
	if err := s.repo.MarkSynced(ctx, recordID, externalItemID, s.now().UTC()); err != nil {
		return err
	}
	s.logger.Debugw("result_marked_synced", "id", recordID, "item", externalItemID)
	return nil
}

func (s *resultStore) History(ctx context.Context, subjectID string, limit int) ([]domain.ResultRecord, error) {
	return s.repo.ListBySubject(ctx, strings.TrimSpace(subjectID), clampLimit(limit, 50))
}

func (s *resultStore) ByTask(ctx context.Context, taskID string) ([]domain.ResultRecord, error) {
	return s.repo.ListByTask(ctx, taskID)
}

func (s *resultStore) Recent(ctx context.Context, limit int) ([]domain.ResultRecord, error) {
	return s.repo.ListRecent(ctx, clampLimit(limit, 50))
}

func (s *resultStore) Unsynced(ctx context.Context, limit int) ([]domain.ResultRecord, error) {
	return s.repo.ListUnsynced(ctx, clampLimit(limit, 100))
}

// truncateOutcome keeps free-form outcomes (error texts) within the stored width.
func truncateOutcome(outcome string) string {
	if utf8.RuneCountInString(outcome) <= maxOutcomeLen {
		return outcome
	}
	runes := []rune(outcome)
	return string(runes[:maxOutcomeLen])
}
