package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/domain"
	"github.com/statustracker/backend/internal/infrastructure/logger"
	"github.com/statustracker/backend/internal/infrastructure/workbook"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// UploadService turns an uploaded spreadsheet into a pending task plus a
// queued job.
type UploadService struct {
	validator ports.FileValidator
	tracker   ports.TaskTracker
	queue     ports.JobQueue
	uploadDir string
	logger    *logger.Logger
	now       func() time.Time
}

type UploadServiceConfig struct {
	Validator ports.FileValidator
	Tracker   ports.TaskTracker
	Queue     ports.JobQueue
	UploadDir string
	Logger    *logger.Logger
	Now       func() time.Time
}

func NewUploadService(cfg UploadServiceConfig) *UploadService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &UploadService{
		validator: cfg.Validator,
		tracker:   cfg.Tracker,
		queue:     cfg.Queue,
		uploadDir: cfg.UploadDir,
		logger:    cfg.Logger,
		now:       now,
	}
}

// Accept validates and stores the upload, creates its task and enqueues the
// job. A rejected file leaves nothing behind.
func (s *UploadService) Accept(ctx context.Context, r io.ReadSeeker, declaredName string) (string, error) {
	res := s.validator.Validate(r, declaredName)
	if !res.OK {
		s.logger.Warnw("upload_rejected", "file", declaredName, "reason", res.Reason)
		return "", fmt.Errorf("%w: %s", domain.ErrValidation, res.Reason)
	}

	total, err := countSubjects(r)
	if err != nil {
		s.logger.Warnw("upload_rejected", "file", declaredName, "reason", err)
		return "", err
	}

	path, err := s.save(r, declaredName)
	if err != nil {
		s.logger.Errorw("upload_save_failed", "file", declaredName, "error", err)
		return "", fmt.Errorf("%w: save upload: %v", domain.ErrStorageUnavailable, err)
	}

	taskID, err := s.tracker.Create(ctx, declaredName, total)
	if err != nil {
		os.Remove(path)
		return "", err
	}

	job := domain.ProcessingJob{
		TaskID:     taskID,
		FilePath:   path,
		FileName:   declaredName,
		EnqueuedAt: s.now().UTC(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Errorw("upload_enqueue_failed", "task_id", taskID, "error", err)
		if markErr := s.tracker.MarkError(ctx, taskID, "failed to queue file for processing"); markErr != nil {
			s.logger.Errorw("upload_mark_error_failed", "task_id", taskID, "error", markErr)
		}
		return "", fmt.Errorf("%w: enqueue: %v", domain.ErrStorageUnavailable, err)
	}

	s.logger.Infow("upload_accepted", "task_id", taskID, "file", declaredName, "subjects", total)
	return taskID, nil
}

// countSubjects parses the upload in memory so unusable workbooks are
// rejected before anything is written.
func countSubjects(r io.ReadSeeker) (int, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: error reading Excel file: %v", domain.ErrValidation, err)
	}
	wb, err := workbook.Read(r)
	if err != nil {
		if errors.Is(err, workbook.ErrEINColumnMissing) {
			return 0, fmt.Errorf("%w: Excel file must contain an 'EIN Number' column", domain.ErrValidation)
		}
		return 0, fmt.Errorf("%w: error reading Excel file: %v", domain.ErrValidation, err)
	}
	defer wb.Close()
	return len(wb.Subjects()), nil
}

func (s *UploadService) save(r io.ReadSeeker, declaredName string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	name := unsafeNameChars.ReplaceAllString(filepath.Base(declaredName), "_")
	path := filepath.Join(s.uploadDir, uuid.New().String()+"_"+name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
