package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/domain"
	"github.com/statustracker/backend/internal/infrastructure/logger"
	"github.com/statustracker/backend/internal/infrastructure/workbook"
)

const MessageNoSubjects = "no EIN numbers found"

type BatchProcessor struct {
	tracker   ports.TaskTracker
	results   ports.ResultStore
	registry  ports.RegistryClient
	syncer    *BoardSyncer
	outputDir string
	delay     time.Duration
	logger    *logger.Logger
}

type BatchProcessorConfig struct {
	Tracker  ports.TaskTracker
	Results  ports.ResultStore
	Registry ports.RegistryClient
	// Syncer is nil when board sync is disabled.
	Syncer       *BoardSyncer
	OutputDir    string
	RequestDelay time.Duration
	Logger       *logger.Logger
}

func NewBatchProcessor(cfg BatchProcessorConfig) *BatchProcessor {
	return &BatchProcessor{
		tracker:   cfg.Tracker,
		results:   cfg.Results,
		registry:  cfg.Registry,
		syncer:    cfg.Syncer,
		outputDir: cfg.OutputDir,
		delay:     cfg.RequestDelay,
		logger:    cfg.Logger,
	}
}

// OutputPath is where the annotated workbook of a task is written.
func (p *BatchProcessor) OutputPath(taskID string) string {
	return filepath.Join(p.outputDir, workbook.OutputName(taskID))
}

// Process checks every subject of the job's workbook in row order. Failures
// that end the task are recorded with MarkError before being returned.
func (p *BatchProcessor) Process(ctx context.Context, job domain.ProcessingJob) error {
	log := p.logger.With("task_id", job.TaskID)
	log.Infow("batch_process_start", "file", job.FileName)

	wb, err := workbook.Open(job.FilePath)
	if err != nil {
		return p.fail(ctx, job.TaskID, fmt.Sprintf("failed to read workbook: %v", err), err)
	}
	defer wb.Close()

	subjects := wb.Subjects()
	if len(subjects) == 0 {
		log.Warnw("batch_process_no_subjects")
		return p.fail(ctx, job.TaskID, MessageNoSubjects, nil)
	}

	for i, subject := range subjects {
		if err := ctx.Err(); err != nil {
			return p.fail(ctx, job.TaskID, "processing interrupted by shutdown", err)
		}

		subjectID, outcome := p.check(ctx, subject.Raw)
		if err := wb.SetStatus(subject.Row, outcome); err != nil {
			return p.fail(ctx, job.TaskID, fmt.Sprintf("failed to annotate workbook: %v", err), err)
		}

		record := &domain.ResultRecord{
			SubjectID: subjectID,
			Outcome:   outcome,
			TaskID:    job.TaskID,
			FileName:  job.FileName,
		}
		if _, err := p.results.AppendRecord(ctx, record); err != nil {
			return p.fail(ctx, job.TaskID, fmt.Sprintf("failed to store result: %v", err), err)
		}

		if p.syncer != nil {
			if err := p.syncer.Sync(ctx, *record); err != nil {
				log.Warnw("batch_board_sync_deferred", "subject", subjectID, "error", err)
			}
		}

		last := i == len(subjects)-1
		if last {
			// The output must exist before the final increment completes the task.
			if err := wb.SaveAs(p.OutputPath(job.TaskID)); err != nil {
				return p.fail(ctx, job.TaskID, fmt.Sprintf("failed to write output workbook: %v", err), err)
			}
		}

		if err := p.tracker.RecordProgress(ctx, job.TaskID, 1); err != nil {
			log.Errorw("batch_progress_rejected", "row", subject.Row, "error", err)
			if errors.Is(err, domain.ErrInvalidState) {
				// Already terminal; nothing left to mark.
				return err
			}
			return p.fail(ctx, job.TaskID, fmt.Sprintf("failed to record progress: %v", err), err)
		}

		if !last && p.delay > 0 {
			if err := sleepCtx(ctx, p.delay); err != nil {
				return p.fail(ctx, job.TaskID, "processing interrupted by shutdown", err)
			}
		}
	}

	log.Infow("batch_process_done", "subjects", len(subjects))
	return nil
}

// check resolves one raw EIN cell to the subject id to store and its outcome.
func (p *BatchProcessor) check(ctx context.Context, raw string) (string, string) {
	ein, ok := domain.NormalizeEIN(raw)
	subjectID := ein
	if subjectID == "" {
		subjectID = raw
	}
	if len([]rune(subjectID)) > maxSubjectLen {
		subjectID = string([]rune(subjectID)[:maxSubjectLen])
	}
	if !ok {
		return subjectID, domain.OutcomeInvalidEIN
	}

	status, err := p.registry.LookupStatus(ctx, ein)
	if err != nil {
		return subjectID, truncateOutcome("Error: " + err.Error())
	}
	return subjectID, truncateOutcome(status)
}

func (p *BatchProcessor) fail(ctx context.Context, taskID, message string, cause error) error {
	// The job context may already be cancelled; the error state must still land.
	if err := p.tracker.MarkError(context.WithoutCancel(ctx), taskID, message); err != nil {
		p.logger.Errorw("batch_mark_error_failed", "task_id", taskID, "error", err)
	}
	if cause == nil {
		return nil
	}
	return fmt.Errorf("task %s: %s: %w", taskID, message, cause)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
