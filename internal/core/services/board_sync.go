package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/domain"
	"github.com/statustracker/backend/internal/infrastructure/logger"
)

var (
	ErrBoardItemNotFound = errors.New("board sync: no board item for subject")
	ErrBoardSubject      = errors.New("board sync: subject is not a valid EIN")
)

// BoardSyncer pushes one result record to the work board and flags it synced.
type BoardSyncer struct {
	board   ports.BoardClient
	results ports.ResultStore
	logger  *logger.Logger
}

func NewBoardSyncer(board ports.BoardClient, results ports.ResultStore, log *logger.Logger) *BoardSyncer {
	return &BoardSyncer{board: board, results: results, logger: log}
}

func (s *BoardSyncer) Sync(ctx context.Context, record domain.ResultRecord) error {
	ein, ok := domain.NormalizeEIN(record.SubjectID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrBoardSubject, record.SubjectID)
	}

	itemID := record.ExternalItemID
	if itemID == "" {
		found, err := s.board.FindItemID(ctx, ein)
		if err != nil {
			return err
		}
		if found == "" {
			return fmt.Errorf("%w: %s", ErrBoardItemNotFound, ein)
		}
		itemID = found
	}

	if err := s.board.UpdateStatus(ctx, itemID, record.Outcome); err != nil {
		return err
	}
	if err := s.results.MarkSyncedWithItem(ctx, record.ID, itemID); err != nil {
		return err
	}

	s.logger.Infow("board_sync_ok", "record_id", record.ID, "subject", ein, "item_id", itemID)
	return nil
}

// Reconciler retries board sync for records that missed it during processing.
type Reconciler struct {
	syncer    *BoardSyncer
	results   ports.ResultStore
	batchSize int
	logger    *logger.Logger
}

type ReconcilerConfig struct {
	Syncer    *BoardSyncer
	Results   ports.ResultStore
	BatchSize int
	Logger    *logger.Logger
}

func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	return &Reconciler{
		syncer:    cfg.Syncer,
		results:   cfg.Results,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger,
	}
}

// Run syncs one batch of unsynced records and returns how many succeeded.
// Per-record failures are logged and left for the next run.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	pending, err := r.results.Unsynced(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		superseded, err := r.superseded(ctx, rec)
		if err != nil {
			return synced, err
		}
		if superseded {
			// A newer outcome owns the board cell; retire this one without pushing.
			if err := r.results.MarkSynced(ctx, rec.ID); err != nil {
				r.logger.Warnw("reconcile_retire_failed", "record_id", rec.ID, "error", err)
			}
			continue
		}
		if err := r.syncer.Sync(ctx, rec); err != nil {
			if errors.Is(err, ErrBoardItemNotFound) || errors.Is(err, ErrBoardSubject) {
				r.logger.Debugw("reconcile_skip", "record_id", rec.ID, "reason", err)
			} else {
				r.logger.Warnw("reconcile_sync_failed", "record_id", rec.ID, "error", err)
			}
			continue
		}
		synced++
	}

	r.logger.Infow("reconcile_run_done", "candidates", len(pending), "synced", synced)
	return synced, nil
}

func (r *Reconciler) superseded(ctx context.Context, rec domain.ResultRecord) (bool, error) {
	latest, err := r.results.Latest(ctx, rec.SubjectID)
	if err != nil {
		return false, err
	}
	return latest != nil && latest.ID != rec.ID, nil
}
