package services

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/statustracker/backend/internal/infrastructure/logger"
)

// RetentionCleaner removes uploaded and generated workbooks older than maxAge.
// Task and result rows are never touched.
type RetentionCleaner struct {
	dirs   []string
	maxAge time.Duration
	logger *logger.Logger
	now    func() time.Time
}

func NewRetentionCleaner(dirs []string, maxAge time.Duration, log *logger.Logger) *RetentionCleaner {
	return &RetentionCleaner{dirs: dirs, maxAge: maxAge, logger: log, now: time.Now}
}

func (c *RetentionCleaner) Run(ctx context.Context) (int, error) {
	cutoff := c.now().Add(-c.maxAge)
	removed := 0

	for _, dir := range c.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, err
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return removed, err
			}
			if !entry.Type().IsRegular() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return removed, err
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !os.IsNotExist(err) {
				c.logger.Warnw("retention_remove_failed", "file", entry.Name(), "error", err)
				continue
			}
			removed++
		}
	}

	c.logger.Infow("retention_run_done", "removed", removed, "cutoff", cutoff.UTC())
	return removed, nil
}
