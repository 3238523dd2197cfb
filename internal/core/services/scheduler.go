package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/statustracker/backend/internal/infrastructure/logger"
)

// ScheduledFunc is a periodic maintenance job returning how many items it handled.
type ScheduledFunc func(ctx context.Context) (int, error)

// Scheduler runs maintenance jobs on cron expressions. Accepted forms are the
// standard five fields with an optional leading seconds field, or descriptors
// such as @daily and @every 15m.
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  *logger.Logger

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

func NewScheduler(jobTimeout time.Duration, log *logger.Logger) *Scheduler {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		// SkipIfStillRunning keeps a slow run from overlapping the next tick.
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		parser:  parser,
		ctx:     ctx,
		cancel:  cancel,
		timeout: jobTimeout,
		logger:  log,
		jobs:    make(map[string]cron.EntryID),
	}
}

func (s *Scheduler) Add(name, spec string, fn ScheduledFunc) error {
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q for %s: %w", spec, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduler: job %s already registered", name)
	}

	id, err := s.cron.AddFunc(spec, func() { s.runJob(name, fn) })
	if err != nil {
		return fmt.Errorf("scheduler: add %s: %w", name, err)
	}
	s.jobs[name] = id
	s.logger.Infow("scheduler_job_added", "job", name, "schedule", spec)
	return nil
}

// RunNow executes a registered job synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string, fn ScheduledFunc) {
	s.runJob(name, fn)
}

func (s *Scheduler) runJob(name string, fn ScheduledFunc) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	n, err := fn(ctx)
	if err != nil {
		s.logger.Errorw("scheduler_job_failed", "job", name, "handled", n, "error", err)
		return
	}
	s.logger.Infow("scheduler_job_done", "job", name, "handled", n, "duration_ms", time.Since(start).Milliseconds())
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Infow("scheduler_started", "jobs", len(s.cron.Entries()))
}

// Stop cancels running jobs and waits for them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Infow("scheduler_stopped")
	case <-ctx.Done():
		s.logger.Warnw("scheduler_stop_timeout")
	}
}
