package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/domain"
	"github.com/statustracker/backend/internal/infrastructure/logger"
)

// JobProcessor handles one dequeued job.
type JobProcessor interface {
	Process(ctx context.Context, job domain.ProcessingJob) error
}

type WorkerPool struct {
	queue     ports.JobQueue
	processor JobProcessor
	pollWait  time.Duration
	logger    *logger.Logger
}

func NewWorkerPool(queue ports.JobQueue, processor JobProcessor, pollWait time.Duration, log *logger.Logger) *WorkerPool {
	if pollWait <= 0 {
		pollWait = 2 * time.Second
	}
	return &WorkerPool{queue: queue, processor: processor, pollWait: pollWait, logger: log}
}

// Start launches count workers that run until ctx is cancelled.
func (p *WorkerPool) Start(ctx context.Context, count int, wg *sync.WaitGroup) {
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.run(ctx, id)
		}(i + 1)
	}
}

func (p *WorkerPool) run(ctx context.Context, id int) {
	log := p.logger.With("worker", id)
	log.Infow("worker_started")
	defer log.Infow("worker_stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := p.queue.Dequeue(ctx, p.pollWait)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			log.Errorw("worker_dequeue_failed", "error", err)
			if sleepCtx(ctx, p.pollWait) != nil {
				return
			}
			continue
		}
		if job == nil {
			continue
		}

		log.Infow("worker_job_received", "task_id", job.TaskID, "queued_for", time.Since(job.EnqueuedAt).String())
		if err := p.processor.Process(ctx, *job); err != nil {
			log.Errorw("worker_job_failed", "task_id", job.TaskID, "error", err)
		}
	}
}
