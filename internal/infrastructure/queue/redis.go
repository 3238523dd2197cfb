package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/statustracker/backend/internal/config"
	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/domain"
)

type redisQueue struct {
	rdb redis.UniversalClient
	key string
}

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// NewRedisQueue pushes on the left and pops from the right, so jobs are
// handed out in arrival order.
func NewRedisQueue(rdb redis.UniversalClient, key string) ports.JobQueue {
	return &redisQueue{rdb: rdb, key: key}
}

func (q *redisQueue) Enqueue(ctx context.Context, job domain.ProcessingJob) error {
	data, err := sonic.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("%w: enqueue job: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (q *redisQueue) Dequeue(ctx context.Context, wait time.Duration) (*domain.ProcessingJob, error) {
	result, err := q.rdb.BRPop(ctx, wait, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result: %v", result)
	}

	var job domain.ProcessingJob
	if err := sonic.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, nil
}

func (q *redisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
