package queue

import (
	"context"
	"testing"
	"time"

	mrd "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/statustracker/backend/internal/domain"
	"github.com/stretchr/testify/require"
)

func newMiniClient(t *testing.T) (*redis.Client, *mrd.Miniredis) {
	t.Helper()
	s := mrd.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, s
}

func TestRedisQueue_FIFO(t *testing.T) {
	rdb, _ := newMiniClient(t)
	q := NewRedisQueue(rdb, "test:jobs")
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, q.Enqueue(ctx, domain.ProcessingJob{TaskID: "a", FilePath: "/tmp/a.xlsx", FileName: "a.xlsx", EnqueuedAt: now}))
	require.NoError(t, q.Enqueue(ctx, domain.ProcessingJob{TaskID: "b", FilePath: "/tmp/b.xlsx", FileName: "b.xlsx", EnqueuedAt: now}))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	first, err := q.Dequeue(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, first)
	require.Equal(t, "a", first.TaskID)
	require.Equal(t, "a.xlsx", first.FileName)
	require.True(t, now.Equal(first.EnqueuedAt))

	second, err := q.Dequeue(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "b", second.TaskID)
}

func TestRedisQueue_EmptyReturnsNil(t *testing.T) {
	rdb, _ := newMiniClient(t)
	q := NewRedisQueue(rdb, "test:empty")

	job, err := q.Dequeue(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, job)
}

func TestRedisQueue_BadPayload(t *testing.T) {
	rdb, s := newMiniClient(t)
	q := NewRedisQueue(rdb, "test:bad")
	s.Lpush("test:bad", "{not json")

	job, err := q.Dequeue(context.Background(), 50*time.Millisecond)
	require.Error(t, err)
	require.Nil(t, job)
}

func TestRedisQueue_PayloadShape(t *testing.T) {
	rdb, s := newMiniClient(t)
	q := NewRedisQueue(rdb, "test:shape")
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, q.Enqueue(context.Background(), domain.ProcessingJob{TaskID: "t1", FilePath: "/u/t1.xlsx", FileName: "t1.xlsx", EnqueuedAt: at}))

	items, err := s.List("test:shape")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.JSONEq(t, `{"task_id":"t1","file_path":"/u/t1.xlsx","file_name":"t1.xlsx","enqueued_at":"2026-03-01T09:00:00Z"}`, items[0])
}

func TestRedisQueue_EnqueueUnavailable(t *testing.T) {
	rdb, s := newMiniClient(t)
	q := NewRedisQueue(rdb, "test:down")
	s.Close()

	err := q.Enqueue(context.Background(), domain.ProcessingJob{TaskID: "x"})
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
}
