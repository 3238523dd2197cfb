package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	mrd "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/domain"
	"github.com/statustracker/backend/internal/infrastructure/logger"
	"github.com/statustracker/backend/internal/infrastructure/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploadFixture struct {
	stores    testStores
	queue     ports.JobQueue
	redis     *mrd.Miniredis
	uploadDir string
	service   *UploadService
}

func newUploadFixture(t *testing.T) uploadFixture {
	t.Helper()
	s := newTestStores(t)
	srv := mrd.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	q := queue.NewRedisQueue(rdb, "test:jobs")

	dir := filepath.Join(t.TempDir(), "uploads")
	return uploadFixture{
		stores:    s,
		queue:     q,
		redis:     srv,
		uploadDir: dir,
		service: NewUploadService(UploadServiceConfig{
			Validator: NewFileValidator([]string{".xlsx", ".xls"}, 1<<20),
			Tracker:   s.tracker,
			Queue:     q,
			UploadDir: dir,
			Logger:    logger.NewNop(),
		}),
	}
}

func readFile(t *testing.T, path string) *bytes.Reader {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func TestUploadService_AcceptCreatesTaskAndJob(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()
	src := writeWorkbook(t, t.TempDir(), [][]interface{}{
		{"Client", "EIN Number"},
		{"Alpha", "123456789"},
		{"Beta", "987654321"},
	})

	taskID, err := f.service.Accept(ctx, readFile(t, src), "my clients.xlsx")
	require.NoError(t, err)

	task, err := f.stores.tracker.Get(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Equal(t, 2, task.TotalCount)
	assert.Equal(t, "my clients.xlsx", task.FileName)

	job, err := f.queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, taskID, job.TaskID)
	assert.Equal(t, "my clients.xlsx", job.FileName)
	assert.Equal(t, f.uploadDir, filepath.Dir(job.FilePath))
	assert.Contains(t, filepath.Base(job.FilePath), "my_clients.xlsx")
	assert.FileExists(t, job.FilePath)
}

func TestUploadService_RejectsWithoutSideEffects(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()
	noEIN := writeWorkbook(t, t.TempDir(), [][]interface{}{{"Client", "Tax"}, {"Alpha", "1"}})

	tests := []struct {
		name   string
		reader *bytes.Reader
		file   string
	}{
		{name: "missing EIN column", reader: readFile(t, noEIN), file: "clients.xlsx"},
		{name: "wrong extension", reader: readFile(t, noEIN), file: "clients.csv"},
		{name: "bad signature", reader: bytes.NewReader([]byte("EIN Number,Name\n")), file: "clients.xlsx"},
		{name: "corrupt workbook", reader: bytes.NewReader([]byte("PK\x03\x04not a zip archive")), file: "clients.xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Accept(ctx, tt.reader, tt.file)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	tasks, err := f.stores.tracker.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	n, err := f.queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.NoDirExists(t, f.uploadDir, "rejected uploads are never written")
}

func TestUploadService_QueueFailureMarksTaskError(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()
	src := writeWorkbook(t, t.TempDir(), [][]interface{}{{"EIN Number"}, {"123456789"}})
	f.redis.Close()

	_, err := f.service.Accept(ctx, readFile(t, src), "clients.xlsx")
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)

	tasks, err := f.stores.tracker.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskStatusError, tasks[0].Status)
}
