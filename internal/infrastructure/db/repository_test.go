package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/statustracker/backend/internal/config"
	"github.com/statustracker/backend/internal/domain"
	"github.com/statustracker/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := NewConnection(config.DatabaseConfig{URL: "sqlite://:memory:"}, "warn")
	require.NoError(t, err)
	require.NoError(t, RunMigrations(database))
	t.Cleanup(func() { _ = Close(database) })
	return database
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedTask(t *testing.T, repo interface {
	Create(context.Context, *domain.Task) error
}, id string, total int) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &domain.Task{
		ID:         id,
		FileName:   id + ".xlsx",
		Status:     domain.TaskStatusPending,
		TotalCount: total,
		StartedAt:  base,
		UpdatedAt:  base,
	}))
}

func TestTaskRepository_IncrementToCompletion(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t), logger.NewNop())
	ctx := context.Background()
	seedTask(t, repo, "t1", 3)

	ok, err := repo.IncrementProgress(ctx, "t1", 1, base.Add(time.Second))
	require.NoError(t, err)
	require.True(t, ok)

	task, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusProcessing, task.Status)
	assert.Equal(t, 1, task.ProcessedCount)
	assert.Nil(t, task.CompletedAt)

	ok, err = repo.IncrementProgress(ctx, "t1", 2, base.Add(2*time.Second))
	require.NoError(t, err)
	require.True(t, ok)

	task, err = repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.Equal(t, 3, task.ProcessedCount)
	require.NotNil(t, task.CompletedAt)
	assert.True(t, task.CompletedAt.Equal(base.Add(2*time.Second)))
}

func TestTaskRepository_IncrementRejected(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t), logger.NewNop())
	ctx := context.Background()
	seedTask(t, repo, "t1", 2)

	tests := []struct {
		name string
		id   string
		n    int
	}{
		{name: "overshoot", id: "t1", n: 3},
		{name: "unknown task", id: "missing", n: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := repo.IncrementProgress(ctx, tt.id, tt.n, base)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}

	task, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, task.ProcessedCount)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
}

func TestTaskRepository_ConcurrentIncrementsNeverOvershoot(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t), logger.NewNop())
	ctx := context.Background()
	seedTask(t, repo, "t1", 10)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.IncrementProgress(ctx, "t1", 1, base)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, applied)
	task, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 10, task.ProcessedCount)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
}

func TestTaskRepository_MarkError(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t), logger.NewNop())
	ctx := context.Background()
	seedTask(t, repo, "t1", 2)
	seedTask(t, repo, "t2", 1)

	ok, err := repo.MarkError(ctx, "t1", "boom", base)
	require.NoError(t, err)
	assert.True(t, ok)

	task, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusError, task.Status)
	require.NotNil(t, task.ErrorMessage)
	assert.Equal(t, "boom", *task.ErrorMessage)

	ok, err = repo.MarkError(ctx, "t1", "again", base)
	require.NoError(t, err)
	assert.False(t, ok, "terminal task must not change")

	ok, err = repo.IncrementProgress(ctx, "t2", 1, base)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.MarkError(ctx, "t2", "late", base)
	require.NoError(t, err)
	assert.False(t, ok, "completed task must not move to error")
}

func TestTaskRepository_GetMissing(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t), logger.NewNop())
	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskRepository_ListNewestFirst(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t), logger.NewNop())
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, &domain.Task{
			ID: id, FileName: id, Status: domain.TaskStatusPending,
			StartedAt: base.Add(time.Duration(i) * time.Minute), UpdatedAt: base,
		}))
	}

	tasks, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "c", tasks[0].ID)
	assert.Equal(t, "b", tasks[1].ID)
}

func newRecord(id, subject, outcome string, at time.Time) *domain.ResultRecord {
	return &domain.ResultRecord{ID: id, SubjectID: subject, Outcome: outcome, CheckedAt: at, TaskID: "t1"}
}

func TestResultRepository_LatestAndHistory(t *testing.T) {
	repo := NewResultRepository(newTestDB(t), logger.NewNop())
	ctx := context.Background()

	latest, err := repo.LatestBySubject(ctx, "123456789")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, repo.Create(ctx, newRecord("r1", "123456789", "Current", base)))
	require.NoError(t, repo.Create(ctx, newRecord("r2", "123456789", "Delinquent", base.Add(time.Hour))))
	require.NoError(t, repo.Create(ctx, newRecord("r3", "987654321", "Current", base.Add(2*time.Hour))))

	latest, err = repo.LatestBySubject(ctx, "123456789")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "r2", latest.ID)
	assert.Equal(t, "Delinquent", latest.Outcome)

	history, err := repo.ListBySubject(ctx, "123456789", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "r2", history[0].ID)
	assert.Equal(t, "r1", history[1].ID)

	recent, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "r3", recent[0].ID)
}

func TestResultRepository_MarkSynced(t *testing.T) {
	repo := NewResultRepository(newTestDB(t), logger.NewNop())
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newRecord("r1", "123456789", "Current", base)))
	require.NoError(t, repo.Create(ctx, newRecord("r2", "123456780", "Current", base.Add(time.Minute))))

	unsynced, err := repo.ListUnsynced(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, unsynced, 2)

	first := base.Add(time.Hour)
	require.NoError(t, repo.MarkSynced(ctx, "r1", "42", first))
	require.NoError(t, repo.MarkSynced(ctx, "r1", "43", first.Add(time.Hour)), "second acknowledgement is a no-op")

	rec, err := repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, rec.Synced)
	assert.Equal(t, "42", rec.ExternalItemID)
	require.NotNil(t, rec.SyncedAt)
	assert.True(t, rec.SyncedAt.Equal(first))

	unsynced, err = repo.ListUnsynced(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, "r2", unsynced[0].ID)

	err = repo.MarkSynced(ctx, "missing", "", first)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResultRepository_ListByTask(t *testing.T) {
	repo := NewResultRepository(newTestDB(t), logger.NewNop())
	ctx := context.Background()
	other := newRecord("r3", "111111111", "Current", base)
	other.TaskID = "t2"
	require.NoError(t, repo.Create(ctx, newRecord("r1", "123456789", "Current", base)))
	require.NoError(t, repo.Create(ctx, newRecord("r2", "987654321", "Exempt", base.Add(time.Second))))
	require.NoError(t, repo.Create(ctx, other))

	records, err := repo.ListByTask(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "r1", records[0].ID)
	assert.Equal(t, "r2", records[1].ID)
}

func TestDialectorFor(t *testing.T) {
	tests := []struct {
		url     string
		sqlite  bool
		wantErr bool
	}{
		{url: "sqlite://:memory:", sqlite: true},
		{url: "postgres://u:p@localhost:5432/db", sqlite: false},
		{url: "postgresql://u:p@localhost:5432/db", sqlite: false},
		{url: "mysql://localhost/db", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			_, isSQLite, err := dialectorFor(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				assert.False(t, IsSQLURL(tt.url))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.sqlite, isSQLite)
			assert.True(t, IsSQLURL(tt.url))
		})
	}
}
