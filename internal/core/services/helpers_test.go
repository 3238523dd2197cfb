package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/statustracker/backend/internal/config"
	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/infrastructure/db"
	"github.com/statustracker/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

// Now advances by one second per call so successive writes are ordered.
func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := db.NewConnection(config.DatabaseConfig{URL: "sqlite://:memory:"}, "warn")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(database))
	t.Cleanup(func() { _ = db.Close(database) })
	return database
}

type testStores struct {
	tracker ports.TaskTracker
	results ports.ResultStore
	clock   *fakeClock
}

func newTestStores(t *testing.T) testStores {
	t.Helper()
	database := newTestDB(t)
	clock := newFakeClock()
	log := logger.NewNop()
	return testStores{
		tracker: NewTaskTracker(TaskTrackerConfig{Repository: db.NewTaskRepository(database, log), Logger: log, Now: clock.Now}),
		results: NewResultStore(ResultStoreConfig{Repository: db.NewResultRepository(database, log), Logger: log, Now: clock.Now}),
		clock:   clock,
	}
}

func writeWorkbook(t *testing.T, dir string, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	path := filepath.Join(dir, "clients.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

type fakeRegistry struct {
	mu       sync.Mutex
	statuses map[string]string
	errs     map[string]error
	calls    []string
}

func (f *fakeRegistry) LookupStatus(_ context.Context, ein string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ein)
	if err, ok := f.errs[ein]; ok {
		return "", err
	}
	if s, ok := f.statuses[ein]; ok {
		return s, nil
	}
	return "Not Found", nil
}

type boardUpdate struct {
	itemID string
	status string
}

type fakeBoard struct {
	mu        sync.Mutex
	items     map[string]string
	updateErr error
	updates   []boardUpdate
}

func (f *fakeBoard) FindItemID(_ context.Context, ein string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[ein], nil
}

func (f *fakeBoard) UpdateStatus(_ context.Context, itemID string, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, boardUpdate{itemID: itemID, status: status})
	return nil
}

func (f *fakeBoard) Updates() []boardUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]boardUpdate(nil), f.updates...)
}
