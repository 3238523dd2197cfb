package handlers

import (
	"context"
	"net"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/statustracker/backend/internal/config"
	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/core/services"
	"github.com/statustracker/backend/internal/infrastructure/db"
	"github.com/statustracker/backend/internal/infrastructure/logger"
	"github.com/statustracker/backend/internal/transport/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const streamInterval = 20 * time.Millisecond

func newStreamServer(t *testing.T) (ports.TaskTracker, string) {
	t.Helper()
	database, err := db.NewConnection(config.DatabaseConfig{URL: "sqlite://:memory:"}, "warn")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(database))
	t.Cleanup(func() { _ = db.Close(database) })

	log := logger.NewNop()
	tracker := services.NewTaskTracker(services.TaskTrackerConfig{Repository: db.NewTaskRepository(database, log), Logger: log})

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws/tasks/:id", websocket.New(NewProgressHandler(tracker, streamInterval, log).Handle))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.ShutdownWithTimeout(time.Second) })

	return tracker, "ws://" + ln.Addr().String() + "/ws/tasks/"
}

func dialStream(t *testing.T, url string) *fastws.Conn {
	t.Helper()
	conn, _, err := fastws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func readSnapshot(t *testing.T, conn *fastws.Conn) dto.TaskResponse {
	t.Helper()
	var snap dto.TaskResponse
	require.NoError(t, conn.ReadJSON(&snap))
	return snap
}

func assertNormalClose(t *testing.T, conn *fastws.Conn) {
	t.Helper()
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, fastws.IsCloseError(err, fastws.CloseNormalClosure), "unexpected close: %v", err)
}

func TestProgressStream_SnapshotsUntilCompleted(t *testing.T) {
	tracker, base := newStreamServer(t)
	ctx := context.Background()
	id, err := tracker.Create(ctx, "clients.xlsx", 2)
	require.NoError(t, err)

	conn := dialStream(t, base+id)

	first := readSnapshot(t, conn)
	assert.Equal(t, id, first.TaskID)
	assert.Equal(t, "pending", first.Status)
	assert.Equal(t, 0, first.ProcessedCount)

	// Several polls pass with no change; none of them may produce a frame.
	time.Sleep(5 * streamInterval)
	require.NoError(t, tracker.RecordProgress(ctx, id, 1))

	second := readSnapshot(t, conn)
	assert.Equal(t, "processing", second.Status)
	assert.Equal(t, 1, second.ProcessedCount)
	assert.Equal(t, 50, second.Progress)

	time.Sleep(5 * streamInterval)
	require.NoError(t, tracker.RecordProgress(ctx, id, 1))

	last := readSnapshot(t, conn)
	assert.Equal(t, "completed", last.Status)
	assert.Equal(t, 2, last.ProcessedCount)
	assert.NotEmpty(t, last.DownloadURL)

	assertNormalClose(t, conn)
}

func TestProgressStream_ClosesOnError(t *testing.T) {
	tracker, base := newStreamServer(t)
	ctx := context.Background()
	id, err := tracker.Create(ctx, "clients.xlsx", 3)
	require.NoError(t, err)

	conn := dialStream(t, base+id)
	assert.Equal(t, "pending", readSnapshot(t, conn).Status)

	require.NoError(t, tracker.MarkError(ctx, id, "failed to read workbook"))

	snap := readSnapshot(t, conn)
	assert.Equal(t, "error", snap.Status)
	assert.Equal(t, "failed to read workbook", snap.ErrorMessage)

	assertNormalClose(t, conn)
}

func TestProgressStream_UnknownTask(t *testing.T) {
	_, base := newStreamServer(t)

	conn := dialStream(t, base+"does-not-exist")

	var resp dto.ErrorResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "task not found", resp.Error)

	assertNormalClose(t, conn)
}
