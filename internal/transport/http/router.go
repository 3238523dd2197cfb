package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/infrastructure/logger"
	"github.com/statustracker/backend/internal/transport/http/handlers"
)

type RouterConfig struct {
	Tracker          ports.TaskTracker
	Results          ports.ResultStore
	Uploads          handlers.Uploader
	Outputs          handlers.OutputLocator
	Queue            handlers.QueueDepth
	Logger           *logger.Logger
	ProgressInterval time.Duration
}

func SetupRoutes(app *fiber.App, cfg RouterConfig) {
	taskHandler := handlers.NewTaskHandler(cfg.Tracker, cfg.Results, cfg.Outputs, cfg.Logger)
	uploadHandler := handlers.NewUploadHandler(cfg.Uploads, cfg.Logger)
	resultHandler := handlers.NewResultHandler(cfg.Results, cfg.Logger)
	progressHandler := handlers.NewProgressHandler(cfg.Tracker, cfg.ProgressInterval, cfg.Logger)
	healthHandler := handlers.NewHealthHandler(cfg.Queue, cfg.Logger)

	app.Get("/health", healthHandler.Check)

	// Progress stream
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws/tasks/:id", websocket.New(progressHandler.Handle))

	api := app.Group("/api/v1")

	api.Post("/uploads", uploadHandler.Upload)

	tasks := api.Group("/tasks")
	tasks.Get("/", taskHandler.ListTasks)
	tasks.Get("/:id", taskHandler.GetTask)
	tasks.Get("/:id/results", taskHandler.GetTaskResults)
	tasks.Get("/:id/download", taskHandler.Download)

	results := api.Group("/results")
	results.Get("/", resultHandler.ListRecent)
	results.Post("/:id/synced", resultHandler.MarkSynced)

	subjects := api.Group("/subjects")
	subjects.Get("/:id/latest", resultHandler.Latest)
	subjects.Get("/:id/history", resultHandler.History)
}
