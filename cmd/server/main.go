package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/statustracker/backend/internal/config"
	"github.com/statustracker/backend/internal/core/services"
	"github.com/statustracker/backend/internal/infrastructure/logger"
	"github.com/statustracker/backend/internal/infrastructure/queue"
	"github.com/statustracker/backend/internal/infrastructure/remote"
	transporthttp "github.com/statustracker/backend/internal/transport/http"
	"github.com/statustracker/backend/internal/transport/http/dto"
	httpmw "github.com/statustracker/backend/internal/transport/http/middleware"
)

func main() {
	configPath := os.Getenv("TRACKER_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "../config/config.yaml"
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startupCtx, cancelStartup := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	st, err := openStores(startupCtx, cfg, log)
	cancelStartup()
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}

	rdb, err := queue.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	jobs := queue.NewRedisQueue(rdb, cfg.Redis.QueueKey)
	log.Infow("queue_ready", "addr", cfg.Redis.Addr, "key", cfg.Redis.QueueKey)

	tracker := services.NewTaskTracker(services.TaskTrackerConfig{
		Repository: st.tasks,
		Logger:     log.Named("tracker"),
	})
	results := services.NewResultStore(services.ResultStoreConfig{
		Repository: st.results,
		Logger:     log.Named("results"),
	})

	var syncer *services.BoardSyncer
	if cfg.Board.Enabled {
		board, err := remote.NewBoardClient(cfg.Board, log.Named("board"))
		if err != nil {
			log.Fatalf("invalid board configuration: %v", err)
		}
		syncer = services.NewBoardSyncer(board, results, log.Named("board_sync"))
	}

	processor := services.NewBatchProcessor(services.BatchProcessorConfig{
		Tracker:      tracker,
		Results:      results,
		Registry:     remote.NewRegistryClient(cfg.Registry, log.Named("registry")),
		Syncer:       syncer,
		OutputDir:    cfg.Storage.OutputPath(),
		RequestDelay: cfg.Worker.RequestDelay,
		Logger:       log.Named("processor"),
	})
	uploads := services.NewUploadService(services.UploadServiceConfig{
		Validator: services.NewFileValidator(cfg.Storage.AllowedExtensions, cfg.Storage.MaxUploadBytes),
		Tracker:   tracker,
		Queue:     jobs,
		UploadDir: cfg.Storage.UploadPath(),
		Logger:    log.Named("uploads"),
	})

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	services.NewWorkerPool(jobs, processor, cfg.Redis.PollWait, log.Named("worker")).
		Start(workerCtx, cfg.Worker.Count, &workers)

	scheduler := services.NewScheduler(time.Hour, log.Named("scheduler"))
	cleaner := services.NewRetentionCleaner(
		[]string{cfg.Storage.UploadPath(), cfg.Storage.OutputPath()}, cfg.Retention.MaxAge, log.Named("retention"))
	if err := scheduler.Add("retention", cfg.Retention.Schedule, cleaner.Run); err != nil {
		log.Fatalf("failed to schedule retention: %v", err)
	}
	if syncer != nil {
		reconciler := services.NewReconciler(services.ReconcilerConfig{
			Syncer:    syncer,
			Results:   results,
			BatchSize: cfg.Sync.BatchSize,
			Logger:    log.Named("reconciler"),
		})
		if err := scheduler.Add("board_reconcile", cfg.Sync.Schedule, reconciler.Run); err != nil {
			log.Fatalf("failed to schedule board reconciliation: %v", err)
		}
	}
	scheduler.Start()
	// Sweep files left over from before the restart.
	go scheduler.RunNow("retention", cleaner.Run)

	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		BodyLimit:             int(cfg.Storage.MaxUploadBytes) * 2,
		ErrorHandler:          globalErrorHandler(log),
		DisableStartupMessage: true,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Features.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + cfg.Features.RequestIDHeader,
		AllowMethods: "GET, POST, HEAD",
	}))
	app.Use(httpmw.RequestID(cfg.Features.RequestIDHeader))
	if cfg.Features.EnableRequestLogging {
		app.Use(httpmw.AccessLog(log.Named("http")))
	}

	transporthttp.SetupRoutes(app, transporthttp.RouterConfig{
		Tracker:          tracker,
		Results:          results,
		Uploads:          uploads,
		Outputs:          processor,
		Queue:            jobs,
		Logger:           log.Named("api"),
		ProgressInterval: time.Second,
	})

	go func() {
		if err := app.Listen(cfg.Server.Address()); err != nil {
			log.Fatalf("server failed to start: %v", err)
		}
	}()
	log.Infof("server started on %s", cfg.Server.Address())

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
	}
	scheduler.Stop(shutdownCtx)

	stopWorkers()
	waitFor(shutdownCtx, &workers, log)

	if err := rdb.Close(); err != nil {
		log.Errorf("failed to close redis client: %v", err)
	}
	if err := st.close(shutdownCtx); err != nil {
		log.Errorf("failed to close storage: %v", err)
	}

	log.Info("server exited gracefully")
}

func waitFor(ctx context.Context, wg *sync.WaitGroup, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("workers did not stop before the shutdown timeout")
	}
}

func globalErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		if code < fiber.StatusInternalServerError {
			log.Warnw("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"status", code,
				"error", err.Error(),
				"request_id", httpmw.GetRequestID(c),
			)
		} else {
			log.Errorw("request error",
				"method", c.Method(),
				"path", c.Path(),
				"status", code,
				"error", err.Error(),
				"request_id", httpmw.GetRequestID(c),
			)
		}

		return c.Status(code).JSON(dto.ErrorResponse{Error: err.Error()})
	}
}
