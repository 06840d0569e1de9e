package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/artifacts"
	"github.com/ternarybob/wraith/internal/batch"
	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/dispatch"
	"github.com/ternarybob/wraith/internal/handlers"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/scheduler"
	"github.com/ternarybob/wraith/internal/services/crawler"
	"github.com/ternarybob/wraith/internal/services/ocr"
	"github.com/ternarybob/wraith/internal/storage"
	"github.com/ternarybob/wraith/internal/tasks"
	"github.com/ternarybob/wraith/internal/webhook"
)

// App wires the service together: storage, artifact store, crawler, OCR,
// task runtime, dispatcher and HTTP handlers. Backend selection is fixed
// here at startup.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Storage   *storage.Manager
	Artifacts interfaces.ArtifactStore
	Crawler   interfaces.Crawler
	Runtime   *tasks.Runtime

	dispatcher *dispatch.Dispatcher
	scheduler  *scheduler.Scheduler

	APIHandler      *handlers.APIHandler
	CrawlHandler    *handlers.CrawlHandler
	JobHandler      *handlers.JobHandler
	UploadHandler   *handlers.UploadHandler
	TaskHandler     *handlers.TaskHandler
	ArtifactHandler *handlers.ArtifactHandler
}

// New builds the application from configuration
func New(ctx context.Context, config *common.Config, logger arbor.ILogger) (*App, error) {
	store, err := storage.NewManager(ctx, config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	artifactStore, err := artifacts.NewStore(ctx, config, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	pageCrawler, err := crawler.NewChromedpCrawler(&config.Crawler, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize crawler: %w", err)
	}

	ocrEngine := ocr.NewEngine(&config.OCR, logger)
	emitter := webhook.NewEmitter(&config.Webhook, logger)
	coordinator := batch.NewCoordinator(pageCrawler, artifactStore, logger)

	registry := tasks.NewRegistry()
	runtime := tasks.NewRuntime(registry, store.JobStore, emitter, logger)

	taskHandlers := []tasks.Handler{
		tasks.NewBatchCrawlHandler(store.JobStore, coordinator, logger),
		tasks.NewSingleCrawlHandler(store.JobStore, coordinator, logger),
		tasks.NewProcessImageHandler(store.JobStore, artifactStore, ocrEngine, logger),
		tasks.NewCleanupHandler(store.JobStore, artifactStore, config.CleanupMaxAge(), logger),
	}
	for _, h := range taskHandlers {
		if err := registry.Register(h); err != nil {
			store.Close()
			return nil, err
		}
	}

	a := &App{
		Config:    config,
		Logger:    logger,
		Storage:   store,
		Artifacts: artifactStore,
		Crawler:   pageCrawler,
		Runtime:   runtime,

		APIHandler:      handlers.NewAPIHandler(config, logger),
		CrawlHandler:    handlers.NewCrawlHandler(store.JobStore, store.TaskQueue, runtime, artifactStore, logger),
		JobHandler:      handlers.NewJobHandler(store.JobStore, logger),
		UploadHandler:   handlers.NewUploadHandler(store.JobStore, store.TaskQueue, artifactStore, logger),
		TaskHandler:     handlers.NewTaskHandler(runtime, logger),
		ArtifactHandler: handlers.NewArtifactHandler(artifactStore, logger),
	}

	// Local mode pulls its own queue; cloud mode receives managed pushes
	if !config.IsCloud() {
		a.dispatcher = dispatch.NewDispatcher(store.TaskQueue, runtime, config, logger)
	}

	sched, err := scheduler.New(config, store.JobStore, store.TaskQueue, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}
	a.scheduler = sched

	return a, nil
}

// Start launches the background components
func (a *App) Start() {
	if a.dispatcher != nil {
		a.dispatcher.Start()
	}
	if a.scheduler != nil {
		a.scheduler.Start()
	}
}

// Close shuts the application down in reverse startup order
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}
	if a.Crawler != nil {
		if err := a.Crawler.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close crawler")
		}
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
}
