package app

import (
	"context"
	"fmt"

	"github.com/framelight/previz-server/internal/adapters"
	"github.com/framelight/previz-server/internal/config"
	"github.com/framelight/previz-server/internal/db"
	"github.com/framelight/previz-server/internal/db/models"
	"github.com/framelight/previz-server/internal/db/repository"
	"github.com/framelight/previz-server/internal/pipeline"
	"github.com/framelight/previz-server/internal/planner"
	"github.com/framelight/previz-server/internal/registry"
	"github.com/framelight/previz-server/internal/services/analysis"
	"github.com/framelight/previz-server/internal/services/filestorage"
	"github.com/framelight/previz-server/internal/services/imagestore"
	"github.com/framelight/previz-server/pkg/logger"
	"github.com/framelight/previz-server/pkg/mq"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

const analysisQueueSize = 256

type App struct {
	db         *bun.DB
	config     *config.Config
	ctx        context.Context
	cancelFunc context.CancelFunc

	Logger      *zap.Logger
	Registry    *registry.Registry
	Dispatcher  *adapters.Dispatcher
	FileStorage filestorage.FileStorage
	ImageStore  *imagestore.Store
	Planner     planner.Service
	Pipeline    *pipeline.Controller
	Analysis    *analysis.Service

	AssetRepository  repository.IAssetRepository
	APIKeyRepository repository.IAPIKeyRepository
}

// Option funcs used to initialize the App struct
type OptionFunc func(app *App) error

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(app *App) error {
		app.Logger = logger
		return nil
	}
}

func WithDBInitialization() OptionFunc {
	return func(app *App) error {
		dbConn, err := db.NewConnection(app.ctx, app.config)
		if err != nil {
			return err
		}
		app.db = dbConn.GetDB()

		// Ensure tables exist
		err = app.db.RunInTx(app.ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			tables := []interface{}{
				(*models.Asset)(nil),
				(*models.APIKey)(nil),
			}

			for _, table := range tables {
				if _, err := tx.NewCreateTable().
					Model(table).
					IfNotExists().
					Exec(ctx); err != nil {
					return fmt.Errorf("failed to create table: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		app.AssetRepository = repository.NewAssetRepository(app.db)
		app.APIKeyRepository = repository.NewAPIKeyRepository(app.db)

		return nil
	}
}

func WithFileStorage() OptionFunc {
	return func(app *App) error {
		storage, err := filestorage.NewFileStorage(app.Config())
		if err != nil {
			return err
		}
		app.FileStorage = storage
		app.ImageStore = imagestore.NewStore(storage, app.Logger)
		return nil
	}
}

func WithAdapters() OptionFunc {
	return func(app *App) error {
		app.Registry = registry.NewDefaultRegistry()

		dispatcher, err := adapters.NewDispatcher(app.config, app.Registry)
		if err != nil {
			return err
		}
		app.Dispatcher = dispatcher
		return nil
	}
}

func WithPlanner() OptionFunc {
	return func(app *App) error {
		if app.config.OpenAI == nil {
			return fmt.Errorf("openAI API-key is not set. Cannot enable refinement planning")
		}
		if app.Registry == nil {
			return fmt.Errorf("model registry is not initialized")
		}
		if app.AssetRepository == nil {
			return fmt.Errorf("asset repository is not initialized")
		}

		p, err := planner.NewPlanner(app.config.OpenAI.APIKey, app.Registry, app.AssetRepository, app.Logger)
		if err != nil {
			return err
		}
		app.Planner = p
		return nil
	}
}

func WithAnalysis() OptionFunc {
	return func(app *App) error {
		if app.config.OpenAI == nil {
			return fmt.Errorf("openAI API-key is not set. Cannot enable image analysis")
		}
		if app.AssetRepository == nil {
			return fmt.Errorf("asset repository is not initialized")
		}

		analyzer, err := analysis.NewOpenAIAnalyzer(app.config.OpenAI.APIKey)
		if err != nil {
			return err
		}

		var queue mq.MessageQueue = mq.NewInMemoryQueue(analysisQueueSize)
		if app.config.Pulsar != nil && app.config.Pulsar.URL != "" {
			queue, err = mq.NewPulsarQueue(app.config.Pulsar.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to pulsar: %w", err)
			}
		}

		app.Analysis = analysis.NewService(analyzer, app.AssetRepository, queue, app.Logger)
		return nil
	}
}

func WithPipeline() OptionFunc {
	return func(app *App) error {
		if app.Dispatcher == nil || app.Registry == nil {
			return fmt.Errorf("adapters are not initialized")
		}
		if app.AssetRepository == nil {
			return fmt.Errorf("asset repository is not initialized")
		}
		if app.ImageStore == nil {
			return fmt.Errorf("image store is not initialized")
		}

		app.Pipeline = pipeline.NewController(app.AssetRepository, app.Dispatcher, app.Registry, app.ImageStore, app.Logger)
		return nil
	}
}

func NewApp(config *config.Config, options ...OptionFunc) (*App, error) {
	logger, err := logger.InitLogger(config)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		ctx:        ctx,
		config:     config,
		Logger:     logger,
		cancelFunc: cancel,
	}

	// Apply all options
	for _, opt := range options {
		if err := opt(app); err != nil {
			// Continue even if some options fail
			app.Logger.Error("failed to apply option", zap.Error(err))
		}
	}

	return app, nil
}

func (app *App) Close() {
	app.cancelFunc()

	if app.Analysis != nil {
		app.Analysis.Close()
	}
	if app.db != nil {
		app.db.Close()
	}
}

func (app *App) Config() *config.Config {
	return app.config
}

func (app *App) Context() context.Context {
	return app.ctx
}

func (app *App) DB() *bun.DB {
	return app.db
}
