package app

import (
	"context"
	"gekoimport/config"
	"gekoimport/internal/controllers"
	"gekoimport/internal/database"
	"gekoimport/internal/events"
	"gekoimport/internal/handlers/middleware"
	"gekoimport/internal/jobs"
	"gekoimport/internal/repositories"
	"gekoimport/internal/services"
	"gekoimport/internal/websockets"
	"sync"
	"time"

	logger "github.com/Bparsons0904/goLogger"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	Database    database.DB
	Middleware  middleware.Middleware
	Websocket   *websockets.Manager
	EventBus    *events.EventBus
	Config      config.Config
	Services    services.Service
	Repos       repositories.Repository
	Controllers controllers.Controllers

	closeOnce *sync.Once
}

func New() (*App, error) {
	log := logger.New("app").Function("New")

	config, err := config.New()
	if err != nil {
		return &App{}, log.Err("failed to initialize config", err)
	}

	db, err := database.New(config)
	if err != nil {
		return &App{}, log.Err("failed to create database", err)
	}

	eventBus := events.New(db.Cache.Events, config)

	repos := repositories.New(db)
	services := services.New(db, config, repos)
	controllers := controllers.New(services, repos, eventBus, config)

	websocket, err := websockets.New(eventBus, config)
	if err != nil {
		return &App{}, log.Err("failed to create websocket manager", err)
	}

	middleware := middleware.New(db, eventBus, config)

	app := &App{
		Database:    db,
		Config:      config,
		Middleware:  middleware,
		Services:    services,
		Repos:       repos,
		Controllers: controllers,
		Websocket:   websocket,
		EventBus:    eventBus,
		closeOnce:   &sync.Once{},
	}

	if err := app.validate(); err != nil {
		return &App{}, log.Err("failed to validate app", err)
	}

	if err := jobs.RegisterAllJobs(services.Scheduler, config, controllers.Imports); err != nil {
		return &App{}, log.Err("failed to register jobs", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	controllers.Imports.Start()
	if err := controllers.Imports.Recover(ctx); err != nil {
		return &App{}, log.Err("failed to recover import jobs", err)
	}

	if err := services.Scheduler.Start(ctx); err != nil {
		return &App{}, log.Err("failed to start scheduler", err)
	}

	return app, nil
}

func (a *App) validate() error {
	log := logger.New("app").Function("validate")
	if a.Database.SQL == nil {
		return log.ErrMsg("database is nil")
	}

	if a.Config == (config.Config{}) {
		return log.ErrMsg("config is nil")
	}

	nilChecks := []any{
		a.Websocket,
		a.EventBus,
		a.Services.Transaction,
		a.Services.Scheduler,
		a.Services.UpsertEngine,
		a.Services.ImportCancel,
		a.Services.UploadStorage,
		a.Repos.Catalog,
		a.Repos.ImportJob,
		a.Controllers.Imports,
	}

	for _, check := range nilChecks {
		if check == nil {
			return log.ErrMsg("nil check failed")
		}
	}

	return nil
}

// Close stops the import workers first so a running job is marked failed while the
// database is still open. Safe to call more than once.
func (a *App) Close() (err error) {
	if a.closeOnce == nil {
		return nil
	}

	a.closeOnce.Do(func() {
		log := logger.New("app").Function("Close")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if a.Controllers.Imports != nil {
			if closeErr := a.Controllers.Imports.Stop(ctx); closeErr != nil {
				err = closeErr
			}
		}

		if a.Services.Scheduler != nil {
			if closeErr := a.Services.Scheduler.Stop(ctx); closeErr != nil {
				err = closeErr
			}
		}

		if a.Websocket != nil {
			a.Websocket.Close()
		}

		if a.EventBus != nil {
			if closeErr := a.EventBus.Close(); closeErr != nil {
				err = closeErr
			}
		}

		if dbErr := a.Database.Close(); dbErr != nil {
			err = dbErr
		}

		log.Info("Application closed")
	})

	return err
}
