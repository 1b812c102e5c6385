// Package app wires the pull pipeline together and is the only place that
// turns an error into a process exit: lock, freshness arbitration,
// materialization, optional publish, unlock.
package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Perth-Artifactory/tidyproxy/internal/common"
	"github.com/Perth-Artifactory/tidyproxy/internal/config"
	"github.com/Perth-Artifactory/tidyproxy/internal/lockfile"
	"github.com/Perth-Artifactory/tidyproxy/internal/logging"
	"github.com/Perth-Artifactory/tidyproxy/internal/publish"
	"github.com/Perth-Artifactory/tidyproxy/internal/serve"
	"github.com/Perth-Artifactory/tidyproxy/internal/tidyhq"
)

type App struct {
	cfg          *config.Config
	log          logging.Logger
	service      *tidyhq.Service
	materializer *serve.Materializer
}

func NewApp(cfg *config.Config) *App {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	client := tidyhq.NewClient(cfg, logger)

	return &App{
		cfg:          cfg,
		log:          logger,
		service:      tidyhq.NewService(cfg, client, logger),
		materializer: serve.NewMaterializer(cfg, logger),
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run executes one pull. The pipeline is strictly sequential; a signal
// cancels the context and the next network call aborts the run.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	if app.cfg.Setup {
		return app.runSetup()
	}

	lock, err := lockfile.Acquire(app.cfg.LockPath, app.cfg.Force)
	if err != nil {
		if errors.Is(err, common.ErrLockHeld) {
			app.log.Error(ctx, "lock file found, exiting to prevent concurrent runs", "path", app.cfg.LockPath)
		}
		return err
	}
	app.log.Info(ctx, "lock acquired", "run", lock.RunID())
	defer func() {
		if err := lock.Release(); err != nil {
			app.log.Error(ctx, "releasing lock", "err", err)
		}
	}()

	snap, err := app.service.Fresh(ctx, nil, app.cfg.Force)
	if err != nil {
		app.log.Error(ctx, "cache setup failed", "err", err)
		return err
	}
	app.log.Info(ctx, "cache ready", "contacts", len(snap.Contacts), "groups", snap.Groups.Len())

	if err := app.materializer.Write(ctx, snap, app.cfg.ServeDir); err != nil {
		app.log.Error(ctx, "materialization failed", "err", err)
		return err
	}

	if app.cfg.S3.Bucket != "" {
		publisher, err := publish.New(ctx, app.cfg, app.log)
		if err != nil {
			return err
		}
		if err := publisher.Mirror(ctx, app.cfg.ServeDir); err != nil {
			app.log.Error(ctx, "publish failed", "err", err)
			return err
		}
	}

	return nil
}
