package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/matt-steen/task-tracker/pkg/auth"
	"github.com/matt-steen/task-tracker/pkg/config"
	"github.com/matt-steen/task-tracker/pkg/db"
	"github.com/matt-steen/task-tracker/pkg/report"
	"github.com/matt-steen/task-tracker/pkg/tasks"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	filePerms  = 0o666
	timeFormat = "2006-01-02_15:04:05"
)

// application holds everything a command needs, wired from the configuration.
type application struct {
	cfg      *config.Config
	repo     *db.Repository
	tasks    *tasks.Manager
	accounts *auth.Service
	reports  *report.Generator

	closers []io.Closer
}

// setup loads configuration, points the global logger at the log file (toFile) or stderr and opens
// the configured store.
func setup(ctx context.Context, configFile string, toFile bool) (*application, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	app := &application{cfg: cfg}

	if err := app.setupLogging(toFile); err != nil {
		return nil, err
	}

	backend, err := app.openBackend(ctx)
	if err != nil {
		app.Close()

		return nil, err
	}

	app.repo = db.NewRepository(backend)
	app.tasks = tasks.NewManager(app.repo)
	app.accounts = auth.NewService(app.repo)
	app.reports = report.NewGenerator(app.repo, cfg.Data.ReportsDir)

	return app, nil
}

func (a *application) setupLogging(toFile bool) error {
	zerolog.SetGlobalLevel(a.cfg.LogLevel())

	out := io.Writer(os.Stderr)

	// the TUI owns the terminal, so it can only log to a file
	if toFile && a.cfg.Log.File != "" {
		logFile, err := os.OpenFile(a.cfg.Log.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, fs.FileMode(filePerms))
		if err != nil {
			return fmt.Errorf("error opening log file %s: %w", a.cfg.Log.File, err)
		}

		a.closers = append(a.closers, logFile)
		out = logFile
	}

	log.Logger = log.With().Caller().Logger().Output(zerolog.ConsoleWriter{
		Out: out, TimeFormat: timeFormat,
	})

	return nil
}

func (a *application) openBackend(ctx context.Context) (db.Backend, error) {
	switch a.cfg.Store.Driver {
	case config.DriverSQLite:
		database, err := db.NewDatabase(ctx, a.cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}

		a.closers = append(a.closers, database)

		log.Info().Str("path", a.cfg.Store.SQLitePath).Msg("using sqlite store")

		return database, nil
	default:
		log.Info().Str("tasks", a.cfg.Data.TasksFile).Str("accounts", a.cfg.Data.AccountsFile).
			Msg("using json store")

		return db.NewJSONStore(a.cfg.Data.TasksFile, a.cfg.Data.AccountsFile), nil
	}
}

// Close releases the store and the log file, in reverse order of opening.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}

	a.closers = nil
}
