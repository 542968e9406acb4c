package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coreybb/quire/assembly"
	"github.com/coreybb/quire/config"
	"github.com/coreybb/quire/conversion"
	"github.com/coreybb/quire/datastore"
	"github.com/coreybb/quire/ebook"
	"github.com/coreybb/quire/processing"
	"github.com/coreybb/quire/scheduler"
	"github.com/coreybb/quire/storage"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg       *config.Config
	db        *sql.DB
	store     *datastore.Store
	assembler *assembly.Assembler
	artifacts *storage.LocalArtifactStore
	pdf       *ebook.PDFRenderer
	pool      *processing.WorkerPool
	service   *processing.GenerationService
	reaper    *scheduler.Reaper
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := datastore.Open(ctx, datastore.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime(),
	})
	if err != nil {
		return nil, fmt.Errorf("database setup failed: %w", err)
	}
	slog.Info("database connection successful", "driver", cfg.Database.Driver)

	if cfg.Database.AutoMigrate {
		if err := datastore.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	a := &app{cfg: cfg, db: db, store: datastore.NewStore(db)}

	a.assembler = assembly.NewAssembler(a.store.ContentReader(), conversion.NewMarkdownConverter())
	a.artifacts = storage.NewLocalArtifactStore(cfg.Storage.GeneratedDir)
	a.pdf = ebook.NewPDFRenderer(
		ebook.NewRodPageRenderer(cfg.PDF.BrowserBin, cfg.PDF.NoSandbox),
		cfg.RenderTimeout(),
	)
	renderers := ebook.NewRenderers(a.pdf, ebook.NewEPUBRenderer(cfg.Generation.EmbedRemoteImages))

	if cfg.Generation.Async {
		a.pool = processing.NewWorkerPool(cfg.Generation.Workers, cfg.Generation.QueueSize)
	}

	a.service = processing.NewGenerationService(
		a.store.Projects,
		a.assembler,
		renderers,
		a.artifacts,
		a.store.Users,
		a.pool,
		cfg.LeaseTimeout(),
	)
	a.service.Publisher = cfg.Generation.Publisher
	a.service.Language = cfg.Generation.Language

	a.reaper = scheduler.New(a.store.Projects, cfg.LeaseTimeout(), cfg.ReclaimInterval())
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.pool != nil {
		a.pool.Stop()
	}
	if err := a.pdf.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
