// Package app wires configuration into a ready-to-use pipeline and store.
package app

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
	"github.com/joseph-ayodele/receipt-itemizer/internal/export"
	"github.com/joseph-ayodele/receipt-itemizer/internal/llm"
	"github.com/joseph-ayodele/receipt-itemizer/internal/llm/provider"
	"github.com/joseph-ayodele/receipt-itemizer/internal/ocr"
	"github.com/joseph-ayodele/receipt-itemizer/internal/pipeline"
	"github.com/joseph-ayodele/receipt-itemizer/internal/reconcile"
	"github.com/joseph-ayodele/receipt-itemizer/internal/repository"
)

type Options struct {
	// WithDatabase opens the store; without it every run is a dry run.
	WithDatabase bool
	// Engine overrides the configured OCR engine, mainly for tests.
	Engine ocr.Engine
	// Capability overrides the configured extraction provider.
	Capability llm.Capability
}

type App struct {
	Config    *common.Config
	Logger    *slog.Logger
	DB        *repository.DB
	Receipts  repository.ReceiptRepository
	Processor *pipeline.Processor
	Exporter  *export.Service
}

// New builds every dependency from cfg. Call Close when done.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	engine := opts.Engine
	if engine == nil {
		var err error
		engine, err = ocr.NewEngine(ctx, cfg.OCR, logger)
		if err != nil {
			return nil, err
		}
	}

	capability := opts.Capability
	if capability == nil {
		var err error
		capability, err = provider.New(ctx, cfg.LLM, logger)
		if err != nil {
			return nil, err
		}
	}

	var store pipeline.Store
	if opts.WithDatabase {
		db, err := repository.Open(ctx, RepositoryConfig(cfg.Database), logger)
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.Receipts = repository.NewReceiptRepository(db, logger)
		a.Exporter = export.NewService(a.Receipts, logger)
		store = a.Receipts
	}

	a.Processor = pipeline.NewProcessor(
		engine,
		llm.NewRequester(capability, logger),
		reconcile.New(logger),
		store,
		logger,
	)
	logger.Info("app.ready",
		"ocr_engine", engine.Name(),
		"llm_enabled", capability != nil,
		"database", opts.WithDatabase,
	)
	return a, nil
}

// Close releases the database, if one was opened.
func (a *App) Close() {
	if a.DB != nil {
		repository.Close(a.DB, a.Logger)
	}
}

// RepositoryConfig maps the database section of the process config.
func RepositoryConfig(c common.DatabaseConfig) repository.Config {
	return repository.Config{
		Driver:           c.Driver,
		DSN:              c.DSN,
		MaxConns:         c.MaxConns,
		MinConns:         c.MinConns,
		MaxConnLifetime:  c.MaxConnLifetime,
		MaxConnIdleTime:  c.MaxConnIdleTime,
		DialTimeout:      c.DialTimeout,
		StatementTimeout: c.StatementTimeout,
		AutoMigrate:      c.AutoMigrate,
	}
}
