package mcp

import (
	"io"
	"log/slog"

	"github.com/ludo-technologies/astsim/app"
	"github.com/ludo-technologies/astsim/domain"
	"github.com/ludo-technologies/astsim/internal/config"
	"github.com/ludo-technologies/astsim/internal/storage"
	"github.com/ludo-technologies/astsim/service"
)

// Dependencies aggregates the shared services required by MCP handlers.
type Dependencies struct {
	fileReader domain.SubmissionFileReader
	config     *config.Config
	configPath string
	logger     *slog.Logger
}

// NewDependencies constructs the dependency set. A nil cfg is resolved from
// configPath, or from .astsim.toml discovery when configPath is empty.
func NewDependencies(cfg *config.Config, configPath string) *Dependencies {
	return &Dependencies{
		fileReader: service.NewFileReader(),
		config:     cfg,
		configPath: configPath,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithLogger sets the logger handed to the services
func (d *Dependencies) WithLogger(logger *slog.Logger) *Dependencies {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// Config returns the configuration snapshot, loading it on first use
func (d *Dependencies) Config() (*config.Config, error) {
	if d.config != nil {
		return d.config, nil
	}
	cfg, err := config.Resolve(d.configPath, ".")
	if err != nil {
		return nil, err
	}
	d.config = cfg
	return cfg, nil
}

// ConfigPath returns the configured config file path (may be empty to trigger discovery).
func (d *Dependencies) ConfigPath() string {
	return d.configPath
}

// session is one tool invocation's private store and services
type session struct {
	store   *storage.Store
	service *service.SimilarityServiceImpl
	close   func()
}

// newSession opens an in-memory store so that concurrent tool calls never
// share submissions
func (d *Dependencies) newSession(cfg *config.Config) (*session, error) {
	db, err := storage.OpenInMemory()
	if err != nil {
		return nil, err
	}
	store, err := storage.NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	svc, err := service.NewSimilarityService(store, store, service.NewLogPublisher(d.logger), nil,
		service.SimilarityOptionsFromConfig(cfg), d.logger)
	if err != nil {
		store.Close()
		db.Close()
		return nil, err
	}
	return &session{
		store:   store,
		service: svc,
		close: func() {
			store.Close()
			db.Close()
		},
	}, nil
}

// BuildCompareUseCase assembles a CompareUseCase for one call
func (d *Dependencies) BuildCompareUseCase(cfg *config.Config, opts service.FormatterOptions) (*app.CompareUseCase, func(), error) {
	s, err := d.newSession(cfg)
	if err != nil {
		return nil, nil, err
	}
	uc := app.NewCompareUseCase(s.service, service.NewOutputFormatter(opts), service.NewFileOutputWriter(io.Discard))
	return uc, s.close, nil
}

// BuildBatchUseCase assembles a BatchUseCase for one call
func (d *Dependencies) BuildBatchUseCase(cfg *config.Config, opts service.FormatterOptions) (*app.BatchUseCase, func(), error) {
	s, err := d.newSession(cfg)
	if err != nil {
		return nil, nil, err
	}
	uc := app.NewBatchUseCase(s.service, s.store, d.fileReader,
		service.NewOutputFormatter(opts), service.NewFileOutputWriter(io.Discard), d.logger)
	return uc, s.close, nil
}
