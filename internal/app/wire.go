package app

import (
	"log/slog"

	"mutse/internal/domain"
	"mutse/internal/ilspy"
	decompilesvc "mutse/internal/services/decompile"
	exdfsvc "mutse/internal/services/exdf"
	watchsvc "mutse/internal/services/watch"
	"mutse/internal/store"
)

// Wire bundles all stores, services, and tools for the CLI.
type Wire struct {
	Config     *Config
	Logger     *slog.Logger
	Exdf       *exdfsvc.Service
	Decompile  *decompilesvc.Service
	Watch      *watchsvc.Service
	Decompiler domain.Decompiler
}

// OpenManifest returns the manifest store of the output tree at root.
func OpenManifest(root string) domain.ManifestStore {
	return store.NewManifestFileStore(root)
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg *Config, logger *slog.Logger) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	exdfSvc := exdfsvc.New(exdfsvc.Options{
		Extension:       cfg.Exdf.Extension,
		OutputExtension: cfg.Exdf.OutputExtension,
		Pretty:          cfg.Exdf.Pretty,
		Workers:         cfg.Workers,
		Exclude:         cfg.Exclude,
		Incremental:     cfg.Exdf.Incremental,
	}, OpenManifest, logger.With("component", "exdf"))

	// External decompiler process
	runner := ilspy.New(cfg.Decompiler.Binary, cfg.Decompiler.Timeout)
	decompileSvc := decompilesvc.New(decompilesvc.Options{
		Extensions: cfg.Decompiler.Extensions,
		Workers:    cfg.Workers,
		Exclude:    cfg.Exclude,
	}, runner, logger.With("component", "decompile"))

	watchSvc := watchsvc.New(exdfSvc, watchsvc.Options{
		Debounce: cfg.Watch.Debounce,
		Exclude:  cfg.Exclude,
	}, logger.With("component", "watch"))

	return &Wire{
		Config:     cfg,
		Logger:     logger,
		Exdf:       exdfSvc,
		Decompile:  decompileSvc,
		Watch:      watchSvc,
		Decompiler: runner,
	}, nil
}
