package app

import (
	"context"
	"fmt"
	"log/slog"

	"telemon/internal/catalog"
	"telemon/internal/config"
	"telemon/internal/scrape"
	"telemon/internal/storage"
	"telemon/internal/sysmon"
)

// service is the assembled runtime: store, catalog, scrape engine, and the
// optional self collector and exposition endpoint.
// Params: none.
// Returns: service instance.
type service struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     storage.Store
	catalog   *catalog.Catalog
	engine    *scrape.Engine
	collector *sysmon.Collector
}

// newService builds every runtime component from validated config.
// Params: cfg validated config; logger process logger.
// Returns: ready-to-run service or build error.
func newService(cfg *config.Config, logger *slog.Logger) (*service, error) {
	store, err := openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	cat := catalog.New()

	var sink scrape.HostStatusSink
	if hostSink, ok := store.(scrape.HostStatusSink); ok {
		sink = hostSink
	}

	engine, err := scrape.NewEngine(scrape.EngineConfig{
		Catalog: cat,
		Store:   store,
		Sink:    sink,
		Logger:  logger,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build scrape engine: %w", err)
	}

	for _, target := range buildTargets(cfg) {
		if err := engine.AddTarget(target); err != nil {
			store.Close()
			return nil, fmt.Errorf("add target %s/%s: %w", target.Job, target.Address, err)
		}
	}

	var collector *sysmon.Collector
	if cfg.Self.Enabled {
		collector, err = sysmon.New(sysmon.Config{
			Catalog:  cat,
			Store:    store,
			Logger:   logger,
			Interval: cfg.Self.Interval.Duration,
			DiskPath: cfg.Self.DiskPath,
		})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("build self collector: %w", err)
		}
	}

	return &service{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		catalog:   cat,
		engine:    engine,
		collector: collector,
	}, nil
}

// Run starts every component, blocks until ctx cancellation, then stops
// them with a full worker join.
// Params: ctx service lifecycle context.
// Returns: startup error or nil on graceful stop.
func (s *service) Run(ctx context.Context) error {
	stopExport, err := startExportServer(ctx, s.cfg.Export, s.catalog, s.logger)
	if err != nil {
		s.store.Close()
		return fmt.Errorf("start export endpoint: %w", err)
	}

	if err := s.engine.Start(ctx); err != nil {
		stopExport()
		s.store.Close()
		return fmt.Errorf("start scrape engine: %w", err)
	}

	if s.collector != nil {
		if err := s.collector.Start(ctx); err != nil {
			s.engine.Stop()
			stopExport()
			s.store.Close()
			return fmt.Errorf("start self collector: %w", err)
		}
	}

	<-ctx.Done()

	s.engine.Stop()
	if s.collector != nil {
		s.collector.Stop()
	}
	stopExport()
	if err := s.store.Close(); err != nil {
		s.logger.Warn("close store", slog.String("error", err.Error()))
	}
	return nil
}

// openStore opens the configured sample store backend.
// Params: cfg validated storage section.
// Returns: store instance or open error.
func openStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		store, err := storage.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	default:
		return storage.NewMemoryStore(cfg.Retention.Duration), nil
	}
}

// buildTargets expands scrape job sections into engine targets.
// Static labels are global labels, then job labels, then the job name.
// Params: cfg validated config.
// Returns: target list in config order.
func buildTargets(cfg *config.Config) []scrape.Target {
	var targets []scrape.Target
	for _, job := range cfg.Scrape {
		for idx, address := range job.Targets {
			labels := make(map[string]string, len(cfg.Global.Labels)+len(job.Labels)+1)
			for name, value := range cfg.Global.Labels {
				labels[name] = value
			}
			for name, value := range job.Labels {
				labels[name] = value
			}
			labels["job"] = job.Job

			target := scrape.Target{
				Job:         job.Job,
				Address:     address,
				Path:        job.Path,
				Interval:    job.Interval.Duration,
				Timeout:     job.Timeout.Duration,
				Labels:      labels,
				HonorLabels: job.HonorLabels,
				KeepMetrics: job.KeepMetrics,
				DropMetrics: job.DropMetrics,
			}
			if len(job.HostIDs) == len(job.Targets) {
				target.HostID = job.HostIDs[idx]
			}
			targets = append(targets, target)
		}
	}
	return targets
}
