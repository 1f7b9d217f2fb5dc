package scheduler

import (
	"context"
	"log/slog"
	"time"

	"foresight/internal/config"
	"foresight/internal/market"
	"foresight/internal/metrics"
)

// Sweeper closes dialogs idle for longer than ttl and reports how many.
type Sweeper interface {
	Sweep(ttl time.Duration) int
}

// Scheduler keeps the catalog snapshot fresh and expires idle dialogs.
type Scheduler struct {
	source     market.Source
	sourceName string
	store      *market.Store
	dialogs    Sweeper
	catalogCfg config.CatalogConfig
	serverCfg  config.ServerConfig
}

// New creates a new Scheduler with all dependencies.
func New(
	source market.Source,
	store *market.Store,
	dialogs Sweeper,
	catalogCfg config.CatalogConfig,
	serverCfg config.ServerConfig,
) *Scheduler {
	return &Scheduler{
		source:     source,
		sourceName: catalogCfg.Source,
		store:      store,
		dialogs:    dialogs,
		catalogCfg: catalogCfg,
		serverCfg:  serverCfg,
	}
}

// Refresh replaces the catalog with a fresh snapshot from the source. On
// failure the previous snapshot stays in place.
func (s *Scheduler) Refresh(ctx context.Context) error {
	markets, err := s.source.Fetch(ctx)
	if err != nil {
		metrics.CatalogRefreshErrors.Inc()
		return err
	}
	if err := s.store.Replace(ctx, s.sourceName, markets); err != nil {
		metrics.CatalogRefreshErrors.Inc()
		return err
	}
	metrics.CatalogMarkets.Set(float64(len(markets)))
	return nil
}

// Run starts the periodic loops and blocks until ctx is cancelled. The
// caller is expected to have loaded the first snapshot already.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler starting",
		"refresh_interval", s.catalogCfg.RefreshInterval.Duration,
		"sweep_interval", s.serverCfg.SweepInterval.Duration,
		"dialog_ttl", s.serverCfg.DialogTTL.Duration,
	)

	refreshTicker := time.NewTicker(s.catalogCfg.RefreshInterval.Duration)
	sweepTicker := time.NewTicker(s.serverCfg.SweepInterval.Duration)
	defer refreshTicker.Stop()
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler shutting down")
			return ctx.Err()
		case <-refreshTicker.C:
			if err := s.Refresh(ctx); err != nil {
				slog.Error("catalog refresh failed", "error", err)
			}
		case <-sweepTicker.C:
			if n := s.dialogs.Sweep(s.serverCfg.DialogTTL.Duration); n > 0 {
				slog.Info("expired idle dialogs", "count", n)
			}
		}
	}
}
