// Package refresh keeps the pool database in sync with the upstream
// sources on a fixed interval.
package refresh

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"poolwatch/internal/model"
	"poolwatch/internal/source"
	"poolwatch/internal/stats"
	"poolwatch/internal/stats/noop"
	"poolwatch/internal/storage"
)

// Config holds runtime settings for the refresher.
type Config struct {
	Interval     time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Sink receives every snapshot batch in addition to the database. The
// fetch command points this at a JSONL file.
type Sink interface {
	AppendPools(pools []model.PoolStat) error
}

// Refresher pulls every source on a schedule and upserts the results.
type Refresher struct {
	cfg    Config
	caches []*source.Cache
	store  storage.Store
	stats  stats.Stats
	sink   Sink
	logger *zap.Logger
}

// NewRefresher builds a Refresher with its dependencies.
func NewRefresher(cfg Config, caches []*source.Cache, store storage.Store, st stats.Stats, logger *zap.Logger) *Refresher {
	if st == nil {
		st = noop.Stats{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		cfg:    cfg,
		caches: caches,
		store:  store,
		stats:  st,
		logger: logger,
	}
}

// SetSink adds an extra destination for fetched snapshots.
func (r *Refresher) SetSink(sink Sink) {
	r.sink = sink
}

// Run executes the refresh loop until the context is cancelled. The
// first cycle starts immediately.
func (r *Refresher) Run(ctx context.Context) error {
	if r.store == nil {
		return fmt.Errorf("store is nil")
	}
	if len(r.caches) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	if r.cfg.Interval <= 0 {
		return fmt.Errorf("interval must be greater than zero")
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("refresh cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce refreshes every source and stores the combined result. It
// returns the number of pools written. Individual source failures are
// retried, then skipped; the cycle fails only when every source does.
func (r *Refresher) RunOnce(ctx context.Context) (int, error) {
	started := time.Now()

	var (
		snapshots []model.PoolStat
		failed    int
	)
	for _, cache := range r.caches {
		pools, err := r.refreshWithRetry(ctx, cache)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			r.stats.RefreshError(cache.Name())
			failed++
			continue
		}
		r.stats.PoolsFetched(cache.Name(), len(pools))
		r.logger.Info("source refreshed",
			zap.String("source", cache.Name()),
			zap.Int("pools", len(pools)))
		snapshots = append(snapshots, pools...)
	}

	if len(r.caches) > 0 && failed == len(r.caches) {
		return 0, fmt.Errorf("all %d sources failed", failed)
	}

	now := time.Now()
	records := make([]model.Pool, 0, len(snapshots))
	for _, snap := range snapshots {
		records = append(records, snap.ToPool(now))
	}
	if err := r.store.UpsertPools(ctx, records); err != nil {
		return 0, fmt.Errorf("store pools: %w", err)
	}

	if r.sink != nil {
		if err := r.sink.AppendPools(snapshots); err != nil {
			r.logger.Warn("append snapshots", zap.Error(err))
		}
	}

	r.stats.RefreshRun()
	r.logger.Info("refresh complete",
		zap.Int("pools", len(records)),
		zap.Int("sources", len(r.caches)),
		zap.Int("failed", failed),
		zap.Duration("took", time.Since(started)))
	return len(records), nil
}

func (r *Refresher) refreshWithRetry(ctx context.Context, cache *source.Cache) ([]model.PoolStat, error) {
	var pools []model.PoolStat
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		pools, err = cache.Refresh(ctx)
		if err != nil {
			r.logger.Warn("source refresh failed",
				zap.String("source", cache.Name()),
				zap.Error(err))
		}
		return err
	})
	return pools, err
}
