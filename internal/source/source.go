// Package source defines pool data sources and the wrappers shared by
// all of them.
package source

import (
	"context"

	"go.uber.org/zap"

	"poolwatch/internal/model"
)

// Source fetches live pool snapshots from one protocol.
type Source interface {
	// Name identifies the protocol, e.g. "hyperion".
	Name() string
	// Chain identifies the network the pools live on, e.g. "aptos".
	Chain() string
	// Pools fetches the current pool set.
	Pools(ctx context.Context) ([]model.PoolStat, error)
}

// Fallback tries a primary source and falls back to a secondary when
// the primary fails or returns nothing.
type Fallback struct {
	primary   Source
	secondary Source
	logger    *zap.Logger
}

func NewFallback(primary, secondary Source, logger *zap.Logger) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fallback) Name() string  { return f.primary.Name() }
func (f *Fallback) Chain() string { return f.primary.Chain() }

func (f *Fallback) Pools(ctx context.Context) ([]model.PoolStat, error) {
	pools, err := f.primary.Pools(ctx)
	if err == nil && len(pools) > 0 {
		return pools, nil
	}
	if err != nil {
		f.logger.Warn("primary source failed, trying fallback",
			zap.String("primary", f.primary.Name()),
			zap.String("fallback", f.secondary.Name()),
			zap.Error(err))
	} else {
		f.logger.Warn("primary source returned no pools, trying fallback",
			zap.String("primary", f.primary.Name()),
			zap.String("fallback", f.secondary.Name()))
	}

	pools, fbErr := f.secondary.Pools(ctx)
	if fbErr != nil {
		if err != nil {
			return nil, err
		}
		return nil, fbErr
	}
	return pools, nil
}
