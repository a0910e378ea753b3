// Package market filters, ranks and summarizes pool snapshots.
package market

import (
	"sort"

	"poolwatch/internal/model"
)

// Default activity thresholds: pools below these are considered inactive
// and excluded from every view.
const (
	DefaultMinTVL    = 100_000
	DefaultMinVolume = 50_000
)

// Sort criteria accepted by Filter.
const (
	SortTVL    = "tvl"
	SortVolume = "volume"
	SortAPR    = "apr"
	SortFees   = "fees"
)

// Options controls pool filtering and ordering.
type Options struct {
	MinTVL    float64
	MinVolume float64
	FeeTiers  []int
	HasFarm   *bool
	SortBy    string
	Limit     int
}

// ValidSort reports whether s names a supported sort criterion.
func ValidSort(s string) bool {
	switch s {
	case SortTVL, SortVolume, SortAPR, SortFees:
		return true
	}
	return false
}

// Filter returns pools passing the options, sorted descending by the
// requested criterion. Zero-TVL pools are always dropped.
func Filter(pools []model.PoolStat, opts Options) []model.PoolStat {
	minTVL := opts.MinTVL
	if minTVL == 0 {
		minTVL = DefaultMinTVL
	}
	minVolume := opts.MinVolume
	if minVolume == 0 {
		minVolume = DefaultMinVolume
	}

	tiers := make(map[int]struct{}, len(opts.FeeTiers))
	for _, tier := range opts.FeeTiers {
		tiers[tier] = struct{}{}
	}

	filtered := make([]model.PoolStat, 0, len(pools))
	for _, pool := range pools {
		if pool.TVLUSD <= 0 || pool.TVLUSD < minTVL {
			continue
		}
		if pool.Volume24h < minVolume {
			continue
		}
		if len(tiers) > 0 {
			if _, ok := tiers[pool.FeeRate]; !ok {
				continue
			}
		}
		if opts.HasFarm != nil && pool.HasFarm() != *opts.HasFarm {
			continue
		}
		filtered = append(filtered, pool)
	}

	key := sortKey(opts.SortBy)
	sort.SliceStable(filtered, func(i, j int) bool {
		return key(filtered[i]) > key(filtered[j])
	})

	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}
	return filtered
}

func sortKey(criterion string) func(model.PoolStat) float64 {
	switch criterion {
	case SortVolume:
		return func(p model.PoolStat) float64 { return p.Volume24h }
	case SortAPR:
		return func(p model.PoolStat) float64 { return p.TotalAPR() }
	case SortFees:
		return func(p model.PoolStat) float64 { return p.Fees24h }
	default:
		return func(p model.PoolStat) float64 { return p.TVLUSD }
	}
}

// Stats computes aggregate market metrics over a pool set. Cumulative
// volume is not reported by the upstream APIs and stays zero.
func Stats(pools []model.PoolStat) model.MarketStats {
	if len(pools) == 0 {
		return model.MarketStats{}
	}

	var stats model.MarketStats
	stats.PoolCount = len(pools)
	for _, pool := range pools {
		stats.TVLUSD += pool.TVLUSD
		stats.Volume24h += pool.Volume24h
		stats.Fees24h += pool.Fees24h
	}
	if stats.TVLUSD > 0 {
		stats.CapitalEfficiency = stats.Volume24h / stats.TVLUSD
	}
	return stats
}
