package model

// MarketStats aggregates pool metrics across a protocol.
type MarketStats struct {
	TVLUSD            float64 `json:"tvl_usd"`
	CumulativeVolume  float64 `json:"cumulative_volume"`
	Volume24h         float64 `json:"volume_24h"`
	Fees24h           float64 `json:"fees_24h"`
	CapitalEfficiency float64 `json:"capital_efficiency"`
	PoolCount         int     `json:"pool_count"`
}
