package model

import "time"

// PoolStat is a live pool snapshot as reported by a source.
type PoolStat struct {
	ID          string  `json:"id"`
	Protocol    string  `json:"protocol"`
	Chain       string  `json:"chain"`
	TokenXAddr  string  `json:"token_x_address,omitempty"`
	TokenYAddr  string  `json:"token_y_address,omitempty"`
	TokenX      string  `json:"token_x_symbol"`
	TokenY      string  `json:"token_y_symbol"`
	TVLUSD      float64 `json:"tvl_usd"`
	Volume24h   float64 `json:"volume_24h"`
	Fees24h     float64 `json:"fees_24h"`
	FeeRate     int     `json:"fee_rate"`
	FeeAPR      float64 `json:"fee_apr"`
	FarmAPR     float64 `json:"farm_apr"`
	CurrentTick int64   `json:"current_tick,omitempty"`
	SqrtPrice   string  `json:"sqrt_price,omitempty"`
	ActiveLP    int64   `json:"active_lp,omitempty"`
}

// TotalAPR is the fee APR plus the farming APR, in percent.
func (p PoolStat) TotalAPR() float64 {
	return p.FeeAPR + p.FarmAPR
}

// HasFarm reports whether the pool pays farming rewards.
func (p PoolStat) HasFarm() bool {
	return p.FarmAPR > 0
}

// Pair returns the display pair name, e.g. "APT-USDC".
func (p PoolStat) Pair() string {
	return p.TokenX + "-" + p.TokenY
}

// ToPool converts the snapshot into its persisted form.
func (p PoolStat) ToPool(now time.Time) Pool {
	return Pool{
		Address:     p.ID,
		Protocol:    p.Protocol,
		Chain:       p.Chain,
		TokenX:      p.TokenX,
		TokenY:      p.TokenY,
		TVLUSD:      p.TVLUSD,
		Volume24h:   p.Volume24h,
		Fees24h:     p.Fees24h,
		FeeRate:     p.FeeRate,
		FeeAPR:      p.FeeAPR,
		FarmAPR:     p.FarmAPR,
		TotalAPR:    p.TotalAPR(),
		LastUpdated: now.UTC(),
	}
}
