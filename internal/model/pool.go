package model

import "time"

// Pool is the persisted record of a tracked liquidity pool.
type Pool struct {
	ID          int64     `json:"id"`
	Address     string    `json:"pool_address"`
	Protocol    string    `json:"protocol"`
	Chain       string    `json:"chain"`
	TokenX      string    `json:"token_x_symbol"`
	TokenY      string    `json:"token_y_symbol"`
	TVLUSD      float64   `json:"tvl_usd"`
	Volume24h   float64   `json:"volume_24h"`
	Fees24h     float64   `json:"fees_24h"`
	FeeRate     int       `json:"fee_rate"`
	FeeAPR      float64   `json:"apr_fees"`
	FarmAPR     float64   `json:"apr_farming"`
	TotalAPR    float64   `json:"total_apr"`
	LastUpdated time.Time `json:"last_updated"`
}

// Pair returns the display pair name, e.g. "APT-USDC".
func (p Pool) Pair() string {
	return p.TokenX + "-" + p.TokenY
}
