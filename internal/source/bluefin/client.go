// Package bluefin fetches pool stats from the Bluefin exchange on Sui.
//
// Bluefin has no stable public pools endpoint, so the client treats a
// missing or empty listing as "no pools" rather than an error, and
// decodes the fields it does get with the fallbacks the API has been
// seen to use.
package bluefin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"poolwatch/internal/feetier"
	"poolwatch/internal/model"
	"poolwatch/internal/source"
)

// DefaultURL is the Bluefin exchange API pools listing.
const DefaultURL = "https://api.sui-prod.bluefin.io/v1/exchange/pools"

const (
	protocolName = "bluefin"
	chainName    = "sui"
)

// Options configure the client. Zero values pick the defaults.
type Options struct {
	URL        string
	HTTPClient *http.Client
}

// Client queries the Bluefin REST API.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{url: opts.URL, httpClient: opts.HTTPClient, logger: logger}
}

func (c *Client) Name() string  { return protocolName }
func (c *Client) Chain() string { return chainName }

type tokenInfo struct {
	Symbol string `json:"symbol"`
}

// rawPool covers the field spellings Bluefin responses have used.
type rawPool struct {
	ID      string `json:"id"`
	Address string `json:"address"`

	Token0 string     `json:"token0"`
	Token1 string     `json:"token1"`
	TokenA *tokenInfo `json:"tokenA"`
	TokenB *tokenInfo `json:"tokenB"`

	TVLUSD source.Number `json:"tvlUSD"`
	TVL    source.Number `json:"tvl"`

	Volume24h source.Number `json:"volume24h"`
	Volume24H source.Number `json:"volume24H"`
	Volume    source.Number `json:"volume"`

	Fees24h source.Number `json:"fees24h"`
	Fees24H source.Number `json:"fees24H"`
	Fees    source.Number `json:"fees"`

	FeeRate source.Number `json:"feeRate"`
	Fee     source.Number `json:"fee"`

	FeeAPR  source.Number `json:"feeAPR"`
	APR     source.Number `json:"apr"`
	FarmAPR source.Number `json:"farmAPR"`
}

func (p rawPool) id() string {
	if p.ID != "" {
		return p.ID
	}
	return p.Address
}

func (p rawPool) symbolX() string {
	if p.Token0 != "" {
		return p.Token0
	}
	if p.TokenA != nil && p.TokenA.Symbol != "" {
		return p.TokenA.Symbol
	}
	return "???"
}

func (p rawPool) symbolY() string {
	if p.Token1 != "" {
		return p.Token1
	}
	if p.TokenB != nil && p.TokenB.Symbol != "" {
		return p.TokenB.Symbol
	}
	return "???"
}

func (p rawPool) tvlUSD() float64 {
	if v := p.TVLUSD.Float(); v != 0 {
		return v
	}
	return p.TVL.Float()
}

func (p rawPool) volume() float64 {
	if v := p.Volume24h.Float(); v != 0 {
		return v
	}
	if v := p.Volume24H.Float(); v != 0 {
		return v
	}
	return p.Volume.Float()
}

func (p rawPool) fees() float64 {
	if v := p.Fees24h.Float(); v != 0 {
		return v
	}
	if v := p.Fees24H.Float(); v != 0 {
		return v
	}
	return p.Fees.Float()
}

func (p rawPool) feeRate() int {
	raw := p.FeeRate.Float()
	if raw == 0 {
		raw = p.Fee.Float()
	}
	return feetier.Normalize(raw)
}

func (p rawPool) feeAPR() float64 {
	if v := p.FeeAPR.Float(); v != 0 {
		return v
	}
	return p.APR.Float()
}

// Pools fetches the pool listing. Pools without locked value or volume
// are dropped as inactive.
func (c *Client) Pools(ctx context.Context) ([]model.PoolStat, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bluefin request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Warn("bluefin pools endpoint not available", zap.String("url", c.url))
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bluefin api status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var raw []rawPool
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode bluefin response: %w", err)
	}
	if len(raw) == 0 {
		c.logger.Warn("no pools in bluefin response")
		return nil, nil
	}

	pools := make([]model.PoolStat, 0, len(raw))
	for _, rp := range raw {
		id := rp.id()
		if id == "" {
			continue
		}
		tvl, volume := rp.tvlUSD(), rp.volume()
		if tvl <= 0 || volume <= 0 {
			continue
		}
		rate := rp.feeRate()
		fees := rp.fees()
		if fees == 0 {
			fees = feetier.FeesFromVolume(volume, rate)
		}
		pools = append(pools, model.PoolStat{
			ID:        id,
			Protocol:  protocolName,
			Chain:     chainName,
			TokenX:    rp.symbolX(),
			TokenY:    rp.symbolY(),
			TVLUSD:    tvl,
			Volume24h: volume,
			Fees24h:   fees,
			FeeRate:   rate,
			FeeAPR:    rp.feeAPR(),
			FarmAPR:   rp.FarmAPR.Float(),
		})
	}
	c.logger.Info("fetched bluefin pools",
		zap.Int("total", len(raw)),
		zap.Int("active", len(pools)),
	)
	return pools, nil
}
