// Package defillama fetches pool yields from the DefiLlama yields API.
// It serves as the fallback when a protocol's own API is down, and as a
// cross-chain source for projects without one.
package defillama

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

// DefaultURL is the public DefiLlama yields listing.
const DefaultURL = "https://yields.llama.fi/pools"

// Options configure the client. Zero values pick the defaults.
type Options struct {
	URL        string
	HTTPClient *http.Client
	// Projects are the DefiLlama project slugs to keep. Defaults to
	// hyperion only.
	Projects []string
	// ChainLabel names this source's network for display purposes.
	// Individual pools keep the chain DefiLlama reports for them.
	ChainLabel string
}

// Client queries the DefiLlama yields API.
type Client struct {
	url        string
	httpClient *http.Client
	projects   map[string]struct{}
	chainLabel string
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
	if len(opts.Projects) == 0 {
		opts.Projects = []string{"hyperion"}
	}
	if opts.ChainLabel == "" {
		opts.ChainLabel = "multi"
	}
	projects := make(map[string]struct{}, len(opts.Projects))
	for _, p := range opts.Projects {
		projects[strings.ToLower(strings.TrimSpace(p))] = struct{}{}
	}
	return &Client{
		url:        opts.URL,
		httpClient: opts.HTTPClient,
		projects:   projects,
		chainLabel: opts.ChainLabel,
		logger:     logger,
	}
}

func (c *Client) Name() string  { return "defillama" }
func (c *Client) Chain() string { return c.chainLabel }

type yieldPool struct {
	Pool        string        `json:"pool"`
	Chain       string        `json:"chain"`
	Project     string        `json:"project"`
	Symbol      string        `json:"symbol"`
	TvlUsd      source.Number `json:"tvlUsd"`
	Apy         source.Number `json:"apy"`
	ApyBase     source.Number `json:"apyBase"`
	ApyReward   source.Number `json:"apyReward"`
	VolumeUsd1d source.Number `json:"volumeUsd1d"`
	PoolMeta    string        `json:"poolMeta"`
}

type poolsResponse struct {
	Status string      `json:"status"`
	Data   []yieldPool `json:"data"`
}

// Pools fetches the yields listing filtered to the configured projects.
func (c *Client) Pools(ctx context.Context) ([]model.PoolStat, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("defillama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("defillama api status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out poolsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode defillama response: %w", err)
	}
	if out.Status != "success" {
		return nil, fmt.Errorf("defillama api status %q", out.Status)
	}

	pools := make([]model.PoolStat, 0, 64)
	for _, yp := range out.Data {
		if _, ok := c.projects[strings.ToLower(yp.Project)]; !ok {
			continue
		}
		if yp.Pool == "" || yp.TvlUsd.Float() <= 0 {
			continue
		}

		tokenX, tokenY := splitSymbol(yp.Symbol)
		rate := metaFeeRate(yp.PoolMeta)
		volume := yp.VolumeUsd1d.Float()

		feeAPR := yp.ApyBase.Float()
		farmAPR := yp.ApyReward.Float()
		if feeAPR == 0 && farmAPR == 0 {
			feeAPR = yp.Apy.Float()
		}

		pools = append(pools, model.PoolStat{
			ID:        yp.Pool,
			Protocol:  yp.Project,
			Chain:     strings.ToLower(yp.Chain),
			TokenX:    tokenX,
			TokenY:    tokenY,
			TVLUSD:    yp.TvlUsd.Float(),
			Volume24h: volume,
			Fees24h:   feetier.FeesFromVolume(volume, rate),
			FeeRate:   rate,
			FeeAPR:    feeAPR,
			FarmAPR:   farmAPR,
		})
	}
	c.logger.Info("fetched defillama pools",
		zap.Int("total", len(out.Data)),
		zap.Int("matched", len(pools)),
	)
	return pools, nil
}

// splitSymbol turns "APT-USDC" into its two sides. Single-asset pools
// keep an empty second side.
func splitSymbol(symbol string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(symbol), "-", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// metaFeeRate extracts a fee rate from poolMeta strings like "0.05%"
// or "0.3% fee tier".
func metaFeeRate(meta string) int {
	for _, field := range strings.Fields(meta) {
		if !strings.Contains(field, "%") {
			continue
		}
		if rate := feetier.ParsePercent(field); rate > 0 {
			return rate
		}
	}
	return 0
}
