// Package hyperion fetches pool stats from the Hyperion CLMM API on
// Aptos.
package hyperion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"poolwatch/internal/market"
	"poolwatch/internal/model"
	"poolwatch/internal/source"
	"poolwatch/internal/token"
)

// DefaultURL is the public Hyperion GraphQL endpoint.
const DefaultURL = "https://hyperfluid-api.alcove.pro/v1/graphql"

const (
	protocolName = "hyperion"
	chainName    = "aptos"
)

const poolsQuery = `query GetAllPools {
  api {
    getPoolStat {
      id
      tvlUSD
      dailyVolumeUSD
      feesUSD
      feeAPR
      farmAPR
      pool {
        token1
        token2
        feeRate
        currentTick
        sqrtPrice
        activeLpAmount
      }
    }
  }
}`

// Options configure the client. Zero values pick the defaults.
type Options struct {
	URL        string
	HTTPClient *http.Client
	// Pools below either threshold are dropped as inactive.
	MinTVL    float64
	MinVolume float64
}

// Client queries the Hyperion GraphQL API.
type Client struct {
	url        string
	httpClient *http.Client
	resolver   *token.Resolver
	minTVL     float64
	minVolume  float64
	logger     *zap.Logger
}

func New(opts Options, resolver *token.Resolver, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.MinTVL <= 0 {
		opts.MinTVL = market.DefaultMinTVL
	}
	if opts.MinVolume <= 0 {
		opts.MinVolume = market.DefaultMinVolume
	}
	if resolver == nil {
		resolver = token.NewResolver(logger)
	}
	return &Client{
		url:        opts.URL,
		httpClient: opts.HTTPClient,
		resolver:   resolver,
		minTVL:     opts.MinTVL,
		minVolume:  opts.MinVolume,
		logger:     logger,
	}
}

func (c *Client) Name() string  { return protocolName }
func (c *Client) Chain() string { return chainName }

type gqlRequest struct {
	Query string `json:"query"`
}

type gqlError struct {
	Message string `json:"message"`
}

type poolInfo struct {
	Token1      string          `json:"token1"`
	Token2      string          `json:"token2"`
	FeeRate     source.Number   `json:"feeRate"`
	CurrentTick source.Number   `json:"currentTick"`
	SqrtPrice   json.RawMessage `json:"sqrtPrice"`
	ActiveLP    source.Number   `json:"activeLpAmount"`
}

type poolStat struct {
	ID             string        `json:"id"`
	TVLUSD         source.Number `json:"tvlUSD"`
	DailyVolumeUSD source.Number `json:"dailyVolumeUSD"`
	FeesUSD        source.Number `json:"feesUSD"`
	FeeAPR         source.Number `json:"feeAPR"`
	FarmAPR        source.Number `json:"farmAPR"`
	Pool           *poolInfo     `json:"pool"`
}

type gqlResponse struct {
	Data struct {
		API struct {
			GetPoolStat []poolStat `json:"getPoolStat"`
		} `json:"api"`
	} `json:"data"`
	Errors []gqlError `json:"errors"`
}

// Pools fetches all pool stats and drops pools below the activity
// thresholds.
func (c *Client) Pools(ctx context.Context) ([]model.PoolStat, error) {
	body, err := json.Marshal(gqlRequest{Query: poolsQuery})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hyperion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("hyperion api status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode hyperion response: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("hyperion graphql error: %s", out.Errors[0].Message)
	}

	stats := out.Data.API.GetPoolStat
	if len(stats) == 0 {
		c.logger.Warn("no pools in hyperion response")
		return nil, nil
	}

	pools := make([]model.PoolStat, 0, len(stats))
	for _, st := range stats {
		if st.ID == "" || st.Pool == nil {
			continue
		}
		if st.TVLUSD.Float() < c.minTVL || st.DailyVolumeUSD.Float() < c.minVolume {
			continue
		}
		pools = append(pools, model.PoolStat{
			ID:          st.ID,
			Protocol:    protocolName,
			Chain:       chainName,
			TokenXAddr:  st.Pool.Token1,
			TokenYAddr:  st.Pool.Token2,
			TokenX:      c.resolver.Resolve(st.Pool.Token1),
			TokenY:      c.resolver.Resolve(st.Pool.Token2),
			TVLUSD:      st.TVLUSD.Float(),
			Volume24h:   st.DailyVolumeUSD.Float(),
			Fees24h:     st.FeesUSD.Float(),
			FeeRate:     st.Pool.FeeRate.Int(),
			FeeAPR:      st.FeeAPR.Float(),
			FarmAPR:     st.FarmAPR.Float(),
			CurrentTick: int64(st.Pool.CurrentTick.Float()),
			SqrtPrice:   strings.Trim(string(st.Pool.SqrtPrice), `"`),
			ActiveLP:    int64(st.Pool.ActiveLP.Float()),
		})
	}
	c.logger.Info("fetched hyperion pools",
		zap.Int("total", len(stats)),
		zap.Int("active", len(pools)),
	)
	return pools, nil
}
