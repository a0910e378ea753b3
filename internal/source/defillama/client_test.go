package defillama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleResponse = `{
  "status": "success",
  "data": [
    {
      "pool": "uuid-1",
      "chain": "Aptos",
      "project": "hyperion",
      "symbol": "APT-USDC",
      "tvlUsd": 4200000,
      "apyBase": 18.5,
      "apyReward": 6.5,
      "apy": 25.0,
      "volumeUsd1d": 900000,
      "poolMeta": "0.05%"
    },
    {
      "pool": "uuid-2",
      "chain": "Aptos",
      "project": "hyperion",
      "symbol": "USDT",
      "tvlUsd": 150000,
      "apyBase": null,
      "apyReward": null,
      "apy": 4.2,
      "volumeUsd1d": null,
      "poolMeta": null
    },
    {
      "pool": "uuid-3",
      "chain": "Ethereum",
      "project": "uniswap-v3",
      "symbol": "WETH-USDC",
      "tvlUsd": 90000000,
      "apy": 12.0
    }
  ]
}`

func newTestClient(t *testing.T, body string, projects ...string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(Options{URL: srv.URL, Projects: projects}, nil)
}

func TestPoolsFiltersProjects(t *testing.T) {
	c := newTestClient(t, sampleResponse, "hyperion")

	pools, err := c.Pools(context.Background())
	if err != nil {
		t.Fatalf("Pools: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("got %d pools, want 2 hyperion pools", len(pools))
	}

	p := pools[0]
	if p.ID != "uuid-1" || p.Protocol != "hyperion" || p.Chain != "aptos" {
		t.Errorf("identity = (%s, %s, %s)", p.ID, p.Protocol, p.Chain)
	}
	if p.Pair() != "APT-USDC" {
		t.Errorf("pair = %s, want APT-USDC", p.Pair())
	}
	if p.FeeAPR != 18.5 || p.FarmAPR != 6.5 {
		t.Errorf("aprs = (%v, %v), want (18.5, 6.5)", p.FeeAPR, p.FarmAPR)
	}
	if p.FeeRate != 500 {
		t.Errorf("fee rate from poolMeta = %d, want 500", p.FeeRate)
	}
	// 900000 * 500 / 1e6 = 450
	if p.Fees24h != 450 {
		t.Errorf("estimated fees = %v, want 450", p.Fees24h)
	}

	q := pools[1]
	if q.TokenX != "USDT" || q.TokenY != "" {
		t.Errorf("single-asset pool sides = (%q, %q)", q.TokenX, q.TokenY)
	}
	if q.FeeAPR != 4.2 {
		t.Errorf("apy fallback = %v, want 4.2", q.FeeAPR)
	}
}

func TestPoolsMultipleProjects(t *testing.T) {
	c := newTestClient(t, sampleResponse, "hyperion", "uniswap-v3")

	pools, err := c.Pools(context.Background())
	if err != nil {
		t.Fatalf("Pools: %v", err)
	}
	if len(pools) != 3 {
		t.Fatalf("got %d pools, want 3", len(pools))
	}
	if pools[2].Chain != "ethereum" {
		t.Errorf("chain = %s, want ethereum", pools[2].Chain)
	}
}

func TestPoolsBadStatus(t *testing.T) {
	c := newTestClient(t, `{"status": "error", "data": []}`)

	if _, err := c.Pools(context.Background()); err == nil {
		t.Fatal("Pools with error status succeeded, want error")
	}
}

func TestMetaFeeRate(t *testing.T) {
	tests := []struct {
		meta string
		want int
	}{
		{"0.05%", 500},
		{"0.3% fee tier", 3000},
		{"1%", 10000},
		{"stable pool", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := metaFeeRate(tt.meta); got != tt.want {
			t.Errorf("metaFeeRate(%q) = %d, want %d", tt.meta, got, tt.want)
		}
	}
}
