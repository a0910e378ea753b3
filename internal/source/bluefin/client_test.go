package bluefin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(Options{URL: srv.URL}, nil)
}

func TestPoolsFieldFallbacks(t *testing.T) {
	body := `[
		{
			"id": "0xsui1",
			"token0": "SUI",
			"token1": "USDC",
			"tvlUSD": "800000",
			"volume24h": 200000,
			"fees24h": "600",
			"feeRate": 2500,
			"feeAPR": 9.5,
			"farmAPR": 2.5
		},
		{
			"address": "0xsui2",
			"tokenA": {"symbol": "WAL"},
			"tokenB": {"symbol": "SUI"},
			"tvl": 300000,
			"volume24H": "90000",
			"fees24H": 270,
			"fee": 0.3,
			"apr": 12.0
		},
		{
			"id": "0xdust",
			"token0": "X",
			"token1": "Y",
			"tvlUSD": 0,
			"volume24h": 100
		}
	]`
	c := serve(t, http.StatusOK, body)

	pools, err := c.Pools(context.Background())
	if err != nil {
		t.Fatalf("Pools: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("got %d pools, want 2 (0xdust has no TVL)", len(pools))
	}

	p := pools[0]
	if p.ID != "0xsui1" || p.Chain != "sui" || p.Protocol != "bluefin" {
		t.Errorf("identity = (%s, %s, %s)", p.ID, p.Protocol, p.Chain)
	}
	if p.Pair() != "SUI-USDC" {
		t.Errorf("pair = %s, want SUI-USDC", p.Pair())
	}
	if p.TVLUSD != 800000 || p.Volume24h != 200000 || p.Fees24h != 600 {
		t.Errorf("metrics = (%v, %v, %v)", p.TVLUSD, p.Volume24h, p.Fees24h)
	}
	if p.FeeRate != 2500 {
		t.Errorf("fee rate = %d, want 2500", p.FeeRate)
	}

	q := pools[1]
	if q.ID != "0xsui2" || q.Pair() != "WAL-SUI" {
		t.Errorf("fallback pool = %s %s", q.ID, q.Pair())
	}
	if q.TVLUSD != 300000 || q.Volume24h != 90000 {
		t.Errorf("fallback metrics = (%v, %v)", q.TVLUSD, q.Volume24h)
	}
	// fee 0.3 is a bare percent, 0.3% -> 3000
	if q.FeeRate != 3000 {
		t.Errorf("normalized fee rate = %d, want 3000", q.FeeRate)
	}
	if q.Fees24h != 270 {
		t.Errorf("fees = %v, want 270", q.Fees24h)
	}
	if q.FeeAPR != 12.0 {
		t.Errorf("fee apr = %v, want 12", q.FeeAPR)
	}
}

func TestPoolsEstimatesFeesFromVolume(t *testing.T) {
	body := `[{"id": "0xsui3", "token0": "SUI", "token1": "USDT", "tvlUSD": 500000, "volume24h": 100000, "feeRate": 2500}]`
	c := serve(t, http.StatusOK, body)

	pools, err := c.Pools(context.Background())
	if err != nil {
		t.Fatalf("Pools: %v", err)
	}
	if len(pools) != 1 {
		t.Fatalf("got %d pools, want 1", len(pools))
	}
	// 100000 * 2500 / 1e6 = 250
	if pools[0].Fees24h != 250 {
		t.Errorf("estimated fees = %v, want 250", pools[0].Fees24h)
	}
}

func TestPoolsMissingEndpoint(t *testing.T) {
	c := serve(t, http.StatusNotFound, "not found")

	pools, err := c.Pools(context.Background())
	if err != nil {
		t.Fatalf("Pools on 404: %v, want empty result", err)
	}
	if len(pools) != 0 {
		t.Errorf("got %d pools, want 0", len(pools))
	}
}

func TestPoolsServerError(t *testing.T) {
	c := serve(t, http.StatusInternalServerError, "boom")

	if _, err := c.Pools(context.Background()); err == nil {
		t.Fatal("Pools on 500 succeeded, want error")
	}
}
