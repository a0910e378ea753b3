package hyperion

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const sampleResponse = `{
  "data": {
    "api": {
      "getPoolStat": [
        {
          "id": "0xpool1",
          "tvlUSD": "2500000.50",
          "dailyVolumeUSD": "800000",
          "feesUSD": "2000.25",
          "feeAPR": "21.5",
          "farmAPR": "4.5",
          "pool": {
            "token1": "0x000000000000000000000000000000000000000000000000000000000000000a",
            "token2": "0xbae207659db88bea0cbead6da0ed00aac12edcdda169e591cd41c94180b46f3b",
            "feeRate": "2500",
            "currentTick": 12345,
            "sqrtPrice": "79228162514264337593543950336",
            "activeLpAmount": "150"
          }
        },
        {
          "id": "0xpool2",
          "tvlUSD": 50000,
          "dailyVolumeUSD": 10000,
          "feesUSD": 30,
          "feeAPR": 3,
          "farmAPR": 0,
          "pool": {
            "token1": "0x1::aptos_coin::AptosCoin",
            "token2": "0x357b0b74bc833e95a115ad22604854d6b0fca151cecd94111770e5d6ffc9dc2b::coin::T",
            "feeRate": 500,
            "currentTick": 0,
            "sqrtPrice": "1",
            "activeLpAmount": 3
          }
        }
      ]
    }
  }
}`

func testServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestPoolsParsesResponse(t *testing.T) {
	var gotBody string
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(sampleResponse))
	})

	c := New(Options{URL: srv.URL, MinTVL: 1, MinVolume: 1}, nil, nil)
	pools, err := c.Pools(context.Background())
	if err != nil {
		t.Fatalf("Pools: %v", err)
	}
	if !strings.Contains(gotBody, "getPoolStat") {
		t.Errorf("request body %q does not contain the pools query", gotBody)
	}
	if len(pools) != 2 {
		t.Fatalf("got %d pools, want 2", len(pools))
	}

	p := pools[0]
	if p.ID != "0xpool1" || p.Protocol != "hyperion" || p.Chain != "aptos" {
		t.Errorf("identity = (%s, %s, %s), want (0xpool1, hyperion, aptos)", p.ID, p.Protocol, p.Chain)
	}
	if p.TokenX != "APT" || p.TokenY != "USDC" {
		t.Errorf("pair = %s, want APT-USDC", p.Pair())
	}
	if p.TVLUSD != 2500000.50 || p.Volume24h != 800000 || p.Fees24h != 2000.25 {
		t.Errorf("metrics = (%v, %v, %v)", p.TVLUSD, p.Volume24h, p.Fees24h)
	}
	if p.FeeRate != 2500 {
		t.Errorf("fee rate = %d, want 2500", p.FeeRate)
	}
	if p.TotalAPR() != 26 {
		t.Errorf("total apr = %v, want 26", p.TotalAPR())
	}
	if p.CurrentTick != 12345 {
		t.Errorf("current tick = %d, want 12345", p.CurrentTick)
	}
	if p.SqrtPrice != "79228162514264337593543950336" {
		t.Errorf("sqrt price = %q", p.SqrtPrice)
	}

	if pools[1].TokenX != "APT" || pools[1].TokenY != "USDT" {
		t.Errorf("second pair = %s, want APT-USDT", pools[1].Pair())
	}
}

func TestPoolsActivityFilter(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleResponse))
	})

	c := New(Options{URL: srv.URL}, nil, nil)
	pools, err := c.Pools(context.Background())
	if err != nil {
		t.Fatalf("Pools: %v", err)
	}
	if len(pools) != 1 {
		t.Fatalf("got %d pools, want 1 (0xpool2 is below thresholds)", len(pools))
	}
	if pools[0].ID != "0xpool1" {
		t.Errorf("kept pool = %s, want 0xpool1", pools[0].ID)
	}
}

func TestPoolsGraphQLError(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors": [{"message": "field getPoolStat not found"}]}`))
	})

	c := New(Options{URL: srv.URL}, nil, nil)
	_, err := c.Pools(context.Background())
	if err == nil || !strings.Contains(err.Error(), "getPoolStat not found") {
		t.Fatalf("Pools = %v, want graphql error", err)
	}
}

func TestPoolsHTTPError(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	})

	c := New(Options{URL: srv.URL}, nil, nil)
	_, err := c.Pools(context.Background())
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("Pools = %v, want status error", err)
	}
}

func TestPoolsEmptyResponse(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"api": {"getPoolStat": []}}}`))
	})

	c := New(Options{URL: srv.URL}, nil, nil)
	pools, err := c.Pools(context.Background())
	if err != nil {
		t.Fatalf("Pools: %v", err)
	}
	if len(pools) != 0 {
		t.Errorf("got %d pools, want 0", len(pools))
	}
}
