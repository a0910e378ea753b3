package search

import (
	"context"
	"errors"
	"testing"

	"poolwatch/internal/model"
	"poolwatch/internal/source"
)

type fakeSource struct {
	name  string
	chain string
	pools []model.PoolStat
	err   error
}

func (f *fakeSource) Name() string  { return f.name }
func (f *fakeSource) Chain() string { return f.chain }

func (f *fakeSource) Pools(ctx context.Context) ([]model.PoolStat, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pools, nil
}

func stat(id, tokenX, tokenY string, tvl, feeAPR float64) model.PoolStat {
	return model.PoolStat{
		ID:     id,
		TokenX: tokenX,
		TokenY: tokenY,
		TVLUSD: tvl,
		FeeAPR: feeAPR,
	}
}

func testEngine(sources ...source.Source) *Engine {
	return NewEngine(sources, nil)
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		raw     string
		tokenA  string
		tokenB  string
		wantErr bool
	}{
		{raw: "apt", tokenA: "APT"},
		{raw: " apt ", tokenA: "APT"},
		{raw: "apt/usdt", tokenA: "APT", tokenB: "USDT"},
		{raw: "APT-usdc", tokenA: "APT", tokenB: "USDC"},
		{raw: "", wantErr: true},
		{raw: "   ", wantErr: true},
		{raw: "a-b-c", wantErr: true},
		{raw: "-", wantErr: true},
		{raw: "apt-", wantErr: true},
	}

	for _, tt := range tests {
		tokenA, tokenB, err := ParseQuery(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseQuery(%q): expected error, got %q/%q", tt.raw, tokenA, tokenB)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseQuery(%q): %v", tt.raw, err)
			continue
		}
		if tokenA != tt.tokenA || tokenB != tt.tokenB {
			t.Errorf("ParseQuery(%q) = %q/%q, want %q/%q", tt.raw, tokenA, tokenB, tt.tokenA, tt.tokenB)
		}
	}
}

func TestSearchSingleToken(t *testing.T) {
	hyperion := &fakeSource{
		name:  "hyperion",
		chain: "aptos",
		pools: []model.PoolStat{
			stat("0x1", "APT", "USDT", 2_000_000, 18),
			stat("0x2", "USDC", "USDT", 1_000_000, 5),
			stat("0x3", "APT", "USDC", 5_000_000, 25),
		},
	}
	bluefin := &fakeSource{
		name:  "bluefin",
		chain: "sui",
		pools: []model.PoolStat{
			stat("0x9", "SUI", "USDC", 800_000, 30),
		},
	}

	res, err := testEngine(hyperion, bluefin).Search(context.Background(), "apt")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if res.Query != "APT" || res.IsPair() {
		t.Fatalf("unexpected query %q (pair=%v)", res.Query, res.IsPair())
	}
	if res.TotalPools != 2 {
		t.Fatalf("expected 2 pools, got %d", res.TotalPools)
	}
	if len(res.Chains) != 1 {
		t.Fatalf("expected 1 chain, got %d", len(res.Chains))
	}

	chain := res.Chains[0]
	if chain.ID != "aptos" || chain.Name != "Aptos" || chain.Emoji != "🔷" {
		t.Fatalf("unexpected chain %q/%q/%q", chain.ID, chain.Name, chain.Emoji)
	}
	if chain.TotalTVL != 7_000_000 || chain.BestAPR != 25 {
		t.Fatalf("unexpected chain totals tvl=%v apr=%v", chain.TotalTVL, chain.BestAPR)
	}
	if len(chain.Protocols) != 1 {
		t.Fatalf("expected 1 protocol, got %d", len(chain.Protocols))
	}

	proto := chain.Protocols[0]
	if proto.Name != "Hyperion" || proto.Emoji != "🌊" {
		t.Fatalf("unexpected protocol display %q/%q", proto.Name, proto.Emoji)
	}
	if len(proto.Pools) != 2 || proto.Pools[0].ID != "0x3" || proto.Pools[1].ID != "0x1" {
		t.Fatalf("pools not ordered by TVL: %+v", proto.Pools)
	}
}

func TestSearchPairMatchesEitherOrder(t *testing.T) {
	src := &fakeSource{
		name:  "hyperion",
		chain: "aptos",
		pools: []model.PoolStat{
			stat("0x1", "USDT", "USDC", 3_000_000, 4),
			stat("0x2", "APT", "USDC", 5_000_000, 25),
		},
	}

	res, err := testEngine(src).Search(context.Background(), "USDC/USDT")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !res.IsPair() || res.Query != "USDC-USDT" {
		t.Fatalf("unexpected query %q (pair=%v)", res.Query, res.IsPair())
	}
	if res.TotalPools != 1 {
		t.Fatalf("expected 1 pool, got %d", res.TotalPools)
	}
	if got := res.Chains[0].Protocols[0].Pools[0].ID; got != "0x1" {
		t.Fatalf("expected pool 0x1, got %s", got)
	}
}

func TestSearchOrdersChainsByTVL(t *testing.T) {
	aptos := &fakeSource{
		name:  "hyperion",
		chain: "aptos",
		pools: []model.PoolStat{stat("0x1", "USDC", "USDT", 1_000_000, 5)},
	}
	sui := &fakeSource{
		name:  "bluefin",
		chain: "sui",
		pools: []model.PoolStat{stat("0x2", "USDC", "SUI", 4_000_000, 20)},
	}

	res, err := testEngine(aptos, sui).Search(context.Background(), "usdc")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Chains) != 2 {
		t.Fatalf("expected 2 chains, got %d", len(res.Chains))
	}
	if res.Chains[0].ID != "sui" || res.Chains[1].ID != "aptos" {
		t.Fatalf("chains not ordered by TVL: %s, %s", res.Chains[0].ID, res.Chains[1].ID)
	}
}

func TestSearchSkipsFailedSource(t *testing.T) {
	broken := &fakeSource{name: "hyperion", chain: "aptos", err: errors.New("api down")}
	healthy := &fakeSource{
		name:  "bluefin",
		chain: "sui",
		pools: []model.PoolStat{stat("0x2", "SUI", "USDC", 500_000, 12)},
	}

	res, err := testEngine(broken, healthy).Search(context.Background(), "sui")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.TotalPools != 1 || len(res.Chains) != 1 || res.Chains[0].ID != "sui" {
		t.Fatalf("expected the healthy source to answer, got %+v", res)
	}
}

func TestSearchPropagatesCancellation(t *testing.T) {
	src := &fakeSource{name: "hyperion", chain: "aptos", err: context.Canceled}

	if _, err := testEngine(src).Search(context.Background(), "apt"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSearchNoMatches(t *testing.T) {
	src := &fakeSource{
		name:  "hyperion",
		chain: "aptos",
		pools: []model.PoolStat{stat("0x1", "APT", "USDC", 1_000_000, 10)},
	}

	res, err := testEngine(src).Search(context.Background(), "WETH")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.TotalPools != 0 || len(res.Chains) != 0 {
		t.Fatalf("expected no results, got %+v", res)
	}
}

func TestDisplayFallbacks(t *testing.T) {
	if name, emoji := ChainDisplay("base"); name != "Base" || emoji != "🔷" {
		t.Fatalf("ChainDisplay(base) = %q/%q", name, emoji)
	}
	if name, emoji := ProtocolDisplay("cetus"); name != "Cetus" || emoji != "💧" {
		t.Fatalf("ProtocolDisplay(cetus) = %q/%q", name, emoji)
	}
}
