package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"poolwatch/internal/model"
	"poolwatch/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "pools.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testPools(now time.Time) []model.Pool {
	return []model.Pool{
		{Address: "0xaaa", Protocol: "hyperion", Chain: "aptos", TokenX: "APT", TokenY: "USDC",
			TVLUSD: 5_000_000, Volume24h: 1_200_000, Fees24h: 3000, FeeRate: 2500,
			FeeAPR: 21.9, FarmAPR: 4.2, TotalAPR: 26.1, LastUpdated: now},
		{Address: "0xbbb", Protocol: "hyperion", Chain: "aptos", TokenX: "USDC", TokenY: "USDT",
			TVLUSD: 9_000_000, Volume24h: 600_000, Fees24h: 60, FeeRate: 100,
			FeeAPR: 0.24, FarmAPR: 0, TotalAPR: 0.24, LastUpdated: now},
		{Address: "0xccc", Protocol: "bluefin", Chain: "sui", TokenX: "SUI", TokenY: "USDC",
			TVLUSD: 250_000, Volume24h: 90_000, Fees24h: 45, FeeRate: 500,
			FeeAPR: 6.5, FarmAPR: 11.0, TotalAPR: 17.5, LastUpdated: now},
	}
}

func TestUpsertAndQueryPools(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := s.UpsertPools(ctx, testPools(now)); err != nil {
		t.Fatalf("UpsertPools: %v", err)
	}

	got, err := s.PoolByAddress(ctx, "0xaaa")
	if err != nil {
		t.Fatalf("PoolByAddress: %v", err)
	}
	if got.Pair() != "APT-USDC" {
		t.Errorf("pair = %q, want APT-USDC", got.Pair())
	}
	if got.Fees24h != 3000 || got.FeeRate != 2500 {
		t.Errorf("fee columns = (%v, %v), want (3000, 2500)", got.Fees24h, got.FeeRate)
	}

	all, err := s.AllPools(ctx)
	if err != nil {
		t.Fatalf("AllPools: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("AllPools returned %d pools, want 3", len(all))
	}
	if all[0].Address != "0xbbb" {
		t.Errorf("largest pool = %s, want 0xbbb", all[0].Address)
	}
}

func TestUpsertPoolsRefreshesExisting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	pools := testPools(now)
	if err := s.UpsertPools(ctx, pools); err != nil {
		t.Fatalf("UpsertPools: %v", err)
	}

	pools[0].TVLUSD = 6_500_000
	pools[0].Fees24h = 4100
	if err := s.UpsertPools(ctx, pools[:1]); err != nil {
		t.Fatalf("second UpsertPools: %v", err)
	}

	got, err := s.PoolByAddress(ctx, "0xaaa")
	if err != nil {
		t.Fatalf("PoolByAddress: %v", err)
	}
	if got.TVLUSD != 6_500_000 || got.Fees24h != 4100 {
		t.Errorf("refreshed pool = (%v, %v), want (6500000, 4100)", got.TVLUSD, got.Fees24h)
	}

	all, err := s.AllPools(ctx)
	if err != nil {
		t.Fatalf("AllPools: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("AllPools returned %d pools after refresh, want 3", len(all))
	}
}

func TestTopPools(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.UpsertPools(ctx, testPools(time.Now().UTC())); err != nil {
		t.Fatalf("UpsertPools: %v", err)
	}

	tests := []struct {
		name string
		q    storage.PoolQuery
		want []string
	}{
		{"by tvl", storage.PoolQuery{SortBy: "tvl", Limit: 10}, []string{"0xbbb", "0xaaa", "0xccc"}},
		{"by apr", storage.PoolQuery{SortBy: "apr", Limit: 10}, []string{"0xaaa", "0xccc", "0xbbb"}},
		{"by fees", storage.PoolQuery{SortBy: "fees", Limit: 2}, []string{"0xaaa", "0xbbb"}},
		{"min tvl", storage.PoolQuery{MinTVL: 1_000_000, SortBy: "tvl", Limit: 10}, []string{"0xbbb", "0xaaa"}},
		{"min apr", storage.PoolQuery{MinAPR: 10, SortBy: "apr", Limit: 10}, []string{"0xaaa", "0xccc"}},
	}
	for _, tt := range tests {
		got, err := s.TopPools(ctx, tt.q)
		if err != nil {
			t.Fatalf("%s: TopPools: %v", tt.name, err)
		}
		var addrs []string
		for _, p := range got {
			addrs = append(addrs, p.Address)
		}
		if len(addrs) != len(tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, addrs, tt.want)
			continue
		}
		for i := range addrs {
			if addrs[i] != tt.want[i] {
				t.Errorf("%s: got %v, want %v", tt.name, addrs, tt.want)
				break
			}
		}
	}
}

func TestPoolsByFeeRate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.UpsertPools(ctx, testPools(time.Now().UTC())); err != nil {
		t.Fatalf("UpsertPools: %v", err)
	}

	got, err := s.PoolsByFeeRate(ctx, 500)
	if err != nil {
		t.Fatalf("PoolsByFeeRate: %v", err)
	}
	if len(got) != 1 || got[0].Address != "0xccc" {
		t.Errorf("PoolsByFeeRate(500) = %v, want [0xccc]", got)
	}
}

func TestPoolByAddressNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.PoolByAddress(context.Background(), "0xmissing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("PoolByAddress = %v, want ErrNotFound", err)
	}
}

func TestGetOrCreateUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u1, err := s.GetOrCreateUser(ctx, 42, "alice")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if u1.TelegramID != 42 || u1.Username != "alice" {
		t.Errorf("user = %+v, want telegram_id 42, username alice", u1)
	}

	u2, err := s.GetOrCreateUser(ctx, 42, "alice")
	if err != nil {
		t.Fatalf("second GetOrCreateUser: %v", err)
	}
	if u2.ID != u1.ID {
		t.Errorf("second call created a new row: id %d != %d", u2.ID, u1.ID)
	}
}

func TestCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if n, err := s.CountPools(ctx); err != nil || n != 0 {
		t.Fatalf("CountPools on empty store = %d, %v", n, err)
	}

	if err := s.UpsertPools(ctx, testPools(time.Now().UTC())); err != nil {
		t.Fatalf("UpsertPools: %v", err)
	}
	if _, err := s.GetOrCreateUser(ctx, 7, "bob"); err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}

	if n, err := s.CountPools(ctx); err != nil || n != 3 {
		t.Fatalf("CountPools = %d, %v, want 3", n, err)
	}
	if n, err := s.CountUsers(ctx); err != nil || n != 1 {
		t.Fatalf("CountUsers = %d, %v, want 1", n, err)
	}
}

func TestWatchLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.UpsertPools(ctx, testPools(time.Now().UTC())); err != nil {
		t.Fatalf("UpsertPools: %v", err)
	}

	threshold := 15.0
	if err := s.WatchPool(ctx, 42, "0xaaa", &threshold); err != nil {
		t.Fatalf("WatchPool: %v", err)
	}
	if err := s.WatchPool(ctx, 42, "0xccc", nil); err != nil {
		t.Fatalf("WatchPool: %v", err)
	}

	watched, err := s.WatchedPools(ctx, 42)
	if err != nil {
		t.Fatalf("WatchedPools: %v", err)
	}
	if len(watched) != 2 {
		t.Fatalf("WatchedPools returned %d, want 2", len(watched))
	}
	if watched[0].Pool.Address != "0xaaa" {
		t.Errorf("largest watched pool = %s, want 0xaaa", watched[0].Pool.Address)
	}
	if watched[0].AlertThreshold == nil || *watched[0].AlertThreshold != 15.0 {
		t.Errorf("alert threshold = %v, want 15", watched[0].AlertThreshold)
	}
	if watched[1].AlertThreshold != nil {
		t.Errorf("alert threshold = %v, want nil", *watched[1].AlertThreshold)
	}

	if err := s.UnwatchPool(ctx, 42, "0xaaa"); err != nil {
		t.Fatalf("UnwatchPool: %v", err)
	}
	watched, err = s.WatchedPools(ctx, 42)
	if err != nil {
		t.Fatalf("WatchedPools after unwatch: %v", err)
	}
	if len(watched) != 1 {
		t.Errorf("WatchedPools returned %d after unwatch, want 1", len(watched))
	}
}

func TestWatchUnknownPool(t *testing.T) {
	s := openTestStore(t)
	err := s.WatchPool(context.Background(), 42, "0xmissing", nil)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("WatchPool = %v, want ErrNotFound", err)
	}
}

func TestUnwatchNotWatched(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.UpsertPools(ctx, testPools(time.Now().UTC())); err != nil {
		t.Fatalf("UpsertPools: %v", err)
	}
	err := s.UnwatchPool(ctx, 42, "0xaaa")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("UnwatchPool = %v, want ErrNotFound", err)
	}
}
