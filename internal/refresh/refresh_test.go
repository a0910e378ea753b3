package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"poolwatch/internal/model"
	"poolwatch/internal/source"
	"poolwatch/internal/stats/noop"
	"poolwatch/internal/storage"
)

type fakeSource struct {
	name  string
	chain string
	pools []model.PoolStat

	// fail this many calls before succeeding
	fails int
	calls int
}

func (s *fakeSource) Name() string  { return s.name }
func (s *fakeSource) Chain() string { return s.chain }

func (s *fakeSource) Pools(ctx context.Context) ([]model.PoolStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.calls++
	if s.calls <= s.fails {
		return nil, errors.New("upstream down")
	}
	return s.pools, nil
}

type fakeStore struct {
	mu      sync.Mutex
	upserts [][]model.Pool
	err     error
}

func (s *fakeStore) UpsertPools(_ context.Context, pools []model.Pool) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, pools)
	return nil
}

func (s *fakeStore) TopPools(context.Context, storage.PoolQuery) ([]model.Pool, error) {
	return nil, nil
}
func (s *fakeStore) PoolByAddress(context.Context, string) (model.Pool, error) {
	return model.Pool{}, storage.ErrNotFound
}
func (s *fakeStore) PoolsByFeeRate(context.Context, int) ([]model.Pool, error) { return nil, nil }
func (s *fakeStore) AllPools(context.Context) ([]model.Pool, error)            { return nil, nil }
func (s *fakeStore) GetOrCreateUser(context.Context, int64, string) (model.User, error) {
	return model.User{}, nil
}
func (s *fakeStore) CountPools(context.Context) (int64, error) { return 0, nil }
func (s *fakeStore) CountUsers(context.Context) (int64, error) { return 0, nil }
func (s *fakeStore) WatchPool(context.Context, int64, string, *float64) error {
	return nil
}
func (s *fakeStore) UnwatchPool(context.Context, int64, string) error { return nil }
func (s *fakeStore) WatchedPools(context.Context, int64) ([]model.WatchedPool, error) {
	return nil, nil
}
func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) stored() []model.Pool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.upserts) == 0 {
		return nil
	}
	return s.upserts[len(s.upserts)-1]
}

type recordingStats struct {
	noop.Stats
	runs    int
	errs    map[string]int
	fetched map[string]int
}

func newRecordingStats() *recordingStats {
	return &recordingStats{errs: map[string]int{}, fetched: map[string]int{}}
}

func (s *recordingStats) RefreshRun()                    { s.runs++ }
func (s *recordingStats) RefreshError(src string)        { s.errs[src]++ }
func (s *recordingStats) PoolsFetched(src string, n int) { s.fetched[src] += n }

type fakeSink struct {
	batches [][]model.PoolStat
}

func (s *fakeSink) AppendPools(pools []model.PoolStat) error {
	s.batches = append(s.batches, pools)
	return nil
}

func cacheOf(src source.Source) *source.Cache {
	return source.NewCache(src, time.Minute, nil)
}

func testConfig() Config {
	return Config{Interval: time.Hour, MaxRetries: 2, RetryBackoff: time.Millisecond}
}

func snap(id, protocol string, tvl float64) model.PoolStat {
	return model.PoolStat{
		ID: id, Protocol: protocol, Chain: "aptos",
		TokenX: "APT", TokenY: "USDC",
		TVLUSD: tvl, Volume24h: tvl / 10, FeeRate: 2500,
		FeeAPR: 12, FarmAPR: 3,
	}
}

func TestRunOnceStoresPools(t *testing.T) {
	store := &fakeStore{}
	st := newRecordingStats()
	sink := &fakeSink{}

	caches := []*source.Cache{
		cacheOf(&fakeSource{name: "hyperion", chain: "aptos", pools: []model.PoolStat{snap("0x1", "hyperion", 1000), snap("0x2", "hyperion", 2000)}}),
		cacheOf(&fakeSource{name: "bluefin", chain: "sui", pools: []model.PoolStat{snap("0x3", "bluefin", 3000)}}),
	}
	r := NewRefresher(testConfig(), caches, store, st, nil)
	r.SetSink(sink)

	n, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 3 {
		t.Fatalf("stored %d pools, want 3", n)
	}

	stored := store.stored()
	if len(stored) != 3 {
		t.Fatalf("upserted %d pools, want 3", len(stored))
	}
	first := stored[0]
	if first.Address != "0x1" || first.Protocol != "hyperion" {
		t.Fatalf("unexpected first pool: %+v", first)
	}
	if first.TotalAPR != 15 {
		t.Fatalf("total apr = %v, want 15", first.TotalAPR)
	}
	if first.LastUpdated.IsZero() {
		t.Fatalf("last updated not set")
	}

	if st.runs != 1 {
		t.Fatalf("refresh runs = %d, want 1", st.runs)
	}
	if st.fetched["hyperion"] != 2 || st.fetched["bluefin"] != 1 {
		t.Fatalf("fetched counts = %v", st.fetched)
	}
	if len(sink.batches) != 1 || len(sink.batches[0]) != 3 {
		t.Fatalf("sink batches = %v", sink.batches)
	}
}

func TestRunOnceSkipsFailedSource(t *testing.T) {
	store := &fakeStore{}
	st := newRecordingStats()

	caches := []*source.Cache{
		cacheOf(&fakeSource{name: "hyperion", chain: "aptos", fails: 100}),
		cacheOf(&fakeSource{name: "bluefin", chain: "sui", pools: []model.PoolStat{snap("0x3", "bluefin", 3000)}}),
	}
	r := NewRefresher(testConfig(), caches, store, st, nil)

	n, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("stored %d pools, want 1", n)
	}
	if st.errs["hyperion"] != 1 {
		t.Fatalf("refresh errors = %v", st.errs)
	}
	if st.runs != 1 {
		t.Fatalf("refresh runs = %d, want 1", st.runs)
	}
}

func TestRunOnceFailsWhenAllSourcesFail(t *testing.T) {
	store := &fakeStore{}
	caches := []*source.Cache{
		cacheOf(&fakeSource{name: "hyperion", chain: "aptos", fails: 100}),
		cacheOf(&fakeSource{name: "bluefin", chain: "sui", fails: 100}),
	}
	r := NewRefresher(testConfig(), caches, store, nil, nil)

	if _, err := r.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error when every source fails")
	}
	if len(store.stored()) != 0 {
		t.Fatalf("nothing should be stored")
	}
}

func TestRunOnceRetriesTransientFailure(t *testing.T) {
	store := &fakeStore{}
	src := &fakeSource{name: "hyperion", chain: "aptos", fails: 2, pools: []model.PoolStat{snap("0x1", "hyperion", 1000)}}
	r := NewRefresher(testConfig(), []*source.Cache{cacheOf(src)}, store, nil, nil)

	n, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("stored %d pools, want 1", n)
	}
	if src.calls != 3 {
		t.Fatalf("source called %d times, want 3", src.calls)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := &fakeStore{}
	src := &fakeSource{name: "hyperion", chain: "aptos", pools: []model.PoolStat{snap("0x1", "hyperion", 1000)}}
	r := NewRefresher(testConfig(), []*source.Cache{cacheOf(src)}, store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Let the first cycle complete, then stop the loop.
	deadline := time.After(2 * time.Second)
	for len(store.stored()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("first cycle never completed")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("refresher did not stop")
	}
}

func TestRunValidates(t *testing.T) {
	r := NewRefresher(Config{Interval: time.Minute}, nil, &fakeStore{}, nil, nil)
	if err := r.Run(context.Background()); err == nil {
		t.Fatalf("expected error without sources")
	}

	src := cacheOf(&fakeSource{name: "hyperion", chain: "aptos"})
	r = NewRefresher(Config{}, []*source.Cache{src}, &fakeStore{}, nil, nil)
	if err := r.Run(context.Background()); err == nil {
		t.Fatalf("expected error without interval")
	}
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 2, time.Millisecond, func(context.Context) error {
		calls++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, 5, time.Hour, func(context.Context) error {
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("withRetry returned %v, want context.Canceled", err)
	}
}
