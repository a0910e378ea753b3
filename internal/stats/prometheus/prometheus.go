package prometheus

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"poolwatch/internal/storage"
)

// Stats exposes bot usage counters on a /metrics endpoint.
type Stats struct {
	commands      *prometheus.CounterVec
	callbacks     *prometheus.CounterVec
	searches      prometheus.Counter
	refreshRuns   prometheus.Counter
	refreshErrors *prometheus.CounterVec
	poolsFetched  *prometheus.CounterVec
	pools         prometheus.Gauge
	users         prometheus.Gauge
	store         storage.Store
	server        *http.Server
	logger        *zap.Logger
}

// NewStats returns a new Stats HTTP server configured to the supplied
// listen address.
func NewStats(store storage.Store, addr string, logger *zap.Logger) *Stats {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s := &http.Server{
		Addr:           addr,
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return &Stats{
		commands:      newCounterVec("poolwatch_bot_commands_total", "Total bot commands handled", []string{"command"}),
		callbacks:     newCounterVec("poolwatch_bot_callbacks_total", "Total callback queries handled", []string{"action"}),
		searches:      newCounter("poolwatch_searches_total", "Total token searches run"),
		refreshRuns:   newCounter("poolwatch_refresh_runs_total", "Total refresh cycles run"),
		refreshErrors: newCounterVec("poolwatch_refresh_errors_total", "Total refresh failures", []string{"source"}),
		poolsFetched:  newCounterVec("poolwatch_pools_fetched_total", "Total pools fetched", []string{"source"}),
		pools:         newGauge("poolwatch_pools", "Tracked pools"),
		users:         newGauge("poolwatch_users", "Known users"),
		store:         store,
		server:        s,
		logger:        logger,
	}
}

// Start starts the stats HTTP server and the gauge collection loop.
func (ps *Stats) Start() error {
	// collect totals every minute
	go func() {
		for {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if c, err := ps.store.CountPools(ctx); err == nil {
				ps.pools.Set(float64(c))
			}
			if c, err := ps.store.CountUsers(ctx); err == nil {
				ps.users.Set(float64(c))
			}
			cancel()

			time.Sleep(time.Minute)
		}
	}()
	ps.logger.Info("starting stats server", zap.String("addr", ps.server.Addr))
	err := ps.server.ListenAndServe()
	if err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown shuts down the stats HTTP server.
func (ps *Stats) Shutdown(ctx context.Context) error {
	return ps.server.Shutdown(ctx)
}

// Close immediately closes the stats HTTP server.
func (ps *Stats) Close() error {
	return ps.server.Close()
}

// Command counts a handled bot command.
func (ps *Stats) Command(name string) {
	ps.commands.WithLabelValues(name).Inc()
}

// Callback counts a handled callback query.
func (ps *Stats) Callback(action string) {
	ps.callbacks.WithLabelValues(action).Inc()
}

// Search counts a token search.
func (ps *Stats) Search() {
	ps.searches.Inc()
}

// RefreshRun counts a completed refresh cycle.
func (ps *Stats) RefreshRun() {
	ps.refreshRuns.Inc()
}

// RefreshError counts a failed source refresh.
func (ps *Stats) RefreshError(source string) {
	ps.refreshErrors.WithLabelValues(source).Inc()
}

// PoolsFetched counts pools fetched from a source.
func (ps *Stats) PoolsFetched(source string, count int) {
	ps.poolsFetched.WithLabelValues(source).Add(float64(count))
}

func newCounter(name string, help string) prometheus.Counter {
	return promauto.NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: help,
	})
}

func newCounterVec(name string, help string, labels []string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: help,
	}, labels)
}

func newGauge(name string, help string) prometheus.Gauge {
	return promauto.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})
}
