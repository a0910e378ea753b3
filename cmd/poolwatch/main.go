package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"poolwatch/internal/bot"
	"poolwatch/internal/config"
	"poolwatch/internal/refresh"
	"poolwatch/internal/search"
	"poolwatch/internal/source"
	"poolwatch/internal/source/bluefin"
	"poolwatch/internal/source/defillama"
	"poolwatch/internal/source/evm"
	"poolwatch/internal/source/hyperion"
	"poolwatch/internal/stats"
	"poolwatch/internal/stats/noop"
	"poolwatch/internal/stats/prometheus"
	"poolwatch/internal/storage"
	"poolwatch/internal/storage/postgres"
	"poolwatch/internal/storage/sqlite"
	"poolwatch/internal/token"
)

func main() {
	root := &cobra.Command{
		Use:          "poolwatch",
		Short:        "Liquidity pool tracking Telegram bot",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot and the refresh loop",
		RunE:  runBot,
	}

	runCmd.Flags().String("bot-token", "", "Telegram bot token")
	runCmd.Flags().Duration("poll-timeout", 10*time.Second, "Telegram long poll timeout")
	runCmd.Flags().String("db-path", "./data/poolwatch.db", "SQLite database path")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN (overrides db-path)")
	runCmd.Flags().Duration("cache-ttl", time.Minute, "source cache TTL")
	runCmd.Flags().Duration("refresh-interval", time.Minute, "interval between refresh cycles")
	runCmd.Flags().Int("max-retries", 3, "maximum retry attempts per source")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().Duration("http-timeout", 30*time.Second, "HTTP client timeout")
	runCmd.Flags().String("hyperion-url", "", "Hyperion GraphQL endpoint (empty uses the default)")
	runCmd.Flags().String("bluefin-url", "", "Bluefin pools endpoint (empty uses the default)")
	runCmd.Flags().String("llama-url", "", "DefiLlama yields endpoint (empty uses the default)")
	runCmd.Flags().StringSlice("llama-projects", nil, "DefiLlama project slugs to track (empty disables the source)")
	runCmd.Flags().Float64("min-tvl", 100_000, "minimum pool TVL in USD")
	runCmd.Flags().Float64("min-volume", 50_000, "minimum pool 24h volume in USD")
	runCmd.Flags().String("evm-rpc", "", "EVM RPC URL (empty disables the on-chain source)")
	runCmd.Flags().StringSlice("evm-pools", nil, "EVM pool contract addresses (comma-separated)")
	runCmd.Flags().String("evm-prices", "", "token USD prices (comma-separated SYMBOL=PRICE)")
	runCmd.Flags().String("metrics-addr", "", "Prometheus listen address, e.g. :9091 (empty disables)")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch pools from every source once and store them",
		RunE:  runFetch,
	}

	fetchCmd.Flags().String("db-path", "./data/poolwatch.db", "SQLite database path")
	fetchCmd.Flags().String("pg-dsn", "", "Postgres DSN (overrides db-path)")
	fetchCmd.Flags().Duration("http-timeout", 30*time.Second, "HTTP client timeout")
	fetchCmd.Flags().String("hyperion-url", "", "Hyperion GraphQL endpoint (empty uses the default)")
	fetchCmd.Flags().String("bluefin-url", "", "Bluefin pools endpoint (empty uses the default)")
	fetchCmd.Flags().String("llama-url", "", "DefiLlama yields endpoint (empty uses the default)")
	fetchCmd.Flags().StringSlice("llama-projects", nil, "DefiLlama project slugs to track (empty disables the source)")
	fetchCmd.Flags().Float64("min-tvl", 100_000, "minimum pool TVL in USD")
	fetchCmd.Flags().Float64("min-volume", 50_000, "minimum pool 24h volume in USD")
	fetchCmd.Flags().String("evm-rpc", "", "EVM RPC URL (empty disables the on-chain source)")
	fetchCmd.Flags().StringSlice("evm-pools", nil, "EVM pool contract addresses (comma-separated)")
	fetchCmd.Flags().String("evm-prices", "", "token USD prices (comma-separated SYMBOL=PRICE)")
	fetchCmd.Flags().Int("max-retries", 3, "maximum retry attempts per source")
	fetchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fetchCmd.Flags().String("out", "./data/pools.jsonl", "snapshot JSONL path (empty disables)")
	fetchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(fetchCmd)

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "List stored pools",
		RunE:  runPools,
	}

	poolsCmd.Flags().String("db-path", "./data/poolwatch.db", "SQLite database path")
	poolsCmd.Flags().String("pg-dsn", "", "Postgres DSN (overrides db-path)")
	poolsCmd.Flags().String("sort", "tvl", "sort criterion (tvl, volume, apr, fees)")
	poolsCmd.Flags().Int("limit", 20, "maximum pools to list")
	poolsCmd.Flags().Float64("min-tvl", 0, "minimum TVL in USD")
	poolsCmd.Flags().Float64("min-apr", 0, "minimum total APR in percent")
	poolsCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(poolsCmd)

	root.AddCommand(newDBCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.BotToken == "" {
		return fmt.Errorf("bot token is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	caches, cleanup, err := buildSources(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var st stats.Stats = noop.Stats{}
	if cfg.MetricsAddr != "" {
		st = prometheus.NewStats(store, cfg.MetricsAddr, logger)
	}

	engine := search.NewEngine(sourcesOf(caches), logger)

	b, err := bot.New(bot.Config{
		Token:       cfg.BotToken,
		PollTimeout: cfg.PollTimeout,
		Store:       store,
		Primary:     caches[0],
		Caches:      caches,
		Engine:      engine,
		Stats:       st,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	refresher := refresh.NewRefresher(refresh.Config{
		Interval:     cfg.RefreshInterval,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, caches, store, st, logger)

	logger.Info("poolwatch start",
		zap.Int("sources", len(caches)),
		zap.Duration("refresh_interval", cfg.RefreshInterval),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.Bool("postgres", cfg.PGDSN != ""),
	)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		g.Go(st.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return st.Shutdown(shutdownCtx)
		})
	}

	if cfg.RefreshInterval > 0 {
		g.Go(func() error {
			err := refresher.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("refresh loop disabled")
	}

	g.Go(func() error {
		b.Start()
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		b.Stop()
		return nil
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Store, error) {
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return store, nil
	}
	return sqlite.Open(cfg.DBPath, logger)
}

// buildSources assembles the source caches from the configuration. The
// returned cleanup closes any held connections.
func buildSources(ctx context.Context, cfg config.Config, logger *zap.Logger) ([]*source.Cache, func(), error) {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	resolver := token.NewResolver(logger)

	var caches []*source.Cache
	cleanup := func() {}

	hyp := hyperion.New(hyperion.Options{
		URL:        cfg.HyperionURL,
		HTTPClient: httpClient,
		MinTVL:     cfg.MinTVL,
		MinVolume:  cfg.MinVolume,
	}, resolver, logger)

	// When the Hyperion API is down the DefiLlama yields listing still
	// knows its pools.
	hypFallback := defillama.New(defillama.Options{
		URL:        cfg.LlamaURL,
		HTTPClient: httpClient,
		Projects:   []string{"hyperion"},
		ChainLabel: "aptos",
	}, logger)
	primary := source.NewFallback(hyp, hypFallback, logger)
	caches = append(caches, source.NewCache(primary, cfg.CacheTTL, logger))

	blue := bluefin.New(bluefin.Options{
		URL:        cfg.BluefinURL,
		HTTPClient: httpClient,
	}, logger)
	caches = append(caches, source.NewCache(blue, cfg.CacheTTL, logger))

	if len(cfg.LlamaProjects) > 0 {
		llama := defillama.New(defillama.Options{
			URL:        cfg.LlamaURL,
			HTTPClient: httpClient,
			Projects:   cfg.LlamaProjects,
		}, logger)
		caches = append(caches, source.NewCache(llama, cfg.CacheTTL, logger))
	}

	if cfg.EVMRPC != "" {
		prices, err := config.ParsePrices(cfg.EVMPrices)
		if err != nil {
			return nil, nil, err
		}
		src, err := evm.New(ctx, evm.Options{
			RPCURL: cfg.EVMRPC,
			Pools:  cfg.EVMPools,
			Prices: prices,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("evm source: %w", err)
		}
		caches = append(caches, source.NewCache(src, cfg.CacheTTL, logger))
		cleanup = src.Close
	}

	return caches, cleanup, nil
}

func sourcesOf(caches []*source.Cache) []source.Source {
	out := make([]source.Source, len(caches))
	for i, c := range caches {
		out[i] = c
	}
	return out
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
