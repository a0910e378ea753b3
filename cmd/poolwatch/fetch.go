package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolwatch/internal/config"
	"poolwatch/internal/refresh"
	"poolwatch/internal/stats/noop"
	"poolwatch/internal/storage"
)

func runFetch(cmd *cobra.Command, _ []string) error {
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

	refresher := refresh.NewRefresher(refresh.Config{
		Interval:     cfg.RefreshInterval,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, caches, store, noop.Stats{}, logger)

	if cfg.Out != "" {
		refresher.SetSink(storage.NewJsonlWriter(cfg.Out))
	}

	n, err := refresher.RunOnce(ctx)
	if err != nil {
		return err
	}

	logger.Info("fetch complete",
		zap.Int("pools", n),
		zap.Int("sources", len(caches)),
		zap.String("out", cfg.Out),
	)

	return nil
}
