package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"poolwatch/internal/config"
	"poolwatch/internal/feetier"
	"poolwatch/internal/market"
	"poolwatch/internal/storage"
)

func runPools(cmd *cobra.Command, _ []string) error {
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

	sortBy, _ := cmd.Flags().GetString("sort")
	limit, _ := cmd.Flags().GetInt("limit")
	minTVL, _ := cmd.Flags().GetFloat64("min-tvl")
	minAPR, _ := cmd.Flags().GetFloat64("min-apr")

	if !market.ValidSort(sortBy) {
		return fmt.Errorf("unknown sort criterion %q (want tvl, volume, apr or fees)", sortBy)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	pools, err := store.TopPools(ctx, storage.PoolQuery{
		MinTVL: minTVL,
		MinAPR: minAPR,
		SortBy: sortBy,
		Limit:  limit,
	})
	if err != nil {
		return err
	}

	if len(pools) == 0 {
		fmt.Println("no pools stored, run fetch first")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PAIR\tPROTOCOL\tCHAIN\tFEE\tTVL\tVOL 24H\tFEES 24H\tAPR\tADDRESS")
	for _, p := range pools {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f\t%.0f\t%.2f\t%.2f%%\t%s\n",
			p.Pair(), p.Protocol, p.Chain, feetier.Format(p.FeeRate),
			p.TVLUSD, p.Volume24h, p.Fees24h, p.TotalAPR, p.Address)
	}

	return w.Flush()
}
