package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/game-leaderboard/internal/domain"
	"github.com/game-leaderboard/internal/metrics"
	"github.com/game-leaderboard/internal/notify"
	"github.com/game-leaderboard/internal/store/backend"
	"github.com/game-leaderboard/internal/worker"
	"github.com/spf13/cobra"
)

var computeStatsCmd = &cobra.Command{
	Use:   "compute-stats",
	Short: "Run the global stats job once and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runComputeStats(cmd.Context(), os.Stdout)
	},
}

func runComputeStats(parent context.Context, out io.Writer) error {
	cfg, logger := loadConfig()

	ctx, cancel := context.WithTimeout(parent, cfg.Stats.Timeout)
	defer cancel()

	st, err := backend.Open(ctx, &cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if err := backend.Migrate(ctx, st, logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	m := metrics.NewService()
	notifier := notify.NewMulti(m, logger)
	closers, err := buildPublishers(ctx, cfg, notifier, logger)
	defer closeAll(closers, logger)
	if err != nil {
		return err
	}

	result, err := worker.NewStatsJob(st, notifier, m, cfg.Stats.PageSize, logger).Run(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(domain.NewBatchStatsResponse(result))
}
