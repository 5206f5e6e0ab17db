package main

import (
	"fmt"

	"github.com/game-leaderboard/internal/store/backend"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations for SQL store backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadConfig()
		ctx := cmd.Context()

		st, err := backend.Open(ctx, &cfg.Store, logger)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()

		if err := backend.Migrate(ctx, st, logger); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("migrations complete", "backend", cfg.Store.Backend)
		return nil
	},
}
