package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Game leaderboard backend",
	Long: `Accepts score submissions, serves per-game rankings and player statistics,
and periodically computes global per-game statistics.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	rootCmd.AddCommand(serveCmd, computeStatsCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "leaderboard: %v\n", err)
		os.Exit(1)
	}
}
