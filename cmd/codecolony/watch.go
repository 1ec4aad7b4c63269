package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dejo1307/codecolony/internal/report"
	"github.com/dejo1307/codecolony/internal/server"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [repo]",
	Short: "Run colony cycles continuously",
	Long: `Run the colony on an interval, printing a summary and refreshing the
snapshot artifacts after every cycle. Stop with Ctrl-C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoArg := ""
		if len(args) > 0 {
			repoArg = args[0]
		}
		cfg, err := loadConfig(repoArg)
		if err != nil {
			return err
		}
		logger, err := buildLogger()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		col, err := buildColony(cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bridge := report.NewBridge(8)
		defer bridge.Close()
		writer := report.NewWriter(filepath.Join(cfg.Repo, cfg.Output.Dir), logger)

		go func() {
			for snap := range col.RunContinuous(ctx, watchInterval) {
				if frontier, err := server.OptimizeSnapshot(snap, cfg.Pareto, logger); err == nil {
					snap.ParetoFrontier = frontier
				}
				bridge.Push(snap)
			}
			bridge.Close()
		}()

		for snap := range bridge.Snapshots() {
			printSummary(snap)
			if err := writer.Write(snap, col.LastFacts()); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to write artifacts: %v\n", err)
			}
		}
		col.Shutdown()
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "cycle interval (default from config)")
}
