package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dejo1307/codecolony/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve [repo]",
	Short: "Serve the colony over MCP on stdio",
	Long: `Start an MCP server exposing colony tools (run_colony, query_issues,
optimize_weights, show_declaration) and snapshot resources over the stdio
transport. Logs go to stderr so stdout stays a clean protocol stream.`,
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
		srv, err := server.New(col, cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
