package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dejo1307/codecolony/internal/analysis"
	"github.com/dejo1307/codecolony/internal/analysis/clones"
	"github.com/dejo1307/codecolony/internal/analysis/depgraph"
	"github.com/dejo1307/codecolony/internal/analysis/heuristics"
	"github.com/dejo1307/codecolony/internal/colony"
	"github.com/dejo1307/codecolony/internal/config"
	"github.com/dejo1307/codecolony/internal/extractors"
	"github.com/dejo1307/codecolony/internal/extractors/goextractor"
	"github.com/dejo1307/codecolony/internal/extractors/tsextractor"
)

// Colony-level failures (invalid config, broken repo) exit with this code.
// Critical findings exit with 1, a clean run with 0.
const exitColonyFailure = 2

// exitError carries a specific process exit code out of a RunE so deferred
// cleanup (logger sync, signal stop) still runs before the process exits.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var (
	configPath string
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "codecolony",
	Short: "A code intelligence colony",
	Long: `codecolony runs a colony of independent static analyzers over a source
tree. Each analyzer lives in a cell with health, energy and quarantine
semantics, so one misbehaving analyzer degrades the snapshot instead of
killing the run. Findings are aggregated into a unified snapshot with a
dependency graph, clone report and Pareto-optimal weight trade-offs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to codecolony.yaml (default: ./codecolony.yaml if present)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitColonyFailure)
	}
}

// buildLogger writes structured logs to stderr so stdout stays clean for
// command output and the MCP stdio transport.
func buildLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debugMode {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// loadConfig reads the configured yaml file, falling back to ./codecolony.yaml
// and then to built-in defaults.
func loadConfig(repoArg string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configPath != "":
		c, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	default:
		if _, err := os.Stat("codecolony.yaml"); err == nil {
			c, err := config.Load("codecolony.yaml")
			if err != nil {
				return nil, err
			}
			cfg = c
		} else {
			cfg = config.Default()
		}
	}
	if repoArg != "" {
		cfg.Repo = repoArg
	}
	abs, err := filepath.Abs(cfg.Repo)
	if err != nil {
		return nil, fmt.Errorf("invalid repo path %q: %w", cfg.Repo, err)
	}
	cfg.Repo = abs
	return cfg, nil
}

// buildColony assembles the extractor registry and all analyzer cells.
func buildColony(cfg *config.Config, logger *zap.Logger) (*colony.Colony, error) {
	reg := extractors.NewRegistry()
	reg.Register(goextractor.New(logger))
	reg.Register(tsextractor.New(logger))

	analyzers := []analysis.Analyzer{
		depgraph.New(cfg.Graph, logger),
		clones.NewAnalyzer(cfg.Clones, logger),
		heuristics.NewSecurity(),
		heuristics.NewPerformance(),
		heuristics.NewCoverage(),
		heuristics.NewComplexity(),
	}
	return colony.New(cfg, logger, reg, analyzers)
}
