package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dejo1307/codecolony/internal/colony"
	"github.com/dejo1307/codecolony/internal/pareto"
	"github.com/dejo1307/codecolony/internal/report"
	"github.com/dejo1307/codecolony/internal/server"
)

var runCmd = &cobra.Command{
	Use:   "run [repo]",
	Short: "Run one colony cycle and print a summary",
	Long: `Run a single colony cycle over the repository, write snapshot artifacts
to the output directory, and print a colored summary.

Exit codes: 0 when no critical issues were found, 1 when critical issues
exist, 2 on colony-level failure.`,
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

		snap, err := col.Run(ctx)
		if err != nil {
			return fmt.Errorf("colony cycle failed: %w", err)
		}
		if frontier, err := server.OptimizeSnapshot(snap, cfg.Pareto, logger); err == nil {
			snap.ParetoFrontier = frontier
		}

		writer := report.NewWriter(filepath.Join(cfg.Repo, cfg.Output.Dir), logger)
		if err := writer.Write(snap, col.LastFacts()); err != nil {
			return err
		}

		printSummary(snap)
		if snap.CriticalCount() > 0 {
			return exitError{code: 1}
		}
		return nil
	},
}

func printSummary(snap *colony.Snapshot) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("=== Colony Cycle Summary ==="))

	scoreColor := green
	if snap.HealthScore < 75 {
		scoreColor = yellow
	}
	if snap.HealthScore < 50 {
		scoreColor = red
	}
	fmt.Printf("Health score: %s\n", scoreColor(fmt.Sprintf("%.1f / 100", snap.HealthScore)))
	fmt.Printf("Files:        %d\n", snap.Meta.FileCount)
	fmt.Printf("Duration:     %s\n\n", snap.Meta.Duration)

	fmt.Printf("%s\n", yellow("Cells:"))
	byName := make(map[string]colony.Status, len(snap.CellStates))
	for _, cs := range snap.CellStates {
		byName[cs.AnalyzerName] = cs
	}
	for _, ar := range snap.AnalyzerResults {
		cs := byName[ar.AnalyzerName]
		stateColor := green
		icon := "●"
		switch cs.State {
		case colony.StateDegraded:
			stateColor = yellow
			icon = "◐"
		case colony.StateQuarantined:
			stateColor = red
			icon = "⊘"
		}
		score := "-"
		if ar.Result != nil {
			if v, ok := ar.Result.Score(); ok {
				score = fmt.Sprintf("%5.1f", v)
			}
		}
		note := ""
		if ar.Stale {
			note = gray(" (stale)")
		}
		fmt.Printf("  %s %-12s score %s  %s%s\n",
			stateColor(icon), ar.AnalyzerName, score, stateColor(string(cs.State)), note)
	}
	fmt.Println()

	critical := snap.CriticalCount()
	if critical > 0 {
		fmt.Printf("%s\n", red(fmt.Sprintf("Critical issues: %d", critical)))
	} else {
		fmt.Printf("%s\n", green("No critical issues"))
	}
	if len(snap.Cycles) > 0 {
		fmt.Printf("%s\n", yellow(fmt.Sprintf("Dependency cycles: %d", len(snap.Cycles))))
	}
	if len(snap.ParetoFrontier) > 0 {
		fmt.Printf("Pareto frontier: %d configurations\n", len(snap.ParetoFrontier))
		var names []string
		for name := range snap.ParetoFrontier[0].Objectives {
			names = append(names, name)
		}
		if balanced, ok := pareto.SelectBalanced(snap.ParetoFrontier, names); ok {
			fmt.Printf("Balanced weights: ")
			first := true
			for _, ar := range snap.AnalyzerResults {
				w, ok := balanced.Weights[ar.AnalyzerName]
				if !ok {
					continue
				}
				if !first {
					fmt.Printf(", ")
				}
				fmt.Printf("%s=%.2f", ar.AnalyzerName, w)
				first = false
			}
			fmt.Println()
		}
	}
	fmt.Println()
}
