package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dejo1307/codecolony/internal/analysis"
	"github.com/dejo1307/codecolony/internal/colony"
	"github.com/dejo1307/codecolony/internal/pareto"
)

const maxIssuesPerSection = 25

// RenderMarkdown produces the human-readable report.md for one snapshot.
func RenderMarkdown(snap *colony.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("# Code Colony Report\n\n")
	sb.WriteString(renderSummary(snap))
	sb.WriteString(renderCells(snap))
	sb.WriteString(renderIssues(snap))
	sb.WriteString(renderCycles(snap))
	sb.WriteString(renderFrontier(snap))
	sb.WriteString(renderMeta(snap))
	return sb.String()
}

func renderSummary(snap *colony.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- Health score: **%.1f / 100**\n", snap.HealthScore))
	sb.WriteString(fmt.Sprintf("- Critical issues: %d\n", snap.CriticalCount()))
	sb.WriteString(fmt.Sprintf("- Quarantined cells: %d\n", snap.QuarantinedCount()))
	sb.WriteString(fmt.Sprintf("- Dependency cycles: %d\n\n", len(snap.Cycles)))
	return sb.String()
}

func renderCells(snap *colony.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("## Analyzer Cells\n\n")
	sb.WriteString("| Analyzer | Score | State | Health | Energy | Stale |\n")
	sb.WriteString("|----------|-------|-------|--------|--------|-------|\n")
	byName := make(map[string]colony.Status, len(snap.CellStates))
	for _, cs := range snap.CellStates {
		byName[cs.AnalyzerName] = cs
	}
	for _, ar := range snap.AnalyzerResults {
		cs := byName[ar.AnalyzerName]
		score := "-"
		if ar.Result != nil {
			if v, ok := ar.Result.Score(); ok {
				score = fmt.Sprintf("%.1f", v)
			}
		}
		stale := ""
		if ar.Stale {
			stale = "yes"
		}
		sb.WriteString(fmt.Sprintf("| `%s` | %s | %s | %.0f | %.0f | %s |\n",
			ar.AnalyzerName, score, cs.State, cs.Health, cs.Energy, stale))
	}
	sb.WriteString("\n")
	return sb.String()
}

func renderIssues(snap *colony.Snapshot) string {
	type located struct {
		analyzer string
		issue    analysis.Issue
	}
	var all []located
	for _, ar := range snap.AnalyzerResults {
		if ar.Result == nil {
			continue
		}
		for _, iss := range ar.Result.Issues {
			all = append(all, located{analyzer: ar.AnalyzerName, issue: iss})
		}
	}
	var sb strings.Builder
	sb.WriteString("## Issues\n\n")
	if len(all) == 0 {
		sb.WriteString("_No issues found._\n\n")
		return sb.String()
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].issue.Severity.Rank() > all[j].issue.Severity.Rank()
	})
	shown := all
	if len(shown) > maxIssuesPerSection {
		shown = shown[:maxIssuesPerSection]
	}
	for _, l := range shown {
		loc := l.issue.Location
		if loc != "" {
			loc = " (`" + loc + "`)"
		}
		sb.WriteString(fmt.Sprintf("- **%s** [%s] %s%s\n", l.issue.Severity, l.analyzer, l.issue.Message, loc))
	}
	if len(all) > len(shown) {
		sb.WriteString(fmt.Sprintf("\n_%d more issues omitted._\n", len(all)-len(shown)))
	}
	sb.WriteString("\n")
	return sb.String()
}

func renderCycles(snap *colony.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("## Dependency Cycles\n\n")
	if len(snap.Cycles) == 0 {
		sb.WriteString("_No cycles detected._\n\n")
		return sb.String()
	}
	for _, c := range snap.Cycles {
		sb.WriteString(fmt.Sprintf("- `%s`\n", c.Key()))
	}
	sb.WriteString("\n")
	return sb.String()
}

func renderFrontier(snap *colony.Snapshot) string {
	if len(snap.ParetoFrontier) == 0 {
		return ""
	}
	var names []string
	for name := range snap.ParetoFrontier[0].Objectives {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("## Pareto Frontier\n\n")
	sb.WriteString(fmt.Sprintf("%d non-dominated weight configurations.\n\n", len(snap.ParetoFrontier)))
	if pareto.Degenerate(snap.ParetoFrontier, names) {
		sb.WriteString("Frontier is degenerate: the objectives do not conflict at current scores.\n\n")
	}
	sb.WriteString("| # | " + strings.Join(names, " | ") + " |\n")
	sb.WriteString("|---|" + strings.Repeat("---|", len(names)) + "\n")
	for i, sol := range snap.ParetoFrontier {
		row := make([]string, len(names))
		for j, name := range names {
			row[j] = fmt.Sprintf("w=%.2f f=%.2f", sol.Weights[name], sol.Objectives[name])
		}
		sb.WriteString(fmt.Sprintf("| %d | %s |\n", i+1, strings.Join(row, " | ")))
	}
	if balanced, ok := pareto.SelectBalanced(snap.ParetoFrontier, names); ok {
		var parts []string
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%.2f", name, balanced.Weights[name]))
		}
		sb.WriteString("\nBalanced pick: " + strings.Join(parts, ", ") + "\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

func renderMeta(snap *colony.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("## Meta\n\n")
	sb.WriteString(fmt.Sprintf("- Cycle: %d\n", snap.Cycle))
	sb.WriteString(fmt.Sprintf("- Repo: `%s`\n", snap.Meta.RepoPath))
	sb.WriteString(fmt.Sprintf("- Files: %d\n", snap.Meta.FileCount))
	sb.WriteString(fmt.Sprintf("- Corpus hash: `%s`\n", snap.Meta.CorpusHash))
	sb.WriteString(fmt.Sprintf("- Generated: %s in %s\n", snap.Meta.GeneratedAt.Format("2006-01-02 15:04:05 MST"), snap.Meta.Duration))
	return sb.String()
}
