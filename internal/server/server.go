// Package server exposes the colony over MCP: tools to run cycles and query
// findings, resources for the latest snapshot artifacts.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/dejo1307/codecolony/internal/analysis"
	"github.com/dejo1307/codecolony/internal/colony"
	"github.com/dejo1307/codecolony/internal/config"
	"github.com/dejo1307/codecolony/internal/facts"
	"github.com/dejo1307/codecolony/internal/pareto"
	"github.com/dejo1307/codecolony/internal/report"
)

// Server wraps the MCP server and connects it to the colony.
type Server struct {
	mcp    *mcp.Server
	col    *colony.Colony
	cfg    *config.Config
	logger *zap.Logger
	writer *report.Writer
	last   *colony.Snapshot
}

// New creates a new MCP server wired to the given colony.
func New(col *colony.Colony, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		col:    col,
		cfg:    cfg,
		logger: logger.Named("server"),
		writer: report.NewWriter(filepath.Join(cfg.Repo, cfg.Output.Dir), logger),
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "codecolony",
		Version: "0.1.0",
	}, nil)

	s.mcp = mcpServer
	s.registerResources()
	s.registerTools()

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// runCycle executes one colony cycle, attaches the Pareto frontier and
// persists artifacts.
func (s *Server) runCycle(ctx context.Context) (*colony.Snapshot, error) {
	snap, err := s.col.Run(ctx)
	if err != nil {
		return nil, err
	}
	if frontier, err := OptimizeSnapshot(snap, s.cfg.Pareto, s.logger); err != nil {
		s.logger.Warn("optimizer skipped", zap.Error(err))
	} else {
		snap.ParetoFrontier = frontier
	}
	s.last = snap
	if err := s.writer.Write(snap, s.col.LastFacts()); err != nil {
		s.logger.Warn("failed to write artifacts", zap.Error(err))
	}
	return snap, nil
}

// OptimizeSnapshot searches the analyzer weight space for the given snapshot
// and returns the non-dominated frontier. Quarantined cells without any
// carried result contribute no objective.
func OptimizeSnapshot(snap *colony.Snapshot, cfg config.ParetoConfig, logger *zap.Logger) ([]pareto.Solution, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var names []string
	scores := map[string]float64{}
	for _, ar := range snap.AnalyzerResults {
		if ar.Result == nil {
			continue
		}
		if score, ok := ar.Result.Score(); ok {
			names = append(names, ar.AnalyzerName)
			scores[ar.AnalyzerName] = score
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no analyzer scores to optimize")
	}
	opt, err := pareto.New(names, pareto.HealthObjectives(names, scores), pareto.Options{
		Population:  cfg.Population,
		Generations: cfg.Generations,
		WeightMin:   cfg.WeightMin,
		WeightMax:   cfg.WeightMax,
		Seed:        int64(snap.Cycle),
	}, logger)
	if err != nil {
		return nil, err
	}
	frontier := opt.Optimize()
	if pareto.Degenerate(frontier, names) {
		logger.Info("pareto frontier degenerate, objectives do not conflict",
			zap.Int("cycle", snap.Cycle),
			zap.Int("solutions", len(frontier)))
	}
	return frontier, nil
}

// registerResources adds MCP resources for colony snapshot artifacts.
func (s *Server) registerResources() {
	s.addJSONResource("colony://snapshot/latest", "Latest Snapshot",
		"Full colony snapshot of the most recent cycle", func() (any, error) {
			if s.last == nil {
				return nil, fmt.Errorf("no snapshot available, run run_colony first")
			}
			return s.last, nil
		})

	s.addJSONResource("colony://snapshot/frontier", "Pareto Frontier",
		"Non-dominated analyzer weight configurations from the latest cycle", func() (any, error) {
			if s.last == nil || len(s.last.ParetoFrontier) == 0 {
				return nil, fmt.Errorf("no frontier available, run run_colony first")
			}
			return s.last.ParetoFrontier, nil
		})

	s.mcp.AddResource(&mcp.Resource{
		URI:         "colony://snapshot/report",
		Name:        "Colony Report",
		Description: "Human-readable markdown report for the most recent cycle",
		MIMEType:    "text/markdown",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if s.last == nil {
			return nil, fmt.Errorf("no snapshot available, run run_colony first")
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: req.Params.URI, Text: report.RenderMarkdown(s.last), MIMEType: "text/markdown"},
			},
		}, nil
	})

	s.mcp.AddResource(&mcp.Resource{
		URI:         "colony://snapshot/facts",
		Name:        "Code Facts",
		Description: "Extracted declarations and edges in JSONL format",
		MIMEType:    "application/jsonl",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		store := s.col.LastFacts()
		if store == nil {
			return nil, fmt.Errorf("no facts available, run run_colony first")
		}
		var sb strings.Builder
		if err := store.WriteJSONL(&sb); err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: req.Params.URI, Text: sb.String(), MIMEType: "application/jsonl"},
			},
		}, nil
	})
}

func (s *Server) addJSONResource(uri, name, desc string, load func() (any, error)) {
	s.mcp.AddResource(&mcp.Resource{
		URI:         uri,
		Name:        name,
		Description: desc,
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		v, err := load()
		if err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: req.Params.URI, Text: string(data), MIMEType: "application/json"},
			},
		}, nil
	})
}

// runColonyArgs are the arguments for the run_colony tool.
type runColonyArgs struct{}

// queryIssuesArgs are the arguments for the query_issues tool.
type queryIssuesArgs struct {
	Analyzer string `json:"analyzer,omitempty" jsonschema:"Filter by analyzer name: depgraph, clones, security, performance, coverage, or complexity"`
	Severity string `json:"severity,omitempty" jsonschema:"Minimum severity: low, medium, high, or critical"`
	Match    string `json:"match,omitempty" jsonschema:"Filter by message substring"`
}

// optimizeWeightsArgs are the arguments for the optimize_weights tool.
type optimizeWeightsArgs struct {
	Population  int `json:"population,omitempty" jsonschema:"Population size for the evolutionary search (default from config)"`
	Generations int `json:"generations,omitempty" jsonschema:"Number of generations (default from config)"`
}

// showDeclarationArgs are the arguments for the show_declaration tool.
type showDeclarationArgs struct {
	Name         string `json:"name" jsonschema:"required,Declaration name to look up (substring match on qualified name)"`
	ContextLines int    `json:"context_lines,omitempty" jsonschema:"Number of source lines to show around the declaration (default 30)"`
}

// registerTools adds MCP tools for cycle execution and finding queries.
func (s *Server) registerTools() {
	// Tool: run_colony
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "run_colony",
		Description: "Run one full colony cycle over the configured repository. Extracts facts, runs all analyzer cells, computes the Pareto frontier, and writes artifacts.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args runColonyArgs) (*mcp.CallToolResult, any, error) {
		snap, err := s.runCycle(ctx)
		if err != nil {
			return errorResult(fmt.Sprintf("colony cycle failed: %v", err)), nil, nil
		}

		summary := fmt.Sprintf(
			"Colony cycle %d complete.\n\n"+
				"- Health score: %.1f\n"+
				"- Critical issues: %d\n"+
				"- Quarantined cells: %d\n"+
				"- Dependency cycles: %d\n"+
				"- Frontier size: %d\n"+
				"- Duration: %s\n\n"+
				"Use the colony://snapshot/report resource for the full report.",
			snap.Cycle, snap.HealthScore, snap.CriticalCount(), snap.QuarantinedCount(),
			len(snap.Cycles), len(snap.ParetoFrontier), snap.Meta.Duration,
		)
		return textResult(summary), nil, nil
	})

	// Tool: query_issues
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_issues",
		Description: "Query issues from the latest colony cycle by analyzer, minimum severity, or message substring. Returns matching issues as JSON.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args queryIssuesArgs) (*mcp.CallToolResult, any, error) {
		if s.last == nil {
			return errorResult("No snapshot available. Run run_colony first."), nil, nil
		}
		minRank := 0
		if args.Severity != "" {
			minRank = analysis.Severity(args.Severity).Rank()
		}

		type hit struct {
			Analyzer string         `json:"analyzer"`
			Issue    analysis.Issue `json:"issue"`
		}
		var hits []hit
		for _, ar := range s.last.AnalyzerResults {
			if ar.Result == nil {
				continue
			}
			if args.Analyzer != "" && ar.AnalyzerName != args.Analyzer {
				continue
			}
			for _, iss := range ar.Result.Issues {
				if iss.Severity.Rank() < minRank {
					continue
				}
				if args.Match != "" && !strings.Contains(strings.ToLower(iss.Message), strings.ToLower(args.Match)) {
					continue
				}
				hits = append(hits, hit{Analyzer: ar.AnalyzerName, Issue: iss})
			}
		}

		truncated := false
		total := len(hits)
		if len(hits) > 100 {
			hits = hits[:100]
			truncated = true
		}
		data, err := json.MarshalIndent(hits, "", "  ")
		if err != nil {
			return errorResult(fmt.Sprintf("failed to marshal results: %v", err)), nil, nil
		}
		text := string(data)
		if truncated {
			text += fmt.Sprintf("\n\n... (showing 100 of %d issues, refine your query)", total)
		}
		return textResult(text), nil, nil
	})

	// Tool: optimize_weights
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "optimize_weights",
		Description: "Re-run the multi-objective weight optimization over the latest snapshot's analyzer scores. Returns the Pareto frontier and the balanced pick.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args optimizeWeightsArgs) (*mcp.CallToolResult, any, error) {
		if s.last == nil {
			return errorResult("No snapshot available. Run run_colony first."), nil, nil
		}
		cfg := s.cfg.Pareto
		if args.Population > 0 {
			cfg.Population = args.Population
		}
		if args.Generations > 0 {
			cfg.Generations = args.Generations
		}
		frontier, err := OptimizeSnapshot(s.last, cfg, s.logger)
		if err != nil {
			return errorResult(fmt.Sprintf("optimization failed: %v", err)), nil, nil
		}
		s.last.ParetoFrontier = frontier

		var names []string
		for name := range frontier[0].Objectives {
			names = append(names, name)
		}
		out := struct {
			Frontier []pareto.Solution `json:"frontier"`
			Balanced pareto.Solution   `json:"balanced"`
		}{Frontier: frontier}
		if balanced, ok := pareto.SelectBalanced(frontier, names); ok {
			out.Balanced = balanced
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return errorResult(fmt.Sprintf("failed to marshal frontier: %v", err)), nil, nil
		}
		return textResult(string(data)), nil, nil
	})

	// Tool: show_declaration
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "show_declaration",
		Description: "Show source code for a declaration found in the latest colony cycle. Returns the implementation with surrounding context lines.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args showDeclarationArgs) (*mcp.CallToolResult, any, error) {
		if args.Name == "" {
			return errorResult("name is required"), nil, nil
		}
		store := s.col.LastFacts()
		if store == nil {
			return errorResult("No facts available. Run run_colony first."), nil, nil
		}

		var matches []facts.LocatedDeclaration
		for _, kind := range []string{facts.KindFunction, facts.KindClass, facts.KindModule} {
			for _, ld := range store.DeclarationsByKind(kind) {
				if strings.Contains(ld.QualifiedName, args.Name) {
					matches = append(matches, ld)
				}
			}
		}
		if len(matches) == 0 {
			return errorResult(fmt.Sprintf("No declarations matching %q", args.Name)), nil, nil
		}
		if len(matches) > 5 {
			matches = matches[:5]
		}
		contextLines := args.ContextLines
		if contextLines <= 0 {
			contextLines = 30
		}

		var sb strings.Builder
		for i, d := range matches {
			if i > 0 {
				sb.WriteString("\n---\n\n")
			}
			sb.WriteString(fmt.Sprintf("### %s\n", d.QualifiedName))
			sb.WriteString(fmt.Sprintf("File: %s  Lines: %d-%d  Kind: %s\n\n", d.Path, d.StartLine, d.EndLine, d.Kind))

			absFile := filepath.Join(s.cfg.Repo, d.Path)
			source, err := readSourceWindow(absFile, d.StartLine, contextLines)
			if err != nil {
				sb.WriteString(fmt.Sprintf("_Could not read source: %v_\n", err))
				continue
			}
			sb.WriteString(fmt.Sprintf("```%s\n%s\n```\n", d.Language, source))
		}
		return textResult(sb.String()), nil, nil
	})
}

// readSourceWindow reads lines from a file centered around the given line number.
func readSourceWindow(absFile string, centerLine, contextLines int) (string, error) {
	data, err := os.ReadFile(absFile)
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(data), "\n")
	startLine := centerLine - contextLines/2
	if startLine < 1 {
		startLine = 1
	}
	endLine := centerLine + contextLines/2
	if endLine > len(lines) {
		endLine = len(lines)
	}
	var sb strings.Builder
	for i := startLine; i <= endLine; i++ {
		sb.WriteString(fmt.Sprintf("%4d  %s\n", i, lines[i-1]))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
