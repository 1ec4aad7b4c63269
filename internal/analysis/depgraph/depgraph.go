package depgraph

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dejo1307/codecolony/internal/analysis"
	"github.com/dejo1307/codecolony/internal/config"
	"github.com/dejo1307/codecolony/internal/facts"
)

// Smell is a threshold-based architecture finding.
type Smell struct {
	Rule          string `json:"rule"` // "god_class" or "fragile_core"
	QualifiedName string `json:"qualified_name"`
	Detail        string `json:"detail"`
}

// Report is the full output of one dependency-graph analysis.
type Report struct {
	Graph    *Graph
	Cycles   []Cycle
	Coupling []Coupling
	Smells   []Smell
}

// Analyzer builds the dependency graph and derives cycles, coupling
// metrics, and architecture smells. Implements analysis.Analyzer.
type Analyzer struct {
	cfg    config.GraphConfig
	logger *zap.Logger

	// last report retained for export; guarded by the colony's
	// one-cycle-at-a-time scheduling, not by a lock.
	last *Report
}

// New creates a dependency-graph analyzer.
func New(cfg config.GraphConfig, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{cfg: cfg, logger: logger.Named("depgraph")}
}

func (a *Analyzer) Name() string {
	return "depgraph"
}

// Last returns the most recent report, or nil before the first run.
func (a *Analyzer) Last() *Report {
	return a.last
}

// LastCycles returns the dependency cycles from the most recent report.
func (a *Analyzer) LastCycles() []Cycle {
	if a.last == nil {
		return nil
	}
	return a.last.Cycles
}

// Analyze builds the graph at the configured granularity and scores the
// project's architecture.
func (a *Analyzer) Analyze(ctx context.Context, project *analysis.Project) (*analysis.Result, error) {
	start := time.Now()

	report, err := a.Run(ctx, project.Facts)
	if err != nil {
		return nil, err
	}
	a.last = report

	result := &analysis.Result{
		AnalyzerName: a.Name(),
		Metrics:      map[string]float64{},
	}

	godClasses := 0
	fragile := 0
	for _, s := range report.Smells {
		severity := analysis.SeverityMedium
		switch s.Rule {
		case "god_class":
			godClasses++
		case "fragile_core":
			fragile++
			severity = analysis.SeverityHigh
		}
		result.Issues = append(result.Issues, analysis.Issue{
			Severity: severity,
			Message:  s.Detail,
			Location: s.QualifiedName,
		})
	}

	maxInstability := 0.0
	sumInstability := 0.0
	for _, c := range report.Coupling {
		if c.Instability > maxInstability {
			maxInstability = c.Instability
		}
		sumInstability += c.Instability
	}
	avgInstability := 0.0
	if len(report.Coupling) > 0 {
		avgInstability = sumInstability / float64(len(report.Coupling))
	}

	for _, c := range report.Cycles {
		severity := analysis.SeverityMedium
		if c.Len() > 2 {
			severity = analysis.SeverityHigh
		}
		result.Issues = append(result.Issues, analysis.Issue{
			Severity: severity,
			Message:  fmt.Sprintf("dependency cycle: %s", c.Key()),
			Location: c.Path[0],
		})
	}

	if len(report.Cycles) > 0 {
		result.Suggestions = append(result.Suggestions,
			"Introduce an interface to break the cycle",
			"Extract shared types to a separate package")
	}
	if godClasses > 0 {
		result.Suggestions = append(result.Suggestions,
			"Split god classes along their distinct responsibilities")
	}

	score := 100.0
	score -= float64(len(report.Cycles)) * 10
	score -= float64(godClasses) * 5
	score -= float64(fragile) * 8
	if score < 0 {
		score = 0
	}

	result.Metrics["score"] = score
	result.Metrics["node_count"] = float64(len(report.Graph.Nodes))
	result.Metrics["edge_count"] = float64(len(report.Graph.Edges))
	result.Metrics["cycle_count"] = float64(len(report.Cycles))
	result.Metrics["god_class_count"] = float64(godClasses)
	result.Metrics["fragile_core_count"] = float64(fragile)
	result.Metrics["max_instability"] = maxInstability
	result.Metrics["avg_instability"] = avgInstability
	result.Metrics["parse_error_count"] = float64(project.ParseErrorCount())
	result.Duration = time.Since(start)

	a.logger.Debug("analysis complete",
		zap.Int("nodes", len(report.Graph.Nodes)),
		zap.Int("cycles", len(report.Cycles)),
		zap.Float64("score", score))

	return result, nil
}

// Run performs the graph construction and rule evaluation without the
// analyzer wrapping; it is the analyze(facts, granularity) contract. The
// context is checked between phases and inside graph construction so a
// cell timeout can interrupt a large corpus.
func (a *Analyzer) Run(ctx context.Context, store *facts.Store) (*Report, error) {
	graph, err := Build(ctx, store, Granularity(a.cfg.Granularity))
	if err != nil {
		return nil, err
	}

	report := &Report{Graph: graph}
	report.Cycles = graph.FindCycles()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report.Coupling = graph.CouplingMetrics()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.Smells = append(report.Smells, a.godClassSmells(store)...)
	fragile, err := a.fragileCoreSmells(ctx, store, graph, report.Coupling)
	if err != nil {
		return nil, err
	}
	report.Smells = append(report.Smells, fragile...)

	return report, nil
}

// godClassSmells flags classes exceeding the method-count or size
// thresholds, independent of graph granularity.
func (a *Analyzer) godClassSmells(store *facts.Store) []Smell {
	var smells []Smell
	for _, d := range store.DeclarationsByKind(facts.KindClass) {
		methods := store.MethodCount(d.QualifiedName)
		loc := d.LOC()
		if methods > a.cfg.GodClassMethods || loc > a.cfg.GodClassLOC {
			smells = append(smells, Smell{
				Rule:          "god_class",
				QualifiedName: d.QualifiedName,
				Detail: fmt.Sprintf("god class %s: %d methods, %d lines (thresholds %d methods / %d lines)",
					d.QualifiedName, methods, loc, a.cfg.GodClassMethods, a.cfg.GodClassLOC),
			})
		}
	}
	return smells
}

// fragileCoreSmells flags modules that are highly unstable while widely
// depended upon. Evaluated on a module-granularity graph regardless of the
// configured granularity.
func (a *Analyzer) fragileCoreSmells(ctx context.Context, store *facts.Store, graph *Graph, coupling []Coupling) ([]Smell, error) {
	modGraph := graph
	modCoupling := coupling
	if Granularity(a.cfg.Granularity) != GranularityModule {
		var err error
		modGraph, err = Build(ctx, store, GranularityModule)
		if err != nil {
			return nil, err
		}
		modCoupling = modGraph.CouplingMetrics()
	}

	var smells []Smell
	for i, c := range modCoupling {
		if modGraph.Nodes[i].Kind != facts.KindModule {
			continue
		}
		if c.Instability > a.cfg.FragileInstability && c.Afferent > a.cfg.FragileDependents {
			smells = append(smells, Smell{
				Rule:          "fragile_core",
				QualifiedName: c.QualifiedName,
				Detail: fmt.Sprintf("fragile core %s: instability %.2f with %d dependents",
					c.QualifiedName, c.Instability, c.Afferent),
			})
		}
	}
	return smells, nil
}
