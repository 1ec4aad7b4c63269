package heuristics

import (
	"context"
	"fmt"
	"time"

	"github.com/dejo1307/codecolony/internal/analysis"
	"github.com/dejo1307/codecolony/internal/facts"
)

// Performance flags functions whose size or branch density suggests hot-path
// risk: long bodies and deeply branched control flow.
type Performance struct {
	MaxFunctionLOC int
	MaxComplexity  int
}

// NewPerformance creates the performance analyzer with default thresholds.
func NewPerformance() *Performance {
	return &Performance{MaxFunctionLOC: 120, MaxComplexity: 15}
}

func (p *Performance) Name() string { return "performance" }

func (p *Performance) Analyze(ctx context.Context, project *analysis.Project) (*analysis.Result, error) {
	start := time.Now()
	result := &analysis.Result{AnalyzerName: p.Name(), Metrics: map[string]float64{}}

	funcs := project.Facts.DeclarationsByKind(facts.KindFunction)
	flagged := 0

	for _, d := range funcs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if d.LOC() > p.MaxFunctionLOC {
			flagged++
			result.Issues = append(result.Issues, analysis.Issue{
				Severity: analysis.SeverityMedium,
				Message:  fmt.Sprintf("function %s is %d lines long", d.QualifiedName, d.LOC()),
				Location: fmt.Sprintf("%s:%d", d.Path, d.StartLine),
			})
		}
		if d.Complexity > p.MaxComplexity {
			flagged++
			result.Issues = append(result.Issues, analysis.Issue{
				Severity: analysis.SeverityMedium,
				Message:  fmt.Sprintf("function %s has branch complexity %d", d.QualifiedName, d.Complexity),
				Location: fmt.Sprintf("%s:%d", d.Path, d.StartLine),
			})
		}
	}

	score := 100.0
	if len(funcs) > 0 {
		score = 100.0 * (1.0 - float64(flagged)/float64(len(funcs)*2))
	}
	if score < 0 {
		score = 0
	}
	if flagged > 0 {
		result.Suggestions = append(result.Suggestions,
			"Split long functions; hoist invariant work out of loops")
	}

	result.Metrics["score"] = score
	result.Metrics["function_count"] = float64(len(funcs))
	result.Metrics["flagged_count"] = float64(flagged)
	result.Metrics["parse_error_count"] = float64(project.ParseErrorCount())
	result.Duration = time.Since(start)
	return result, nil
}
