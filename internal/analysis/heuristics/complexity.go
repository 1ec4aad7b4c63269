package heuristics

import (
	"context"
	"fmt"
	"time"

	"github.com/dejo1307/codecolony/internal/analysis"
	"github.com/dejo1307/codecolony/internal/facts"
)

// Complexity aggregates the extractors' per-function branch estimates into
// a project-level complexity score.
type Complexity struct {
	WarnThreshold int
}

// NewComplexity creates the complexity analyzer.
func NewComplexity() *Complexity {
	return &Complexity{WarnThreshold: 10}
}

func (c *Complexity) Name() string { return "complexity" }

func (c *Complexity) Analyze(ctx context.Context, project *analysis.Project) (*analysis.Result, error) {
	start := time.Now()
	result := &analysis.Result{AnalyzerName: c.Name(), Metrics: map[string]float64{}}

	funcs := project.Facts.DeclarationsByKind(facts.KindFunction)
	total := 0
	maxC := 0
	for _, d := range funcs {
		total += d.Complexity
		if d.Complexity > maxC {
			maxC = d.Complexity
		}
		if d.Complexity > c.WarnThreshold {
			result.Issues = append(result.Issues, analysis.Issue{
				Severity: analysis.SeverityLow,
				Message:  fmt.Sprintf("cyclomatic complexity %d in %s", d.Complexity, d.QualifiedName),
				Location: fmt.Sprintf("%s:%d", d.Path, d.StartLine),
			})
		}
	}

	avg := 0.0
	if len(funcs) > 0 {
		avg = float64(total) / float64(len(funcs))
	}

	// Score decays as average complexity climbs past a comfortable baseline.
	score := 100.0 - (avg-2.0)*10.0
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	result.Metrics["score"] = score
	result.Metrics["avg_complexity"] = avg
	result.Metrics["max_complexity"] = float64(maxC)
	result.Metrics["function_count"] = float64(len(funcs))
	result.Metrics["parse_error_count"] = float64(project.ParseErrorCount())
	result.Duration = time.Since(start)
	return result, nil
}
