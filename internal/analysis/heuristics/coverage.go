package heuristics

import (
	"context"
	"strings"
	"time"

	"github.com/dejo1307/codecolony/internal/analysis"
)

// Coverage estimates test coverage structurally: the ratio of test files to
// source files per language convention. It never executes target code.
type Coverage struct{}

// NewCoverage creates the coverage analyzer.
func NewCoverage() *Coverage { return &Coverage{} }

func (c *Coverage) Name() string { return "coverage" }

func (c *Coverage) Analyze(ctx context.Context, project *analysis.Project) (*analysis.Result, error) {
	start := time.Now()
	result := &analysis.Result{AnalyzerName: c.Name(), Metrics: map[string]float64{}}

	source, tests := 0, 0
	for _, path := range project.Files {
		if !isSourceFile(path) {
			continue
		}
		if isTestFile(path) {
			tests++
		} else {
			source++
		}
	}

	ratio := 0.0
	if source > 0 {
		ratio = float64(tests) / float64(source)
	}
	score := 100.0 * ratio
	if score > 100 {
		score = 100
	}

	if tests == 0 && source > 0 {
		result.Issues = append(result.Issues, analysis.Issue{
			Severity: analysis.SeverityHigh,
			Message:  "no test files found in project",
			Location: ".",
		})
		result.Suggestions = append(result.Suggestions,
			"Add tests alongside the packages they cover")
	}

	result.Metrics["score"] = score
	result.Metrics["source_files"] = float64(source)
	result.Metrics["test_files"] = float64(tests)
	result.Metrics["test_ratio"] = ratio
	result.Metrics["parse_error_count"] = float64(project.ParseErrorCount())
	result.Duration = time.Since(start)
	return result, nil
}

func isTestFile(path string) bool {
	base := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		base = path[i+1:]
	}
	return strings.HasSuffix(base, "_test.go") ||
		strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") ||
		strings.HasPrefix(base, "test_")
}
