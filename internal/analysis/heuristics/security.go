// Package heuristics holds the lightweight pattern-based analyzers that
// round out the colony: security, performance, coverage, and complexity.
// Their rule catalogs are deliberately small; each is just another
// implementation of the analysis.Analyzer capability.
package heuristics

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dejo1307/codecolony/internal/analysis"
)

type securityRule struct {
	pattern  *regexp.Regexp
	message  string
	severity analysis.Severity
}

var securityRules = []securityRule{
	{regexp.MustCompile(`(?i)(password|secret|api_?key|token)\s*[:=]\s*["'][^"']{4,}["']`),
		"possible hardcoded credential", analysis.SeverityCritical},
	{regexp.MustCompile(`(?i)\bexec\s*\(|os/exec|child_process`),
		"process execution; verify inputs are not attacker-controlled", analysis.SeverityMedium},
	{regexp.MustCompile(`(?i)(query|exec)\s*\(\s*["'][^"']*["']\s*\+`),
		"string-concatenated SQL query", analysis.SeverityHigh},
	{regexp.MustCompile(`http://[a-zA-Z0-9]`),
		"plaintext http URL", analysis.SeverityLow},
	{regexp.MustCompile(`(?i)math/rand.*(token|secret|key|nonce)|(\btoken\b|\bsecret\b).*math/rand`),
		"non-cryptographic randomness near secret material", analysis.SeverityHigh},
}

// Security scans source files for insecure patterns.
type Security struct{}

// NewSecurity creates the security analyzer.
func NewSecurity() *Security { return &Security{} }

func (s *Security) Name() string { return "security" }

func (s *Security) Analyze(ctx context.Context, project *analysis.Project) (*analysis.Result, error) {
	start := time.Now()
	result := &analysis.Result{AnalyzerName: s.Name(), Metrics: map[string]float64{}}

	critical := 0
	for _, path := range project.Files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !isSourceFile(path) {
			continue
		}
		data, err := project.Source(path)
		if err != nil {
			continue
		}

		for lineNo, line := range strings.Split(string(data), "\n") {
			for _, rule := range securityRules {
				if rule.pattern.MatchString(line) {
					if rule.severity == analysis.SeverityCritical {
						critical++
					}
					result.Issues = append(result.Issues, analysis.Issue{
						Severity: rule.severity,
						Message:  rule.message,
						Location: fmt.Sprintf("%s:%d", path, lineNo+1),
					})
				}
			}
		}
	}

	score := 100.0
	for _, issue := range result.Issues {
		switch issue.Severity {
		case analysis.SeverityCritical:
			score -= 20
		case analysis.SeverityHigh:
			score -= 10
		case analysis.SeverityMedium:
			score -= 4
		default:
			score -= 1
		}
	}
	if score < 0 {
		score = 0
	}

	result.Metrics["score"] = score
	result.Metrics["finding_count"] = float64(len(result.Issues))
	result.Metrics["critical_count"] = float64(critical)
	result.Metrics["parse_error_count"] = float64(project.ParseErrorCount())
	result.Duration = time.Since(start)
	return result, nil
}

func isSourceFile(path string) bool {
	for _, ext := range []string{".go", ".ts", ".tsx", ".js", ".py", ".rb", ".java", ".kt"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
