// Package analysis defines the analyzer capability contract shared by all
// colony cells and the read-only project snapshot they analyze.
package analysis

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dejo1307/codecolony/internal/facts"
)

// Analyzer is the capability implemented by every colony cell. Analyzers
// share the same immutable project snapshot and must not retain or mutate
// it across calls.
type Analyzer interface {
	// Name returns the analyzer identifier (e.g. "depgraph", "clones").
	Name() string
	// Analyze examines the project snapshot and returns a result.
	// A returned error (or a panic) quarantines the cell for the cycle;
	// partial per-file problems belong in the result instead.
	Analyze(ctx context.Context, project *Project) (*Result, error)
}

// Result holds one analyzer's findings for one cycle.
type Result struct {
	AnalyzerName string             `json:"analyzer_name"`
	Metrics      map[string]float64 `json:"metrics"`
	Issues       []Issue            `json:"issues,omitempty"`
	Suggestions  []string           `json:"suggestions,omitempty"`
	Duration     time.Duration      `json:"duration"`
}

// Score returns the analyzer's scalar quality metric, or 0 with ok=false
// when the analyzer reported none. Zero is a valid score; callers must use
// ok to distinguish it from missing data.
func (r *Result) Score() (float64, bool) {
	if r == nil || r.Metrics == nil {
		return 0, false
	}
	v, ok := r.Metrics["score"]
	return v, ok
}

// Issue is a single finding at a source location.
type Issue struct {
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Location    string   `json:"location"` // "path:line" or a qualified name
	AutoFixable bool     `json:"auto_fixable"`
}

// Severity classifies issue impact.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns an ordering value for severity comparison.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Project is the immutable per-cycle snapshot shared read-only by all cells:
// the file list, the extracted facts, and a cached source accessor. It is
// rebuilt at the start of each cycle, never mutated during one.
type Project struct {
	RepoPath string
	Files    []string // relative paths, extraction order
	Facts    *facts.Store

	srcMu  sync.RWMutex
	srcBuf map[string][]byte
}

// NewProject creates a project snapshot over the given facts.
func NewProject(repoPath string, files []string, store *facts.Store) *Project {
	return &Project{
		RepoPath: repoPath,
		Files:    files,
		Facts:    store,
		srcBuf:   make(map[string][]byte),
	}
}

// Source returns the contents of a file in the project, cached for the
// lifetime of the snapshot so concurrent cells read each file once.
func (p *Project) Source(relPath string) ([]byte, error) {
	p.srcMu.RLock()
	data, ok := p.srcBuf[relPath]
	p.srcMu.RUnlock()
	if ok {
		return data, nil
	}

	data, err := os.ReadFile(filepath.Join(p.RepoPath, relPath))
	if err != nil {
		return nil, err
	}

	p.srcMu.Lock()
	p.srcBuf[relPath] = data
	p.srcMu.Unlock()
	return data, nil
}

// SourceLines returns lines [startLine, endLine] (1-based, inclusive) of a
// file, or nil if the file cannot be read or the range is out of bounds.
func (p *Project) SourceLines(relPath string, startLine, endLine int) []string {
	data, err := p.Source(relPath)
	if err != nil {
		return nil
	}
	lines := splitLines(string(data))
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine {
		return nil
	}
	return lines[startLine-1 : endLine]
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// ParseErrorCount is the number of files whose facts are missing due to
// parse failures. Analyzers surface it in their metrics so a degraded
// result is distinguishable from a clean one.
func (p *Project) ParseErrorCount() int {
	return len(p.Facts.ParseErrors())
}
