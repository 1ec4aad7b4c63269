package colony

import (
	"time"

	"github.com/dejo1307/codecolony/internal/analysis"
	"github.com/dejo1307/codecolony/internal/analysis/depgraph"
	"github.com/dejo1307/codecolony/internal/pareto"
)

// AnalyzerResult pairs an analyzer's result with its staleness. Stale means
// the owning cell is quarantined and the result was carried over from an
// earlier cycle.
type AnalyzerResult struct {
	AnalyzerName string           `json:"analyzer_name"`
	Result       *analysis.Result `json:"result,omitempty"`
	Stale        bool             `json:"stale,omitempty"`
}

// Meta records provenance for one colony cycle.
type Meta struct {
	RepoPath    string    `json:"repo_path"`
	FileCount   int       `json:"file_count"`
	CorpusHash  string    `json:"corpus_hash"`
	GeneratedAt time.Time `json:"generated_at"`
	Duration    string    `json:"duration"`
}

// Snapshot is the aggregate output of one colony cycle. Result order always
// matches the order cells were registered in.
type Snapshot struct {
	Cycle           int               `json:"cycle"`
	Meta            Meta              `json:"meta"`
	HealthScore     float64           `json:"health_score"`
	AnalyzerResults []AnalyzerResult  `json:"analyzer_results"`
	CellStates      []Status          `json:"cell_states"`
	Cycles          []depgraph.Cycle  `json:"cycles,omitempty"`
	ParetoFrontier  []pareto.Solution `json:"pareto_frontier,omitempty"`
}

// CriticalCount reports how many critical issues the cycle surfaced,
// counting stale results too since they are still the best known state.
func (s *Snapshot) CriticalCount() int {
	n := 0
	for _, ar := range s.AnalyzerResults {
		if ar.Result == nil {
			continue
		}
		for _, iss := range ar.Result.Issues {
			if iss.Severity == analysis.SeverityCritical {
				n++
			}
		}
	}
	return n
}

// QuarantinedCount reports how many cells ended the cycle quarantined.
func (s *Snapshot) QuarantinedCount() int {
	n := 0
	for _, cs := range s.CellStates {
		if cs.State == StateQuarantined {
			n++
		}
	}
	return n
}

func healthScore(results []AnalyzerResult) float64 {
	sum, n := 0.0, 0
	for _, ar := range results {
		if ar.Result == nil {
			continue
		}
		if score, ok := ar.Result.Score(); ok {
			sum += score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
