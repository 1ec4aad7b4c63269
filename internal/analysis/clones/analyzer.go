package clones

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dejo1307/codecolony/internal/analysis"
	"github.com/dejo1307/codecolony/internal/config"
	"github.com/dejo1307/codecolony/internal/facts"
)

// Analyzer wraps the clone detector as a colony cell. Implements
// analysis.Analyzer.
type Analyzer struct {
	detector *Detector
	logger   *zap.Logger

	last []Candidate
}

// NewAnalyzer creates a clone analyzer from config thresholds. The
// detector's feature cache persists across cycles so unchanged units are
// not re-tokenized.
func NewAnalyzer(cfg config.ClonesConfig, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		detector: NewDetector(Thresholds{
			PrefilterJaccard: cfg.PrefilterJaccard,
			Type3Similarity:  cfg.Type3Similarity,
			Type4Cosine:      cfg.Type4Cosine,
			MinUnitTokens:    cfg.MinUnitTokens,
		}),
		logger: logger.Named("clones"),
	}
}

func (a *Analyzer) Name() string {
	return "clones"
}

// Last returns the clone set from the most recent cycle.
func (a *Analyzer) Last() []Candidate {
	return a.last
}

// Analyze builds code units from the project's function declarations and
// detects clone pairs.
func (a *Analyzer) Analyze(ctx context.Context, project *analysis.Project) (*analysis.Result, error) {
	start := time.Now()

	units := BuildUnits(project)

	candidates, err := a.detector.Detect(ctx, units)
	if err != nil {
		return nil, err
	}
	a.last = candidates

	result := &analysis.Result{
		AnalyzerName: a.Name(),
		Metrics:      map[string]float64{},
	}

	byType := make(map[int]int)
	clonedUnits := make(map[string]bool)
	for _, c := range candidates {
		byType[c.CloneType]++
		clonedUnits[c.UnitA] = true
		clonedUnits[c.UnitB] = true

		severity := analysis.SeverityLow
		if c.CloneType <= Type2 {
			severity = analysis.SeverityMedium
		}
		msg := fmt.Sprintf("type-%d clone of %s (similarity %.2f)", c.CloneType, c.UnitB, c.Similarity)
		if c.CloneType == Type4 {
			msg = fmt.Sprintf("type-4 semantic clone of %s (cosine %.2f)", c.UnitB, c.SemanticSimilarity)
		}
		result.Issues = append(result.Issues, analysis.Issue{
			Severity:    severity,
			Message:     msg,
			Location:    c.LocationA,
			AutoFixable: c.CloneType == Type1,
		})
	}

	duplication := 0.0
	if len(units) > 0 {
		duplication = float64(len(clonedUnits)) / float64(len(units))
	}
	score := 100.0 * (1.0 - duplication)
	if score < 0 {
		score = 0
	}

	if len(candidates) > 0 {
		result.Suggestions = append(result.Suggestions,
			"Extract duplicated logic into a shared helper")
	}

	result.Metrics["score"] = score
	result.Metrics["unit_count"] = float64(len(units))
	result.Metrics["clone_count"] = float64(len(candidates))
	result.Metrics["type1_count"] = float64(byType[Type1])
	result.Metrics["type2_count"] = float64(byType[Type2])
	result.Metrics["type3_count"] = float64(byType[Type3])
	result.Metrics["type4_count"] = float64(byType[Type4])
	result.Metrics["duplication_ratio"] = duplication
	result.Metrics["parse_error_count"] = float64(project.ParseErrorCount())
	if a.detector.SemanticMode(units) != "embedding" {
		// Capability flag: type-4 detection ran in degraded lexical mode.
		result.Metrics["semantic_mode_lexical"] = 1
	}
	result.Duration = time.Since(start)

	a.logger.Debug("analysis complete",
		zap.Int("units", len(units)),
		zap.Int("clones", len(candidates)),
		zap.Float64("duplication", duplication))

	return result, nil
}

// BuildUnits converts the project's function declarations into comparable
// code units, reading each function's source slice through the shared
// project snapshot.
func BuildUnits(project *analysis.Project) []*CodeUnit {
	var units []*CodeUnit
	for _, d := range project.Facts.DeclarationsByKind(facts.KindFunction) {
		lines := project.SourceLines(d.Path, d.StartLine, d.EndLine)
		if lines == nil {
			continue
		}
		units = append(units, &CodeUnit{
			QualifiedName: d.QualifiedName,
			Path:          d.Path,
			StartLine:     d.StartLine,
			EndLine:       d.EndLine,
			Source:        strings.Join(lines, "\n"),
		})
	}
	return units
}
