// Package colony runs a population of analyzer cells over a shared immutable
// project snapshot. Cells run concurrently with bounded parallelism; a fault
// in one cell quarantines that cell only and never aborts the cycle.
package colony

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dejo1307/codecolony/internal/analysis"
	"github.com/dejo1307/codecolony/internal/analysis/depgraph"
	"github.com/dejo1307/codecolony/internal/config"
	"github.com/dejo1307/codecolony/internal/extractors"
	"github.com/dejo1307/codecolony/internal/facts"
)

// CycleSource is implemented by analyzers that can report dependency cycles
// for the top-level snapshot export.
type CycleSource interface {
	LastCycles() []depgraph.Cycle
}

// Colony owns the cells and drives analysis cycles.
type Colony struct {
	cfg        *config.Config
	logger     *zap.Logger
	extractors *extractors.Registry
	cells      []*Cell
	cycle      int
	lastFacts  *facts.Store
}

// LastFacts returns the fact store from the most recent completed cycle,
// or nil before the first run.
func (c *Colony) LastFacts() *facts.Store {
	return c.lastFacts
}

type cellOutcome struct {
	result *analysis.Result
	err    error
}

// New builds a colony from enabled analyzers. Cell order here fixes result
// order in every snapshot.
func New(cfg *config.Config, logger *zap.Logger, reg *extractors.Registry, analyzers []analysis.Analyzer) (*Colony, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Colony{
		cfg:        cfg,
		logger:     logger.Named("colony"),
		extractors: reg,
	}
	for _, a := range analyzers {
		if !cfg.IsAnalyzerEnabled(a.Name()) {
			continue
		}
		c.cells = append(c.cells, newCell(a))
	}
	if len(c.cells) == 0 {
		return nil, &config.FatalConfigError{Field: "analyzers", Reason: "no enabled analyzers"}
	}
	return c, nil
}

// Cells returns the current status of every cell in registration order.
func (c *Colony) Cells() []Status {
	out := make([]Status, len(c.cells))
	for i, cell := range c.cells {
		out[i] = cell.status()
	}
	return out
}

// Run executes one full colony cycle and returns its snapshot. It returns an
// error only for colony-level failures: context cancellation or a project
// snapshot that cannot be built at all. Analyzer faults and timeouts become
// quarantined cells inside a valid snapshot.
func (c *Colony) Run(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	project, corpusHash, err := c.buildProject(ctx)
	if err != nil {
		return nil, fmt.Errorf("build project snapshot: %w", err)
	}
	c.lastFacts = project.Facts

	cycleCtx, cancel := context.WithTimeout(ctx, c.cfg.Colony.CycleTimeout)
	defer cancel()

	workers := c.cfg.Colony.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// Each cell reports through its own buffered channel so a late result
	// after a forced quarantine is discarded, not raced over. Worker slots
	// are a semaphore acquired inside the goroutine, never at dispatch:
	// stuck analyzers can hold every slot without keeping the select below
	// from reaching the cycle deadline.
	sem := semaphore.NewWeighted(int64(workers))
	outcomes := make([]chan cellOutcome, len(c.cells))
	var g errgroup.Group
	for i, cell := range c.cells {
		outcomes[i] = make(chan cellOutcome, 1)
		cell.state = StateRunning
		ch := outcomes[i]
		a := cell.analyzer
		name := cell.AnalyzerName
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					ch <- cellOutcome{err: fmt.Errorf("analyzer panic: %v", r)}
				}
			}()
			if err := sem.Acquire(cycleCtx, 1); err != nil {
				// Cycle deadline hit before a slot opened; the harvest
				// loop force-quarantines this cell.
				return nil
			}
			defer sem.Release(1)
			cellCtx, cancelCell := context.WithTimeout(cycleCtx, c.cfg.Colony.CellTimeout)
			defer cancelCell()
			started := time.Now()
			res, err := a.Analyze(cellCtx, project)
			if err == nil && res == nil {
				err = fmt.Errorf("analyzer %s returned no result", name)
			}
			if err == nil && cellCtx.Err() != nil {
				// The analyzer ignored its context and finished past the
				// budget. Quarantine applies the same as a cooperative
				// timeout.
				err = fmt.Errorf("analyzer %s exceeded its budget after %s: %w",
					name, time.Since(started).Round(time.Millisecond), cellCtx.Err())
			}
			ch <- cellOutcome{result: res, err: err}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait() //nolint:errcheck // workers never return errors
		close(done)
	}()
	select {
	case <-done:
	case <-cycleCtx.Done():
	}
	if err := ctx.Err(); err != nil {
		// Parent cancelled; no partial snapshot.
		return nil, err
	}

	results := make([]AnalyzerResult, len(c.cells))
	for i, cell := range c.cells {
		select {
		case out := <-outcomes[i]:
			if out.err != nil {
				cell.markQuarantined(out.err.Error())
				c.logger.Warn("cell quarantined",
					zap.String("analyzer", cell.AnalyzerName),
					zap.String("error", cell.lastError))
			} else {
				cell.markSuccess(out.result, c.cfg.Colony.CellTimeout)
			}
		default:
			cell.markQuarantined("cycle timeout exceeded")
			c.logger.Warn("cell force-quarantined at cycle timeout",
				zap.String("analyzer", cell.AnalyzerName))
		}
		results[i] = AnalyzerResult{
			AnalyzerName: cell.AnalyzerName,
			Result:       cell.lastResult,
			Stale:        cell.stale,
		}
	}

	c.cycle++
	snap := &Snapshot{
		Cycle: c.cycle,
		Meta: Meta{
			RepoPath:    c.cfg.Repo,
			FileCount:   len(project.Files),
			CorpusHash:  corpusHash,
			GeneratedAt: time.Now().UTC(),
			Duration:    time.Since(start).Round(time.Millisecond).String(),
		},
		HealthScore:     healthScore(results),
		AnalyzerResults: results,
		CellStates:      c.Cells(),
	}
	for _, cell := range c.cells {
		if src, ok := cell.analyzer.(CycleSource); ok && cell.state != StateQuarantined {
			snap.Cycles = append(snap.Cycles, src.LastCycles()...)
		}
	}
	c.logger.Info("cycle complete",
		zap.Int("cycle", snap.Cycle),
		zap.Float64("health_score", snap.HealthScore),
		zap.Int("quarantined", snap.QuarantinedCount()),
		zap.String("duration", snap.Meta.Duration))
	return snap, nil
}

// RunContinuous runs cycles at the given interval until ctx is cancelled.
// Snapshots are delivered strictly in cycle order; when the consumer lags,
// the oldest buffered snapshot is dropped rather than blocking the colony.
func (c *Colony) RunContinuous(ctx context.Context, interval time.Duration) <-chan *Snapshot {
	if interval <= 0 {
		interval = c.cfg.Colony.Interval
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ch := make(chan *Snapshot, 4)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			snap, err := c.Run(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Error("cycle failed", zap.Error(err))
			} else {
				select {
				case ch <- snap:
				default:
					select {
					case <-ch:
					default:
					}
					ch <- snap
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return ch
}

// Shutdown marks every cell dead. The colony cannot run further cycles.
func (c *Colony) Shutdown() {
	for _, cell := range c.cells {
		cell.state = StateDead
	}
}

// buildProject walks the repo, runs all applicable extractors and assembles
// the immutable project snapshot shared by every cell this cycle.
func (c *Colony) buildProject(ctx context.Context) (*analysis.Project, string, error) {
	files, err := c.walkRepo(c.cfg.Repo)
	if err != nil {
		return nil, "", err
	}
	if len(files) == 0 {
		return nil, "", fmt.Errorf("no files found under %s", c.cfg.Repo)
	}

	store := facts.NewStore()
	ran := 0
	for _, ext := range c.extractors.All() {
		ok, err := ext.Detect(c.cfg.Repo)
		if err != nil {
			c.logger.Warn("extractor detect failed",
				zap.String("extractor", ext.Name()), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		ff, perrs, err := ext.Extract(ctx, c.cfg.Repo, files)
		if err != nil {
			return nil, "", fmt.Errorf("extractor %s: %w", ext.Name(), err)
		}
		for _, f := range ff {
			store.Add(f)
		}
		for _, pe := range perrs {
			store.AddParseError(pe)
			c.logger.Debug("parse error",
				zap.String("extractor", ext.Name()),
				zap.String("path", pe.Path),
				zap.Error(pe.Err))
		}
		ran++
		c.logger.Info("extractor done",
			zap.String("extractor", ext.Name()),
			zap.Int("files", len(ff)),
			zap.Int("parse_errors", len(perrs)))
	}
	if ran == 0 {
		return nil, "", fmt.Errorf("no extractor matched repo %s", c.cfg.Repo)
	}

	return analysis.NewProject(c.cfg.Repo, files, store), corpusHash(c.cfg.Repo, files), nil
}

// walkRepo collects all files in the repo, applying ignore patterns.
func (c *Colony) walkRepo(repoPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(repoPath, path)
		if err != nil {
			return err
		}
		if c.isIgnored(relPath, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			files = append(files, relPath)
		}
		return nil
	})
	return files, err
}

// isIgnored checks whether a path matches any ignore pattern.
func (c *Colony) isIgnored(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	for _, pattern := range c.cfg.Ignore {
		if strings.HasSuffix(pattern, "/**") {
			dirPrefix := strings.TrimSuffix(pattern, "/**")
			if relPath == dirPrefix || strings.HasPrefix(relPath, dirPrefix+"/") {
				return true
			}
		}
		matched, err := filepath.Match(pattern, relPath)
		if err == nil && matched {
			return true
		}
		if strings.HasPrefix(pattern, "**/") {
			subPattern := strings.TrimPrefix(pattern, "**/")
			matched, err = filepath.Match(subPattern, filepath.Base(relPath))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(subPattern, relPath)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

// corpusHash hashes the sorted per-file content hashes into one provenance
// digest. Unreadable files contribute their path only.
func corpusHash(repoPath string, files []string) string {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	h := sha256.New()
	for _, f := range sorted {
		h.Write([]byte(f))
		if data, err := os.ReadFile(filepath.Join(repoPath, f)); err == nil {
			fh := sha256.Sum256(data)
			h.Write(fh[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
