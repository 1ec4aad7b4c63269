package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dejo1307/codecolony/internal/colony"
	"github.com/dejo1307/codecolony/internal/facts"
)

// Writer persists cycle artifacts to the output directory: snapshot.json,
// facts.jsonl and report.md.
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter creates a writer rooted at outDir.
func NewWriter(outDir string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: outDir, logger: logger.Named("report")}
}

// Write persists all artifacts for one snapshot. The fact store may be nil
// when only the snapshot itself should be written.
func (w *Writer) Write(snap *colony.Snapshot, store *facts.Store) error {
	if snap == nil {
		return fmt.Errorf("no snapshot to write")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	snapJSON, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	snapPath := filepath.Join(w.dir, "snapshot.json")
	if err := os.WriteFile(snapPath, snapJSON, 0o644); err != nil {
		return fmt.Errorf("writing snapshot.json: %w", err)
	}
	w.logger.Info("wrote artifact", zap.String("path", snapPath), zap.Int("bytes", len(snapJSON)))

	if store != nil {
		factsPath := filepath.Join(w.dir, "facts.jsonl")
		if err := store.WriteJSONLFile(factsPath); err != nil {
			return fmt.Errorf("writing facts.jsonl: %w", err)
		}
		w.logger.Info("wrote artifact", zap.String("path", factsPath))
	}

	md := RenderMarkdown(snap)
	mdPath := filepath.Join(w.dir, "report.md")
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return fmt.Errorf("writing report.md: %w", err)
	}
	w.logger.Info("wrote artifact", zap.String("path", mdPath), zap.Int("bytes", len(md)))
	return nil
}
