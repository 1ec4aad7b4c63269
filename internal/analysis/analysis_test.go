package analysis

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dejo1307/codecolony/internal/facts"
)

// --- scoring ---

func TestResultScore(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   float64
		ok     bool
	}{
		{name: "nil result", result: nil},
		{name: "no metrics", result: &Result{AnalyzerName: "x"}},
		{
			name:   "missing score key",
			result: &Result{Metrics: map[string]float64{"cycles": 2}},
		},
		{
			name:   "zero is a valid score",
			result: &Result{Metrics: map[string]float64{"score": 0}},
			want:   0,
			ok:     true,
		},
		{
			name:   "present score",
			result: &Result{Metrics: map[string]float64{"score": 87.5}},
			want:   87.5,
			ok:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.result.Score()
			if got != tt.want || ok != tt.ok {
				t.Errorf("Score() = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSeverityRank(t *testing.T) {
	order := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Errorf("Rank(%s) = %d should exceed Rank(%s) = %d",
				order[i], order[i].Rank(), order[i-1], order[i-1].Rank())
		}
	}
	if got := Severity("unknown").Rank(); got != 0 {
		t.Errorf("unknown severity rank = %d, want 0", got)
	}
}

// --- project snapshot ---

func TestProjectSourceCaches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewProject(dir, []string{"a.txt"}, facts.NewStore())
	first, err := p.Source("a.txt")
	if err != nil {
		t.Fatalf("Source: %v", err)
	}

	// later reads come from the snapshot cache, not disk
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	second, err := p.Source("a.txt")
	if err != nil {
		t.Fatalf("Source after remove: %v", err)
	}
	if string(first) != "one\ntwo\n" || string(second) != "one\ntwo\n" {
		t.Errorf("cached source mismatch: %q then %q", first, second)
	}

	if _, err := p.Source("missing.txt"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestProjectSourceLines(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("l1\nl2\nl3\nl4"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := NewProject(dir, []string{"a.txt"}, facts.NewStore())

	tests := []struct {
		name       string
		start, end int
		want       []string
	}{
		{name: "middle range", start: 2, end: 3, want: []string{"l2", "l3"}},
		{name: "clamped below", start: -5, end: 1, want: []string{"l1"}},
		{name: "clamped above", start: 4, end: 99, want: []string{"l4"}},
		{name: "inverted range", start: 3, end: 2, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.SourceLines("a.txt", tt.start, tt.end)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SourceLines(%d, %d) = %v, want %v", tt.start, tt.end, got, tt.want)
			}
		})
	}

	if got := p.SourceLines("missing.txt", 1, 2); got != nil {
		t.Errorf("missing file should yield nil lines, got %v", got)
	}
}

func TestProjectParseErrorCount(t *testing.T) {
	store := facts.NewStore()
	store.AddParseError(facts.ParseError{Path: "bad.ts", Err: os.ErrInvalid})
	p := NewProject(t.TempDir(), nil, store)
	if got := p.ParseErrorCount(); got != 1 {
		t.Errorf("ParseErrorCount = %d, want 1", got)
	}
}
