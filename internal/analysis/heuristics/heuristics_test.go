package heuristics

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dejo1307/codecolony/internal/analysis"
	"github.com/dejo1307/codecolony/internal/facts"
)

// --- helpers ---

// diskProject writes the given files into a temp dir and wraps them in a
// project snapshot with an empty fact store.
func diskProject(t *testing.T, files map[string]string) *analysis.Project {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for rel, content := range files {
		abs := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, rel)
	}
	return analysis.NewProject(dir, paths, facts.NewStore())
}

// factsProject wraps function declarations in a project with no backing files.
func factsProject(decls ...facts.Declaration) *analysis.Project {
	s := facts.NewStore()
	s.Add(facts.FileFacts{Path: "m/file.go", Language: "go", Declarations: decls})
	return analysis.NewProject(".", nil, s)
}

// --- security ---

func TestSecurityFindings(t *testing.T) {
	project := diskProject(t, map[string]string{
		"cfg/auth.go":  "package cfg\n\nvar apiKey = \"sk-live-abcdef\"\n",
		"net/call.go":  "package net\n\nconst endpoint = \"http://internal.example\"\n",
		"docs/note.md": "password = \"irrelevant, not a source file\"\n",
	})

	result, err := NewSecurity().Analyze(context.Background(), project)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if got := result.Metrics["critical_count"]; got != 1 {
		t.Errorf("critical_count = %v, want 1 (hardcoded key)", got)
	}
	if got := result.Metrics["finding_count"]; got != 2 {
		t.Errorf("finding_count = %v, want 2 (markdown must be skipped)", got)
	}
	// One critical (-20) and one low (-1).
	if got := result.Metrics["score"]; got != 79 {
		t.Errorf("score = %v, want 79", got)
	}
}

func TestSecurityCleanProject(t *testing.T) {
	project := diskProject(t, map[string]string{
		"a/a.go": "package a\n\nfunc Add(x, y int) int { return x + y }\n",
	})
	result, err := NewSecurity().Analyze(context.Background(), project)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := result.Metrics["score"]; got != 100 {
		t.Errorf("score = %v, want 100", got)
	}
	if len(result.Issues) != 0 {
		t.Errorf("issues = %d, want 0", len(result.Issues))
	}
}

// --- performance ---

func TestPerformanceFlagsLongAndBranchyFunctions(t *testing.T) {
	project := factsProject(
		facts.Declaration{Kind: facts.KindFunction, Name: "ok", QualifiedName: "m.ok", StartLine: 1, EndLine: 10, Complexity: 3},
		facts.Declaration{Kind: facts.KindFunction, Name: "long", QualifiedName: "m.long", StartLine: 20, EndLine: 200, Complexity: 3},
		facts.Declaration{Kind: facts.KindFunction, Name: "branchy", QualifiedName: "m.branchy", StartLine: 210, EndLine: 220, Complexity: 30},
	)

	result, err := NewPerformance().Analyze(context.Background(), project)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := result.Metrics["flagged_count"]; got != 2 {
		t.Errorf("flagged_count = %v, want 2", got)
	}
	if len(result.Issues) != 2 {
		t.Errorf("issues = %d, want 2", len(result.Issues))
	}
	// 2 flags over 3 functions with 2 checks each.
	want := 100.0 * (1.0 - 2.0/6.0)
	if got := result.Metrics["score"]; got != want {
		t.Errorf("score = %v, want %v", got, want)
	}
}

// --- coverage ---

func TestCoverageRatio(t *testing.T) {
	tests := []struct {
		name      string
		files     map[string]string
		wantScore float64
		wantIssue bool
	}{
		{
			name: "half covered",
			files: map[string]string{
				"a/a.go":      "package a\n",
				"a/a_test.go": "package a\n",
				"b/b.go":      "package b\n",
			},
			wantScore: 50,
		},
		{
			name: "no tests at all",
			files: map[string]string{
				"a/a.go": "package a\n",
			},
			wantScore: 0,
			wantIssue: true,
		},
		{
			name: "ts spec files count",
			files: map[string]string{
				"src/x.ts":      "export const x = 1\n",
				"src/x.spec.ts": "import { x } from './x'\n",
			},
			wantScore: 100,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewCoverage().Analyze(context.Background(), diskProject(t, tt.files))
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if got := result.Metrics["score"]; got != tt.wantScore {
				t.Errorf("score = %v, want %v", got, tt.wantScore)
			}
			if tt.wantIssue != (len(result.Issues) > 0) {
				t.Errorf("issues = %d, wantIssue %v", len(result.Issues), tt.wantIssue)
			}
		})
	}
}

// --- complexity ---

func TestComplexityScore(t *testing.T) {
	project := factsProject(
		facts.Declaration{Kind: facts.KindFunction, Name: "a", QualifiedName: "m.a", StartLine: 1, EndLine: 5, Complexity: 2},
		facts.Declaration{Kind: facts.KindFunction, Name: "b", QualifiedName: "m.b", StartLine: 7, EndLine: 12, Complexity: 4},
		facts.Declaration{Kind: facts.KindFunction, Name: "c", QualifiedName: "m.c", StartLine: 14, EndLine: 40, Complexity: 12},
	)

	result, err := NewComplexity().Analyze(context.Background(), project)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := result.Metrics["avg_complexity"]; got != 6 {
		t.Errorf("avg_complexity = %v, want 6", got)
	}
	if got := result.Metrics["max_complexity"]; got != 12 {
		t.Errorf("max_complexity = %v, want 12", got)
	}
	if got := result.Metrics["score"]; got != 60 {
		t.Errorf("score = %v, want 60", got)
	}
	// Only the function over the warn threshold is reported.
	if len(result.Issues) != 1 {
		t.Errorf("issues = %d, want 1", len(result.Issues))
	}
}

func TestComplexityEmptyProject(t *testing.T) {
	result, err := NewComplexity().Analyze(context.Background(), analysis.NewProject(".", nil, facts.NewStore()))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := result.Metrics["score"]; got != 100 {
		t.Errorf("empty project score = %v, want 100", got)
	}
}
