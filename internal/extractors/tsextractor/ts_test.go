package tsextractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dejo1307/codecolony/internal/facts"
)

// --- fixtures ---

const tsconfigJSON = `{
  "compilerOptions": {
    "paths": {
      "@/*": ["./src/*"]
    }
  }
}`

const serviceTS = `import { Store } from "../store";
import { makeID } from "@/util";
import { useState } from "react";

export class Service extends Base {
  constructor(store: Store) {
    this.store = store;
  }

  run(input: string): number {
    if (input === "") {
      return 0;
    }
    return this.store.count(makeID(input));
  }
}

export function helper(n: number): number {
  return n + 1;
}

const square = (n: number): number => {
  return n * n;
};
`

const storeTS = `export class Store {
  count(id: string): number {
    let total = 0;
    for (const c of id) {
      total = total + 1;
    }
    return total;
  }
}
`

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for path, content := range files {
		abs := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func declByName(ffs []facts.FileFacts, qualified string) *facts.Declaration {
	for i := range ffs {
		for j := range ffs[i].Declarations {
			if ffs[i].Declarations[j].QualifiedName == qualified {
				return &ffs[i].Declarations[j]
			}
		}
	}
	return nil
}

func edgesOfKind(ffs []facts.FileFacts, kind string) []facts.Edge {
	var out []facts.Edge
	for i := range ffs {
		for _, e := range ffs[i].Edges {
			if e.Kind == kind {
				out = append(out, e)
			}
		}
	}
	return out
}

// --- Detect ---

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  bool
	}{
		{
			name:  "tsconfig present",
			files: map[string]string{"tsconfig.json": "{}"},
			want:  true,
		},
		{
			name: "typescript in devDependencies",
			files: map[string]string{
				"package.json": `{"devDependencies": {"typescript": "^5.0.0"}}`,
			},
			want: true,
		},
		{
			name: "typescript in dependencies",
			files: map[string]string{
				"package.json": `{"dependencies": {"typescript": "^5.0.0"}}`,
			},
			want: true,
		},
		{
			name: "plain javascript project",
			files: map[string]string{
				"package.json": `{"dependencies": {"express": "^4.0.0"}}`,
			},
			want: false,
		},
		{
			name:  "no markers",
			files: map[string]string{"main.go": "package main"},
			want:  false,
		},
	}

	ext := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := writeRepo(t, tt.files)
			got, err := ext.Detect(repo)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if got != tt.want {
				t.Errorf("Detect = %v, want %v", got, tt.want)
			}
		})
	}
}

// --- Extract ---

func TestExtractDeclarationsAndEdges(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"tsconfig.json":     tsconfigJSON,
		"src/app/main.ts":   serviceTS,
		"src/store/main.ts": storeTS,
	})

	ext := New(nil)
	ffs, perrs, err := ext.Extract(context.Background(), repo, []string{
		"src/app/main.ts",
		"src/store/main.ts",
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(perrs) != 0 {
		t.Fatalf("parse errors: %v", perrs)
	}
	if len(ffs) != 2 {
		t.Fatalf("got %d file facts, want 2", len(ffs))
	}

	// one module declaration per directory
	for _, mod := range []string{"src/app", "src/store"} {
		d := declByName(ffs, mod)
		if d == nil {
			t.Fatalf("missing module declaration %q", mod)
		}
		if d.Kind != facts.KindModule {
			t.Errorf("%s kind = %v, want module", mod, d.Kind)
		}
	}

	// exported class with its method
	svc := declByName(ffs, "src/app.Service")
	if svc == nil {
		t.Fatal("missing class declaration src/app.Service")
	}
	if svc.Kind != facts.KindClass {
		t.Errorf("Service kind = %v, want class", svc.Kind)
	}

	run := declByName(ffs, "src/app.Service.run")
	if run == nil {
		t.Fatal("missing method declaration src/app.Service.run")
	}
	if run.Kind != facts.KindFunction {
		t.Errorf("run kind = %v, want function", run.Kind)
	}
	if run.Complexity != 2 {
		t.Errorf("run complexity = %d, want 2 (base + if)", run.Complexity)
	}

	// constructors are skipped
	if d := declByName(ffs, "src/app.Service.constructor"); d != nil {
		t.Error("constructor should not be declared as a function")
	}

	// exported plain function and arrow function
	if d := declByName(ffs, "src/app.helper"); d == nil || d.Kind != facts.KindFunction {
		t.Error("missing function declaration src/app.helper")
	}
	if d := declByName(ffs, "src/app.square"); d == nil || d.Kind != facts.KindFunction {
		t.Error("missing arrow function declaration src/app.square")
	}

	// relative and alias imports resolve to repo paths, external skipped
	imports := edgesOfKind(ffs, facts.EdgeImport)
	wantImports := map[string]bool{
		"src/store": false,
		"src/util":  false,
	}
	for _, e := range imports {
		if e.From != "src/app" {
			t.Errorf("import edge from %q, want src/app", e.From)
		}
		if _, ok := wantImports[e.To]; !ok {
			t.Errorf("unexpected import edge to %q", e.To)
		}
		wantImports[e.To] = true
	}
	for to, seen := range wantImports {
		if !seen {
			t.Errorf("missing import edge src/app -> %s", to)
		}
	}

	// extends clause yields an inherit edge
	inherits := edgesOfKind(ffs, facts.EdgeInherit)
	foundBase := false
	for _, e := range inherits {
		if e.From == "src/app.Service" && e.To == "src/app.Base" {
			foundBase = true
		}
	}
	if !foundBase {
		t.Errorf("missing inherit edge Service -> Base, got %v", inherits)
	}

	// method bodies yield call edges
	calls := edgesOfKind(ffs, facts.EdgeCall)
	foundCall := false
	for _, e := range calls {
		if e.From == "src/app.Service.run" {
			foundCall = true
		}
	}
	if !foundCall {
		t.Errorf("missing call edge from Service.run, got %v", calls)
	}
}

func TestExtractSkipsNonTypeScriptFiles(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"src/app/main.ts":  storeTS,
		"src/app/notes.md": "# notes",
		"src/app/index.js": "module.exports = {};",
	})

	ext := New(nil)
	ffs, perrs, err := ext.Extract(context.Background(), repo, []string{
		"src/app/main.ts",
		"src/app/notes.md",
		"src/app/index.js",
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(perrs) != 0 {
		t.Fatalf("parse errors: %v", perrs)
	}
	if len(ffs) != 1 {
		t.Fatalf("got %d file facts, want 1", len(ffs))
	}
	if ffs[0].Path != "src/app/main.ts" {
		t.Errorf("extracted %q, want src/app/main.ts", ffs[0].Path)
	}
}

func TestExtractReportsUnreadableFiles(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"src/app/good.ts": storeTS,
	})

	ext := New(nil)
	ffs, perrs, err := ext.Extract(context.Background(), repo, []string{
		"src/app/missing.ts",
		"src/app/good.ts",
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(perrs) != 1 {
		t.Fatalf("got %d parse errors, want 1", len(perrs))
	}
	if perrs[0].Path != "src/app/missing.ts" {
		t.Errorf("parse error path = %q, want src/app/missing.ts", perrs[0].Path)
	}
	if len(ffs) != 1 {
		t.Fatalf("got %d file facts, want 1: extraction should continue past errors", len(ffs))
	}
}

func TestExtractRespectsContext(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"src/app/main.ts": storeTS,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ext := New(nil)
	_, _, err := ext.Extract(ctx, repo, []string{"src/app/main.ts"})
	if err == nil {
		t.Fatal("expected context error")
	}
}

// --- import resolution ---

func TestResolveImportPath(t *testing.T) {
	aliases := map[string]string{"@/": "src/"}

	tests := []struct {
		name     string
		path     string
		dir      string
		want     string
		external bool
	}{
		{name: "relative sibling", path: "../store", dir: "src/app", want: "src/store"},
		{name: "relative same dir", path: "./helpers", dir: "src/app", want: "src/app/helpers"},
		{name: "alias", path: "@/util", dir: "src/app", want: "src/util"},
		{name: "alias nested", path: "@/util/ids", dir: "src/app", want: "src/util/ids"},
		{name: "external package", path: "react", dir: "src/app", want: "react", external: true},
		{name: "scoped external", path: "@testing-library/react", dir: "src/app", want: "@testing-library/react", external: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, external := resolveImportPath(tt.path, tt.dir, aliases)
			if got != tt.want || external != tt.external {
				t.Errorf("resolveImportPath(%q) = (%q, %v), want (%q, %v)",
					tt.path, got, external, tt.want, tt.external)
			}
		})
	}
}

func TestParseTSPathAliases(t *testing.T) {
	repo := writeRepo(t, map[string]string{"tsconfig.json": tsconfigJSON})

	aliases := parseTSPathAliases(repo)
	if got := aliases["@/"]; got != "src/" {
		t.Errorf("alias @/ = %q, want src/", got)
	}

	if got := parseTSPathAliases(t.TempDir()); len(got) != 0 {
		t.Errorf("expected no aliases without tsconfig, got %v", got)
	}
}
