// Package goextractor extracts structural facts from Go source using go/ast.
package goextractor

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dejo1307/codecolony/internal/facts"
)

// GoExtractor extracts module, class, and function declarations plus
// import/call/inherit edges from Go source files.
type GoExtractor struct {
	logger *zap.Logger
}

// New creates a new GoExtractor.
func New(logger *zap.Logger) *GoExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoExtractor{logger: logger.Named("go-extractor")}
}

func (e *GoExtractor) Name() string {
	return "go"
}

// Detect returns true if the repository contains a go.mod file.
func (e *GoExtractor) Detect(repoPath string) (bool, error) {
	_, err := os.Stat(filepath.Join(repoPath, "go.mod"))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Extract parses Go files and emits per-file structural facts.
func (e *GoExtractor) Extract(ctx context.Context, repoPath string, files []string) ([]facts.FileFacts, []facts.ParseError, error) {
	var out []facts.FileFacts
	var perrs []facts.ParseError
	fset := token.NewFileSet()
	modulePath := readModulePath(repoPath)

	seenModules := make(map[string]bool)

	for _, relFile := range files {
		select {
		case <-ctx.Done():
			return out, perrs, ctx.Err()
		default:
		}

		if !strings.HasSuffix(relFile, ".go") {
			continue
		}

		src, err := os.ReadFile(filepath.Join(repoPath, relFile))
		if err != nil {
			perrs = append(perrs, facts.ParseError{Path: relFile, Err: err})
			continue
		}

		f, err := parser.ParseFile(fset, relFile, src, parser.ParseComments)
		if err != nil {
			e.logger.Debug("parse failed", zap.String("file", relFile), zap.Error(err))
			perrs = append(perrs, facts.ParseError{Path: relFile, Err: err})
			continue
		}

		pkgDir := filepath.ToSlash(filepath.Dir(relFile))
		ff := e.extractFile(fset, f, relFile, pkgDir, modulePath)

		// One module declaration per package directory, attached to the
		// first file seen for it.
		if !seenModules[pkgDir] {
			seenModules[pkgDir] = true
			ff.Declarations = append([]facts.Declaration{{
				Kind:          facts.KindModule,
				Name:          f.Name.Name,
				QualifiedName: pkgDir,
				StartLine:     1,
				EndLine:       1,
			}}, ff.Declarations...)
		}

		out = append(out, ff)
	}

	return out, perrs, nil
}

func (e *GoExtractor) extractFile(fset *token.FileSet, f *ast.File, relFile, pkgDir, modulePath string) facts.FileFacts {
	ff := facts.FileFacts{Path: relFile, Language: "go"}

	// Import edges: module -> imported module, internal imports only.
	for _, imp := range f.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)
		if target := internalImportTarget(importPath, modulePath); target != "" && target != pkgDir {
			ff.Edges = append(ff.Edges, facts.Edge{
				From: pkgDir,
				To:   target,
				Kind: facts.EdgeImport,
			})
		}
	}

	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			e.extractFunc(fset, d, pkgDir, &ff)
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				if ts, ok := spec.(*ast.TypeSpec); ok {
					e.extractTypeSpec(fset, ts, pkgDir, &ff)
				}
			}
		}
	}

	return ff
}

func (e *GoExtractor) extractFunc(fset *token.FileSet, fn *ast.FuncDecl, pkgDir string, ff *facts.FileFacts) {
	name := fn.Name.Name
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		if recv := typeExprToString(fn.Recv.List[0].Type); recv != "" {
			name = recv + "." + name
		}
	}
	qualified := pkgDir + "." + name

	decl := facts.Declaration{
		Kind:          facts.KindFunction,
		Name:          name,
		QualifiedName: qualified,
		StartLine:     fset.Position(fn.Pos()).Line,
		EndLine:       fset.Position(fn.End()).Line,
	}

	if fn.Body != nil {
		decl.Complexity = countBranches(fn.Body)
		for _, call := range extractCalls(fn.Body) {
			ff.Edges = append(ff.Edges, facts.Edge{
				From: qualified,
				To:   pkgDir + "." + call,
				Kind: facts.EdgeCall,
			})
		}
	}

	ff.Declarations = append(ff.Declarations, decl)
}

func (e *GoExtractor) extractTypeSpec(fset *token.FileSet, ts *ast.TypeSpec, pkgDir string, ff *facts.FileFacts) {
	st, ok := ts.Type.(*ast.StructType)
	if !ok {
		return
	}

	qualified := pkgDir + "." + ts.Name.Name
	ff.Declarations = append(ff.Declarations, facts.Declaration{
		Kind:          facts.KindClass,
		Name:          ts.Name.Name,
		QualifiedName: qualified,
		StartLine:     fset.Position(ts.Pos()).Line,
		EndLine:       fset.Position(ts.End()).Line,
	})

	// Embedded types approximate inheritance.
	if st.Fields != nil {
		for _, field := range st.Fields.List {
			if len(field.Names) != 0 {
				continue
			}
			if embedded := typeExprToString(field.Type); embedded != "" {
				ff.Edges = append(ff.Edges, facts.Edge{
					From: qualified,
					To:   pkgDir + "." + embedded,
					Kind: facts.EdgeInherit,
				})
			}
		}
	}
}

// countBranches estimates cyclomatic complexity as 1 + branch points.
func countBranches(body *ast.BlockStmt) int {
	count := 1
	ast.Inspect(body, func(n ast.Node) bool {
		switch v := n.(type) {
		case *ast.IfStmt, *ast.ForStmt, *ast.RangeStmt, *ast.CaseClause, *ast.CommClause:
			count++
		case *ast.BinaryExpr:
			if v.Op == token.LAND || v.Op == token.LOR {
				count++
			}
		}
		return true
	})
	return count
}

// extractCalls walks an AST node and extracts function call target names.
func extractCalls(node ast.Node) []string {
	var calls []string
	ast.Inspect(node, func(n ast.Node) bool {
		ce, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}

		switch fn := ce.Fun.(type) {
		case *ast.Ident:
			calls = append(calls, fn.Name)
		case *ast.SelectorExpr:
			if x, ok := fn.X.(*ast.Ident); ok {
				calls = append(calls, x.Name+"."+fn.Sel.Name)
			}
		}
		return true
	})
	return calls
}

// readModulePath reads the module path from go.mod in the given repo.
func readModulePath(repoPath string) string {
	data, err := os.ReadFile(filepath.Join(repoPath, "go.mod"))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "module "))
		}
	}
	return ""
}

// internalImportTarget maps an import path to a repo-relative module path,
// or "" for stdlib and third-party imports.
func internalImportTarget(importPath, modulePath string) string {
	if modulePath == "" {
		return ""
	}
	if importPath == modulePath {
		return "."
	}
	if strings.HasPrefix(importPath, modulePath+"/") {
		return strings.TrimPrefix(importPath, modulePath+"/")
	}
	return ""
}

// typeExprToString converts a type expression to a string representation.
func typeExprToString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return typeExprToString(t.X)
	case *ast.SelectorExpr:
		if x, ok := t.X.(*ast.Ident); ok {
			return x.Name + "." + t.Sel.Name
		}
	case *ast.IndexExpr:
		return typeExprToString(t.X)
	}
	return ""
}
