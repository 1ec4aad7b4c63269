// Package tsextractor extracts structural facts from TypeScript/TSX source
// using tree-sitter.
package tsextractor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dejo1307/codecolony/internal/facts"

	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// TSExtractor extracts module, class, and function declarations plus
// import/call/inherit edges from TypeScript source files.
type TSExtractor struct {
	logger *zap.Logger
}

// New creates a new TSExtractor.
func New(logger *zap.Logger) *TSExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TSExtractor{logger: logger.Named("ts-extractor")}
}

func (e *TSExtractor) Name() string {
	return "typescript"
}

// Detect returns true if the repository contains tsconfig.json or a
// package.json with a TypeScript dependency.
func (e *TSExtractor) Detect(repoPath string) (bool, error) {
	if _, err := os.Stat(filepath.Join(repoPath, "tsconfig.json")); err == nil {
		return true, nil
	}

	data, err := os.ReadFile(filepath.Join(repoPath, "package.json"))
	if err != nil {
		return false, nil
	}

	var pkg map[string]any
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false, nil
	}

	for _, key := range []string{"dependencies", "devDependencies"} {
		if deps, ok := pkg[key].(map[string]any); ok {
			if _, ok := deps["typescript"]; ok {
				return true, nil
			}
		}
	}

	return false, nil
}

// Extract parses TypeScript/TSX files and emits per-file structural facts.
func (e *TSExtractor) Extract(ctx context.Context, repoPath string, files []string) ([]facts.FileFacts, []facts.ParseError, error) {
	var out []facts.FileFacts
	var perrs []facts.ParseError

	aliases := parseTSPathAliases(repoPath)
	seenModules := make(map[string]bool)

	for _, relFile := range files {
		select {
		case <-ctx.Done():
			return out, perrs, ctx.Err()
		default:
		}

		if !isTypeScriptFile(relFile) {
			continue
		}

		src, err := os.ReadFile(filepath.Join(repoPath, relFile))
		if err != nil {
			perrs = append(perrs, facts.ParseError{Path: relFile, Err: err})
			continue
		}

		ff := e.extractFile(src, relFile, aliases)

		dir := filepath.ToSlash(filepath.Dir(relFile))
		if !seenModules[dir] {
			seenModules[dir] = true
			ff.Declarations = append([]facts.Declaration{{
				Kind:          facts.KindModule,
				Name:          filepath.Base(dir),
				QualifiedName: dir,
				StartLine:     1,
				EndLine:       1,
			}}, ff.Declarations...)
		}

		out = append(out, ff)
	}

	return out, perrs, nil
}

func (e *TSExtractor) extractFile(src []byte, relFile string, aliases map[string]string) facts.FileFacts {
	ff := facts.FileFacts{Path: relFile, Language: "typescript"}

	lang := typescript.LanguageTypescript()
	if strings.HasSuffix(relFile, ".tsx") {
		lang = typescript.LanguageTSX()
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(sitter.NewLanguage(lang))

	tree := parser.Parse(src, nil)
	defer tree.Close()

	root := tree.RootNode()
	dir := filepath.ToSlash(filepath.Dir(relFile))

	e.extractImports(root, src, dir, aliases, &ff)
	for i := range root.ChildCount() {
		e.extractNode(root.Child(i), src, dir, &ff)
	}

	return ff
}

func (e *TSExtractor) extractImports(root *sitter.Node, src []byte, dir string, aliases map[string]string, ff *facts.FileFacts) {
	for i := range root.ChildCount() {
		child := root.Child(i)
		if child.Kind() != "import_statement" {
			continue
		}

		source := findChildByKind(child, "string")
		if source == nil {
			continue
		}

		importPath := strings.Trim(nodeText(source, src), `"'`)
		resolved, isExternal := resolveImportPath(importPath, dir, aliases)
		if isExternal || resolved == dir {
			continue
		}

		// Imports that point at a file inside a module directory collapse
		// onto the directory so module-level cycles line up.
		ff.Edges = append(ff.Edges, facts.Edge{
			From: dir,
			To:   resolved,
			Kind: facts.EdgeImport,
		})
	}
}

func (e *TSExtractor) extractNode(node *sitter.Node, src []byte, dir string, ff *facts.FileFacts) {
	switch node.Kind() {
	case "export_statement":
		for _, kind := range []string{"function_declaration", "class_declaration", "lexical_declaration"} {
			if decl := findChildByKind(node, kind); decl != nil {
				e.extractNode(decl, src, dir, ff)
				return
			}
		}

	case "function_declaration":
		name := findChildByKind(node, "identifier")
		if name == nil {
			return
		}
		e.addFunction(node, nodeText(name, src), dir+"."+nodeText(name, src), dir, src, ff)

	case "class_declaration":
		name := findChildByKind(node, "type_identifier")
		if name == nil {
			return
		}
		className := nodeText(name, src)
		qualified := dir + "." + className

		ff.Declarations = append(ff.Declarations, facts.Declaration{
			Kind:          facts.KindClass,
			Name:          className,
			QualifiedName: qualified,
			StartLine:     int(node.StartPosition().Row) + 1,
			EndLine:       int(node.EndPosition().Row) + 1,
		})

		// extends clause approximates inheritance
		for j := range node.ChildCount() {
			c := node.Child(j)
			if c.Kind() != "class_heritage" {
				continue
			}
			for k := range c.ChildCount() {
				h := c.Child(k)
				if h.Kind() != "extends_clause" {
					continue
				}
				for l := range h.ChildCount() {
					t := h.Child(l)
					if t.Kind() == "identifier" || t.Kind() == "type_identifier" {
						ff.Edges = append(ff.Edges, facts.Edge{
							From: qualified,
							To:   dir + "." + nodeText(t, src),
							Kind: facts.EdgeInherit,
						})
					}
				}
			}
		}

		classBody := findChildByKind(node, "class_body")
		if classBody == nil {
			return
		}
		for j := range classBody.ChildCount() {
			member := classBody.Child(j)
			if member.Kind() != "method_definition" {
				continue
			}
			methodName := findChildByKind(member, "property_identifier")
			if methodName == nil {
				continue
			}
			mName := nodeText(methodName, src)
			if strings.HasPrefix(mName, "#") || mName == "constructor" {
				continue
			}
			e.addFunction(member, mName, qualified+"."+mName, dir, src, ff)
		}

	case "lexical_declaration":
		// const f = () => { ... } declarations
		for j := range node.ChildCount() {
			decl := node.Child(j)
			if decl.Kind() != "variable_declarator" {
				continue
			}
			name := findChildByKind(decl, "identifier")
			arrow := findChildByKind(decl, "arrow_function")
			if name == nil || arrow == nil {
				continue
			}
			e.addFunction(arrow, nodeText(name, src), dir+"."+nodeText(name, src), dir, src, ff)
		}
	}
}

func (e *TSExtractor) addFunction(node *sitter.Node, name, qualified, dir string, src []byte, ff *facts.FileFacts) {
	ff.Declarations = append(ff.Declarations, facts.Declaration{
		Kind:          facts.KindFunction,
		Name:          name,
		QualifiedName: qualified,
		StartLine:     int(node.StartPosition().Row) + 1,
		EndLine:       int(node.EndPosition().Row) + 1,
		Complexity:    countBranches(node),
	})

	for _, call := range extractCalls(node, src) {
		ff.Edges = append(ff.Edges, facts.Edge{
			From: qualified,
			To:   dir + "." + call,
			Kind: facts.EdgeCall,
		})
	}
}

// countBranches estimates cyclomatic complexity as 1 + branch points.
func countBranches(node *sitter.Node) int {
	count := 1
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Kind() {
		case "if_statement", "for_statement", "for_in_statement", "while_statement",
			"switch_case", "ternary_expression", "catch_clause":
			count++
		}
		for i := range n.ChildCount() {
			walk(n.Child(i))
		}
	}
	walk(node)
	return count
}

// extractCalls collects called identifiers within a function body.
func extractCalls(node *sitter.Node, src []byte) []string {
	var calls []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Kind() == "call_expression" {
			fn := n.Child(0)
			if fn != nil {
				switch fn.Kind() {
				case "identifier":
					calls = append(calls, nodeText(fn, src))
				case "member_expression":
					calls = append(calls, nodeText(fn, src))
				}
			}
		}
		for i := range n.ChildCount() {
			walk(n.Child(i))
		}
	}
	walk(node)
	return calls
}

func isTypeScriptFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".ts" || ext == ".tsx"
}

func findChildByKind(node *sitter.Node, kind string) *sitter.Node {
	for i := range node.ChildCount() {
		child := node.Child(i)
		if child.Kind() == kind {
			return child
		}
	}
	return nil
}

func nodeText(node *sitter.Node, src []byte) string {
	return string(src[node.StartByte():node.EndByte()])
}

// parseTSPathAliases reads tsconfig.json and extracts path alias mappings.
// For example, "@/*": ["./src/*"] maps prefix "@/" to replacement "src/".
func parseTSPathAliases(repoPath string) map[string]string {
	aliases := make(map[string]string)

	data, err := os.ReadFile(filepath.Join(repoPath, "tsconfig.json"))
	if err != nil {
		return aliases
	}

	var config struct {
		CompilerOptions struct {
			Paths map[string][]string `json:"paths"`
		} `json:"compilerOptions"`
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return aliases
	}

	for pattern, targets := range config.CompilerOptions.Paths {
		if len(targets) == 0 {
			continue
		}
		if strings.HasSuffix(pattern, "*") && strings.HasSuffix(targets[0], "*") {
			prefix := strings.TrimSuffix(pattern, "*")
			replacement := strings.TrimSuffix(targets[0], "*")
			replacement = strings.TrimPrefix(replacement, "./")
			aliases[prefix] = replacement
		}
	}

	return aliases
}

// resolveImportPath normalizes a TypeScript import path to a repo-relative
// path. It handles path aliases (@/) and relative imports (./), and flags
// external packages.
func resolveImportPath(importPath, fileDir string, aliases map[string]string) (string, bool) {
	for prefix, replacement := range aliases {
		if strings.HasPrefix(importPath, prefix) {
			rest := strings.TrimPrefix(importPath, prefix)
			return filepath.ToSlash(filepath.Clean(replacement + rest)), false
		}
	}

	if strings.HasPrefix(importPath, ".") {
		resolved := filepath.ToSlash(filepath.Clean(filepath.Join(fileDir, importPath)))
		return resolved, false
	}

	return importPath, true
}
