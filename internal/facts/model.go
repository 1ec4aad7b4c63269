package facts

import "fmt"

// FileFacts holds the structural facts extracted from one source file.
// Produced once per file per run; never mutated after extraction.
type FileFacts struct {
	Path         string        `json:"path"`     // relative to repo root
	Language     string        `json:"language"` // e.g. "go", "typescript"
	Declarations []Declaration `json:"declarations,omitempty"`
	Edges        []Edge        `json:"edges,omitempty"`
}

// Declaration is a named structural unit found in a file.
type Declaration struct {
	Kind          string `json:"kind"` // module, class, or function
	Name          string `json:"name"`
	QualifiedName string `json:"qualified_name"`
	StartLine     int    `json:"start_line"`
	EndLine       int    `json:"end_line"`
	Complexity    int    `json:"complexity,omitempty"` // branch count estimate, 0 if unknown
}

// Edge is a directed structural relationship between two declarations.
type Edge struct {
	From string `json:"from"` // qualified name
	To   string `json:"to"`   // qualified name
	Kind string `json:"kind"` // import, call, or inherit
}

// Declaration kind constants.
const (
	KindModule   = "module"
	KindClass    = "class"
	KindFunction = "function"
)

// Edge kind constants.
const (
	EdgeImport  = "import"
	EdgeCall    = "call"
	EdgeInherit = "inherit"
)

// LOC returns the declaration's line span.
func (d Declaration) LOC() int {
	if d.EndLine < d.StartLine {
		return 0
	}
	return d.EndLine - d.StartLine + 1
}

// ParseError records a per-file parse failure. It degrades the analyzers
// that depend on the file's facts but never aborts extraction.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
