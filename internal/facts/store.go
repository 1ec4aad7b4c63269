package facts

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// Store provides in-memory storage and querying of per-file facts with JSONL
// persistence. Within one colony cycle the store is shared read-only across
// all analyzer cells; a new store is built (not mutated) at the start of the
// next cycle.
type Store struct {
	mu    sync.RWMutex
	files []FileFacts

	byPath map[string]int      // file path -> index into files
	byName map[string][]declRef // qualified name -> declaration refs

	parseErrors []ParseError
}

type declRef struct {
	file int // index into files
	decl int // index into files[file].Declarations
}

// NewStore creates an empty fact store.
func NewStore() *Store {
	return &Store{
		byPath: make(map[string]int),
		byName: make(map[string][]declRef),
	}
}

// Add adds per-file facts to the store. Re-adding a path replaces nothing;
// extraction runs once per file per cycle, so duplicate paths are a bug in
// the extractor and the first entry wins for index lookups.
func (s *Store) Add(ff ...FileFacts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range ff {
		idx := len(s.files)
		s.files = append(s.files, f)
		if _, exists := s.byPath[f.Path]; !exists {
			s.byPath[f.Path] = idx
		}
		for di, d := range f.Declarations {
			s.byName[d.QualifiedName] = append(s.byName[d.QualifiedName], declRef{file: idx, decl: di})
		}
	}
}

// AddParseError records a per-file parse failure.
func (s *Store) AddParseError(pe ParseError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parseErrors = append(s.parseErrors, pe)
}

// All returns all file facts in insertion order.
func (s *Store) All() []FileFacts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]FileFacts, len(s.files))
	copy(result, s.files)
	return result
}

// FileCount returns the number of files with facts.
func (s *Store) FileCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// ByPath returns the facts for a single file.
func (s *Store) ByPath(path string) (FileFacts, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byPath[path]
	if !ok {
		return FileFacts{}, false
	}
	return s.files[idx], true
}

// Declaration returns the first declaration with the given qualified name
// and the path of the file that declares it.
func (s *Store) Declaration(qualifiedName string) (Declaration, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := s.byName[qualifiedName]
	if len(refs) == 0 {
		return Declaration{}, "", false
	}
	r := refs[0]
	return s.files[r.file].Declarations[r.decl], s.files[r.file].Path, true
}

// DeclarationsByKind returns all declarations of the given kind together
// with their file paths, in insertion order.
func (s *Store) DeclarationsByKind(kind string) []LocatedDeclaration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []LocatedDeclaration
	for _, f := range s.files {
		for _, d := range f.Declarations {
			if d.Kind == kind {
				result = append(result, LocatedDeclaration{Declaration: d, Path: f.Path, Language: f.Language})
			}
		}
	}
	return result
}

// LocatedDeclaration pairs a declaration with its source file.
type LocatedDeclaration struct {
	Declaration
	Path     string
	Language string
}

// Edges returns all structural edges across all files, in insertion order.
func (s *Store) Edges() []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []Edge
	for _, f := range s.files {
		result = append(result, f.Edges...)
	}
	return result
}

// MethodCount counts function declarations qualified under the given class.
func (s *Store) MethodCount(classQualifiedName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := classQualifiedName + "."
	count := 0
	for _, f := range s.files {
		for _, d := range f.Declarations {
			if d.Kind == KindFunction && strings.HasPrefix(d.QualifiedName, prefix) {
				count++
			}
		}
	}
	return count
}

// ParseErrors returns the parse failures recorded during extraction.
func (s *Store) ParseErrors() []ParseError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]ParseError, len(s.parseErrors))
	copy(result, s.parseErrors)
	return result
}

// Languages returns the distinct languages present, sorted.
func (s *Store) Languages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for _, f := range s.files {
		seen[f.Language] = true
	}
	langs := make([]string, 0, len(seen))
	for l := range seen {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// WriteJSONL writes all file facts as JSONL to the given writer.
func (s *Store) WriteJSONL(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enc := json.NewEncoder(w)
	for _, f := range s.files {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("encoding facts for %q: %w", f.Path, err)
		}
	}
	return nil
}

// WriteJSONLFile writes all file facts as JSONL to the given file path.
func (s *Store) WriteJSONLFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	if err := s.WriteJSONL(bw); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadJSONL reads file facts from a JSONL reader and adds them to the store.
func (s *Store) ReadJSONL(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	// Allow large lines
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var f FileFacts
		if err := json.Unmarshal(line, &f); err != nil {
			return fmt.Errorf("decoding facts: %w", err)
		}
		s.Add(f)
	}
	return scanner.Err()
}

// ReadJSONLFile reads file facts from a JSONL file and adds them to the store.
func (s *Store) ReadJSONLFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return s.ReadJSONL(f)
}
