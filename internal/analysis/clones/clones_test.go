package clones

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// --- helpers ---

func detect(t *testing.T, d *Detector, units []*CodeUnit) []Candidate {
	t.Helper()
	candidates, err := d.Detect(context.Background(), units)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	return candidates
}

func defaultThresholds() Thresholds {
	return Thresholds{
		PrefilterJaccard: 0.3,
		Type3Similarity:  0.8,
		Type4Cosine:      0.85,
		MinUnitTokens:    5,
	}
}

func unit(name, src string) *CodeUnit {
	return &CodeUnit{
		QualifiedName: name,
		Path:          name + ".go",
		StartLine:     1,
		EndLine:       10,
		Source:        src,
	}
}

const sumFunc = `func sum(values []int) int {
	total := 0
	for _, v := range values {
		total = total + v
	}
	return total
}`

// sumFunc with every identifier renamed, structure untouched.
const sumFuncRenamed = `func add(nums []int) int {
	acc := 0
	for _, n := range nums {
		acc = acc + n
	}
	return acc
}`

// sumFunc with one statement added, identifiers untouched.
const sumFuncEdited = `func sum(values []int) int {
	total := 0
	for _, v := range values {
		total = total + v
	}
	total = total + 1
	return total
}`

// --- tokenizer ---

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "identifiers and punctuation",
			src:  "a = b + 1;",
			want: []string{"a", "=", "b", "+", "1", ";"},
		},
		{
			name: "line comment stripped",
			src:  "x := 1 // the answer",
			want: []string{"x", ":", "=", "1"},
		},
		{
			name: "block comment stripped",
			src:  "x /* hidden */ = 2",
			want: []string{"x", "=", "2"},
		},
		{
			name: "string literal is one token",
			src:  `log("a + b")`,
			want: []string{"log", "(", `"a + b"`, ")"},
		},
		{
			name: "whitespace irrelevant",
			src:  "if  x {\n\ty()\n}",
			want: []string{"if", "x", "{", "y", "(", ")", "}"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.src)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.src, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdentifiers(t *testing.T) {
	got := NormalizeIdentifiers([]string{"total", "=", "total", "+", "v", "for", "x"})
	want := []string{"$0", "=", "$0", "+", "$1", "for", "$2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeIdentifiers = %v, want %v", got, want)
	}
}

func TestNormalizationMakesRenamesEqual(t *testing.T) {
	a := NormalizeIdentifiers(Tokenize(sumFunc))
	b := NormalizeIdentifiers(Tokenize(sumFuncRenamed))
	if !reflect.DeepEqual(a, b) {
		t.Errorf("normalized streams differ:\n%v\n%v", a, b)
	}
}

// --- similarity properties ---

func TestSimilarityReflexive(t *testing.T) {
	d := NewDetector(defaultThresholds())
	u := unit("a", sumFunc)
	if got := d.Similarity(u, u); got != 1.0 {
		t.Errorf("Similarity(a, a) = %v, want 1.0", got)
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	d := NewDetector(defaultThresholds())
	a := unit("a", sumFunc)
	b := unit("b", sumFuncEdited)
	ab := d.Similarity(a, b)
	ba := d.Similarity(b, a)
	if ab != ba {
		t.Errorf("Similarity not symmetric: %v vs %v", ab, ba)
	}
	if ab <= 0 || ab >= 1 {
		t.Errorf("edited pair similarity = %v, want in (0, 1)", ab)
	}
}

// --- classification ---

func TestCloneTypeClassification(t *testing.T) {
	d := NewDetector(defaultThresholds())
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical source", sumFunc, sumFunc, Type1},
		{"renamed identifiers", sumFunc, sumFuncRenamed, Type2},
		{"small edits", sumFunc, sumFuncEdited, Type3},
		{"unrelated code", sumFunc, "func open(p string) error { return errors.New(p) }", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.CloneType(unit("a", tt.a), unit("b", tt.b)); got != tt.want {
				t.Errorf("CloneType = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRenamedCloneSimilarityAtLeastPoint95(t *testing.T) {
	d := NewDetector(defaultThresholds())
	candidates := detect(t, d, []*CodeUnit{unit("a", sumFunc), unit("b", sumFuncRenamed)})
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	c := candidates[0]
	if c.CloneType != Type2 {
		t.Errorf("CloneType = %d, want 2", c.CloneType)
	}
	if c.Similarity < 0.95 {
		t.Errorf("Similarity = %v, want >= 0.95", c.Similarity)
	}
}

// --- detection pipeline ---

func TestDetectDeterministicAndSorted(t *testing.T) {
	units := []*CodeUnit{
		unit("sum", sumFunc),
		unit("sumCopy", sumFunc),
		unit("sumRenamed", sumFuncRenamed),
		unit("sumEdited", sumFuncEdited),
	}
	d := NewDetector(defaultThresholds())
	first := detect(t, d, units)

	// Shuffled input must produce the same candidate set in the same order.
	shuffled := []*CodeUnit{units[3], units[1], units[0], units[2]}
	second := detect(t, NewDetector(defaultThresholds()), shuffled)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("detection not deterministic:\n%+v\n%+v", first, second)
	}
	for i := 1; i < len(first); i++ {
		if first[i].Similarity > first[i-1].Similarity {
			t.Errorf("candidates not sorted by similarity at %d", i)
		}
	}
	// Pair identity is order-independent.
	for _, c := range first {
		if c.UnitA >= c.UnitB {
			t.Errorf("pair %q/%q not ordered", c.UnitA, c.UnitB)
		}
	}
}

func TestDetectSkipsTinyUnits(t *testing.T) {
	d := NewDetector(Thresholds{PrefilterJaccard: 0.3, Type3Similarity: 0.8, Type4Cosine: 0.85, MinUnitTokens: 50})
	candidates := detect(t, d, []*CodeUnit{unit("a", sumFunc), unit("b", sumFunc)})
	if len(candidates) != 0 {
		t.Errorf("tiny units must be skipped, got %d candidates", len(candidates))
	}
}

func TestDetectType4WithEmbeddings(t *testing.T) {
	// Syntactically distant, semantically aligned via embeddings.
	a := unit("a", sumFunc)
	b := unit("b", "func open(path string) (x *File, err error) { x, err = sysOpen(path); return }")
	a.Embedding = []float64{1, 0.2, 0.1}
	b.Embedding = []float64{0.95, 0.25, 0.12}

	d := NewDetector(defaultThresholds())
	if mode := d.SemanticMode([]*CodeUnit{a, b}); mode != "embedding" {
		t.Fatalf("SemanticMode = %q, want embedding", mode)
	}
	candidates := detect(t, d, []*CodeUnit{a, b})
	// The pair shares no shingles, so only the semantic path can match; it
	// may or may not fire depending on bucket overlap, but if it does it
	// must be type 4.
	for _, c := range candidates {
		if c.CloneType != Type4 {
			t.Errorf("CloneType = %d, want 4", c.CloneType)
		}
		if c.SemanticSimilarity < 0.85 {
			t.Errorf("SemanticSimilarity = %v, want >= threshold", c.SemanticSimilarity)
		}
	}
}

func TestSemanticModeFallback(t *testing.T) {
	d := NewDetector(defaultThresholds())
	units := []*CodeUnit{unit("a", sumFunc), unit("b", sumFuncRenamed)}
	if mode := d.SemanticMode(units); mode != "lexical-tfidf" {
		t.Errorf("SemanticMode = %q, want lexical-tfidf without embeddings", mode)
	}
}

func TestDetectStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDetector(defaultThresholds())
	units := []*CodeUnit{unit("a", sumFunc), unit("b", sumFuncRenamed)}
	if _, err := d.Detect(ctx, units); !errors.Is(err, context.Canceled) {
		t.Errorf("Detect err = %v, want context.Canceled", err)
	}
}

// --- cache ---

func TestCacheInvalidationPerUnit(t *testing.T) {
	d := NewDetector(defaultThresholds())
	a := unit("a", sumFunc)
	b := unit("b", sumFuncRenamed)
	detect(t, d, []*CodeUnit{a, b})
	if len(d.cache) != 2 {
		t.Fatalf("cache size = %d, want 2", len(d.cache))
	}
	oldFP := b.Fingerprint()

	// Changing one unit's source must evict only that unit's entry.
	b2 := unit("b", sumFuncEdited)
	detect(t, d, []*CodeUnit{a, b2})
	if len(d.cache) != 2 {
		t.Fatalf("cache size after change = %d, want 2", len(d.cache))
	}
	if _, stale := d.cache[oldFP]; stale {
		t.Error("stale fingerprint survived the prune")
	}
	if _, ok := d.cache[a.Fingerprint()]; !ok {
		t.Error("unchanged unit's cache entry was evicted")
	}
}

// --- edit similarity ---

func TestEditSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"both empty", nil, nil, 1.0},
		{"one empty", []string{"x"}, nil, 0},
		{"equal", []string{"a", "b"}, []string{"a", "b"}, 1.0},
		{"disjoint", []string{"a", "b"}, []string{"c", "d"}, 0},
		{"half", []string{"a", "b"}, []string{"a", "c"}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := editSimilarity(tt.a, tt.b); got != tt.want {
				t.Errorf("editSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}
