// Package clones performs pairwise code-similarity analysis over function
// bodies, classifying duplicates into clone types 1-4.
package clones

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Clone type constants.
const (
	Type1 = 1 // exact text
	Type2 = 2 // identical after identifier renaming
	Type3 = 3 // near-miss with edits
	Type4 = 4 // semantically similar, syntactically distant
)

// CodeUnit is one comparable body of code: a function's source slice with
// its token stream and an optional dense embedding vector.
type CodeUnit struct {
	QualifiedName string
	Path          string
	StartLine     int
	EndLine       int
	Source        string
	Tokens        []string
	Embedding     []float64 // optional; TF-IDF fallback applies when absent
}

// Fingerprint returns the content hash used as the unit's cache key.
// It changes whenever the unit's source changes, invalidating exactly that
// unit's cached features.
func (u *CodeUnit) Fingerprint() uint64 {
	return xxhash.Sum64String(u.Source)
}

// Candidate is a detected clone pair. UnitA sorts before UnitB by
// qualified name so a pair has one identity regardless of input order.
type Candidate struct {
	UnitA              string  `json:"unit_a"`
	UnitB              string  `json:"unit_b"`
	LocationA          string  `json:"location_a"`
	LocationB          string  `json:"location_b"`
	Similarity         float64 `json:"similarity"`                    // lexical, in [0,1]
	SemanticSimilarity float64 `json:"semantic_similarity,omitempty"` // type-4 signal
	CloneType          int     `json:"clone_type"`
}

// Thresholds controls the detection pipeline.
type Thresholds struct {
	PrefilterJaccard float64 // shingle Jaccard floor for detailed scoring
	Type3Similarity  float64 // edit similarity floor for type 3
	Type4Cosine      float64 // semantic cosine floor for type 4
	MinUnitTokens    int     // units below this size are skipped
}

// Detector finds clone pairs over a unit corpus. Feature computation is
// cached per unit fingerprint across runs; entries for vanished content are
// pruned, never the whole cache.
type Detector struct {
	thresholds Thresholds
	cache      map[uint64]*unitFeatures
}

type unitFeatures struct {
	tokens     []string
	normalized []string
	rawJoined  string
	normJoined string
	shingles   map[uint64]struct{}
}

// NewDetector creates a clone detector with the given thresholds.
func NewDetector(t Thresholds) *Detector {
	if t.MinUnitTokens <= 0 {
		t.MinUnitTokens = 15
	}
	return &Detector{
		thresholds: t,
		cache:      make(map[uint64]*unitFeatures),
	}
}

// SemanticMode reports how the type-4 semantic signal is computed for the
// given corpus: "embedding" when every unit carries a dense vector,
// otherwise the degraded "lexical-tfidf" fallback. Callers surface this so
// consumers know type-4 detection is running in degraded mode.
func (d *Detector) SemanticMode(units []*CodeUnit) string {
	if len(units) == 0 {
		return "lexical-tfidf"
	}
	for _, u := range units {
		if len(u.Embedding) == 0 {
			return "lexical-tfidf"
		}
	}
	return "embedding"
}

// ctxCheckStride bounds how many pairs are scored between context checks,
// so the pair loop stays interruptible on large corpora.
const ctxCheckStride = 1024

// Detect computes the clone set for the corpus. Output is deterministic:
// stable sort by similarity descending, then by pair identity. It returns
// early with the context error when cancelled mid-scoring.
func (d *Detector) Detect(ctx context.Context, units []*CodeUnit) ([]Candidate, error) {
	kept := make([]*CodeUnit, 0, len(units))
	feats := make([]*unitFeatures, 0, len(units))
	live := make(map[uint64]struct{}, len(units))

	for n, u := range units {
		if n%ctxCheckStride == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		f := d.features(u)
		live[u.Fingerprint()] = struct{}{}
		if len(f.tokens) < d.thresholds.MinUnitTokens {
			continue
		}
		kept = append(kept, u)
		feats = append(feats, f)
	}
	d.prune(live)

	semantic := newTFIDF(feats)
	useEmbeddings := d.SemanticMode(kept) == "embedding"

	// Inverted shingle index: only pairs sharing at least one shingle are
	// candidates, which avoids O(n^2) scoring on large corpora.
	byShingle := make(map[uint64][]int)
	for i, f := range feats {
		for s := range f.shingles {
			byShingle[s] = append(byShingle[s], i)
		}
	}
	pairSeen := make(map[[2]int]struct{})
	var candidates []Candidate

	scored := 0
	for _, bucket := range byShingle {
		for x := 0; x < len(bucket); x++ {
			for y := x + 1; y < len(bucket); y++ {
				i, j := bucket[x], bucket[y]
				if i > j {
					i, j = j, i
				}
				key := [2]int{i, j}
				if _, done := pairSeen[key]; done {
					continue
				}
				pairSeen[key] = struct{}{}

				if scored%ctxCheckStride == 0 {
					if err := ctx.Err(); err != nil {
						return nil, err
					}
				}
				scored++
				if c, ok := d.score(kept[i], feats[i], kept[j], feats[j], semantic, i, j, useEmbeddings); ok {
					candidates = append(candidates, c)
				}
			}
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].Similarity != candidates[b].Similarity {
			return candidates[a].Similarity > candidates[b].Similarity
		}
		if candidates[a].UnitA != candidates[b].UnitA {
			return candidates[a].UnitA < candidates[b].UnitA
		}
		return candidates[a].UnitB < candidates[b].UnitB
	})

	return candidates, nil
}

func (d *Detector) score(a *CodeUnit, fa *unitFeatures, b *CodeUnit, fb *unitFeatures, semantic *tfidf, ai, bi int, useEmbeddings bool) (Candidate, bool) {
	jaccard := shingleJaccard(fa.shingles, fb.shingles)
	if jaccard < d.thresholds.PrefilterJaccard {
		// Cheap prefilter failed; only a semantic (type-4) match can
		// still qualify.
		return d.scoreSemantic(a, b, semantic, ai, bi, useEmbeddings)
	}

	c := Candidate{}
	c.UnitA, c.UnitB = a.QualifiedName, b.QualifiedName
	c.LocationA = fmt.Sprintf("%s:%d", a.Path, a.StartLine)
	c.LocationB = fmt.Sprintf("%s:%d", b.Path, b.StartLine)
	if c.UnitB < c.UnitA {
		c.UnitA, c.UnitB = c.UnitB, c.UnitA
		c.LocationA, c.LocationB = c.LocationB, c.LocationA
	}

	switch {
	case fa.rawJoined == fb.rawJoined:
		c.CloneType = Type1
		c.Similarity = 1.0
	case fa.normJoined == fb.normJoined:
		c.CloneType = Type2
		c.Similarity = editSimilarity(fa.normalized, fb.normalized) // 1.0 by construction
	default:
		sim := editSimilarity(fa.normalized, fb.normalized)
		if sim < d.thresholds.Type3Similarity {
			return d.scoreSemantic(a, b, semantic, ai, bi, useEmbeddings)
		}
		c.CloneType = Type3
		c.Similarity = sim
	}

	return c, true
}

// scoreSemantic checks the type-4 path: high semantic cosine while lexical
// similarity is low.
func (d *Detector) scoreSemantic(a *CodeUnit, b *CodeUnit, semantic *tfidf, ai, bi int, useEmbeddings bool) (Candidate, bool) {
	var cos float64
	if useEmbeddings {
		cos = cosine(a.Embedding, b.Embedding)
	} else {
		cos = semantic.cosine(ai, bi)
	}
	if cos < d.thresholds.Type4Cosine {
		return Candidate{}, false
	}

	c := Candidate{
		UnitA:              a.QualifiedName,
		UnitB:              b.QualifiedName,
		LocationA:          fmt.Sprintf("%s:%d", a.Path, a.StartLine),
		LocationB:          fmt.Sprintf("%s:%d", b.Path, b.StartLine),
		CloneType:          Type4,
		SemanticSimilarity: cos,
	}
	if c.UnitB < c.UnitA {
		c.UnitA, c.UnitB = c.UnitB, c.UnitA
		c.LocationA, c.LocationB = c.LocationB, c.LocationA
	}
	return c, true
}

// Similarity computes the lexical similarity of two units directly. It is
// symmetric and reflexive: Similarity(a, a) == 1.
func (d *Detector) Similarity(a, b *CodeUnit) float64 {
	fa, fb := d.features(a), d.features(b)
	if fa.rawJoined == fb.rawJoined {
		return 1.0
	}
	return editSimilarity(fa.normalized, fb.normalized)
}

// CloneType classifies a single pair, bypassing the prefilter.
func (d *Detector) CloneType(a, b *CodeUnit) int {
	fa, fb := d.features(a), d.features(b)
	switch {
	case fa.rawJoined == fb.rawJoined:
		return Type1
	case fa.normJoined == fb.normJoined:
		return Type2
	case editSimilarity(fa.normalized, fb.normalized) >= d.thresholds.Type3Similarity:
		return Type3
	default:
		return 0
	}
}

func (d *Detector) features(u *CodeUnit) *unitFeatures {
	fp := u.Fingerprint()
	if f, ok := d.cache[fp]; ok {
		return f
	}

	tokens := u.Tokens
	if tokens == nil {
		tokens = Tokenize(u.Source)
	}
	normalized := NormalizeIdentifiers(tokens)

	f := &unitFeatures{
		tokens:     tokens,
		normalized: normalized,
		rawJoined:  strings.Join(tokens, "\x00"),
		normJoined: strings.Join(normalized, "\x00"),
		shingles:   shingleSet(normalized, 3),
	}
	d.cache[fp] = f
	return f
}

// prune drops cache entries whose content no longer exists in the corpus.
func (d *Detector) prune(live map[uint64]struct{}) {
	for fp := range d.cache {
		if _, ok := live[fp]; !ok {
			delete(d.cache, fp)
		}
	}
}

// shingleSet hashes every n-gram of the token stream.
func shingleSet(tokens []string, n int) map[uint64]struct{} {
	set := make(map[uint64]struct{})
	if len(tokens) < n {
		if len(tokens) > 0 {
			set[xxhash.Sum64String(strings.Join(tokens, "\x00"))] = struct{}{}
		}
		return set
	}
	for i := 0; i+n <= len(tokens); i++ {
		set[xxhash.Sum64String(strings.Join(tokens[i:i+n], "\x00"))] = struct{}{}
	}
	return set
}

func shingleJaccard(a, b map[uint64]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for s := range small {
		if _, ok := large[s]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// editSimilarity is 1 - normalized token-level Levenshtein distance.
func editSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Single-row DP keeps memory linear in the shorter stream.
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}

	maxLen := len(a)
	return 1.0 - float64(prev[len(b)])/float64(maxLen)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
