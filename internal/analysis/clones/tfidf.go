package clones

import "math"

// tfidf is the degraded semantic-similarity signal used when units carry no
// embedding vector: TF-IDF weighted bag-of-tokens cosine over the corpus.
type tfidf struct {
	vectors []map[string]float64
	norms   []float64
}

func newTFIDF(feats []*unitFeatures) *tfidf {
	n := len(feats)
	df := make(map[string]int)
	tfs := make([]map[string]float64, n)

	for i, f := range feats {
		tf := make(map[string]float64)
		for _, t := range f.tokens {
			tf[t]++
		}
		tfs[i] = tf
		for t := range tf {
			df[t]++
		}
	}

	m := &tfidf{
		vectors: make([]map[string]float64, n),
		norms:   make([]float64, n),
	}
	for i, tf := range tfs {
		vec := make(map[string]float64, len(tf))
		var norm float64
		for t, count := range tf {
			idf := math.Log(float64(n+1) / float64(df[t]+1))
			w := count * idf
			vec[t] = w
			norm += w * w
		}
		m.vectors[i] = vec
		m.norms[i] = math.Sqrt(norm)
	}
	return m
}

func (m *tfidf) cosine(i, j int) float64 {
	if i >= len(m.vectors) || j >= len(m.vectors) {
		return 0
	}
	a, b := m.vectors[i], m.vectors[j]
	if m.norms[i] == 0 || m.norms[j] == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for t, w := range a {
		if w2, ok := b[t]; ok {
			dot += w * w2
		}
	}
	return dot / (m.norms[i] * m.norms[j])
}
