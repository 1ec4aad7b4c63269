package pareto

import (
	"math"
	"reflect"
	"testing"
)

// --- helpers ---

func testOptions() Options {
	return Options{Population: 40, Generations: 25, WeightMin: 0.05, WeightMax: 0.95, Seed: 1}
}

func solutionDominates(a, b Solution, names []string) bool {
	better := false
	for _, n := range names {
		if a.Objectives[n] < b.Objectives[n] {
			return false
		}
		if a.Objectives[n] > b.Objectives[n] {
			better = true
		}
	}
	return better
}

// --- construction ---

func TestNewRejectsBadProblems(t *testing.T) {
	obj := []Objective{{Name: "x", Eval: func(w []float64) float64 { return w[0] }}}
	tests := []struct {
		name string
		vars []string
		objs []Objective
		opts Options
	}{
		{"no variables", nil, obj, testOptions()},
		{"no objectives", []string{"a"}, nil, testOptions()},
		{"min at zero", []string{"a", "b"}, obj, Options{Population: 10, Generations: 5, WeightMin: 0, WeightMax: 0.9}},
		{"max at one", []string{"a", "b"}, obj, Options{Population: 10, Generations: 5, WeightMin: 0.1, WeightMax: 1}},
		{"bounds cannot sum to one", []string{"a", "b", "c"}, obj, Options{Population: 10, Generations: 5, WeightMin: 0.4, WeightMax: 0.45}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.vars, tt.objs, tt.opts, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// --- invariants ---

func TestFrontierRespectsWeightConstraints(t *testing.T) {
	vars := []string{"security", "performance", "coverage"}
	objs := []Objective{
		{Name: "security", Eval: func(w []float64) float64 { return w[0] * 80 }},
		{Name: "performance", Eval: func(w []float64) float64 { return w[1] * 60 }},
		{Name: "coverage", Eval: func(w []float64) float64 { return w[2] * 40 }},
	}
	opt, err := New(vars, objs, testOptions(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	frontier := opt.Optimize()
	if len(frontier) == 0 {
		t.Fatal("frontier must never be empty")
	}

	for i, s := range frontier {
		sum := 0.0
		for _, v := range vars {
			w, ok := s.Weights[v]
			if !ok {
				t.Fatalf("solution %d missing weight %q", i, v)
			}
			if w < 0.05-1e-9 || w > 0.95+1e-9 {
				t.Errorf("solution %d: weight %q = %v out of bounds", i, v, w)
			}
			sum += w
		}
		if math.Abs(sum-1) > 1e-6 {
			t.Errorf("solution %d: weights sum to %v, want 1", i, sum)
		}
	}
}

func TestFrontierNonDomination(t *testing.T) {
	vars := []string{"a", "b", "c"}
	objs := []Objective{
		{Name: "a", Eval: func(w []float64) float64 { return w[0] * 100 }},
		{Name: "b", Eval: func(w []float64) float64 { return w[1] * 100 }},
		{Name: "c", Eval: func(w []float64) float64 { return w[2] * 100 }},
	}
	opt, err := New(vars, objs, testOptions(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	frontier := opt.Optimize()

	names := []string{"a", "b", "c"}
	for i := range frontier {
		for j := range frontier {
			if i == j {
				continue
			}
			if solutionDominates(frontier[i], frontier[j], names) {
				t.Fatalf("solution %d dominates solution %d within the frontier", i, j)
			}
		}
	}
}

func TestAntiCorrelatedObjectivesYieldTradeoffs(t *testing.T) {
	// Security improves exactly as performance degrades: no single weight
	// vector can win both, so the frontier must hold at least two distinct
	// solutions.
	vars := []string{"security", "performance"}
	objs := []Objective{
		{Name: "security", Eval: func(w []float64) float64 { return w[0] * 100 }},
		{Name: "performance", Eval: func(w []float64) float64 { return (1 - w[0]) * 100 }},
	}
	opt, err := New(vars, objs, testOptions(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	frontier := opt.Optimize()
	if len(frontier) < 2 {
		t.Fatalf("frontier size = %d, want >= 2 for anti-correlated objectives", len(frontier))
	}
}

func TestDegenerateObjectivesStillReturnFrontier(t *testing.T) {
	// Constant objectives have zero variance; a single-point frontier is the
	// correct, non-error outcome.
	vars := []string{"a", "b"}
	objs := []Objective{
		{Name: "a", Eval: func(w []float64) float64 { return 50 }},
		{Name: "b", Eval: func(w []float64) float64 { return 50 }},
	}
	opt, err := New(vars, objs, testOptions(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	frontier := opt.Optimize()
	if len(frontier) == 0 {
		t.Fatal("degenerate problem must still yield a frontier")
	}
	if !Degenerate(frontier, []string{"a", "b"}) {
		t.Error("Degenerate should report a collapsed frontier")
	}
}

func TestOptimizeDeterministicForFixedSeed(t *testing.T) {
	build := func() []Solution {
		vars := []string{"a", "b"}
		objs := []Objective{
			{Name: "a", Eval: func(w []float64) float64 { return w[0] * 100 }},
			{Name: "b", Eval: func(w []float64) float64 { return w[1] * 100 }},
		}
		opt, err := New(vars, objs, testOptions(), nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return opt.Optimize()
	}
	if !reflect.DeepEqual(build(), build()) {
		t.Error("same seed must reproduce the same frontier")
	}
}

func TestManyObjectivesUseReferenceDirections(t *testing.T) {
	// Five anti-correlated objectives exercise the reference-direction
	// selection path; the frontier must stay non-empty and valid.
	vars := []string{"a", "b", "c", "d", "e"}
	objs := make([]Objective, 5)
	for i := range objs {
		idx := i
		objs[i] = Objective{
			Name: vars[i],
			Eval: func(w []float64) float64 { return w[idx] * 100 },
		}
	}
	opt, err := New(vars, objs, testOptions(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	frontier := opt.Optimize()
	if len(frontier) == 0 {
		t.Fatal("frontier must not be empty with >3 objectives")
	}
}

// --- select_balanced ---

func TestSelectBalanced(t *testing.T) {
	frontier := []Solution{
		{Weights: map[string]float64{"a": 0.9, "b": 0.1}, Objectives: map[string]float64{"a": 100, "b": 0}},
		{Weights: map[string]float64{"a": 0.5, "b": 0.5}, Objectives: map[string]float64{"a": 55, "b": 55}},
		{Weights: map[string]float64{"a": 0.1, "b": 0.9}, Objectives: map[string]float64{"a": 0, "b": 100}},
	}
	got, ok := SelectBalanced(frontier, []string{"a", "b"})
	if !ok {
		t.Fatal("SelectBalanced returned no solution")
	}
	if got.Weights["a"] != 0.5 {
		t.Errorf("balanced pick = %+v, want the middle solution", got)
	}
}

func TestSelectBalancedTieKeepsInsertionOrder(t *testing.T) {
	frontier := []Solution{
		{Objectives: map[string]float64{"a": 60, "b": 40}},
		{Objectives: map[string]float64{"a": 40, "b": 60}},
	}
	got, ok := SelectBalanced(frontier, []string{"a", "b"})
	if !ok {
		t.Fatal("SelectBalanced returned no solution")
	}
	if !reflect.DeepEqual(got, frontier[0]) {
		t.Errorf("tie must keep the earlier solution, got %+v", got)
	}
}

func TestSelectBalancedEmpty(t *testing.T) {
	if _, ok := SelectBalanced(nil, []string{"a"}); ok {
		t.Error("empty frontier must report no solution")
	}
}

// --- repair ---

func TestRepairClampsAndRenormalizes(t *testing.T) {
	opt, err := New([]string{"a", "b", "c"}, []Objective{
		{Name: "a", Eval: func(w []float64) float64 { return w[0] }},
	}, testOptions(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name string
		in   []float64
	}{
		{"already valid", []float64{0.3, 0.3, 0.4}},
		{"out of bounds high", []float64{2.0, 0.1, 0.1}},
		{"out of bounds low", []float64{-0.5, 0.6, 0.6}},
		{"sum far from one", []float64{0.9, 0.9, 0.9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := append([]float64(nil), tt.in...)
			opt.repair(x)
			sum := 0.0
			for _, v := range x {
				if v < 0.05-1e-9 || v > 0.95+1e-9 {
					t.Errorf("repaired value %v out of bounds", v)
				}
				sum += v
			}
			if math.Abs(sum-1) > 1e-6 {
				t.Errorf("repaired sum = %v, want 1", sum)
			}
		})
	}
}

// --- reference directions ---

func TestReferenceDirectionsOnSimplex(t *testing.T) {
	dirs := referenceDirections(4, 30)
	if len(dirs) < 30 {
		t.Fatalf("directions = %d, want >= population", len(dirs))
	}
	for i, d := range dirs {
		sum := 0.0
		for _, v := range d {
			if v < 0 {
				t.Fatalf("direction %d has negative component", i)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("direction %d sums to %v, want 1", i, sum)
		}
	}
}
