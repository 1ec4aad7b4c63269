// Package pareto searches refactoring weight vectors with an evolutionary
// multi-objective optimizer. Up to three objectives it runs classic NSGA-II;
// above three it switches crowding out for reference-direction niching.
package pareto

import (
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
)

// Objective is one maximized criterion over a weight vector. Eval must be
// pure: the optimizer calls it many times per generation.
type Objective struct {
	Name string
	Eval func(weights []float64) float64
}

// Options tunes the evolutionary search. Zero values fall back to defaults.
type Options struct {
	Population  int
	Generations int
	WeightMin   float64
	WeightMax   float64
	Seed        int64
}

func (o Options) withDefaults() Options {
	if o.Population <= 0 {
		o.Population = 60
	}
	if o.Generations <= 0 {
		o.Generations = 40
	}
	if o.WeightMin == 0 && o.WeightMax == 0 {
		o.WeightMin, o.WeightMax = 0.05, 0.95
	}
	return o
}

// Solution is one non-dominated weight assignment and its objective values.
type Solution struct {
	Weights    map[string]float64 `json:"weights"`
	Objectives map[string]float64 `json:"objectives"`
}

// Optimizer drives the search. It is deterministic for a fixed seed.
type Optimizer struct {
	variables  []string
	objectives []Objective
	opts       Options
	rng        *rand.Rand
	logger     *zap.Logger
}

// New validates the problem shape and builds an optimizer.
func New(variables []string, objectives []Objective, opts Options, logger *zap.Logger) (*Optimizer, error) {
	if len(variables) == 0 {
		return nil, fmt.Errorf("pareto: no weight variables")
	}
	if len(objectives) == 0 {
		return nil, fmt.Errorf("pareto: no objectives")
	}
	opts = opts.withDefaults()
	if opts.WeightMin <= 0 || opts.WeightMax >= 1 || opts.WeightMin >= opts.WeightMax {
		return nil, fmt.Errorf("pareto: weight bounds [%v, %v] invalid", opts.WeightMin, opts.WeightMax)
	}
	if float64(len(variables))*opts.WeightMin > 1 || float64(len(variables))*opts.WeightMax < 1 {
		return nil, fmt.Errorf("pareto: %d weights in [%v, %v] cannot sum to 1",
			len(variables), opts.WeightMin, opts.WeightMax)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		variables:  variables,
		objectives: objectives,
		opts:       opts,
		rng:        rand.New(rand.NewSource(opts.Seed)),
		logger:     logger.Named("pareto"),
	}, nil
}

// Optimize runs the full evolutionary loop and returns the non-dominated
// frontier in stable population order. A single-point frontier is a valid
// outcome when the objectives do not conflict.
func (o *Optimizer) Optimize() []Solution {
	n := len(o.variables)
	pop := make([]individual, o.opts.Population)
	for i := range pop {
		pop[i].x = o.randomVector(n)
		o.evaluate(&pop[i])
	}

	var dirs [][]float64
	if len(o.objectives) > 3 {
		dirs = referenceDirections(len(o.objectives), o.opts.Population)
	}

	for gen := 0; gen < o.opts.Generations; gen++ {
		rankPopulation(pop)
		offspring := o.makeOffspring(pop)
		pop = o.selectNext(append(pop, offspring...), dirs)
	}

	rankPopulation(pop)
	var frontier []Solution
	seen := map[string]bool{}
	for _, ind := range pop {
		if ind.rank != 0 {
			continue
		}
		key := vectorKey(ind.x)
		if seen[key] {
			continue
		}
		seen[key] = true
		frontier = append(frontier, o.toSolution(ind))
	}
	o.logger.Info("frontier computed",
		zap.Int("size", len(frontier)),
		zap.Int("objectives", len(o.objectives)))
	return frontier
}

// SelectBalanced picks the frontier solution closest to the ideal point, the
// per-objective maximum across the frontier, measured in normalized objective
// space. Ties keep the earliest solution in frontier order.
func SelectBalanced(frontier []Solution, objectiveNames []string) (Solution, bool) {
	if len(frontier) == 0 {
		return Solution{}, false
	}
	m := len(objectiveNames)
	ideal := make([]float64, m)
	worst := make([]float64, m)
	for j, name := range objectiveNames {
		ideal[j] = math.Inf(-1)
		worst[j] = math.Inf(1)
		for _, s := range frontier {
			v := s.Objectives[name]
			if v > ideal[j] {
				ideal[j] = v
			}
			if v < worst[j] {
				worst[j] = v
			}
		}
	}
	best, bestDist := 0, math.Inf(1)
	for i, s := range frontier {
		d := 0.0
		for j, name := range objectiveNames {
			span := ideal[j] - worst[j]
			if span <= 0 {
				continue
			}
			norm := (ideal[j] - s.Objectives[name]) / span
			d += norm * norm
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return frontier[best], true
}

func (o *Optimizer) evaluate(ind *individual) {
	ind.f = make([]float64, len(o.objectives))
	for j, obj := range o.objectives {
		ind.f[j] = obj.Eval(ind.x)
	}
}

func (o *Optimizer) toSolution(ind individual) Solution {
	w := make(map[string]float64, len(o.variables))
	for i, name := range o.variables {
		w[name] = ind.x[i]
	}
	f := make(map[string]float64, len(o.objectives))
	for j, obj := range o.objectives {
		f[obj.Name] = ind.f[j]
	}
	return Solution{Weights: w, Objectives: f}
}

func (o *Optimizer) randomVector(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = o.opts.WeightMin + o.rng.Float64()*(o.opts.WeightMax-o.opts.WeightMin)
	}
	o.repair(x)
	return x
}

// repair clamps each weight into bounds and rescales the vector to sum to 1,
// iterating because rescaling can push weights back out of bounds.
func (o *Optimizer) repair(x []float64) {
	lo, hi := o.opts.WeightMin, o.opts.WeightMax
	for iter := 0; iter < 8; iter++ {
		sum := 0.0
		for i := range x {
			if x[i] < lo {
				x[i] = lo
			}
			if x[i] > hi {
				x[i] = hi
			}
			sum += x[i]
		}
		if math.Abs(sum-1) < 1e-9 {
			return
		}
		// Distribute the residual across weights with slack.
		residual := 1 - sum
		var slack float64
		for i := range x {
			if residual > 0 {
				slack += hi - x[i]
			} else {
				slack += x[i] - lo
			}
		}
		if slack <= 0 {
			return
		}
		for i := range x {
			if residual > 0 {
				x[i] += residual * (hi - x[i]) / slack
			} else {
				x[i] += residual * (x[i] - lo) / slack
			}
		}
	}
}

func vectorKey(x []float64) string {
	key := ""
	for _, v := range x {
		key += fmt.Sprintf("%.6f,", v)
	}
	return key
}
