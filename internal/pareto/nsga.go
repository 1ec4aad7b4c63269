package pareto

import (
	"math"
	"sort"
)

const (
	sbxEta      = 15.0
	mutationEta = 20.0
	crossoverP  = 0.9
)

type individual struct {
	x     []float64
	f     []float64
	rank  int
	crowd float64
}

// dominates reports whether a is at least as good as b on every objective
// and strictly better on at least one. All objectives are maximized; callers
// negate anything that is naturally a cost.
func dominates(a, b individual) bool {
	better := false
	for j := range a.f {
		if a.f[j] < b.f[j] {
			return false
		}
		if a.f[j] > b.f[j] {
			better = true
		}
	}
	return better
}

// rankPopulation assigns non-domination ranks in place (0 = frontier) and
// crowding distances within each rank.
func rankPopulation(pop []individual) {
	n := len(pop)
	dominated := make([][]int, n)
	counts := make([]int, n)
	var front []int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			switch {
			case dominates(pop[i], pop[j]):
				dominated[i] = append(dominated[i], j)
				counts[j]++
			case dominates(pop[j], pop[i]):
				dominated[j] = append(dominated[j], i)
				counts[i]++
			}
		}
	}
	for i := 0; i < n; i++ {
		if counts[i] == 0 {
			pop[i].rank = 0
			front = append(front, i)
		}
	}
	rank := 0
	for len(front) > 0 {
		crowdingDistance(pop, front)
		var next []int
		for _, i := range front {
			for _, j := range dominated[i] {
				counts[j]--
				if counts[j] == 0 {
					pop[j].rank = rank + 1
					next = append(next, j)
				}
			}
		}
		front = next
		rank++
	}
}

// crowdingDistance computes the NSGA-II crowding metric for one front.
func crowdingDistance(pop []individual, front []int) {
	for _, i := range front {
		pop[i].crowd = 0
	}
	if len(front) <= 2 {
		for _, i := range front {
			pop[i].crowd = math.Inf(1)
		}
		return
	}
	m := len(pop[front[0]].f)
	idx := append([]int(nil), front...)
	for j := 0; j < m; j++ {
		sort.SliceStable(idx, func(a, b int) bool {
			return pop[idx[a]].f[j] < pop[idx[b]].f[j]
		})
		lo, hi := pop[idx[0]].f[j], pop[idx[len(idx)-1]].f[j]
		pop[idx[0]].crowd = math.Inf(1)
		pop[idx[len(idx)-1]].crowd = math.Inf(1)
		if hi-lo <= 0 {
			continue
		}
		for k := 1; k < len(idx)-1; k++ {
			pop[idx[k]].crowd += (pop[idx[k+1]].f[j] - pop[idx[k-1]].f[j]) / (hi - lo)
		}
	}
}

// makeOffspring produces a full offspring population via binary tournament,
// simulated binary crossover and polynomial mutation.
func (o *Optimizer) makeOffspring(pop []individual) []individual {
	n := len(pop)
	out := make([]individual, 0, n)
	for len(out) < n {
		p1 := o.tournament(pop)
		p2 := o.tournament(pop)
		c1, c2 := o.crossover(p1.x, p2.x)
		o.mutate(c1)
		o.mutate(c2)
		o.repair(c1)
		o.repair(c2)
		a := individual{x: c1}
		b := individual{x: c2}
		o.evaluate(&a)
		o.evaluate(&b)
		out = append(out, a)
		if len(out) < n {
			out = append(out, b)
		}
	}
	return out
}

func (o *Optimizer) tournament(pop []individual) individual {
	a := pop[o.rng.Intn(len(pop))]
	b := pop[o.rng.Intn(len(pop))]
	if a.rank < b.rank {
		return a
	}
	if b.rank < a.rank {
		return b
	}
	if a.crowd >= b.crowd {
		return a
	}
	return b
}

// crossover is simulated binary crossover (SBX).
func (o *Optimizer) crossover(p1, p2 []float64) ([]float64, []float64) {
	n := len(p1)
	c1 := append([]float64(nil), p1...)
	c2 := append([]float64(nil), p2...)
	if o.rng.Float64() > crossoverP {
		return c1, c2
	}
	for i := 0; i < n; i++ {
		if o.rng.Float64() > 0.5 || math.Abs(p1[i]-p2[i]) < 1e-12 {
			continue
		}
		u := o.rng.Float64()
		var beta float64
		if u <= 0.5 {
			beta = math.Pow(2*u, 1/(sbxEta+1))
		} else {
			beta = math.Pow(1/(2*(1-u)), 1/(sbxEta+1))
		}
		c1[i] = 0.5 * ((1+beta)*p1[i] + (1-beta)*p2[i])
		c2[i] = 0.5 * ((1-beta)*p1[i] + (1+beta)*p2[i])
	}
	return c1, c2
}

// mutate applies polynomial mutation with probability 1/n per gene.
func (o *Optimizer) mutate(x []float64) {
	n := len(x)
	pm := 1.0 / float64(n)
	span := o.opts.WeightMax - o.opts.WeightMin
	for i := range x {
		if o.rng.Float64() > pm {
			continue
		}
		u := o.rng.Float64()
		var delta float64
		if u < 0.5 {
			delta = math.Pow(2*u, 1/(mutationEta+1)) - 1
		} else {
			delta = 1 - math.Pow(2*(1-u), 1/(mutationEta+1))
		}
		x[i] += delta * span
	}
}

// selectNext reduces the combined parent+offspring population back to the
// configured size. The boundary front is trimmed by crowding distance, or by
// reference-direction niching when there are more than three objectives.
func (o *Optimizer) selectNext(combined []individual, dirs [][]float64) []individual {
	rankPopulation(combined)
	size := o.opts.Population
	sort.SliceStable(combined, func(a, b int) bool {
		return combined[a].rank < combined[b].rank
	})

	// Find the front that straddles the boundary.
	cut := 0
	for cut < size {
		r := combined[cut].rank
		end := cut
		for end < len(combined) && combined[end].rank == r {
			end++
		}
		if end <= size {
			cut = end
			continue
		}
		boundary := combined[cut:end]
		keep := size - cut
		if dirs != nil {
			boundary = o.nicheSelect(combined[:cut], boundary, dirs, keep)
		} else {
			sort.SliceStable(boundary, func(a, b int) bool {
				return boundary[a].crowd > boundary[b].crowd
			})
			boundary = boundary[:keep]
		}
		return append(append([]individual(nil), combined[:cut]...), boundary...)
	}
	return combined[:size]
}

// nicheSelect fills the boundary front preferring reference directions with
// the fewest already-selected members, in the manner of NSGA-III.
func (o *Optimizer) nicheSelect(chosen, boundary []individual, dirs [][]float64, keep int) []individual {
	m := len(o.objectives)
	ideal := make([]float64, m)
	nadir := make([]float64, m)
	all := append(append([]individual(nil), chosen...), boundary...)
	for j := 0; j < m; j++ {
		ideal[j] = math.Inf(-1)
		nadir[j] = math.Inf(1)
		for _, ind := range all {
			if ind.f[j] > ideal[j] {
				ideal[j] = ind.f[j]
			}
			if ind.f[j] < nadir[j] {
				nadir[j] = ind.f[j]
			}
		}
	}
	// Objectives are maximized, so the ideal is the per-objective max and
	// normalized values shrink toward 0 as solutions improve.
	normalize := func(f []float64) []float64 {
		out := make([]float64, m)
		for j := 0; j < m; j++ {
			span := ideal[j] - nadir[j]
			if span > 0 {
				out[j] = (ideal[j] - f[j]) / span
			}
		}
		return out
	}

	counts := make([]int, len(dirs))
	for _, ind := range chosen {
		d, _ := nearestDirection(normalize(ind.f), dirs)
		counts[d]++
	}
	type assoc struct {
		idx  int
		dir  int
		dist float64
	}
	assocs := make([]assoc, len(boundary))
	for i, ind := range boundary {
		d, dist := nearestDirection(normalize(ind.f), dirs)
		assocs[i] = assoc{idx: i, dir: d, dist: dist}
	}

	taken := make([]bool, len(boundary))
	var out []individual
	for len(out) < keep {
		// Direction with fewest members that still has candidates.
		bestDir, bestCount := -1, math.MaxInt
		for d := range dirs {
			hasCand := false
			for _, a := range assocs {
				if !taken[a.idx] && a.dir == d {
					hasCand = true
					break
				}
			}
			if hasCand && counts[d] < bestCount {
				bestDir, bestCount = d, counts[d]
			}
		}
		if bestDir < 0 {
			break
		}
		pick, pickDist := -1, math.Inf(1)
		for _, a := range assocs {
			if !taken[a.idx] && a.dir == bestDir && a.dist < pickDist {
				pick, pickDist = a.idx, a.dist
			}
		}
		taken[pick] = true
		counts[bestDir]++
		out = append(out, boundary[pick])
	}
	return out
}

// nearestDirection finds the reference direction with the smallest
// perpendicular distance to the normalized objective vector.
func nearestDirection(f []float64, dirs [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for d, dir := range dirs {
		dot, norm := 0.0, 0.0
		for j := range dir {
			dot += f[j] * dir[j]
			norm += dir[j] * dir[j]
		}
		proj := dot / norm
		dist := 0.0
		for j := range dir {
			diff := f[j] - proj*dir[j]
			dist += diff * diff
		}
		if dist < bestDist {
			best, bestDist = d, dist
		}
	}
	return best, bestDist
}

// referenceDirections generates Das-Dennis points on the unit simplex with
// the smallest division count whose point count reaches the population size.
func referenceDirections(m, population int) [][]float64 {
	h := 1
	for countDirections(m, h) < population && h < 30 {
		h++
	}
	var dirs [][]float64
	point := make([]float64, m)
	var gen func(dim, left int)
	gen = func(dim, left int) {
		if dim == m-1 {
			point[dim] = float64(left) / float64(h)
			dirs = append(dirs, append([]float64(nil), point...))
			return
		}
		for i := 0; i <= left; i++ {
			point[dim] = float64(i) / float64(h)
			gen(dim+1, left-i)
		}
	}
	gen(0, h)
	return dirs
}

// countDirections is C(h+m-1, m-1).
func countDirections(m, h int) int {
	n := 1
	for i := 1; i < m; i++ {
		n = n * (h + i) / i
	}
	return n
}
