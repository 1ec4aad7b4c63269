package pareto

// HealthObjectives builds one objective per analyzer from its reported score.
// Scores arrive direction-normalized, higher is better; cost-like metrics are
// already inverted by their analyzers. Each objective is the attention-
// weighted score of its analyzer. Weights sum to 1, so raising attention on
// one analyzer necessarily lowers it elsewhere; that coupling is what makes
// the frontier a genuine trade-off rather than a single optimum.
func HealthObjectives(names []string, scores map[string]float64) []Objective {
	objs := make([]Objective, len(names))
	for i, name := range names {
		idx := i
		score := scores[name]
		objs[i] = Objective{
			Name: name,
			Eval: func(weights []float64) float64 {
				return weights[idx] * score
			},
		}
	}
	return objs
}

// Degenerate reports whether the frontier collapsed to a single point in
// objective space. This is a valid outcome when objectives do not conflict,
// not an error.
func Degenerate(frontier []Solution, objectiveNames []string) bool {
	if len(frontier) <= 1 {
		return true
	}
	const eps = 1e-9
	for _, name := range objectiveNames {
		first := frontier[0].Objectives[name]
		for _, s := range frontier[1:] {
			if diff := s.Objectives[name] - first; diff > eps || diff < -eps {
				return false
			}
		}
	}
	return true
}
