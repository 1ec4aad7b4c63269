package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the codecolony.yaml configuration.
type Config struct {
	Repo      string        `yaml:"repo"`
	Ignore    []string      `yaml:"ignore"`
	Analyzers []string      `yaml:"analyzers"`
	Colony    ColonyConfig  `yaml:"colony"`
	Graph     GraphConfig   `yaml:"graph"`
	Clones    ClonesConfig  `yaml:"clones"`
	Pareto    ParetoConfig  `yaml:"pareto"`
	Output    OutputConfig  `yaml:"output"`
}

// ColonyConfig controls cell scheduling and timeouts.
type ColonyConfig struct {
	CellTimeout  time.Duration `yaml:"cell_timeout"`  // per-cell budget
	CycleTimeout time.Duration `yaml:"cycle_timeout"` // global per-cycle budget
	Interval     time.Duration `yaml:"interval"`      // watch-mode cycle interval
	MaxWorkers   int           `yaml:"max_workers"`   // 0 = number of CPUs
}

// GraphConfig holds dependency-graph analyzer thresholds.
type GraphConfig struct {
	Granularity        string  `yaml:"granularity"` // module, class, or function
	GodClassMethods    int     `yaml:"god_class_methods"`
	GodClassLOC        int     `yaml:"god_class_loc"`
	FragileInstability float64 `yaml:"fragile_instability"`
	FragileDependents  int     `yaml:"fragile_dependents"`
}

// ClonesConfig holds clone-detection thresholds.
type ClonesConfig struct {
	PrefilterJaccard float64 `yaml:"prefilter_jaccard"` // shingle pre-filter floor
	Type3Similarity  float64 `yaml:"type3_similarity"`  // edit-distance floor for type 3
	Type4Cosine      float64 `yaml:"type4_cosine"`      // semantic cosine floor for type 4
	MinUnitTokens    int     `yaml:"min_unit_tokens"`   // skip trivially small units
}

// ParetoConfig holds multi-objective optimizer parameters.
type ParetoConfig struct {
	Population  int     `yaml:"population"`
	Generations int     `yaml:"generations"`
	WeightMin   float64 `yaml:"weight_min"`
	WeightMax   float64 `yaml:"weight_max"`
}

// OutputConfig controls where report artifacts are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Repo: ".",
		Ignore: []string{
			"vendor/**",
			"node_modules/**",
			".git/**",
			"dist/**",
			"build/**",
			".codecolony/**",
		},
		Analyzers: []string{"depgraph", "clones", "security", "performance", "coverage", "complexity"},
		Colony: ColonyConfig{
			CellTimeout:  30 * time.Second,
			CycleTimeout: 2 * time.Minute,
			Interval:     30 * time.Second,
		},
		Graph: GraphConfig{
			Granularity:        "module",
			GodClassMethods:    20,
			GodClassLOC:        500,
			FragileInstability: 0.8,
			FragileDependents:  3,
		},
		Clones: ClonesConfig{
			PrefilterJaccard: 0.3,
			Type3Similarity:  0.8,
			Type4Cosine:      0.85,
			MinUnitTokens:    15,
		},
		Pareto: ParetoConfig{
			Population:  60,
			Generations: 40,
			WeightMin:   0.05,
			WeightMax:   0.95,
		},
		Output: OutputConfig{
			Dir: ".codecolony",
		},
	}
}

// Load reads a configuration file from the given path.
// Missing fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Ensure required defaults
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = ".codecolony"
	}
	if cfg.Colony.CellTimeout == 0 {
		cfg.Colony.CellTimeout = 30 * time.Second
	}
	if cfg.Colony.CycleTimeout == 0 {
		cfg.Colony.CycleTimeout = 2 * time.Minute
	}

	return cfg, nil
}

// FatalConfigError reports a configuration violation that must abort the
// run entirely. All other failure modes are recovered inside the colony and
// surfaced as snapshot data.
type FatalConfigError struct {
	Field  string
	Reason string
}

func (e *FatalConfigError) Error() string {
	return fmt.Sprintf("fatal config: %s: %s", e.Field, e.Reason)
}

// Validate checks invariants that must hold before any cell runs.
func (c *Config) Validate() error {
	if len(c.Analyzers) == 0 {
		return &FatalConfigError{Field: "analyzers", Reason: "no analyzers enabled"}
	}
	if c.Pareto.WeightMin <= 0 || c.Pareto.WeightMax >= 1 || c.Pareto.WeightMin >= c.Pareto.WeightMax {
		return &FatalConfigError{
			Field:  "pareto",
			Reason: fmt.Sprintf("weight bounds [%v, %v] must satisfy 0 < min < max < 1", c.Pareto.WeightMin, c.Pareto.WeightMax),
		}
	}
	if c.Pareto.Population < 4 {
		return &FatalConfigError{
			Field:  "pareto.population",
			Reason: fmt.Sprintf("%d too small (need at least 4)", c.Pareto.Population),
		}
	}
	switch c.Graph.Granularity {
	case "module", "class", "function":
	default:
		return &FatalConfigError{Field: "graph.granularity", Reason: fmt.Sprintf("unknown value %q", c.Graph.Granularity)}
	}
	return nil
}

// IsAnalyzerEnabled returns true if the named analyzer is enabled.
func (c *Config) IsAnalyzerEnabled(name string) bool {
	for _, v := range c.Analyzers {
		if v == name {
			return true
		}
	}
	return false
}
