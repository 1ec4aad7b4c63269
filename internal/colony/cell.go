package colony

import (
	"time"

	"github.com/google/uuid"

	"github.com/dejo1307/codecolony/internal/analysis"
)

// State is the lifecycle state of an analyzer cell.
type State string

const (
	StateIdle        State = "idle"
	StateRunning     State = "running"
	StateHealthy     State = "healthy"
	StateDegraded    State = "degraded"
	StateQuarantined State = "quarantined"
	StateDead        State = "dead"
)

// Cell wraps one analyzer with lifecycle state. It owns no algorithm of its
// own; health and energy are derived observability fields and never drive
// quarantine decisions, which come strictly from faults and timeouts.
type Cell struct {
	ID           string
	AnalyzerName string

	analyzer analysis.Analyzer

	state     State
	health    float64
	energy    float64
	lastError string

	// lastResult is carried across cycles so a quarantined cell's prior
	// result is reused with a staleness flag, never silently dropped.
	lastResult *analysis.Result
	stale      bool
}

func newCell(a analysis.Analyzer) *Cell {
	return &Cell{
		ID:           uuid.NewString(),
		AnalyzerName: a.Name(),
		analyzer:     a,
		state:        StateIdle,
		health:       100,
		energy:       100,
	}
}

// Status is the externally visible snapshot of a cell.
type Status struct {
	ID           string  `json:"id"`
	AnalyzerName string  `json:"analyzer_name"`
	State        State   `json:"state"`
	Health       float64 `json:"health"`
	Energy       float64 `json:"energy"`
	LastError    string  `json:"last_error,omitempty"`
	Stale        bool    `json:"stale,omitempty"`
}

func (c *Cell) status() Status {
	return Status{
		ID:           c.ID,
		AnalyzerName: c.AnalyzerName,
		State:        c.state,
		Health:       c.health,
		Energy:       c.energy,
		LastError:    c.lastError,
		Stale:        c.stale,
	}
}

// markSuccess transitions running -> healthy or degraded. A result with
// parse errors means the analyzer worked around missing facts.
func (c *Cell) markSuccess(res *analysis.Result, budget time.Duration) {
	c.lastResult = res
	c.stale = false
	c.lastError = ""
	if res.Metrics["parse_error_count"] > 0 {
		c.state = StateDegraded
		c.health = 70
	} else {
		c.state = StateHealthy
		c.health = 100
	}
	c.energy = derivedEnergy(res.Duration, budget)
}

// markQuarantined transitions running -> quarantined after a fault or
// timeout. A prior result, if any, is kept and flagged stale.
func (c *Cell) markQuarantined(errMsg string) {
	c.state = StateQuarantined
	c.lastError = errMsg
	c.health = 25
	c.energy = 0
	if c.lastResult != nil {
		c.stale = true
	}
}

// derivedEnergy maps time spent against the cell budget onto [0,100].
func derivedEnergy(spent, budget time.Duration) float64 {
	if budget <= 0 {
		return 100
	}
	frac := 1.0 - float64(spent)/float64(budget)
	if frac < 0 {
		return 0
	}
	return 100 * frac
}
