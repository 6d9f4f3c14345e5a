package sim

import (
	"time"

	"github.com/san-kum/ringbody/internal/integrators"
	"github.com/san-kum/ringbody/internal/physics"
)

type LawFactory func() physics.ForceLaw

type IntegratorFactory func() integrators.Integrator

// Metric is fed the gathered particle set after every recorded iteration.
type Metric interface {
	Name() string
	Observe(iteration int, particles []physics.Particle)
	Value() float64
	Reset()
}

// Observer is notified on the collector rank after every recorded iteration.
// Iteration 0 carries the initial state.
type Observer interface {
	OnIteration(iteration int, particles []physics.Particle)
}

type Config struct {
	Iterations int
	Dt         float64
	// Root is the collector rank that gathers state.
	Root int
	// Record gathers the full particle set to Root after every iteration
	// and feeds it to metrics and observers. Every rank must agree on it.
	Record bool
	// KeepHistory stores each recorded snapshot in the result.
	KeepHistory bool
}

func DefaultConfig() Config {
	return Config{
		Iterations: 5,
		Dt:         physics.DefaultDt,
		Record:     true,
	}
}

type Snapshot struct {
	Iteration int
	Particles []physics.Particle
}

type Result struct {
	Rank int
	// Particles is the gathered final state on the collector rank and nil
	// elsewhere.
	Particles []physics.Particle
	// Local is this rank's final resident slice.
	Local      []physics.Particle
	Iterations int
	Rounds     int
	Elapsed    time.Duration
	Metrics    map[string]float64
	Series     map[string][]float64
	History    []Snapshot
}
