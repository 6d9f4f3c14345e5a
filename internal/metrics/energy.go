package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/ringbody/internal/physics"
)

// KineticEnergy reports the kinetic energy of the latest observed state.
type KineticEnergy struct {
	name   string
	masses []float64
	speed2 []float64
	value  float64
}

func NewKineticEnergy() *KineticEnergy {
	return &KineticEnergy{name: "kinetic_energy"}
}

func (k *KineticEnergy) Name() string { return k.name }

func (k *KineticEnergy) Observe(iteration int, particles []physics.Particle) {
	k.masses = k.masses[:0]
	k.speed2 = k.speed2[:0]
	for _, p := range particles {
		k.masses = append(k.masses, p.Mass)
		k.speed2 = append(k.speed2, r3.Dot(p.Velocity, p.Velocity))
	}
	k.value = 0.5 * floats.Dot(k.masses, k.speed2)
}

func (k *KineticEnergy) Value() float64 { return k.value }

func (k *KineticEnergy) Reset() {
	k.value = 0
}

// EnergyDrift tracks the largest relative deviation of total energy from the
// first observed state.
type EnergyDrift struct {
	name          string
	gravity       *physics.Gravity
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift(g *physics.Gravity) *EnergyDrift {
	return &EnergyDrift{
		name:    "energy_drift",
		gravity: g,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(iteration int, particles []physics.Particle) {
	ke, pe := e.gravity.Energy(particles)
	energy := ke + pe

	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
