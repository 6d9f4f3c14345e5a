package physics

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

type Particle struct {
	// ID is the particle's index in the input sequence and identifies it
	// across ranks.
	ID       int
	Position Vec3
	Velocity Vec3
	Mass     float64
	Radius   float64
	// Pending is the velocity change accumulated during the current
	// iteration. It is cleared by the integrator.
	Pending Vec3
}

func (p *Particle) Accumulate(dv Vec3) {
	p.Pending = r3.Add(p.Pending, dv)
}

func (p Particle) IsFinite() bool {
	return IsFinite(p.Position) && IsFinite(p.Velocity)
}

func (p Particle) String() string {
	return fmt.Sprintf("particle %d (x=%g y=%g z=%g mass=%g)", p.ID, p.Position.X, p.Position.Y, p.Position.Z, p.Mass)
}

// Snapshot copies particles for transfer to another owner. Pending is dropped.
func Snapshot(particles []Particle) []Particle {
	out := make([]Particle, len(particles))
	copy(out, particles)
	for i := range out {
		out[i].Pending = Vec3{}
	}
	return out
}
