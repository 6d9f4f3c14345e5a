package integrators

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/ringbody/internal/physics"
)

// Integrator advances one particle by a time step, consuming its pending
// velocity change.
type Integrator interface {
	Name() string
	Step(p *physics.Particle, dt float64)
}

// SemiImplicitEuler advances position with the velocity from before the step,
// then applies the pending velocity change.
type SemiImplicitEuler struct{}

func NewSemiImplicitEuler() *SemiImplicitEuler {
	return &SemiImplicitEuler{}
}

func (e *SemiImplicitEuler) Name() string { return "semi-implicit" }

func (e *SemiImplicitEuler) Step(p *physics.Particle, dt float64) {
	p.Position = r3.Add(p.Position, r3.Scale(dt, p.Velocity))
	p.Velocity = r3.Add(p.Velocity, p.Pending)
	p.Pending = physics.Vec3{}
}

// KickDrift applies the pending velocity change first and moves with the
// updated velocity.
type KickDrift struct{}

func NewKickDrift() *KickDrift {
	return &KickDrift{}
}

func (k *KickDrift) Name() string { return "kick-drift" }

func (k *KickDrift) Step(p *physics.Particle, dt float64) {
	p.Velocity = r3.Add(p.Velocity, p.Pending)
	p.Position = r3.Add(p.Position, r3.Scale(dt, p.Velocity))
	p.Pending = physics.Vec3{}
}

// StepAll integrates every particle in place.
func StepAll(integ Integrator, particles []physics.Particle, dt float64) {
	for i := range particles {
		integ.Step(&particles[i], dt)
	}
}
