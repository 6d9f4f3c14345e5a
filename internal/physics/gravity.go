package physics

import "gonum.org/v1/gonum/spatial/r3"

const (
	DefaultG  = 10.0
	DefaultDt = 0.1
)

// ForceLaw returns the velocity change that other imparts on self during one
// time step. Implementations must return the zero vector for self-pairs.
type ForceLaw interface {
	Contribution(self, other *Particle) Vec3
}

// Gravity is the ring engine's force law:
//
//	dv = G * m_other * (x_other - x_self) / Distance(x_self, x_other)^3 * DT
type Gravity struct {
	G         float64
	DT        float64
	Softening float64
}

func NewGravity() *Gravity {
	return &Gravity{G: DefaultG, DT: DefaultDt}
}

func (g *Gravity) Contribution(self, other *Particle) Vec3 {
	if self.ID == other.ID {
		return Vec3{}
	}
	r := Distance(self.Position, other.Position, g.Softening)
	return g.scaled(self, other, r)
}

func (g *Gravity) scaled(self, other *Particle, r float64) Vec3 {
	d := r3.Sub(other.Position, self.Position)
	r3c := r * r * r
	f := g.G * other.Mass
	return Vec3{
		X: f * d.X / r3c * g.DT,
		Y: f * d.Y / r3c * g.DT,
		Z: f * d.Z / r3c * g.DT,
	}
}

// EuclideanGravity measures separation as |x_other - x_self| instead of the
// dot-product distance used by Gravity.
type EuclideanGravity struct {
	Gravity
}

func NewEuclideanGravity(softening float64) *EuclideanGravity {
	return &EuclideanGravity{Gravity{G: DefaultG, DT: DefaultDt, Softening: softening}}
}

func (g *EuclideanGravity) Contribution(self, other *Particle) Vec3 {
	if self.ID == other.ID {
		return Vec3{}
	}
	r := Separation(self.Position, other.Position, g.Softening)
	return g.scaled(self, other, r)
}

// Energy returns the total kinetic energy and the pairwise potential energy of
// particles, with potential measured by Separation.
func (g *Gravity) Energy(particles []Particle) (kinetic, potential float64) {
	for i := range particles {
		v := particles[i].Velocity
		kinetic += 0.5 * particles[i].Mass * r3.Dot(v, v)
		for j := i + 1; j < len(particles); j++ {
			r := Separation(particles[i].Position, particles[j].Position, g.Softening)
			potential -= g.G * particles[i].Mass * particles[j].Mass / r
		}
	}
	return kinetic, potential
}
