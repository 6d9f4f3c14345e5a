package metrics

import (
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/ringbody/internal/physics"
)

// Momentum reports |Σ m·v| of the latest observed state.
type Momentum struct {
	name  string
	value float64
}

func NewMomentum() *Momentum {
	return &Momentum{name: "momentum"}
}

func (m *Momentum) Name() string { return m.name }

func (m *Momentum) Observe(iteration int, particles []physics.Particle) {
	var total physics.Vec3
	for _, p := range particles {
		total = r3.Add(total, r3.Scale(p.Mass, p.Velocity))
	}
	m.value = r3.Norm(total)
}

func (m *Momentum) Value() float64 { return m.value }
func (m *Momentum) Reset()         { m.value = 0 }

// CenterOfMassDrift reports how far the mass-weighted centroid has moved
// since the first observed state.
type CenterOfMassDrift struct {
	name    string
	origin  physics.Vec3
	value   float64
	samples int
	xs      []float64
	ys      []float64
	zs      []float64
	weights []float64
}

func NewCenterOfMassDrift() *CenterOfMassDrift {
	return &CenterOfMassDrift{name: "com_drift"}
}

func (c *CenterOfMassDrift) Name() string { return c.name }

func (c *CenterOfMassDrift) Observe(iteration int, particles []physics.Particle) {
	com := c.centroid(particles)
	if c.samples == 0 {
		c.origin = com
	}
	c.samples++
	c.value = r3.Norm(r3.Sub(com, c.origin))
}

func (c *CenterOfMassDrift) centroid(particles []physics.Particle) physics.Vec3 {
	c.xs, c.ys, c.zs, c.weights = c.xs[:0], c.ys[:0], c.zs[:0], c.weights[:0]
	for _, p := range particles {
		c.xs = append(c.xs, p.Position.X)
		c.ys = append(c.ys, p.Position.Y)
		c.zs = append(c.zs, p.Position.Z)
		c.weights = append(c.weights, p.Mass)
	}
	return physics.Vec3{
		X: stat.Mean(c.xs, c.weights),
		Y: stat.Mean(c.ys, c.weights),
		Z: stat.Mean(c.zs, c.weights),
	}
}

func (c *CenterOfMassDrift) Value() float64 { return c.value }

func (c *CenterOfMassDrift) Reset() {
	c.origin = physics.Vec3{}
	c.value = 0
	c.samples = 0
}
