package metrics

import "github.com/san-kum/ringbody/internal/physics"

// NonFinite counts particles whose position or velocity holds NaN or Inf in
// the latest observed state.
type NonFinite struct {
	name  string
	count int
}

func NewNonFinite() *NonFinite {
	return &NonFinite{name: "nonfinite"}
}

func (n *NonFinite) Name() string {
	return n.name
}

func (n *NonFinite) Observe(iteration int, particles []physics.Particle) {
	n.count = 0
	for _, p := range particles {
		if !p.IsFinite() {
			n.count++
		}
	}
}

func (n *NonFinite) Value() float64 {
	return float64(n.count)
}

func (n *NonFinite) Reset() {
	n.count = 0
}
