package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/ringbody/internal/integrators"
	"github.com/san-kum/ringbody/internal/metrics"
	"github.com/san-kum/ringbody/internal/physics"
	"github.com/san-kum/ringbody/internal/sim"
)

// LawParams are the constants shared by every force law.
type LawParams struct {
	G         float64
	Dt        float64
	Softening float64
}

type Registry struct {
	laws        map[string]func(LawParams) physics.ForceLaw
	integrators map[string]sim.IntegratorFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		laws:        make(map[string]func(LawParams) physics.ForceLaw),
		integrators: make(map[string]sim.IntegratorFactory),
	}

	r.laws["gravity"] = func(p LawParams) physics.ForceLaw {
		return &physics.Gravity{G: p.G, DT: p.Dt, Softening: p.Softening}
	}
	r.laws["euclidean"] = func(p LawParams) physics.ForceLaw {
		return &physics.EuclideanGravity{Gravity: physics.Gravity{G: p.G, DT: p.Dt, Softening: p.Softening}}
	}

	r.integrators["semi-implicit"] = func() integrators.Integrator { return integrators.NewSemiImplicitEuler() }
	r.integrators["kick-drift"] = func() integrators.Integrator { return integrators.NewKickDrift() }

	return r
}

func (r *Registry) GetLaw(name string, params LawParams) (sim.LawFactory, error) {
	fn, ok := r.laws[name]
	if !ok {
		return nil, fmt.Errorf("unknown force law: %s", name)
	}
	return func() physics.ForceLaw { return fn(params) }, nil
}

func (r *Registry) GetIntegrator(name string) (sim.IntegratorFactory, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn, nil
}

func (r *Registry) ListLaws() []string {
	return sortedKeys(r.laws)
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) DefaultMetrics(params LawParams) []sim.Metric {
	return []sim.Metric{
		metrics.NewKineticEnergy(),
		metrics.NewEnergyDrift(&physics.Gravity{G: params.G, DT: params.Dt, Softening: params.Softening}),
		metrics.NewMomentum(),
		metrics.NewCenterOfMassDrift(),
		metrics.NewNonFinite(),
	}
}
