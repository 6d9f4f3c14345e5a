package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/ringbody/internal/comm"
	"github.com/san-kum/ringbody/internal/integrators"
	"github.com/san-kum/ringbody/internal/physics"
	"github.com/san-kum/ringbody/internal/ring"
)

// Driver runs the ring engine on one rank. The same Driver may serve every
// rank of a local run; metrics and observers are only touched by the
// collector rank.
type Driver struct {
	newLaw        LawFactory
	newIntegrator IntegratorFactory
	metrics       []Metric
	observers     []Observer
	logger        *slog.Logger
}

func New(law LawFactory, integrator IntegratorFactory) *Driver {
	if law == nil {
		law = func() physics.ForceLaw { return physics.NewGravity() }
	}
	if integrator == nil {
		integrator = func() integrators.Integrator { return integrators.NewSemiImplicitEuler() }
	}
	return &Driver{
		newLaw:        law,
		newIntegrator: integrator,
		metrics:       make([]Metric, 0),
		observers:     make([]Observer, 0),
		logger:        slog.Default(),
	}
}

func (d *Driver) AddMetric(m Metric)       { d.metrics = append(d.metrics, m) }
func (d *Driver) AddObserver(o Observer)   { d.observers = append(d.observers, o) }
func (d *Driver) SetLogger(l *slog.Logger) { d.logger = l }

// RunRank partitions particles, takes this rank's slice and evolves it for
// cfg.Iterations iterations in lock step with the other ranks of c.
func (d *Driver) RunRank(ctx context.Context, c comm.Communicator, particles []physics.Particle, cfg Config) (*Result, error) {
	if err := d.validateConfig(c, cfg); err != nil {
		return nil, err
	}

	rank, size := c.Rank(), c.Size()
	isRoot := rank == cfg.Root
	logger := d.logger.With("rank", rank)

	rg := ring.Partition(size, rank, len(particles))
	proc, err := ring.NewProcess(c, physics.Snapshot(particles[rg.Start:rg.End]), ring.Options{
		Law:        d.newLaw(),
		Integrator: d.newIntegrator(),
		Dt:         cfg.Dt,
		Logger:     d.logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("rank ready", "slice", rg.String(), "particles", rg.Len())

	result := &Result{Rank: rank}
	if isRoot {
		result.Metrics = make(map[string]float64)
		result.Series = make(map[string][]float64)
		for _, m := range d.metrics {
			m.Reset()
		}
		if cfg.Record {
			d.record(result, 0, physics.Snapshot(particles), cfg)
		}
	}

	start := time.Now()
	if err := c.Barrier(ctx); err != nil {
		return nil, err
	}

	for it := 0; it < cfg.Iterations; it++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		for r := 0; r < size; r++ {
			if err := proc.Step(ctx); err != nil {
				logger.Error("exchange round failed", "iteration", it, "round", r, "error", err)
				return nil, err
			}
			if err := c.Barrier(ctx); err != nil {
				return nil, err
			}
		}
		if err := c.Barrier(ctx); err != nil {
			return nil, err
		}
		proc.CompleteIteration()
		result.Iterations++

		if !cfg.Record {
			continue
		}
		all, err := Gather(ctx, c, cfg.Root, proc.Resident())
		if err != nil {
			return nil, fmt.Errorf("gathering iteration %d: %w", it+1, err)
		}
		if isRoot {
			d.record(result, it+1, all, cfg)
		}
		if err := c.Barrier(ctx); err != nil {
			return nil, err
		}
	}

	final, err := Gather(ctx, c, cfg.Root, proc.Resident())
	if err != nil {
		return nil, fmt.Errorf("gathering final state: %w", err)
	}

	result.Elapsed = time.Since(start)
	result.Rounds = proc.Rounds()
	result.Local = physics.Snapshot(proc.Resident())
	if isRoot {
		result.Particles = final
		for _, m := range d.metrics {
			result.Metrics[m.Name()] = m.Value()
		}
	}

	return result, nil
}

func (d *Driver) record(result *Result, iteration int, particles []physics.Particle, cfg Config) {
	for _, m := range d.metrics {
		m.Observe(iteration, particles)
		result.Series[m.Name()] = append(result.Series[m.Name()], m.Value())
	}
	for _, obs := range d.observers {
		obs.OnIteration(iteration, particles)
	}
	if cfg.KeepHistory {
		result.History = append(result.History, Snapshot{Iteration: iteration, Particles: particles})
	}
}

func (d *Driver) validateConfig(c comm.Communicator, cfg Config) error {
	if c == nil {
		return ring.ErrNoCommunicator
	}
	if cfg.Iterations < 0 {
		return fmt.Errorf("iterations must not be negative, got %d", cfg.Iterations)
	}
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Root < 0 || cfg.Root >= c.Size() {
		return fmt.Errorf("collector rank %d outside world of size %d", cfg.Root, c.Size())
	}
	return nil
}
