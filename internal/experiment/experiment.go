package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/ringbody/internal/comm"
	"github.com/san-kum/ringbody/internal/config"
	"github.com/san-kum/ringbody/internal/physics"
	"github.com/san-kum/ringbody/internal/sim"
)

type Experiment struct {
	cfg    *config.Config
	driver *sim.Driver
	logger *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) *Experiment {
	if logger == nil {
		logger = slog.Default()
	}
	return &Experiment{cfg: cfg, logger: logger}
}

func (e *Experiment) Params() LawParams {
	return LawParams{G: e.cfg.G, Dt: e.cfg.Dt, Softening: e.cfg.Softening}
}

// Setup resolves the configured law and integrator and attaches metrics.
func (e *Experiment) Setup(reg *Registry, metrics []sim.Metric) error {
	law, err := reg.GetLaw(e.cfg.ForceLaw, e.Params())
	if err != nil {
		return err
	}
	integ, err := reg.GetIntegrator(e.cfg.Integrator)
	if err != nil {
		return err
	}

	e.driver = sim.New(law, integ)
	e.driver.SetLogger(e.logger)
	for _, m := range metrics {
		e.driver.AddMetric(m)
	}
	return nil
}

// Driver returns the underlying driver for adding observers.
func (e *Experiment) Driver() *sim.Driver {
	return e.driver
}

func (e *Experiment) simConfig() sim.Config {
	return sim.Config{
		Iterations:  e.cfg.Iterations,
		Dt:          e.cfg.Dt,
		Record:      e.cfg.Record,
		KeepHistory: e.cfg.Save && e.cfg.Record,
	}
}

// Run executes every rank in-process for the local transport, or this
// process's single rank for nats. Only the collector rank's result carries
// the gathered particles.
func (e *Experiment) Run(ctx context.Context, particles []physics.Particle) (*sim.Result, error) {
	if e.driver == nil {
		return nil, fmt.Errorf("experiment not setup")
	}

	switch e.cfg.Transport.Kind {
	case config.TransportLocal:
		return sim.RunLocal(ctx, e.driver, e.cfg.Processes, particles, e.simConfig())
	case config.TransportNATS:
		t := e.cfg.Transport
		c, err := comm.DialNATS(t.NATSURL, t.Subject, t.Rank, e.cfg.Processes)
		if err != nil {
			return nil, err
		}
		defer c.Close()
		return e.driver.RunRank(ctx, c, particles, e.simConfig())
	default:
		return nil, fmt.Errorf("unknown transport %q", e.cfg.Transport.Kind)
	}
}
