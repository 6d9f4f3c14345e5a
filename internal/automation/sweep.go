package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/ringbody/internal/config"
	"github.com/san-kum/ringbody/internal/experiment"
	"github.com/san-kum/ringbody/internal/physics"
)

// Sweep reruns one configuration over several rank counts.
type Sweep struct {
	Name      string `yaml:"name"`
	Processes []int  `yaml:"processes"`
}

var DefaultProcesses = []int{1, 2, 4, 6}

func LoadSweep(path string) (*Sweep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sweep Sweep
	if err := yaml.Unmarshal(data, &sweep); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(sweep.Processes) == 0 {
		sweep.Processes = DefaultProcesses
	}
	return &sweep, nil
}

// SweepResult summarizes one rank count. PositionSum and Length describe the
// position output line; MaxDeviation is the largest absolute position
// difference from the first entry of the sweep.
type SweepResult struct {
	Processes    int
	Seconds      float64
	Particles    int
	PositionSum  float64
	Length       int
	MaxDeviation float64
}

// RunSweep runs base once per rank count using the local transport.
func RunSweep(ctx context.Context, sweep *Sweep, base *config.Config, particles []physics.Particle, reg *experiment.Registry, logger *slog.Logger) ([]SweepResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	results := make([]SweepResult, 0, len(sweep.Processes))
	var reference []float64

	for i, p := range sweep.Processes {
		cfg := *base
		cfg.Processes = p
		cfg.Transport.Kind = config.TransportLocal
		cfg.Record = false
		cfg.Save = false
		if err := cfg.Validate(); err != nil {
			return results, fmt.Errorf("sweep %d: %w", i+1, err)
		}

		exp := experiment.New(&cfg, logger)
		if err := exp.Setup(reg, nil); err != nil {
			return results, fmt.Errorf("sweep %d setup: %w", i+1, err)
		}

		result, err := exp.Run(ctx, particles)
		if err != nil {
			return results, fmt.Errorf("sweep %d run with %d ranks: %w", i+1, p, err)
		}

		positions := flatten(result.Particles)
		if reference == nil {
			reference = positions
		}

		results = append(results, SweepResult{
			Processes:    p,
			Seconds:      result.Elapsed.Seconds(),
			Particles:    len(result.Particles),
			PositionSum:  floats.Sum(positions),
			Length:       len(positions),
			MaxDeviation: maxDeviation(reference, positions),
		})

		logger.Info("run complete", "t", result.Elapsed.Seconds(), "s", len(result.Particles), "p", p, "f", cfg.File)
	}

	return results, nil
}

func flatten(particles []physics.Particle) []float64 {
	out := make([]float64, 0, 3*len(particles))
	for _, p := range particles {
		out = append(out, p.Position.X, p.Position.Y, p.Position.Z)
	}
	return out
}

func maxDeviation(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	if len(a) == 0 {
		return 0
	}
	return floats.Distance(a, b, math.Inf(1))
}

// Consistent reports whether every run ended within tol of the first.
func Consistent(results []SweepResult, tol float64) bool {
	for _, r := range results {
		if r.Length != results[0].Length || !(r.MaxDeviation <= tol) {
			return false
		}
	}
	return true
}
