package sim

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/ringbody/internal/comm"
	"github.com/san-kum/ringbody/internal/physics"
)

// RunLocal runs size ranks as goroutines over an in-process world and returns
// the collector's result. The first rank to fail cancels the others.
func RunLocal(ctx context.Context, d *Driver, size int, particles []physics.Particle, cfg Config) (*Result, error) {
	world, err := comm.NewLocal(size)
	if err != nil {
		return nil, err
	}
	if err := d.validateConfig(world.Comm(0), cfg); err != nil {
		return nil, err
	}

	results := make([]*Result, size)
	g, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < size; rank++ {
		rank := rank
		g.Go(func() error {
			res, err := d.RunRank(gctx, world.Comm(rank), particles, cfg)
			results[rank] = res
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results[cfg.Root], nil
}
