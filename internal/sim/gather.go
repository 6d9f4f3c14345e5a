package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/ringbody/internal/comm"
	"github.com/san-kum/ringbody/internal/physics"
)

// Gather collects every rank's slice on root in rank order, which restores
// the input order of a partitioned particle set. Non-root ranks get nil.
func Gather(ctx context.Context, c comm.Communicator, root int, local []physics.Particle) ([]physics.Particle, error) {
	if c.Rank() != root {
		return nil, c.Send(ctx, root, physics.Snapshot(local))
	}

	all := make([]physics.Particle, 0, len(local)*c.Size())
	for src := 0; src < c.Size(); src++ {
		if src == root {
			all = append(all, physics.Snapshot(local)...)
			continue
		}
		part, err := c.Recv(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("receiving from rank %d: %w", src, err)
		}
		all = append(all, part...)
	}
	return all, nil
}
