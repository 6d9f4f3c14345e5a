package comm

import (
	"context"
	"fmt"
	"sync"

	"github.com/san-kum/ringbody/internal/physics"
)

// mailboxDepth bounds in-flight messages per (src, dest) pair. The ring sends
// at most one message per pair between barriers.
const mailboxDepth = 4

// LocalWorld is a set of ranks in a single process. Each rank owns one mailbox
// per source rank.
type LocalWorld struct {
	size      int
	mailboxes [][]chan []physics.Particle // [dest][src]
	barrier   *barrier
}

func NewLocal(size int) (*LocalWorld, error) {
	if size < 1 {
		return nil, fmt.Errorf("comm: world size must be positive, got %d", size)
	}
	w := &LocalWorld{
		size:      size,
		mailboxes: make([][]chan []physics.Particle, size),
		barrier:   newBarrier(size),
	}
	for dest := range w.mailboxes {
		w.mailboxes[dest] = make([]chan []physics.Particle, size)
		for src := range w.mailboxes[dest] {
			w.mailboxes[dest][src] = make(chan []physics.Particle, mailboxDepth)
		}
	}
	return w, nil
}

func (w *LocalWorld) Size() int { return w.size }

// Comm returns the communicator for rank. It panics on an invalid rank.
func (w *LocalWorld) Comm(rank int) *Local {
	if err := checkRank(rank, w.size); err != nil {
		panic(err)
	}
	return &Local{world: w, rank: rank}
}

type Local struct {
	world *LocalWorld
	rank  int
}

func (l *Local) Rank() int { return l.rank }
func (l *Local) Size() int { return l.world.size }

func (l *Local) Send(ctx context.Context, dest int, particles []physics.Particle) error {
	if err := checkRank(dest, l.world.size); err != nil {
		return err
	}
	payload := make([]physics.Particle, len(particles))
	copy(payload, particles)

	select {
	case l.world.mailboxes[dest][l.rank] <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Local) Recv(ctx context.Context, src int) ([]physics.Particle, error) {
	if err := checkRank(src, l.world.size); err != nil {
		return nil, err
	}
	select {
	case p := <-l.world.mailboxes[l.rank][src]:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Local) Barrier(ctx context.Context) error {
	return l.world.barrier.wait(ctx)
}

func (l *Local) Close() error { return nil }

// barrier is a reusable generation barrier.
type barrier struct {
	mu      sync.Mutex
	parties int
	arrived int
	release chan struct{}
}

func newBarrier(parties int) *barrier {
	return &barrier{parties: parties, release: make(chan struct{})}
}

func (b *barrier) wait(ctx context.Context) error {
	b.mu.Lock()
	ch := b.release
	b.arrived++
	if b.arrived == b.parties {
		b.arrived = 0
		b.release = make(chan struct{})
		close(ch)
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
