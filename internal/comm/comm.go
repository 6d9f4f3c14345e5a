// Package comm provides the message-passing primitives the ring engine runs
// on: rank identity, blocking point-to-point transfer of particle slices and a
// global barrier.
//
// Two transports are available. [LocalWorld] connects ranks that live in one
// process as goroutines. [NATS] connects ranks running as separate processes
// through a NATS server.
package comm

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/ringbody/internal/physics"
)

var (
	// ErrRankOutOfRange indicates a peer rank outside [0, size).
	ErrRankOutOfRange = errors.New("comm: rank out of range")

	// ErrClosed indicates use of a communicator after Close.
	ErrClosed = errors.New("comm: communicator closed")
)

// Communicator is one rank's view of the world. Send and Recv block until the
// payload is handed off or delivered. Barrier blocks until every rank has
// called it. All blocking calls return ctx.Err() when ctx is done.
type Communicator interface {
	Rank() int
	Size() int
	Send(ctx context.Context, dest int, particles []physics.Particle) error
	Recv(ctx context.Context, src int) ([]physics.Particle, error)
	Barrier(ctx context.Context) error
	Close() error
}

func checkRank(rank, size int) error {
	if rank < 0 || rank >= size {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrRankOutOfRange, rank, size)
	}
	return nil
}
