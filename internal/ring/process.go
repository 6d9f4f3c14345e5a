package ring

import (
	"context"
	"log/slog"

	"github.com/san-kum/ringbody/internal/comm"
	"github.com/san-kum/ringbody/internal/integrators"
	"github.com/san-kum/ringbody/internal/physics"
)

// Process is one rank's state in the ring. It is not safe for concurrent use;
// each rank drives its own Process from a single goroutine.
type Process struct {
	comm       comm.Communicator
	law        physics.ForceLaw
	integrator integrators.Integrator
	dt         float64
	logger     *slog.Logger

	resident []physics.Particle
	buffer   []physics.Particle

	rank, size     int
	next, previous int

	iteration int
	round     int
	rounds    int
}

type Options struct {
	Law        physics.ForceLaw
	Integrator integrators.Integrator
	Dt         float64
	Logger     *slog.Logger
}

// NewProcess takes ownership of resident. Zero-valued options fall back to
// Gravity, SemiImplicitEuler, DefaultDt and slog.Default.
func NewProcess(c comm.Communicator, resident []physics.Particle, opts Options) (*Process, error) {
	if c == nil {
		return nil, ErrNoCommunicator
	}
	if opts.Law == nil {
		opts.Law = physics.NewGravity()
	}
	if opts.Integrator == nil {
		opts.Integrator = integrators.NewSemiImplicitEuler()
	}
	if opts.Dt == 0 {
		opts.Dt = physics.DefaultDt
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	rank, size := c.Rank(), c.Size()
	return &Process{
		comm:       c,
		law:        opts.Law,
		integrator: opts.Integrator,
		dt:         opts.Dt,
		logger:     opts.Logger.With("rank", rank),
		resident:   resident,
		buffer:     physics.Snapshot(resident),
		rank:       rank,
		size:       size,
		next:       (rank + 1) % size,
		previous:   (rank - 1 + size) % size,
	}, nil
}

func (p *Process) Rank() int      { return p.rank }
func (p *Process) Next() int      { return p.next }
func (p *Process) Previous() int  { return p.previous }
func (p *Process) Iteration() int { return p.iteration }
func (p *Process) Rounds() int    { return p.rounds }

// Resident returns the rank's own particles. The slice is owned by the
// Process and must not be modified.
func (p *Process) Resident() []physics.Particle { return p.resident }

// Buffer returns the slice currently circulating through this rank.
func (p *Process) Buffer() []physics.Particle { return p.buffer }

// Step runs one exchange round: every resident particle accumulates the
// contribution of every buffered particle, then the buffer is passed to the
// next rank and replaced by the one arriving from the previous rank.
func (p *Process) Step(ctx context.Context) error {
	round := p.round
	p.round++
	p.rounds++

	if len(p.buffer) == 0 {
		return p.fail(round, ErrEmptyState)
	}

	p.accumulate()

	if p.next == p.rank {
		p.buffer = physics.Snapshot(p.resident)
		return nil
	}

	p.logger.Debug("passing buffer", "iteration", p.iteration, "round", round, "to", p.next, "particles", len(p.buffer))
	if err := p.comm.Send(ctx, p.next, p.buffer); err != nil {
		return p.fail(round, err)
	}
	incoming, err := p.comm.Recv(ctx, p.previous)
	if err != nil {
		return p.fail(round, err)
	}
	p.logger.Debug("received buffer", "iteration", p.iteration, "round", round, "from", p.previous, "particles", len(incoming))
	p.buffer = incoming

	return nil
}

func (p *Process) accumulate() {
	for i := range p.resident {
		self := &p.resident[i]
		for j := range p.buffer {
			self.Accumulate(p.law.Contribution(self, &p.buffer[j]))
		}
	}
}

// CompleteIteration integrates the resident particles and restarts the
// circulating buffer from their new state. It must follow Size calls to Step
// that have all been barrier-synchronized.
func (p *Process) CompleteIteration() {
	integrators.StepAll(p.integrator, p.resident, p.dt)
	p.buffer = physics.Snapshot(p.resident)
	p.iteration++
	p.round = 0
}

func (p *Process) fail(round int, err error) error {
	return &RoundError{Rank: p.rank, Iteration: p.iteration, Round: round, Err: err}
}
