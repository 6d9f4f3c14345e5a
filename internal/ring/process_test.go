package ring_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/ringbody/internal/comm"
	"github.com/san-kum/ringbody/internal/physics"
	"github.com/san-kum/ringbody/internal/ring"
)

// countingLaw records which particles contributed to each resident particle.
type countingLaw struct {
	seen map[int][]int
}

func newCountingLaw() *countingLaw {
	return &countingLaw{seen: make(map[int][]int)}
}

func (c *countingLaw) Contribution(self, other *physics.Particle) physics.Vec3 {
	c.seen[self.ID] = append(c.seen[self.ID], other.ID)
	return physics.Vec3{}
}

type zeroLaw struct{}

func (zeroLaw) Contribution(self, other *physics.Particle) physics.Vec3 { return physics.Vec3{} }

func line(n int) []physics.Particle {
	ps := make([]physics.Particle, n)
	for i := range ps {
		ps[i] = physics.Particle{ID: i, Position: physics.Vec3{X: float64(i + 1)}, Mass: 1, Radius: 1}
	}
	return ps
}

func single(ps []physics.Particle, opts ring.Options) *ring.Process {
	w, err := comm.NewLocal(1)
	Expect(err).NotTo(HaveOccurred())
	proc, err := ring.NewProcess(w.Comm(0), ps, opts)
	Expect(err).NotTo(HaveOccurred())
	return proc
}

// rotate drives every rank through whole iterations of the ring.
func rotate(ctx context.Context, procs []*ring.Process, comms []comm.Communicator, iterations int) []error {
	return drive(ctx, procs, comms, iterations, true)
}

// circulate passes the buffers once around the ring without integrating.
func circulate(ctx context.Context, procs []*ring.Process, comms []comm.Communicator) []error {
	return drive(ctx, procs, comms, 1, false)
}

// drive runs every rank on its own goroutine. The first failure cancels the
// rest so peers never wait on a barrier that cannot open.
func drive(ctx context.Context, procs []*ring.Process, comms []comm.Communicator, iterations int, complete bool) []error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	errs := make([]error, len(procs))
	var wg sync.WaitGroup
	for rank := range procs {
		rank := rank
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := driveRank(ctx, procs[rank], comms[rank], iterations, complete); err != nil {
				errs[rank] = err
				cancel()
			}
		}()
	}
	wg.Wait()
	return errs
}

func driveRank(ctx context.Context, proc *ring.Process, c comm.Communicator, iterations int, complete bool) error {
	for it := 0; it < iterations; it++ {
		for r := 0; r < c.Size(); r++ {
			if err := proc.Step(ctx); err != nil {
				return err
			}
			if err := c.Barrier(ctx); err != nil {
				return err
			}
		}
		if !complete {
			continue
		}
		if err := c.Barrier(ctx); err != nil {
			return err
		}
		proc.CompleteIteration()
	}
	return nil
}

var _ = Describe("Process", func() {
	Describe("neighbors", func() {
		It("wraps around the ring", func() {
			w, _ := comm.NewLocal(3)
			first, err := ring.NewProcess(w.Comm(0), line(1), ring.Options{})
			Expect(err).NotTo(HaveOccurred())
			last, err := ring.NewProcess(w.Comm(2), line(1), ring.Options{})
			Expect(err).NotTo(HaveOccurred())

			Expect(first.Next()).To(Equal(1))
			Expect(first.Previous()).To(Equal(2))
			Expect(last.Next()).To(Equal(0))
			Expect(last.Previous()).To(Equal(1))
		})

		It("requires a communicator", func() {
			_, err := ring.NewProcess(nil, line(1), ring.Options{})
			Expect(err).To(MatchError(ring.ErrNoCommunicator))
		})
	})

	Describe("a single-rank step", func() {
		It("refills the buffer from the resident slice without communicating", func() {
			proc := single(line(3), ring.Options{})
			before := physics.Snapshot(proc.Resident())

			Expect(proc.Step(context.Background())).To(Succeed())

			Expect(proc.Buffer()).To(Equal(before))
		})

		It("accumulates toward the other particle scaled by G and mass", func() {
			ps := []physics.Particle{
				{ID: 0, Position: physics.Vec3{X: 1}, Mass: 5},
				{ID: 1, Position: physics.Vec3{X: 2}, Mass: 5},
			}
			proc := single(ps, ring.Options{})

			Expect(proc.Step(context.Background())).To(Succeed())

			r := math.Sqrt(2)
			want := 10.0 * 5.0 / (r * r * r) * 0.1
			res := proc.Resident()
			Expect(res[0].Pending.X).To(BeNumerically("~", want, 1e-12))
			Expect(res[1].Pending.X).To(BeNumerically("~", -want, 1e-12))
			Expect(res[0].Pending.Y).To(BeZero())
		})
	})

	Describe("an empty buffer", func() {
		It("fails the round with ErrEmptyState", func() {
			proc := single(nil, ring.Options{})

			err := proc.Step(context.Background())

			Expect(err).To(MatchError(ring.ErrEmptyState))
			var roundErr *ring.RoundError
			Expect(errors.As(err, &roundErr)).To(BeTrue())
			Expect(roundErr.Rank).To(Equal(0))
			Expect(roundErr.Round).To(Equal(0))
		})
	})

	Describe("CompleteIteration", func() {
		It("leaves particles at rest unchanged when nothing acts on them", func() {
			ps := line(4)
			before := physics.Snapshot(ps)
			proc := single(ps, ring.Options{Law: zeroLaw{}})

			for i := 0; i < 3; i++ {
				Expect(proc.Step(context.Background())).To(Succeed())
				proc.CompleteIteration()
			}

			Expect(proc.Resident()).To(Equal(before))
			Expect(proc.Iteration()).To(Equal(3))
		})

		It("restarts the buffer from the integrated state", func() {
			ps := []physics.Particle{{ID: 0, Velocity: physics.Vec3{X: 1}, Mass: 1}}
			proc := single(ps, ring.Options{Law: zeroLaw{}})

			Expect(proc.Step(context.Background())).To(Succeed())
			proc.CompleteIteration()

			Expect(proc.Buffer()).To(HaveLen(1))
			Expect(proc.Buffer()[0].Position.X).To(BeNumerically("~", 0.1, 1e-12))
		})
	})

	Describe("two bodies released from rest", func() {
		It("diverges at zero dot-product distance instead of softening", func() {
			ps := []physics.Particle{
				{ID: 0, Mass: 5},
				{ID: 1, Position: physics.Vec3{X: 1}, Mass: 5},
			}
			proc := single(ps, ring.Options{})

			Expect(proc.Step(context.Background())).To(Succeed())
			proc.CompleteIteration()

			res := proc.Resident()
			Expect(res[0].Position).To(Equal(physics.Vec3{}))
			Expect(res[1].Position).To(Equal(physics.Vec3{X: 1}))
			Expect(math.IsInf(res[0].Velocity.X, 1)).To(BeTrue())
			Expect(math.IsInf(res[1].Velocity.X, -1)).To(BeTrue())
			Expect(math.IsNaN(res[0].Velocity.Y)).To(BeTrue())
		})

		It("moves toward each other by the exact first-step amount", func() {
			ps := []physics.Particle{
				{ID: 0, Position: physics.Vec3{X: 1}, Mass: 5},
				{ID: 1, Position: physics.Vec3{X: 2}, Mass: 5},
			}
			proc := single(ps, ring.Options{})

			Expect(proc.Step(context.Background())).To(Succeed())
			proc.CompleteIteration()

			r := math.Sqrt(2)
			dv := 10.0 * 5.0 / (r * r * r) * 0.1
			res := proc.Resident()
			Expect(res[0].Velocity.X).To(BeNumerically("~", dv, 1e-12))
			Expect(res[1].Velocity.X).To(BeNumerically("~", -dv, 1e-12))
			Expect(res[0].Position.X).To(Equal(1.0))
			Expect(res[1].Position.X).To(Equal(2.0))
			Expect(res[0].Pending).To(Equal(physics.Vec3{}))
		})
	})

	Describe("three ranks sharing nine particles", func() {
		It("shows every particle to every resident exactly once per iteration", func() {
			const size, total = 3, 9
			all := line(total)
			w, _ := comm.NewLocal(size)

			procs := make([]*ring.Process, size)
			comms := make([]comm.Communicator, size)
			laws := make([]*countingLaw, size)
			for rank := 0; rank < size; rank++ {
				rg := ring.Partition(size, rank, total)
				laws[rank] = newCountingLaw()
				comms[rank] = w.Comm(rank)
				proc, err := ring.NewProcess(comms[rank], physics.Snapshot(all[rg.Start:rg.End]), ring.Options{Law: laws[rank]})
				Expect(err).NotTo(HaveOccurred())
				procs[rank] = proc
			}

			for _, err := range rotate(context.Background(), procs, comms, 1) {
				Expect(err).NotTo(HaveOccurred())
			}

			everyone := make([]int, total)
			for i := range everyone {
				everyone[i] = i
			}
			for rank, law := range laws {
				Expect(law.seen).To(HaveLen(3), "rank %d", rank)
				for id, others := range law.seen {
					Expect(others).To(HaveLen(total), "particle %d", id)
					Expect(others).To(ConsistOf(everyone), "particle %d", id)
				}
				Expect(procs[rank].Rounds()).To(Equal(size))
			}
		})

		It("returns each buffer to its owner after a full rotation", func() {
			const size, total = 3, 7
			all := line(total)
			w, _ := comm.NewLocal(size)

			procs := make([]*ring.Process, size)
			comms := make([]comm.Communicator, size)
			for rank := 0; rank < size; rank++ {
				rg := ring.Partition(size, rank, total)
				comms[rank] = w.Comm(rank)
				procs[rank], _ = ring.NewProcess(comms[rank], physics.Snapshot(all[rg.Start:rg.End]), ring.Options{Law: zeroLaw{}})
			}

			for rank, err := range circulate(context.Background(), procs, comms) {
				Expect(err).NotTo(HaveOccurred(), "rank %d", rank)
			}

			for _, proc := range procs {
				Expect(proc.Buffer()).To(Equal(physics.Snapshot(proc.Resident())))
			}
		})
	})
})
