package comm

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/ringbody/internal/physics"
)

func runServer(t *testing.T) *server.Server {
	t.Helper()
	s := natstest.RunRandClientPortServer()
	t.Cleanup(s.Shutdown)
	return s
}

func testPrefix() string {
	return fmt.Sprintf("ringbody-test-%d", time.Now().UnixNano())
}

func TestNATSRingExchange(t *testing.T) {
	url := runServer(t).ClientURL()
	prefix := testPrefix()
	const size = 3

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	got := make([][]physics.Particle, size)
	g, ctx := errgroup.WithContext(ctx)
	for r := 0; r < size; r++ {
		r := r
		g.Go(func() error {
			c, err := DialNATS(url, prefix, r, size)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Barrier(ctx); err != nil {
				return err
			}
			out := []physics.Particle{{
				ID:       r,
				Mass:     float64(r + 1),
				Velocity: physics.Vec3{X: math.Inf(1), Y: math.NaN(), Z: math.Inf(-1)},
			}}
			if err := c.Send(ctx, (r+1)%size, out); err != nil {
				return err
			}
			in, err := c.Recv(ctx, (r-1+size)%size)
			if err != nil {
				return err
			}
			got[r] = in
			return c.Barrier(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	for r := 0; r < size; r++ {
		want := (r - 1 + size) % size
		if len(got[r]) != 1 || got[r][0].ID != want || got[r][0].Mass != float64(want+1) {
			t.Errorf("rank %d: got %+v, want particle %d", r, got[r], want)
			continue
		}
		v := got[r][0].Velocity
		if !math.IsInf(v.X, 1) || !math.IsNaN(v.Y) || !math.IsInf(v.Z, -1) {
			t.Errorf("rank %d: non-finite values lost in transit: %v", r, v)
		}
	}
}

func TestNATSBarrierWaitsForLateRank(t *testing.T) {
	url := runServer(t).ClientURL()
	prefix := testPrefix()
	const size = 3

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for r := 0; r < size; r++ {
		r := r
		g.Go(func() error {
			if r == size-1 {
				// Join after the others have announced several times.
				select {
				case <-time.After(3 * barrierResend):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			c, err := DialNATS(url, prefix, r, size)
			if err != nil {
				return err
			}
			defer c.Close()

			for i := 0; i < 3; i++ {
				if err := c.Barrier(ctx); err != nil {
					return fmt.Errorf("rank %d barrier %d: %w", r, i, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func publishArrival(t *testing.T, nc *nats.Conn, subject string, a arrival) {
	t.Helper()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		t.Fatal(err)
	}
	if err := nc.Publish(subject, buf.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}
}

func TestNATSEchoesLateArrival(t *testing.T) {
	url := runServer(t).ClientURL()
	prefix := testPrefix()
	subject := prefix + "." + barrierSubject

	c, err := DialNATS(url, prefix, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	peer, err := nats.Connect(url)
	if err != nil {
		t.Fatal(err)
	}
	defer peer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Rank 1 is played by a raw connection so rank 0 passes gen 1 first.
	passed := make(chan error, 1)
	go func() { passed <- c.Barrier(ctx) }()
	publishArrival(t, peer, subject, arrival{Rank: 1, Gen: 1})
	if err := <-passed; err != nil {
		t.Fatalf("barrier: %v", err)
	}

	sub, err := peer.SubscribeSync(subject)
	if err != nil {
		t.Fatal(err)
	}
	if err := peer.Flush(); err != nil {
		t.Fatal(err)
	}

	// A rank still waiting on gen 1 re-sends its arrival.
	publishArrival(t, peer, subject, arrival{Rank: 1, Gen: 1})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		msg, err := sub.NextMsg(time.Until(deadline))
		if err != nil {
			break
		}
		var a arrival
		if err := gob.NewDecoder(bytes.NewReader(msg.Data)).Decode(&a); err != nil {
			t.Fatal(err)
		}
		if a.Rank == 0 {
			if a.Gen != 1 || !a.Echo {
				t.Fatalf("expected echo of gen 1, got %+v", a)
			}
			return
		}
	}
	t.Fatal("rank 0 did not echo the late arrival")
}

func TestNATSSendRejectsBadRank(t *testing.T) {
	url := runServer(t).ClientURL()

	c, err := DialNATS(url, testPrefix(), 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Send(context.Background(), 2, nil); !errors.Is(err, ErrRankOutOfRange) {
		t.Errorf("expected ErrRankOutOfRange, got %v", err)
	}
}
