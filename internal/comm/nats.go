package comm

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/san-kum/ringbody/internal/physics"
)

const (
	DefaultSubject = "ringbody"

	inboxDepth      = 64
	barrierResend   = 250 * time.Millisecond
	barrierSubject  = "barrier"
	peerToPeerTopic = "p2p"
)

// NATS is a communicator for ranks running as separate processes. Every rank
// of a run must use the same subject prefix and size.
//
// Point-to-point payloads travel on <prefix>.p2p.<dest>.<src>. Barrier
// arrivals are broadcast on <prefix>.barrier and re-sent until the barrier
// opens. A rank that already passed a barrier echoes late arrivals so that
// peers that subscribed after the last re-send still complete it.
type NATS struct {
	nc     *nats.Conn
	prefix string
	rank   int
	size   int

	inbox []chan *nats.Msg
	subs  []*nats.Subscription

	mu       sync.Mutex
	gen      int
	passed   int
	arrivals map[int]map[int]struct{}
	waiters  map[int]chan struct{}
}

type arrival struct {
	Rank int
	Gen  int
	Echo bool
}

type envelope struct {
	Particles []physics.Particle
}

func DialNATS(url, prefix string, rank, size int) (*NATS, error) {
	if size < 1 {
		return nil, fmt.Errorf("comm: world size must be positive, got %d", size)
	}
	if err := checkRank(rank, size); err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = DefaultSubject
	}

	nc, err := nats.Connect(url, nats.Name(fmt.Sprintf("%s-rank-%d", prefix, rank)))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}

	n := &NATS{
		nc:       nc,
		prefix:   prefix,
		rank:     rank,
		size:     size,
		inbox:    make([]chan *nats.Msg, size),
		arrivals: make(map[int]map[int]struct{}),
		waiters:  make(map[int]chan struct{}),
	}

	for src := 0; src < size; src++ {
		n.inbox[src] = make(chan *nats.Msg, inboxDepth)
		sub, err := nc.ChanSubscribe(n.p2pSubject(rank, src), n.inbox[src])
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("subscribing to rank %d: %w", src, err)
		}
		n.subs = append(n.subs, sub)
	}

	sub, err := nc.Subscribe(n.prefix+"."+barrierSubject, n.onArrival)
	if err != nil {
		n.Close()
		return nil, fmt.Errorf("subscribing to barrier: %w", err)
	}
	n.subs = append(n.subs, sub)

	if err := nc.Flush(); err != nil {
		n.Close()
		return nil, fmt.Errorf("flushing subscriptions: %w", err)
	}

	return n, nil
}

func (n *NATS) Rank() int { return n.rank }
func (n *NATS) Size() int { return n.size }

func (n *NATS) p2pSubject(dest, src int) string {
	return fmt.Sprintf("%s.%s.%d.%d", n.prefix, peerToPeerTopic, dest, src)
}

func (n *NATS) Send(ctx context.Context, dest int, particles []physics.Particle) error {
	if err := checkRank(dest, n.size); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(envelope{Particles: particles}); err != nil {
		return fmt.Errorf("encoding payload for rank %d: %w", dest, err)
	}
	if err := n.nc.Publish(n.p2pSubject(dest, n.rank), buf.Bytes()); err != nil {
		return fmt.Errorf("sending to rank %d: %w", dest, err)
	}
	return n.nc.Flush()
}

func (n *NATS) Recv(ctx context.Context, src int) ([]physics.Particle, error) {
	if err := checkRank(src, n.size); err != nil {
		return nil, err
	}

	select {
	case msg, ok := <-n.inbox[src]:
		if !ok {
			return nil, ErrClosed
		}
		var env envelope
		if err := gob.NewDecoder(bytes.NewReader(msg.Data)).Decode(&env); err != nil {
			return nil, fmt.Errorf("decoding payload from rank %d: %w", src, err)
		}
		return env.Particles, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (n *NATS) Barrier(ctx context.Context) error {
	n.mu.Lock()
	n.gen++
	gen := n.gen
	done := make(chan struct{})
	n.waiters[gen] = done
	n.arrive(gen, n.rank)
	n.mu.Unlock()

	ticker := time.NewTicker(barrierResend)
	defer ticker.Stop()

	for {
		if err := n.announce(arrival{Rank: n.rank, Gen: gen}); err != nil {
			return err
		}
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (n *NATS) announce(a arrival) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return err
	}
	return n.nc.Publish(n.prefix+"."+barrierSubject, buf.Bytes())
}

func (n *NATS) onArrival(msg *nats.Msg) {
	var a arrival
	if err := gob.NewDecoder(bytes.NewReader(msg.Data)).Decode(&a); err != nil {
		slog.Warn("dropping malformed barrier arrival", "rank", n.rank, "error", err)
		return
	}

	n.mu.Lock()
	if a.Gen <= n.passed {
		echo := !a.Echo && a.Rank != n.rank
		n.mu.Unlock()
		if echo {
			if err := n.announce(arrival{Rank: n.rank, Gen: a.Gen, Echo: true}); err != nil {
				slog.Warn("barrier echo failed", "rank", n.rank, "gen", a.Gen, "error", err)
			}
		}
		return
	}
	n.arrive(a.Gen, a.Rank)
	n.mu.Unlock()
}

// arrive records rank at gen and opens the barrier once everyone is present
// and this rank is waiting on it. Callers hold n.mu.
func (n *NATS) arrive(gen, rank int) {
	set, ok := n.arrivals[gen]
	if !ok {
		set = make(map[int]struct{}, n.size)
		n.arrivals[gen] = set
	}
	set[rank] = struct{}{}

	done, waiting := n.waiters[gen]
	if !waiting || len(set) < n.size {
		return
	}
	n.passed = gen
	delete(n.arrivals, gen)
	delete(n.waiters, gen)
	close(done)
}

func (n *NATS) Close() error {
	for _, sub := range n.subs {
		_ = sub.Unsubscribe()
	}
	n.subs = nil
	n.nc.Close()
	return nil
}
