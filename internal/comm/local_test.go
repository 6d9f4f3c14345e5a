package comm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/san-kum/ringbody/internal/physics"
)

func TestNewLocalRejectsEmptyWorld(t *testing.T) {
	if _, err := NewLocal(0); err == nil {
		t.Error("expected error for size 0")
	}
}

func TestLocalSendRecvCopiesPayload(t *testing.T) {
	w, err := NewLocal(2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	a, b := w.Comm(0), w.Comm(1)

	payload := []physics.Particle{{ID: 7, Mass: 3}}
	if err := a.Send(ctx, 1, payload); err != nil {
		t.Fatalf("send: %v", err)
	}
	payload[0].Mass = 99

	got, err := b.Recv(ctx, 0)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if len(got) != 1 || got[0].ID != 7 || got[0].Mass != 3 {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestLocalMailboxesAreKeyedBySource(t *testing.T) {
	w, _ := NewLocal(3)
	ctx := context.Background()

	if err := w.Comm(2).Send(ctx, 0, []physics.Particle{{ID: 2}}); err != nil {
		t.Fatal(err)
	}
	if err := w.Comm(1).Send(ctx, 0, []physics.Particle{{ID: 1}}); err != nil {
		t.Fatal(err)
	}

	got, err := w.Comm(0).Recv(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].ID != 1 {
		t.Errorf("expected message from rank 1, got particle %d", got[0].ID)
	}
}

func TestLocalRecvHonorsContext(t *testing.T) {
	w, _ := NewLocal(2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := w.Comm(0).Recv(ctx, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestLocalRejectsBadRank(t *testing.T) {
	w, _ := NewLocal(2)
	err := w.Comm(0).Send(context.Background(), 5, nil)
	if !errors.Is(err, ErrRankOutOfRange) {
		t.Errorf("expected ErrRankOutOfRange, got %v", err)
	}
}

func TestLocalBarrierIsReusable(t *testing.T) {
	const size, rounds = 4, 5
	w, _ := NewLocal(size)
	ctx := context.Background()

	var mu sync.Mutex
	counts := make([]int, rounds)

	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(c *Local) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				mu.Lock()
				counts[i]++
				mu.Unlock()
				if err := c.Barrier(ctx); err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				if counts[i] != size {
					t.Errorf("round %d: passed barrier with %d arrivals", i, counts[i])
				}
				mu.Unlock()
			}
		}(w.Comm(r))
	}
	wg.Wait()
}

func TestLocalBarrierHonorsContext(t *testing.T) {
	w, _ := NewLocal(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Comm(0).Barrier(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
