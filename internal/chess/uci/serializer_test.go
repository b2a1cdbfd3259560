package uci

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func waitQueued(t *testing.T, q *turnQueue, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for q.queued() != n {
		if time.Now().After(deadline) { t.Fatalf("queue length %d, want %d", q.queued(), n) }
		time.Sleep(time.Millisecond)
	}
}

func TestTurnQueueFIFO(t *testing.T) {
	q := newTurnQueue()
	ctx := context.Background()
	if err := q.acquire(ctx); err != nil { t.Fatalf("acquire: %v", err) }

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := q.acquire(ctx); err != nil { t.Errorf("acquire %d: %v", i, err); return }
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			q.release()
		}(i)
		waitQueued(t, q, i+1)
	}
	q.release()
	wg.Wait()

	for i, v := range order {
		if v != i { t.Fatalf("turns out of order: %v", order) }
	}
}

func TestTurnQueueCancelledWaiterLeaves(t *testing.T) {
	q := newTurnQueue()
	if err := q.acquire(context.Background()); err != nil { t.Fatalf("acquire: %v", err) }

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.acquire(ctx); !errors.Is(err, context.DeadlineExceeded) { t.Fatalf("expected deadline, got %v", err) }
	if q.queued() != 0 { t.Fatalf("cancelled waiter still queued") }

	q.release()
	// turn must be free again
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := q.acquire(ctx2); err != nil { t.Fatalf("acquire after release: %v", err) }
	q.release()
}

func TestTurnQueueHandoffToCancelledWaiterPassesOn(t *testing.T) {
	q := newTurnQueue()
	if err := q.acquire(context.Background()); err != nil { t.Fatalf("acquire: %v", err) }

	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- q.acquire(ctx) }()
		waitQueued(t, q, 1)
		// race the cancellation against the handoff
		go cancel()
		q.release()
		if err := <-done; err != nil {
			// the waiter gave up; the turn must not be lost
			if err := q.acquire(context.Background()); err != nil { t.Fatalf("turn lost: %v", err) }
		}
		cancel()
	}
	q.release()
}
