package uci

import (
	"context"
	"sync"

	list "github.com/bahlo/generic-list-go"
)

// turnQueue grants exclusive turns in arrival order. A waiter that gives up
// is removed; if the turn was already handed to it, it passes the turn on.
type turnQueue struct {
	mu      sync.Mutex
	busy    bool
	waiters *list.List[chan struct{}]
}

func newTurnQueue() *turnQueue {
	return &turnQueue{waiters: list.New[chan struct{}]()}
}

func (q *turnQueue) acquire(ctx context.Context) error {
	q.mu.Lock()
	if !q.busy && q.waiters.Len() == 0 {
		q.busy = true
		q.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	el := q.waiters.PushBack(ready)
	q.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	select {
	case <-ready:
		q.mu.Unlock()
		q.release()
	default:
		q.waiters.Remove(el)
		q.mu.Unlock()
	}
	return ctx.Err()
}

func (q *turnQueue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if front := q.waiters.Front(); front != nil {
		ready := q.waiters.Remove(front)
		close(ready)
		return
	}
	q.busy = false
}

func (q *turnQueue) queued() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiters.Len()
}
