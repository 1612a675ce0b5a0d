package queue

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO of task identifiers. Push is safe from any
// goroutine; Pop is intended for a single consumer.
type Queue struct {
	mu     sync.Mutex
	items  []string
	signal chan struct{}
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Push appends id. Duplicates are kept.
func (q *Queue) Push(id string) {
	q.mu.Lock()
	q.items = append(q.items, id)
	q.mu.Unlock()
	q.notify()
}

// Pop blocks until an id is available or ctx ends.
func (q *Queue) Pop(ctx context.Context) (string, error) {
	for {
		if id, ok := q.tryPop(); ok {
			return id, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-q.signal:
		}
	}
}

// Len reports how many ids are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) tryPop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	id := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	} else {
		q.notify()
	}
	return id, true
}

func (q *Queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
