package live

import (
	"sync"

	"github.com/qubitrhythm/disensor/internal/events"
)

// queue is an unbounded FIFO of changes. push never blocks, so a slow
// render cannot stall the change stream delivering into it.
type queue struct {
	mu    sync.Mutex
	items []events.Change
	ready chan struct{}
}

func newQueue() *queue {
	return &queue{ready: make(chan struct{}, 1)}
}

// push appends c and returns the new depth.
func (q *queue) push(c events.Change) int {
	q.mu.Lock()
	q.items = append(q.items, c)
	n := len(q.items)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return n
}

// pop removes the oldest change and returns the remaining depth.
func (q *queue) pop() (events.Change, int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, 0, false
	}
	c := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return c, len(q.items), true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
