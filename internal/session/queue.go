package session

import (
	"sync"

	"github.com/hpungsan/acta/internal/meeting"
)

// write is one queued persistence request. A barrier carries no patch and
// only signals that every earlier write has been applied.
type write struct {
	meetingID int64
	patch     meeting.Patch
	barrier   bool
	done      chan error
}

// writeQueue is an unbounded FIFO drained by a single worker, so writes land
// in the order they were issued. Pushes never block the caller.
type writeQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []write
	closed  bool
	stopped chan struct{}
}

func newWriteQueue() *writeQueue {
	q := &writeQueue{stopped: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends w. Returns false once the queue is closed.
func (q *writeQueue) push(w write) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, w)
	q.cond.Signal()
	return true
}

// run applies fn to each write in order until the queue is closed and empty.
func (q *writeQueue) run(fn func(write)) {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		w := q.items[0]
		q.items[0] = write{}
		q.items = q.items[1:]
		q.mu.Unlock()

		fn(w)
	}
}

// close stops accepting writes, lets the worker drain what is queued, and
// waits for it to exit.
func (q *writeQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.stopped
}

func (q *writeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
