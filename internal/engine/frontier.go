package engine

import (
	"sync"

	"github.com/IshaanNene/PharmCrawl/internal/types"
)

// Frontier holds pending requests in one FIFO queue per priority level.
// TryPop serves the highest non-empty level, so requests of equal priority
// come out in push order.
type Frontier struct {
	mu     sync.Mutex
	queues [types.PriorityLevels][]*types.Request
	n      int
	closed bool
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{}
}

// level clamps p into the known priority range.
func level(p int) int {
	return min(max(p, types.PriorityHigh), types.PriorityLevels-1)
}

// Push queues a request. Pushes after Close are ignored.
func (f *Frontier) Push(req *types.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	l := level(req.Priority)
	f.queues[l] = append(f.queues[l], req)
	f.n++
}

// TryPop dequeues without blocking. Returns nil if the frontier is empty.
func (f *Frontier) TryPop() *types.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pop()
}

func (f *Frontier) pop() *types.Request {
	for l := range f.queues {
		q := f.queues[l]
		if len(q) == 0 {
			continue
		}
		req := q[0]
		q[0] = nil
		f.queues[l] = q[1:]
		if len(f.queues[l]) == 0 {
			f.queues[l] = nil
		}
		f.n--
		return req
	}
	return nil
}

// Len returns the number of queued requests.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

// Close stops further pushes. Queued requests can still be popped.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// IsClosed reports whether Close has been called.
func (f *Frontier) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Drain removes and returns every queued request in pop order.
func (f *Frontier) Drain() []*types.Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	requests := make([]*types.Request, 0, f.n)
	for req := f.pop(); req != nil; req = f.pop() {
		requests = append(requests, req)
	}
	return requests
}
