// Package expqueue implements the ExpirationQueue from spec §3/§4.3: a
// priority-ordered set of order hashes keyed by expiration timestamp, with a
// single cooperative timer that fires a callback once per order whose
// expiration (minus a safety margin) has arrived.
package expqueue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// OnExpired is invoked once per order hash, in chronological order, each
// time the queue's timer fires and finds expired entries.
type OnExpired func(orderHash common.Hash)

type item struct {
	orderHash    common.Hash
	expirationMs int64
	index        int // heap.Interface bookkeeping
}

type priorityHeap []*item

func (h priorityHeap) Len() int            { return len(h) }
func (h priorityHeap) Less(i, j int) bool  { return h[i].expirationMs < h[j].expirationMs }
func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *priorityHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Queue is a min-heap over expirationMs with an auxiliary handle index for
// O(log n) removal by order hash, polled by a single background timer.
type Queue struct {
	pollInterval time.Duration
	safetyMargin time.Duration
	now          func() time.Time

	mu      sync.Mutex
	h       priorityHeap
	handles map[common.Hash]*item
	sink    OnExpired

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Queue with the given poll interval and safety margin. A
// zero pollInterval falls back to the spec's implementation-defined default
// of 50ms.
func New(pollInterval, safetyMargin time.Duration) *Queue {
	if pollInterval <= 0 {
		pollInterval = 50 * time.Millisecond
	}
	return &Queue{
		pollInterval: pollInterval,
		safetyMargin: safetyMargin,
		now:          time.Now,
		handles:      make(map[common.Hash]*item),
	}
}

// Add enrolls orderHash with the given expiration timestamp (milliseconds
// since epoch). A duplicate Add for an existing hash replaces its prior
// timestamp and re-heapifies in place.
func (q *Queue) Add(orderHash common.Hash, expirationMs int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if it, ok := q.handles[orderHash]; ok {
		it.expirationMs = expirationMs
		heap.Fix(&q.h, it.index)
		return
	}

	it := &item{orderHash: orderHash, expirationMs: expirationMs}
	heap.Push(&q.h, it)
	q.handles[orderHash] = it
}

// Remove drops orderHash from the queue, if present.
func (q *Queue) Remove(orderHash common.Hash) {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.handles[orderHash]
	if !ok {
		return
	}
	heap.Remove(&q.h, it.index)
	delete(q.handles, orderHash)
}

// Len reports the number of enrolled order hashes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

// Has reports whether orderHash is currently enrolled.
func (q *Queue) Has(orderHash common.Hash) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.handles[orderHash]
	return ok
}

// Start begins the polling timer and attaches sink as the callback fired for
// every expired entry. Entries accumulate even before Start is called or
// after Stop; only delivery is gated by the timer and a non-nil sink.
func (q *Queue) Start(sink OnExpired) {
	q.mu.Lock()
	q.sink = sink
	q.stopCh = make(chan struct{})
	q.doneCh = make(chan struct{})
	stopCh := q.stopCh
	doneCh := q.doneCh
	q.mu.Unlock()

	go q.run(stopCh, doneCh)
}

// Stop detaches the sink and halts the polling timer, blocking until the
// timer goroutine has exited.
func (q *Queue) Stop() {
	q.mu.Lock()
	stopCh := q.stopCh
	q.stopCh = nil
	q.sink = nil
	q.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	q.mu.Lock()
	doneCh := q.doneCh
	q.mu.Unlock()
	if doneCh != nil {
		<-doneCh
	}
}

func (q *Queue) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			q.tick()
		}
	}
}

// tick pops every entry whose expirationMs - safetyMargin <= now and invokes
// the sink once per order, in chronological (heap pop) order.
func (q *Queue) tick() {
	cutoff := q.now().Add(q.safetyMargin).UnixMilli()

	for {
		q.mu.Lock()
		if len(q.h) == 0 || q.h[0].expirationMs > cutoff {
			q.mu.Unlock()
			return
		}
		it := heap.Pop(&q.h).(*item)
		delete(q.handles, it.orderHash)
		sink := q.sink
		q.mu.Unlock()

		if sink != nil {
			sink(it.orderHash)
		}
	}
}
