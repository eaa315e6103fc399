package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// link is one element of the queue's singly linked list
type link[T any] struct {
	value *T
	next  atomic.Pointer[link[T]]
}

// MPSC is an unbounded lock-free multi-producer single-consumer queue.
//
// Any number of goroutines may call Push. Values are delivered on the channel
// returned by Recv by a single internal goroutine. Values pushed by one
// producer are delivered in the order they were pushed; across producers
// there is no ordering guarantee.
type MPSC[T any] struct {
	head   atomic.Pointer[link[T]] // sentinel, owned by the consumer
	tail   atomic.Pointer[link[T]]
	out    chan *T
	closed atomic.Bool
	done   sync.WaitGroup

	mu     sync.Mutex
	signal *sync.Cond
}

// NewMPSC creates a queue and starts its delivery goroutine
func NewMPSC[T any]() *MPSC[T] {
	q := &MPSC[T]{out: make(chan *T)}
	q.signal = sync.NewCond(&q.mu)

	sentinel := &link[T]{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.done.Add(1)
	go q.deliver()
	return q
}

// Push appends value. It returns false for nil values or a closed queue.
func (q *MPSC[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	l := &link[T]{value: value}
	var spins uint8
	for {
		tail := q.tail.Load()
		next := tail.next.Load()

		if next != nil {
			// another producer linked a node but did not move the tail yet
			q.tail.CompareAndSwap(tail, next)
		} else if tail.next.CompareAndSwap(nil, l) {
			q.tail.CompareAndSwap(tail, l)
			q.mu.Lock()
			q.signal.Signal()
			q.mu.Unlock()
			return true
		}

		// back off exponentially under contention
		if spins < 8 {
			spins++
			for i := 0; i < 1<<spins; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// deliver moves values from the list to the output channel until the queue
// is closed and drained
func (q *MPSC[T]) deliver() {
	defer q.done.Done()
	defer close(q.out)

	for {
		head := q.head.Load()
		next := head.next.Load()

		if next != nil {
			value := next.value
			q.head.Store(next)
			next.value = nil
			q.out <- value
			continue
		}

		if q.closed.Load() {
			return
		}

		q.mu.Lock()
		if q.head.Load().next.Load() == nil && !q.closed.Load() {
			q.signal.Wait()
		}
		q.mu.Unlock()
	}
}

// Recv returns the channel values are delivered on. It is closed once the
// queue is closed and every pushed value was delivered.
func (q *MPSC[T]) Recv() <-chan *T {
	return q.out
}

// Close rejects further pushes. Already queued values are still delivered.
func (q *MPSC[T]) Close() {
	q.closed.Store(true)
	q.mu.Lock()
	q.signal.Signal()
	q.mu.Unlock()
}

// IsClosed reports whether Close was called
func (q *MPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len counts the queued values. O(n), meant for tests and debugging.
func (q *MPSC[T]) Len() int {
	n := 0
	for l := q.head.Load().next.Load(); l != nil; l = l.next.Load() {
		n++
	}
	return n
}
