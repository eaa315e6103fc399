package pool

import (
	"sync"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("pool")

// pooled is implemented by every object managed by a freeList
type pooled interface {
	isIdle() bool
	setIdle(idle bool)
	reset()
}

// freeList is the mutex guarded stack shared by all pool kinds
type freeList[T pooled] struct {
	mu        sync.Mutex
	free      []T
	allocated int
	newFn     func() T
	allocs    *metrics.Counter
}

func newFreeList[T pooled](name string, newFn func() T) freeList[T] {
	return freeList[T]{
		newFn:  newFn,
		allocs: metrics.GetOrCreateCounter(`feval_pool_allocations_total{pool="` + name + `"}`),
	}
}

// acquire pops an idle object or allocates a new one. Recycled objects are
// reset again since a late writer may have touched them while idle.
func (l *freeList[T]) acquire() T {
	l.mu.Lock()
	if n := len(l.free); n > 0 {
		v := l.free[n-1]
		var zero T
		l.free[n-1] = zero
		l.free = l.free[:n-1]
		v.reset()
		v.setIdle(false)
		l.mu.Unlock()
		return v
	}
	l.allocated++
	l.mu.Unlock()

	l.allocs.Inc()
	return l.newFn()
}

// release resets v and pushes it back. It reports false if v was already idle.
func (l *freeList[T]) release(v T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v.isIdle() {
		return false
	}
	v.reset()
	v.setIdle(true)
	l.free = append(l.free, v)
	return true
}

func (l *freeList[T]) stats() (allocated, idle int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allocated, len(l.free)
}
