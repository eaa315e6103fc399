package base

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry tracks the live connections of a server transport by connection id.
// Lookups and removals are lock free; Add and Shutdown are serialized so no
// connection can slip in while the registry is being emptied.
type Registry struct {
	mu     sync.Mutex
	closed bool
	conns  *xsync.MapOf[uint64, *Connection]
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{conns: xsync.NewMapOf[uint64, *Connection]()}
}

// Add registers c. It returns false when the registry was shut down.
func (r *Registry) Add(c *Connection) bool {
	return r.Admit(c, nil)
}

// Admit registers c and runs open before a concurrent Shutdown can see c, so
// Shutdown never closes a connection whose open notification is still pending.
// open must not call Add, Admit or Shutdown.
func (r *Registry) Admit(c *Connection, open func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.conns.Store(c.ID(), c)
	if open != nil {
		open()
	}
	return true
}

// Remove unregisters c if it is still the registered instance for its id
func (r *Registry) Remove(c *Connection) bool {
	removed := false
	r.conns.Compute(c.ID(), func(old *Connection, loaded bool) (*Connection, bool) {
		if loaded && old == c {
			removed = true
			return nil, true
		}
		return old, !loaded
	})
	return removed
}

// Get returns the connection with the given id
func (r *Registry) Get(id uint64) (*Connection, bool) {
	return r.conns.Load(id)
}

// Len returns the number of registered connections
func (r *Registry) Len() int {
	return r.conns.Size()
}

// Range calls fn for every registered connection until fn returns false
func (r *Registry) Range(fn func(c *Connection) bool) {
	r.conns.Range(func(_ uint64, c *Connection) bool {
		return fn(c)
	})
}

// Shutdown empties the registry, closes every connection that was in it and
// rejects later additions. It returns the number of closed connections.
func (r *Registry) Shutdown() int {
	r.mu.Lock()
	r.closed = true
	var live []*Connection
	r.conns.Range(func(_ uint64, c *Connection) bool {
		live = append(live, c)
		return true
	})
	r.conns.Clear()
	r.mu.Unlock()

	for _, c := range live {
		_ = c.Close()
	}
	return len(live)
}
