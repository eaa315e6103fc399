package base

import (
	"net"
	"sync"
	"testing"

	"github.com/ValentinKolb/feval/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idleConnection(t *testing.T) *Connection {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return newConnection(a, testOptions(0), nil, nil)
}

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry()
	c := idleConnection(t)

	require.True(t, r.Add(c))
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get(c.ID())
	require.True(t, ok)
	assert.Same(t, c, got)

	assert.True(t, r.Remove(c))
	assert.False(t, r.Remove(c), "second removal is a no-op")
	assert.Equal(t, 0, r.Len())
}

func TestRegistryRemoveIgnoresOtherInstance(t *testing.T) {
	r := NewRegistry()
	c := idleConnection(t)
	require.True(t, r.Add(c))

	// a different connection object that happens to carry the same id
	stale := idleConnection(t)
	stale.id = c.ID()

	assert.False(t, r.Remove(stale))
	got, ok := r.Get(c.ID())
	require.True(t, ok)
	assert.Same(t, c, got)
}

func TestRegistryShutdown(t *testing.T) {
	r := NewRegistry()
	conns := make([]*Connection, 5)
	for i := range conns {
		conns[i] = idleConnection(t)
		require.True(t, r.Add(conns[i]))
	}

	assert.Equal(t, 5, r.Shutdown())
	assert.Equal(t, 0, r.Len())
	for _, c := range conns {
		assert.Equal(t, transport.StateClosed, c.State())
	}

	assert.False(t, r.Add(idleConnection(t)), "shut down registry rejects additions")
	assert.Equal(t, 0, r.Shutdown())
}

func TestRegistryConcurrentRemove(t *testing.T) {
	r := NewRegistry()
	c := idleConnection(t)
	require.True(t, r.Add(c))

	var removed sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		removed.Add(1)
		go func() {
			defer removed.Done()
			if r.Remove(c) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	removed.Wait()
	assert.Equal(t, 1, wins)
}
