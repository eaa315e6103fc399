package base

import "github.com/ValentinKolb/feval/lib/pool"

// Pools bundles the free-lists shared by all connections of a transport.
// One instance is created per process and passed to every transport.
type Pools struct {
	Buffers   *pool.BufferPool
	Streams   *pool.StreamPool
	Transfers *pool.TransferPool
}

// NewPools creates pools whose receive buffers start at bufferSize bytes
// (pool.DefaultBufferSize when <= 0)
func NewPools(bufferSize int) *Pools {
	return &Pools{
		Buffers:   pool.NewBufferPool(bufferSize),
		Streams:   pool.NewStreamPool(),
		Transfers: pool.NewTransferPool(),
	}
}

var defaultPools = NewPools(pool.DefaultBufferSize)

// DefaultPools returns the process wide pools used when none are given
func DefaultPools() *Pools { return defaultPools }
