package pool

// DefaultBufferSize is the size class of buffers handed out by a BufferPool
// created with a non-positive size.
const DefaultBufferSize = 4 * 1024

// Buffer is a fixed-size byte buffer borrowed from a BufferPool.
// B always has the pool's size class as length when acquired.
type Buffer struct {
	B    []byte
	size int
	idle bool
}

func (b *Buffer) isIdle() bool      { return b.idle }
func (b *Buffer) setIdle(idle bool) { b.idle = idle }
func (b *Buffer) reset()            { b.B = b.B[:b.size] }

// BufferPool is a free-list of fixed-size byte buffers.
type BufferPool struct {
	size int
	list freeList[*Buffer]
}

// NewBufferPool creates a pool handing out buffers of the given size
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	p := &BufferPool{size: size}
	p.list = newFreeList("buffer", func() *Buffer {
		return &Buffer{B: make([]byte, size), size: size}
	})
	return p
}

// Size returns the size class of the pool
func (p *BufferPool) Size() int { return p.size }

// Acquire returns an idle buffer or allocates a new one
func (p *BufferPool) Acquire() *Buffer {
	return p.list.acquire()
}

// Release hands b back to the pool. Releasing nil, an idle buffer or a
// buffer of a different size class is a no-op.
func (p *BufferPool) Release(b *Buffer) {
	if b == nil || b.size != p.size || cap(b.B) < p.size {
		return
	}
	if !p.list.release(b) {
		Logger.Debugf("ignored release of idle buffer")
	}
}

// Allocated returns how many buffers the pool has created in total
func (p *BufferPool) Allocated() int {
	allocated, _ := p.list.stats()
	return allocated
}

// Idle returns the number of buffers currently on the free-list
func (p *BufferPool) Idle() int {
	_, idle := p.list.stats()
	return idle
}
