package pool

import "net"

// Transfer bundles a buffer with the bookkeeping of one asynchronous I/O
// operation. The goroutine performing the I/O calls Complete exactly once;
// the owner waits for it with Wait.
type Transfer struct {
	// Buffer is attached by the owner and detached (not released) on reset
	Buffer *Buffer
	// N is the number of bytes transferred
	N int
	// Addr is the remote address for datagram transfers
	Addr net.Addr
	// Err is the result of the operation
	Err error

	done chan error
	idle bool
}

func (t *Transfer) isIdle() bool      { return t.idle }
func (t *Transfer) setIdle(idle bool) { t.idle = idle }
func (t *Transfer) reset() {
	t.Buffer = nil
	t.N = 0
	t.Addr = nil
	t.Err = nil
	select {
	case <-t.done:
	default:
	}
}

// Data returns the transferred bytes of the attached buffer
func (t *Transfer) Data() []byte {
	if t.Buffer == nil {
		return nil
	}
	return t.Buffer.B[:t.N]
}

// Complete records the result of the operation and wakes a waiter.
// Only the first call per borrow has an effect on Wait.
func (t *Transfer) Complete(err error) {
	t.Err = err
	select {
	case t.done <- err:
	default:
	}
}

// Wait blocks until Complete was called and returns its error
func (t *Transfer) Wait() error {
	err := <-t.done
	return err
}

// TransferPool is a free-list of Transfer contexts.
type TransferPool struct {
	list freeList[*Transfer]
}

// NewTransferPool creates an empty transfer pool
func NewTransferPool() *TransferPool {
	return &TransferPool{
		list: newFreeList("transfer", func() *Transfer {
			return &Transfer{done: make(chan error, 1)}
		}),
	}
}

// Acquire returns a reset transfer context
func (p *TransferPool) Acquire() *Transfer {
	return p.list.acquire()
}

// Release clears the error state, detaches the buffer and marks t idle.
// Releasing nil or an idle transfer is a no-op.
func (p *TransferPool) Release(t *Transfer) {
	if t == nil {
		return
	}
	if !p.list.release(t) {
		Logger.Debugf("ignored release of idle transfer")
	}
}

// Allocated returns how many transfers the pool has created in total
func (p *TransferPool) Allocated() int {
	allocated, _ := p.list.stats()
	return allocated
}

// Idle returns the number of transfers currently on the free-list
func (p *TransferPool) Idle() int {
	_, idle := p.list.stats()
	return idle
}
