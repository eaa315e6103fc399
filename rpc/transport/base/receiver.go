package base

import (
	"fmt"
	"math/bits"

	"github.com/ValentinKolb/feval/lib/pool"
	"github.com/ValentinKolb/feval/rpc/codec"
	"github.com/ValentinKolb/feval/rpc/transport"
)

// receiver reassembles length prefixed frames from arbitrary read chunks.
//
// The unconsumed bytes live in buf[start:end]. The receiver alternates between
// the head state (waiting for a complete length prefix) and the body state
// (waiting for the announced frame). When a frame does not fit, buf is
// replaced by a buffer of the next power of two and the unconsumed bytes move
// to its front.
type receiver struct {
	codec    codec.Codec
	maxFrame int
	dispatch func(frame []byte) error

	buffers *pool.BufferPool
	pooled  *pool.Buffer
	buf     []byte

	start, end int
	inBody     bool
	need       int
}

func newReceiver(c codec.Codec, maxFrame int, buffers *pool.BufferPool, dispatch func(frame []byte) error) *receiver {
	r := &receiver{
		codec:    c,
		maxFrame: maxFrame,
		dispatch: dispatch,
		buffers:  buffers,
	}
	r.pooled = buffers.Acquire()
	r.buf = r.pooled.B
	return r
}

// space returns the free tail to read into. It is never empty while the
// receiver is in a consistent state.
func (r *receiver) space() []byte {
	if r.end == len(r.buf) {
		r.compact()
	}
	return r.buf[r.end:]
}

// received accounts n bytes written into the slice returned by space and
// dispatches every frame that is complete now
func (r *receiver) received(n int) error {
	r.end += n
	return r.process()
}

func (r *receiver) process() error {
	defer r.compact()

	for {
		avail := r.end - r.start

		if !r.inBody {
			if avail < codec.LengthSize {
				return nil
			}
			n := r.codec.FrameLength(r.buf[r.start:])
			if n < codec.HeaderSize {
				return fmt.Errorf("%w: frame length %d", codec.ErrMalformed, n)
			}
			if r.maxFrame > 0 && n > r.maxFrame {
				return fmt.Errorf("%w: %d > %d bytes", transport.ErrFrameTooLarge, n, r.maxFrame)
			}
			r.need = n
			r.inBody = true
			r.ensure(codec.LengthSize + n)
			continue
		}

		total := codec.LengthSize + r.need
		if avail < total {
			return nil
		}
		frame := r.buf[r.start+codec.LengthSize : r.start+total]
		r.start += total
		r.inBody = false
		if err := r.dispatch(frame); err != nil {
			return err
		}
	}
}

// ensure makes room for total bytes starting at the first unconsumed byte
func (r *receiver) ensure(total int) {
	if r.start+total <= len(r.buf) {
		return
	}
	if total <= len(r.buf) {
		r.compact()
		return
	}

	grown := make([]byte, nextPow2(total))
	r.end = copy(grown, r.buf[r.start:r.end])
	r.start = 0
	r.releasePooled()
	r.buf = grown
}

// compact moves the unconsumed bytes to the front of buf
func (r *receiver) compact() {
	if r.start == 0 {
		return
	}
	r.end = copy(r.buf, r.buf[r.start:r.end])
	r.start = 0
}

func (r *receiver) releasePooled() {
	if r.pooled != nil {
		r.buffers.Release(r.pooled)
		r.pooled = nil
	}
}

// release returns the pooled buffer. The receiver is unusable afterwards.
func (r *receiver) release() {
	r.releasePooled()
	r.buf = nil
	r.start, r.end = 0, 0
}

// nextPow2 returns the smallest power of two >= n
func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
