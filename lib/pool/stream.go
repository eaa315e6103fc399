package pool

// maxRetainedStream is the largest backing array a released Stream keeps.
// Larger arrays are dropped so one huge frame does not pin memory forever.
const maxRetainedStream = 1 << 20

// Stream is a growable byte-stream wrapper. It implements io.Writer and
// io.ByteWriter. B may be used directly with append style helpers:
//
//	s.B = codec.Encode(s.B[:0], payload, flags, seq, c)
type Stream struct {
	B    []byte
	idle bool
}

func (s *Stream) isIdle() bool      { return s.idle }
func (s *Stream) setIdle(idle bool) { s.idle = idle }
func (s *Stream) reset() {
	if cap(s.B) > maxRetainedStream {
		s.B = nil
		return
	}
	s.B = s.B[:0]
}

// Write appends p to the stream
func (s *Stream) Write(p []byte) (int, error) {
	s.B = append(s.B, p...)
	return len(p), nil
}

// WriteByte appends c to the stream
func (s *Stream) WriteByte(c byte) error {
	s.B = append(s.B, c)
	return nil
}

// Bytes returns the written bytes. The slice is only valid until the next
// write or the release of the stream.
func (s *Stream) Bytes() []byte { return s.B }

// Len returns the number of written bytes
func (s *Stream) Len() int { return len(s.B) }

// Reset truncates the stream to zero length and keeps the backing array
func (s *Stream) Reset() { s.B = s.B[:0] }

// Truncate discards all but the first n bytes
func (s *Stream) Truncate(n int) {
	if n < 0 || n > len(s.B) {
		panic("pool: stream truncation out of range")
	}
	s.B = s.B[:n]
}

// Grow makes room for at least n more bytes without another allocation
func (s *Stream) Grow(n int) {
	if n <= cap(s.B)-len(s.B) {
		return
	}
	grown := make([]byte, len(s.B), 2*cap(s.B)+n)
	copy(grown, s.B)
	s.B = grown
}

// StreamPool is a free-list of Stream wrappers.
type StreamPool struct {
	list freeList[*Stream]
}

// NewStreamPool creates an empty stream pool
func NewStreamPool() *StreamPool {
	return &StreamPool{
		list: newFreeList("stream", func() *Stream { return &Stream{} }),
	}
}

// Acquire returns an empty stream
func (p *StreamPool) Acquire() *Stream {
	return p.list.acquire()
}

// Release resets s to zero length and marks it idle.
// Releasing nil or an already idle stream is a no-op.
func (p *StreamPool) Release(s *Stream) {
	if s == nil {
		return
	}
	if !p.list.release(s) {
		Logger.Debugf("ignored release of idle stream")
	}
}

// Allocated returns how many streams the pool has created in total
func (p *StreamPool) Allocated() int {
	allocated, _ := p.list.stats()
	return allocated
}

// Idle returns the number of streams currently on the free-list
func (p *StreamPool) Idle() int {
	_, idle := p.list.stats()
	return idle
}
