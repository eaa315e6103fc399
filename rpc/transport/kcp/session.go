package kcp

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	kcpgo "github.com/xtaci/kcp-go/v5"
)

const (
	// mtu of the datagrams produced by kcp
	mtu = 1400
	// window is the send and receive window in segments
	window = 128
	// tickInterval is the period of the update task
	tickInterval = 10 * time.Millisecond
	// maxChunk bounds a single kcp message; larger writes are split so every
	// message fits into the receive window
	maxChunk = 32 * 1024
	// maxWaitSnd is the number of unacknowledged segments at which Write blocks
	maxWaitSnd = 2 * window
	// disconnectSize is the length of the all-zero datagram announcing a close
	disconnectSize = 4
)

var (
	errSendRejected = errors.New("kcp: message rejected by send queue")
	disconnect      = make([]byte, disconnectSize)
)

// isDisconnect reports whether a datagram is the close announcement. Kcp
// segments are at least 24 bytes long, so the two never collide.
func isDisconnect(b []byte) bool {
	if len(b) != disconnectSize {
		return false
	}
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// kcp segment header layout: conv(4) cmd(1) frg(1) wnd(2) ts(4) sn(4) una(4) len(4)
const (
	segmentHeaderSize = 24
	cmdPush           = 81
)

// isOpening reports whether a datagram starts with the first data segment of
// a conversation. Only such datagrams create sessions on a listener.
func isOpening(b []byte, conv uint32) bool {
	if len(b) < segmentHeaderSize {
		return false
	}
	return binary.LittleEndian.Uint32(b[0:4]) == conv &&
		b[4] == cmdPush &&
		binary.LittleEndian.Uint32(b[12:16]) == 0
}

// Session is a reliable, ordered byte stream to one UDP peer. It implements
// transport.Conn. The owner feeds received datagrams with input and drives
// retransmissions with update.
type Session struct {
	mu            sync.Mutex
	kcp           *kcpgo.KCP
	pending       []byte // rest of a message larger than the last Read
	readDeadline  time.Time
	writeDeadline time.Time

	local, remote net.Addr
	send          func(b []byte) error
	release       func(s *Session)

	readable  chan struct{}
	writable  chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func newSession(conv uint32, local, remote net.Addr, send func(b []byte) error) *Session {
	s := &Session{
		local:    local,
		remote:   remote,
		send:     send,
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
	s.kcp = kcpgo.NewKCP(conv, func(buf []byte, size int) {
		if err := s.send(buf[:size]); err != nil {
			Logger.Debugf("Datagram to %s dropped: %v", s.remote, err)
		}
	})
	s.kcp.SetMtu(mtu)
	s.kcp.WndSize(window, window)
	// nodelay with an interval equal to the tick, fast resend after two skipped
	// acks, no congestion window
	s.kcp.NoDelay(1, int(tickInterval/time.Millisecond), 2, 1)
	return s
}

// --------------------------------------------------------------------------
// transport.Conn
// --------------------------------------------------------------------------

func (s *Session) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		s.mu.Lock()
		if len(s.pending) > 0 {
			n := copy(p, s.pending)
			s.pending = s.pending[n:]
			s.mu.Unlock()
			return n, nil
		}
		if size := s.kcp.PeekSize(); size > 0 {
			var n int
			if size <= len(p) {
				n = s.kcp.Recv(p)
			} else {
				msg := make([]byte, size)
				s.kcp.Recv(msg)
				n = copy(p, msg)
				s.pending = msg[n:]
			}
			s.mu.Unlock()
			return n, nil
		}
		deadline := s.readDeadline
		s.mu.Unlock()

		if err := s.wait(s.readable, deadline); err != nil {
			return 0, err
		}
	}
}

func (s *Session) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		s.mu.Lock()
		if s.isClosed() {
			s.mu.Unlock()
			return written, net.ErrClosed
		}
		if s.kcp.WaitSnd() >= maxWaitSnd {
			deadline := s.writeDeadline
			s.mu.Unlock()
			if err := s.wait(s.writable, deadline); err != nil {
				return written, err
			}
			continue
		}

		n := min(len(p), maxChunk)
		if s.kcp.Send(p[:n]) < 0 {
			s.mu.Unlock()
			return written, errSendRejected
		}
		s.kcp.Update()
		s.mu.Unlock()

		written += n
		p = p[n:]
	}
	return written, nil
}

// Close announces the close to the peer and releases the session
func (s *Session) Close() error {
	return s.close(true)
}

func (s *Session) LocalAddr() net.Addr { return s.local }

func (s *Session) RemoteAddr() net.Addr { return s.remote }

func (s *Session) SetReadDeadline(t time.Time) error {
	s.mu.Lock()
	s.readDeadline = t
	s.mu.Unlock()
	notify(s.readable)
	return nil
}

func (s *Session) SetWriteDeadline(t time.Time) error {
	s.mu.Lock()
	s.writeDeadline = t
	s.mu.Unlock()
	notify(s.writable)
	return nil
}

// --------------------------------------------------------------------------
// Owner side
// --------------------------------------------------------------------------

// input feeds one received datagram into the kcp state machine
func (s *Session) input(data []byte) {
	s.mu.Lock()
	if ret := s.kcp.Input(data, true, false); ret < 0 {
		Logger.Debugf("Dropped datagram of %d bytes from %s (code %d)", len(data), s.remote, ret)
	}
	readable := s.kcp.PeekSize() > 0
	s.mu.Unlock()

	if readable {
		notify(s.readable)
	}
}

// update drives acknowledgements and retransmissions
func (s *Session) update() {
	s.mu.Lock()
	s.kcp.Update()
	writable := s.kcp.WaitSnd() < maxWaitSnd
	s.mu.Unlock()

	if writable {
		notify(s.writable)
	}
}

// close marks the session closed. announce sends the disconnect datagram.
func (s *Session) close(announce bool) error {
	s.closeOnce.Do(func() {
		if announce {
			// flush queued segments ahead of the disconnect datagram
			s.mu.Lock()
			s.kcp.Update()
			s.mu.Unlock()
			_ = s.send(disconnect)
		}
		close(s.closed)
		if s.release != nil {
			s.release(s)
		}
	})
	return nil
}

func (s *Session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// wait blocks until ch is signalled, the session closes or deadline passes
func (s *Session) wait(ch <-chan struct{}, deadline time.Time) error {
	var timeout <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			return os.ErrDeadlineExceeded
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ch:
		return nil
	case <-s.closed:
		return io.EOF
	case <-timeout:
		return os.ErrDeadlineExceeded
	}
}

// notify signals ch without blocking
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
