package kcp

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/feval/lib/pool"
	"github.com/ValentinKolb/feval/lib/util"
	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/ValentinKolb/feval/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/kcp")

const (
	// acceptBacklog is the number of new sessions waiting for Accept
	acceptBacklog = 128
	// inboxSize is the number of datagrams queued between socket and sessions
	inboxSize = 1024
)

// Listener multiplexes kcp sessions over one UDP socket. A session is keyed
// by the "ip:port" of its peer and created on the first datagram from it.
// A single update task ticks all sessions and sweeps the ones that stayed
// silent for longer than the idle timeout.
type Listener struct {
	conn *net.UDPConn
	conv uint32
	idle time.Duration

	buffers   *pool.BufferPool
	transfers *pool.TransferPool

	sessions *xsync.MapOf[string, *Session]
	accept   chan *Session
	inbox    chan *pool.Transfer

	sweepMu sync.Mutex
	sweep   *util.DeadlineHeap

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Listen binds endpoint and starts the socket reader and the update task.
// idle <= 0 disables the session sweep.
func Listen(endpoint string, conv uint32, idle time.Duration, buffers *pool.BufferPool, transfers *pool.TransferPool) (*Listener, error) {
	addr, err := net.ResolveUDPAddr("udp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", endpoint, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create UDP socket: %w", err)
	}

	l := &Listener{
		conn:      conn,
		conv:      conv,
		idle:      idle,
		buffers:   buffers,
		transfers: transfers,
		sessions:  xsync.NewMapOf[string, *Session](),
		accept:    make(chan *Session, acceptBacklog),
		inbox:     make(chan *pool.Transfer, inboxSize),
		sweep:     util.NewDeadlineHeap(),
		done:      make(chan struct{}),
	}

	l.wg.Add(3)
	go l.readLoop()
	go l.inputLoop()
	go l.tickLoop()
	return l, nil
}

// --------------------------------------------------------------------------
// transport.Listener
// --------------------------------------------------------------------------

func (l *Listener) Accept() (transport.Conn, error) {
	select {
	case s := <-l.accept:
		return s, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

// Close closes every session and the socket
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		l.closeSessions()
		err = l.conn.Close()
		l.wg.Wait()
		// sessions created while the loops were stopping
		l.closeSessions()
	})
	return err
}

func (l *Listener) Addr() net.Addr { return l.conn.LocalAddr() }

// Sessions returns the number of live sessions
func (l *Listener) Sessions() int { return l.sessions.Size() }

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// readLoop moves datagrams from the socket into the inbox
func (l *Listener) readLoop() {
	defer l.wg.Done()
	defer close(l.inbox)

	for {
		t := l.transfers.Acquire()
		t.Buffer = l.buffers.Acquire()

		n, addr, err := l.conn.ReadFrom(t.Buffer.B)
		if err != nil {
			l.buffers.Release(t.Buffer)
			l.transfers.Release(t)
			select {
			case <-l.done:
				return
			default:
			}
			Logger.Errorf("UDP read error: %v", err)
			continue
		}

		t.N, t.Addr = n, addr
		select {
		case l.inbox <- t:
		case <-l.done:
			l.buffers.Release(t.Buffer)
			l.transfers.Release(t)
			return
		}
	}
}

// inputLoop feeds queued datagrams into their sessions
func (l *Listener) inputLoop() {
	defer l.wg.Done()

	for t := range l.inbox {
		l.handleDatagram(t.Addr, t.Data())
		l.buffers.Release(t.Buffer)
		l.transfers.Release(t)
	}
}

func (l *Listener) handleDatagram(addr net.Addr, data []byte) {
	key := addr.String()

	if isDisconnect(data) {
		if s, ok := l.sessions.Load(key); ok {
			Logger.Debugf("Peer %s disconnected", key)
			_ = s.close(false)
		}
		return
	}

	s, ok := l.sessions.Load(key)
	if !ok {
		if !isOpening(data, l.conv) {
			// late segments of a session that is already gone
			Logger.Debugf("Dropped datagram of %d bytes from unknown peer %s", len(data), key)
			return
		}
		var loaded bool
		s, loaded = l.sessions.LoadOrCompute(key, func() *Session {
			return l.newSession(addr)
		})
		if !loaded {
			select {
			case l.accept <- s:
			default:
				Logger.Warningf("Accept backlog full, dropping session from %s", key)
				_ = s.close(false)
				return
			}
		}
	}

	s.input(data)
	if l.idle > 0 {
		l.sweepMu.Lock()
		l.sweep.Set(key, time.Now().Add(l.idle))
		l.sweepMu.Unlock()
	}
}

func (l *Listener) newSession(addr net.Addr) *Session {
	key := addr.String()
	s := newSession(l.conv, l.conn.LocalAddr(), addr, func(b []byte) error {
		_, err := l.conn.WriteTo(b, addr)
		return err
	})
	s.release = func(s *Session) {
		l.sessions.Compute(key, func(old *Session, loaded bool) (*Session, bool) {
			return old, !loaded || old == s
		})
		l.sweepMu.Lock()
		l.sweep.Remove(key)
		l.sweepMu.Unlock()
	}
	Logger.Debugf("New session from %s", key)
	return s
}

func (l *Listener) closeSessions() {
	l.sessions.Range(func(_ string, s *Session) bool {
		_ = s.Close()
		return true
	})
}

// tickLoop updates all sessions and sweeps idle ones
func (l *Listener) tickLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case now := <-ticker.C:
			l.sessions.Range(func(_ string, s *Session) bool {
				s.update()
				return true
			})
			l.sweepIdle(now)
		}
	}
}

func (l *Listener) sweepIdle(now time.Time) {
	if l.idle <= 0 {
		return
	}
	l.sweepMu.Lock()
	expired := l.sweep.Expired(now)
	l.sweepMu.Unlock()

	for _, key := range expired {
		if s, ok := l.sessions.Load(key); ok {
			Logger.Infof("Session %s idle for %s, closing", key, l.idle)
			common.SessionsSwept.Inc()
			_ = s.Close()
		}
	}
}
