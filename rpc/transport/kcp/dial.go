package kcp

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Dial opens a session to endpoint over a connected UDP socket. The session
// owns the socket together with its reader and update goroutines; closing the
// session stops both.
func Dial(endpoint string, conv uint32) (*Session, error) {
	raddr, err := net.ResolveUDPAddr("udp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", endpoint, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}

	s := newSession(conv, conn.LocalAddr(), raddr, func(b []byte) error {
		_, err := conn.Write(b)
		return err
	})
	s.release = func(*Session) { _ = conn.Close() }

	go dialReadLoop(s, conn)
	go dialTickLoop(s)
	return s, nil
}

func dialReadLoop(s *Session, conn *net.UDPConn) {
	buf := make([]byte, 2*mtu)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				_ = s.close(false)
				return
			}
			// e.g. connection refused while the server is not up yet
			Logger.Debugf("UDP read from %s: %v", s.remote, err)
			continue
		}
		if isDisconnect(buf[:n]) {
			Logger.Debugf("Server %s closed the session", s.remote)
			_ = s.close(false)
			return
		}
		s.input(buf[:n])
	}
}

func dialTickLoop(s *Session) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			s.update()
		}
	}
}
