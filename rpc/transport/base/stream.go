package base

import (
	"net"

	"github.com/ValentinKolb/feval/rpc/transport"
)

// streamListener adapts a net.Listener of a stream socket
type streamListener struct {
	net.Listener
}

// WrapListener adapts l to transport.Listener
func WrapListener(l net.Listener) transport.Listener {
	return streamListener{Listener: l}
}

func (l streamListener) Accept() (transport.Conn, error) {
	return l.Listener.Accept()
}
