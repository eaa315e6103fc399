package transport

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/ValentinKolb/feval/lib/pool"
	"github.com/ValentinKolb/feval/rpc/common"
)

var (
	// ErrClosed is returned by operations on a closed connection or transport
	ErrClosed = errors.New("transport: connection closed")
	// ErrFrameTooLarge is returned when a peer announces a frame above the configured maximum
	ErrFrameTooLarge = errors.New("transport: frame too large")
)

// --------------------------------------------------------------------------
// Carrier
// --------------------------------------------------------------------------

// Conn is the byte carrier a connection runs on. Every net.Conn satisfies it,
// the datagram backend provides its own implementation per session.
type Conn interface {
	io.ReadWriteCloser
	RemoteAddr() net.Addr
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Listener hands out carriers for accepted peers
type Listener interface {
	// Accept blocks until the next peer arrives or the listener is closed
	Accept() (Conn, error)
	// Close stops accepting. Datagram listeners also close their sessions.
	Close() error
	// Addr returns the bound local address
	Addr() net.Addr
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// State is the lifecycle state of a connection
type State int32

const (
	StateCreated State = iota
	StateHandshaking
	StateEstablished
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// IConnection is an established, encrypted message channel to one peer
type IConnection interface {
	// ID identifies the connection within its process
	ID() uint64
	// RemoteAddr returns the address of the peer
	RemoteAddr() net.Addr
	// State returns the current lifecycle state
	State() State
	// Send encodes payload into one frame and writes it. Concurrent calls are
	// serialized, each frame carries the next sequence index.
	Send(payload []byte) error
	// SendAsync sends payload on another goroutine. The returned transfer
	// completes with the result; payload must stay untouched until then.
	// The caller releases the transfer with ReleaseTransfer.
	SendAsync(payload []byte) *pool.Transfer
	// ReleaseTransfer returns a transfer obtained from SendAsync
	ReleaseTransfer(t *pool.Transfer)
	// Close closes the connection. It is idempotent.
	Close() error
	// Done is closed once the connection stopped receiving
	Done() <-chan struct{}
}

// IHandler receives the events of connections
type IHandler interface {
	// OnOpen is called once the handshake succeeded, before the first message
	OnOpen(c IConnection)
	// OnMessage is called for every decoded payload in arrival order. The
	// payload is only valid for the duration of the call.
	OnMessage(c IConnection, payload []byte)
	// OnClose is called exactly once when the connection closes. err is nil
	// for an orderly close.
	OnClose(c IConnection, err error)
}

// HandlerFuncs adapts plain functions to IHandler. Nil fields are skipped.
type HandlerFuncs struct {
	Open    func(c IConnection)
	Message func(c IConnection, payload []byte)
	Close   func(c IConnection, err error)
}

func (h HandlerFuncs) OnOpen(c IConnection) {
	if h.Open != nil {
		h.Open(c)
	}
}

func (h HandlerFuncs) OnMessage(c IConnection, payload []byte) {
	if h.Message != nil {
		h.Message(c, payload)
	}
}

func (h HandlerFuncs) OnClose(c IConnection, err error) {
	if h.Close != nil {
		h.Close(c, err)
	}
}

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// IServerTransport accepts peers, runs the responder handshake and feeds
// decoded messages to the registered handler
type IServerTransport interface {
	// RegisterHandler sets the handler for all accepted connections. It must be
	// called before Serve.
	RegisterHandler(handler IHandler)
	// Listen binds the endpoint of config and returns the bound address
	Listen(config common.ServerConfig) (net.Addr, error)
	// Serve accepts peers until Shutdown is called
	Serve() error
	// Shutdown stops accepting and closes every live connection
	Shutdown() error
	// Connections returns the number of established connections
	Connections() int
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IClientTransport dials a server and runs the initiator handshake
type IClientTransport interface {
	// Connect returns an established connection whose events go to handler
	Connect(config common.ClientConfig, handler IHandler) (IConnection, error)
}
