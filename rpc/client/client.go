package client

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/ValentinKolb/feval/rpc/transport"
	"github.com/ValentinKolb/feval/rpc/transport/base"
	"github.com/ValentinKolb/feval/rpc/transport/kcp"
	"github.com/ValentinKolb/feval/rpc/transport/tcp"
	"github.com/ValentinKolb/feval/rpc/transport/unix"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("client")

var (
	// ErrNotConnected is returned by Send before Connect or after a disconnect
	ErrNotConnected = errors.New("client: not connected")
	// ErrTimeout is returned when no reply arrived within the configured timeout
	ErrTimeout = errors.New("client: timed out waiting for reply")
	// ErrRemote wraps the message of a statement the server failed to evaluate
	ErrRemote = errors.New("client: evaluation failed")
)

// NewTransport creates the client transport for the backend named by tt
func NewTransport(tt common.TransportType, pools *base.Pools) (transport.IClientTransport, error) {
	switch tt {
	case common.TransportTCP:
		return tcp.NewTCPClientTransport(pools), nil
	case common.TransportUnix:
		return unix.NewUnixClientTransport(pools), nil
	case common.TransportKCP:
		return kcp.NewKCPClientTransport(pools), nil
	default:
		return nil, fmt.Errorf("invalid transport %q", tt)
	}
}

// Client sends statements to a server and returns its replies. Replies are
// matched to requests in order, so any number of goroutines may call Send.
// The client does not reconnect on its own; Events reports the state changes
// a caller needs to do so.
type Client struct {
	config    common.ClientConfig
	transport transport.IClientTransport
	events    chan Event

	connectMu sync.Mutex // one dial at a time
	sendMu    sync.Mutex // orders pending entries like the frames on the wire

	mu      sync.Mutex // guards conn and pending
	conn    transport.IConnection
	pending []chan []byte
}

// NewClient creates a client. Nothing is dialed before Connect.
func NewClient(config common.ClientConfig, transport transport.IClientTransport) *Client {
	return &Client{
		config:    config,
		transport: transport,
		events:    make(chan Event, eventBuffer),
	}
}

// Connect dials the server and runs the handshake. It is a no-op while a
// connection is established.
func (c *Client) Connect() error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if c.Connected() {
		return nil
	}

	_, err := c.transport.Connect(c.config, transport.HandlerFuncs{
		Open:    c.onOpen,
		Message: c.onMessage,
		Close:   c.onClose,
	})
	if err != nil {
		Logger.Warningf("Failed to connect to %s: %v", c.config.Endpoint, err)
		c.emit(Event{Kind: EventFailed, Err: err})
		return err
	}
	return nil
}

// Connected reports whether a connection is established
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send sends payload and waits for the reply
func (c *Client) Send(payload []byte) ([]byte, error) {
	reply := make(chan []byte, 1)

	c.sendMu.Lock()
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		c.sendMu.Unlock()
		return nil, ErrNotConnected
	}
	c.pending = append(c.pending, reply)
	c.mu.Unlock()

	// mu is not held while writing, the receive goroutine needs it to
	// deliver replies
	err := conn.Send(payload)
	if err != nil {
		c.dropPending(reply)
	}
	c.sendMu.Unlock()
	if err != nil {
		return nil, err
	}

	var timeout <-chan time.Time
	if c.config.TimeoutSecond > 0 {
		timer := time.NewTimer(time.Duration(c.config.TimeoutSecond) * time.Second)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case b, ok := <-reply:
		if !ok {
			return nil, transport.ErrClosed
		}
		return b, nil
	case <-timeout:
		// the entry stays queued so later replies still match their requests
		return nil, ErrTimeout
	}
}

// Evaluate sends one statement. ok is false for statements without a value.
// A statement the server failed to evaluate returns an error wrapping ErrRemote.
func (c *Client) Evaluate(statement string) (result string, ok bool, err error) {
	if strings.TrimSpace(statement) == "" {
		return "", false, nil
	}

	reply, err := c.Send([]byte(statement))
	if err != nil {
		return "", false, err
	}

	result = string(reply)
	switch {
	case result == common.NoReturn:
		return "", false, nil
	case strings.HasPrefix(result, common.ErrorPrefix):
		return "", false, fmt.Errorf("%w: %s", ErrRemote, strings.TrimPrefix(result, common.ErrorPrefix))
	default:
		return result, true, nil
	}
}

// Close closes the connection. Waiting calls of Send return transport.ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Events returns the channel connection state changes are reported on.
// Events are dropped when nobody reads them.
func (c *Client) Events() <-chan Event {
	return c.events
}

// --------------------------------------------------------------------------
// Connection events
// --------------------------------------------------------------------------

func (c *Client) onOpen(conn transport.IConnection) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.emit(Event{Kind: EventConnected})
}

func (c *Client) onMessage(_ transport.IConnection, payload []byte) {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		Logger.Warningf("Dropping unexpected reply of %d bytes", len(payload))
		return
	}
	reply := c.pending[0]
	c.pending[0] = nil
	c.pending = c.pending[1:]
	c.mu.Unlock()

	reply <- append([]byte(nil), payload...)
}

func (c *Client) onClose(conn transport.IConnection, err error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, reply := range pending {
		close(reply)
	}

	if err != nil {
		Logger.Infof("Disconnected from %s: %v", c.config.Endpoint, err)
	} else {
		Logger.Infof("Disconnected from %s", c.config.Endpoint)
	}
	c.emit(Event{Kind: EventDisconnected, Err: err})
}

// dropPending removes reply from the queue if it is still there
func (c *Client) dropPending(reply chan []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.pending {
		if p == reply {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

func (c *Client) emit(e Event) {
	select {
	case c.events <- e:
	default:
		Logger.Debugf("dropping %s event", e.Kind)
	}
}
