package base

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/ValentinKolb/feval/rpc/crypto"
	"github.com/ValentinKolb/feval/rpc/transport"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (transport.Listener, error)

	// UpgradeConnection applies protocol-specific settings to an accepted carrier
	UpgradeConnection(conn transport.Conn, config common.ServerConfig) error

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector IServerConnector
	handler   transport.IHandler
	config    common.ServerConfig
	opts      options
	pools     *Pools
	key       *rsa.PrivateKey
	listener  transport.Listener
	registry  *Registry
	stopping  atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, kcp)
// -----------------------------------------------------------

// NewBaseServerTransport creates a server transport on top of connector.
// A nil pools uses DefaultPools.
func NewBaseServerTransport(connector IServerConnector, pools *Pools) transport.IServerTransport {
	if pools == nil {
		pools = DefaultPools()
	}
	return &serverTransport{
		connector: connector,
		pools:     pools,
		registry:  NewRegistry(),
		handler:   transport.HandlerFuncs{},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.IHandler) {
	if handler != nil {
		t.handler = handler
	}
}

func (t *serverTransport) Listen(config common.ServerConfig) (net.Addr, error) {
	key, err := crypto.LoadPrivateKey(config.PrivateKeyFile)
	if err != nil {
		return nil, err
	}

	listener, err := t.connector.Listen(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	t.config = config
	t.opts = serverOptions(config)
	t.key = key
	t.listener = listener
	return listener.Addr(), nil
}

func (t *serverTransport) Serve() error {
	if t.listener == nil {
		return fmt.Errorf("%s server: Serve called before Listen", t.connector.GetName())
	}

	Logger.Infof("Starting %s server on %s", t.connector.GetName(), t.listener.Addr())

	var backoff time.Duration
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if t.stopping.Load() || errors.Is(err, net.ErrClosed) || errors.Is(err, transport.ErrClosed) {
				return nil
			}
			backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
			Logger.Errorf("Accept error: %v (retrying in %s)", err, backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		go t.handleConnection(conn)
	}
}

func (t *serverTransport) Shutdown() error {
	if !t.stopping.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}
	n := t.registry.Shutdown()
	Logger.Infof("Stopped %s server, closed %d connections", t.connector.GetName(), n)
	return err
}

func (t *serverTransport) Connections() int {
	return t.registry.Len()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection runs the handshake for one accepted carrier and, on
// success, registers the connection and starts receiving
func (t *serverTransport) handleConnection(conn transport.Conn) {
	if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
		Logger.Warningf("Failed to apply socket options for %s: %v", conn.RemoteAddr(), err)
	}

	c := newConnection(conn, t.opts, t.pools, t.handler)
	if err := c.respond(t.key); err != nil {
		Logger.Warningf("Handshake with %s failed: %v", conn.RemoteAddr(), err)
		return
	}

	c.onClose = func(c *Connection) { t.registry.Remove(c) }
	admitted := t.registry.Admit(c, func() {
		Logger.Debugf("Connection %d established with %s", c.ID(), conn.RemoteAddr())
		t.handler.OnOpen(c)
		c.start()
	})
	if !admitted {
		// shutdown raced with the handshake
		c.abort()
	}
}
