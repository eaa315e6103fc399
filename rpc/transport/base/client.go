package base

import (
	"fmt"

	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/ValentinKolb/feval/rpc/crypto"
	"github.com/ValentinKolb/feval/rpc/transport"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Dial establishes a single carrier to the endpoint of config
	Dial(config common.ClientConfig) (transport.Conn, error)

	// UpgradeConnection applies protocol-specific settings to an established carrier
	UpgradeConnection(conn transport.Conn, config common.ClientConfig) error

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, kcp)
type clientTransport struct {
	connector IClientConnector
	pools     *Pools
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, kcp)
// -----------------------------------------------------------

// NewBaseClientTransport creates a client transport on top of connector.
// A nil pools uses DefaultPools.
func NewBaseClientTransport(connector IClientConnector, pools *Pools) transport.IClientTransport {
	if pools == nil {
		pools = DefaultPools()
	}
	return &clientTransport{connector: connector, pools: pools}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig, handler transport.IHandler) (transport.IConnection, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("no endpoint provided")
	}

	key, err := crypto.LoadPublicKey(config.PublicKeyFile)
	if err != nil {
		return nil, err
	}

	conn, err := t.connector.Dial(config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.Endpoint, err)
	}
	if err := t.connector.UpgradeConnection(conn, config); err != nil {
		Logger.Warningf("Failed to apply socket options for %s: %v", config.Endpoint, err)
	}

	c := newConnection(conn, clientOptions(config), t.pools, handler)
	if err := c.initiate(key); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.Endpoint, err)
	}

	Logger.Infof("Connected to %s using %s transport", config.Endpoint, t.connector.GetName())
	c.handler.OnOpen(c)
	c.start()
	return c, nil
}
