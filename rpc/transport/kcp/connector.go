package kcp

import (
	"time"

	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/ValentinKolb/feval/rpc/transport"
	"github.com/ValentinKolb/feval/rpc/transport/base"
)

// serverConnector implements the IServerConnector interface for kcp over UDP
type serverConnector struct {
	pools *base.Pools
}

// clientConnector implements the IClientConnector interface for kcp over UDP
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "kcp"
}

func (c *serverConnector) Listen(config common.ServerConfig) (transport.Listener, error) {
	conv := config.KCPConv
	if conv == 0 {
		conv = common.DefaultKCPConv
	}
	idle := time.Duration(config.SessionIdleSecond) * time.Second
	return Listen(config.Endpoint, conv, idle, c.pools.Buffers, c.pools.Transfers)
}

func (c *serverConnector) UpgradeConnection(transport.Conn, common.ServerConfig) error {
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "kcp"
}

func (c *clientConnector) Dial(config common.ClientConfig) (transport.Conn, error) {
	conv := config.KCPConv
	if conv == 0 {
		conv = common.DefaultKCPConv
	}
	return Dial(config.Endpoint, conv)
}

func (c *clientConnector) UpgradeConnection(transport.Conn, common.ClientConfig) error {
	return nil
}

// --------------------------------------------------------------------------
// Transport Factory Methods
// --------------------------------------------------------------------------

// NewKCPServerTransport creates a new kcp server transport
func NewKCPServerTransport(pools *base.Pools) transport.IServerTransport {
	if pools == nil {
		pools = base.DefaultPools()
	}
	return base.NewBaseServerTransport(&serverConnector{pools: pools}, pools)
}

// NewKCPClientTransport creates a new kcp client transport
func NewKCPClientTransport(pools *base.Pools) transport.IClientTransport {
	return base.NewBaseClientTransport(&clientConnector{}, pools)
}
