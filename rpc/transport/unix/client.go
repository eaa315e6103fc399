package unix

import (
	"net"
	"time"

	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/ValentinKolb/feval/rpc/transport"
	"github.com/ValentinKolb/feval/rpc/transport/base"
)

// clientConnector implements the IClientConnector interface for Unix sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "unix"
}

func (c *clientConnector) Dial(config common.ClientConfig) (transport.Conn, error) {
	d := net.Dialer{}
	if config.TimeoutSecond > 0 {
		d.Timeout = time.Duration(config.TimeoutSecond) * time.Second
	}
	return d.Dial("unix", config.Endpoint)
}

func (c *clientConnector) UpgradeConnection(conn transport.Conn, config common.ClientConfig) error {
	return upgrade(conn, config.SocketConf)
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewUnixClientTransport creates a new Unix client transport
func NewUnixClientTransport(pools *base.Pools) transport.IClientTransport {
	return base.NewBaseClientTransport(&clientConnector{}, pools)
}

// upgrade applies the socket buffer sizes of sc
func upgrade(conn transport.Conn, sc common.SocketConf) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}
	if sc.WriteBufferSize > 0 {
		if err := unixConn.SetWriteBuffer(sc.WriteBufferSize); err != nil {
			return err
		}
	}
	if sc.ReadBufferSize > 0 {
		if err := unixConn.SetReadBuffer(sc.ReadBufferSize); err != nil {
			return err
		}
	}
	return nil
}
