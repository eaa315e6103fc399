package tcp

import (
	"net"
	"time"

	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/ValentinKolb/feval/rpc/transport"
	"github.com/ValentinKolb/feval/rpc/transport/base"
)

// clientConnector implements the IClientConnector interface for TCP sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "tcp"
}

func (c *clientConnector) Dial(config common.ClientConfig) (transport.Conn, error) {
	d := net.Dialer{}
	if config.TimeoutSecond > 0 {
		d.Timeout = time.Duration(config.TimeoutSecond) * time.Second
	}
	return d.Dial("tcp", config.Endpoint)
}

func (c *clientConnector) UpgradeConnection(conn transport.Conn, config common.ClientConfig) error {
	return upgrade(conn, config.SocketConf, config.TCPConf)
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPClientTransport creates a new TCP client transport
func NewTCPClientTransport(pools *base.Pools) transport.IClientTransport {
	return base.NewBaseClientTransport(&clientConnector{}, pools)
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// upgrade applies the socket options of sc and tc to a tcp connection
func upgrade(conn transport.Conn, sc common.SocketConf, tc common.TCPConf) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil // not a tcp connection, nothing to upgrade
	}

	// Disable Nagle's algorithm if configured
	if err := tcpConn.SetNoDelay(tc.TCPNoDelay); err != nil {
		return err
	}

	if sc.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(sc.WriteBufferSize); err != nil {
			return err
		}
	}
	if sc.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(sc.ReadBufferSize); err != nil {
			return err
		}
	}

	if tc.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(tc.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	if tc.TCPLingerSec >= 0 {
		if err := tcpConn.SetLinger(tc.TCPLingerSec); err != nil {
			return err
		}
	}
	return nil
}
