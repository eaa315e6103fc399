package base

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/ValentinKolb/feval/rpc/crypto"
	"github.com/ValentinKolb/feval/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// In-memory connectors
// --------------------------------------------------------------------------

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

// pipeNet hands the server ends of net.Pipe pairs to the listener
type pipeNet struct {
	ch   chan transport.Conn
	done chan struct{}
	once sync.Once
}

func newPipeNet() *pipeNet {
	return &pipeNet{ch: make(chan transport.Conn), done: make(chan struct{})}
}

func (p *pipeNet) Accept() (transport.Conn, error) {
	select {
	case c := <-p.ch:
		return c, nil
	case <-p.done:
		return nil, net.ErrClosed
	}
}

func (p *pipeNet) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

func (p *pipeNet) Addr() net.Addr { return pipeAddr{} }

func (p *pipeNet) GetName() string { return "pipe" }

func (p *pipeNet) Listen(common.ServerConfig) (transport.Listener, error) { return p, nil }

func (p *pipeNet) UpgradeConnection(transport.Conn, common.ServerConfig) error { return nil }

type pipeDialer struct{ pn *pipeNet }

func (d pipeDialer) GetName() string { return "pipe" }

func (d pipeDialer) Dial(common.ClientConfig) (transport.Conn, error) {
	a, b := net.Pipe()
	select {
	case d.pn.ch <- a:
		return b, nil
	case <-d.pn.done:
		return nil, net.ErrClosed
	}
}

func (d pipeDialer) UpgradeConnection(transport.Conn, common.ClientConfig) error { return nil }

// echoHandler sends every message back to its sender
type echoHandler struct{}

func (h *echoHandler) OnOpen(transport.IConnection) {}

func (h *echoHandler) OnMessage(c transport.IConnection, payload []byte) {
	_ = c.Send(payload)
}

func (h *echoHandler) OnClose(transport.IConnection, error) {}

func startServer(t *testing.T, handler transport.IHandler) (*pipeNet, transport.IServerTransport, chan error) {
	t.Helper()
	pn := newPipeNet()
	srv := NewBaseServerTransport(pn, NewPools(64))
	srv.RegisterHandler(handler)

	config := common.DefaultServerConfig()
	config.TimeoutSecond = 2
	_, err := srv.Listen(config)
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve() }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pn, srv, served
}

func clientConfig() common.ClientConfig {
	config := common.DefaultClientConfig()
	config.TimeoutSecond = 2
	return config
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestServerEchoesInOrder(t *testing.T) {
	pn, srv, _ := startServer(t, &echoHandler{})

	rec := newRecorder()
	c, err := NewBaseClientTransport(pipeDialer{pn}, nil).Connect(clientConfig(), rec)
	require.NoError(t, err)
	defer c.Close()

	require.Eventually(t, func() bool { return srv.Connections() == 1 }, 5*time.Second, 10*time.Millisecond)

	for i := 0; i < 500; i++ {
		payload := []byte(fmt.Sprintf("%d*%d", i, i))
		if i%50 == 0 {
			payload = bytes.Repeat(payload, 500)
		}
		require.NoError(t, c.Send(payload))
		require.True(t, bytes.Equal(payload, rec.next(t)), "message %d", i)
	}
}

func TestServerShutdownClosesConnections(t *testing.T) {
	pn, srv, served := startServer(t, &echoHandler{})

	var recs []*recorder
	for i := 0; i < 3; i++ {
		rec := newRecorder()
		_, err := NewBaseClientTransport(pipeDialer{pn}, nil).Connect(clientConfig(), rec)
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	require.Eventually(t, func() bool { return srv.Connections() == 3 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Shutdown())
	for _, rec := range recs {
		assert.NoError(t, rec.waitClosed(t))
	}
	assert.Equal(t, 0, srv.Connections())

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}

	_, err := NewBaseClientTransport(pipeDialer{pn}, nil).Connect(clientConfig(), nil)
	assert.Error(t, err)
}

func TestServerRemovesClosedConnections(t *testing.T) {
	pn, srv, _ := startServer(t, &echoHandler{})

	c, err := NewBaseClientTransport(pipeDialer{pn}, nil).Connect(clientConfig(), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Connections() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return srv.Connections() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestClientWithWrongKeyFails(t *testing.T) {
	pn, srv, _ := startServer(t, &echoHandler{})

	other, err := crypto.GenerateKeyPair(1024)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "other.pub.pem")
	require.NoError(t, os.WriteFile(path, crypto.MarshalPEMPublicKey(&other.PublicKey), 0o600))

	config := clientConfig()
	config.PublicKeyFile = path
	_, err = NewBaseClientTransport(pipeDialer{pn}, nil).Connect(config, nil)
	assert.Error(t, err)
	assert.Equal(t, 0, srv.Connections())
}

func TestClientRequiresEndpoint(t *testing.T) {
	config := clientConfig()
	config.Endpoint = ""
	_, err := NewBaseClientTransport(pipeDialer{newPipeNet()}, nil).Connect(config, nil)
	assert.Error(t, err)
}

// gatedOpenHandler blocks OnOpen until release is closed and records whether
// OnClose ran before OnOpen returned
type gatedOpenHandler struct {
	opening chan struct{}
	release chan struct{}
	opened  atomic.Bool
	closed  chan bool
}

func (h *gatedOpenHandler) OnOpen(transport.IConnection) {
	close(h.opening)
	<-h.release
	h.opened.Store(true)
}

func (h *gatedOpenHandler) OnMessage(transport.IConnection, []byte) {}

func (h *gatedOpenHandler) OnClose(transport.IConnection, error) {
	h.closed <- h.opened.Load()
}

func TestServerShutdownWaitsForOpen(t *testing.T) {
	h := &gatedOpenHandler{
		opening: make(chan struct{}),
		release: make(chan struct{}),
		closed:  make(chan bool, 1),
	}
	pn, srv, _ := startServer(t, h)

	_, err := NewBaseClientTransport(pipeDialer{pn}, nil).Connect(clientConfig(), nil)
	require.NoError(t, err)

	select {
	case <-h.opening:
	case <-time.After(5 * time.Second):
		t.Fatal("OnOpen not called")
	}

	stopped := make(chan struct{})
	go func() {
		_ = srv.Shutdown()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Shutdown returned while OnOpen was still running")
	case <-time.After(50 * time.Millisecond):
	}
	close(h.release)

	select {
	case openedFirst := <-h.closed:
		assert.True(t, openedFirst, "OnClose ran before OnOpen returned")
	case <-time.After(5 * time.Second):
		t.Fatal("OnClose not called")
	}
	<-stopped
}
