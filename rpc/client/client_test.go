package client

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/ValentinKolb/feval/rpc/server"
	"github.com/ValentinKolb/feval/rpc/transport"
	"github.com/ValentinKolb/feval/rpc/transport/base"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func startServer(t *testing.T, tt common.TransportType, handler server.IMessageHandler) *server.Server {
	t.Helper()
	sc := common.DefaultServerConfig()
	sc.Endpoint = "127.0.0.1:0"
	sc.Transport = tt
	sc.LogLevel = "warn"

	pools := base.NewPools(0)
	tr, err := server.NewTransport(tt, pools)
	require.NoError(t, err)
	s := server.NewServer(sc, tr, handler, pools)
	_, err = s.Listen()
	require.NoError(t, err)
	go func() { _ = s.Serve() }()
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func newClient(t *testing.T, s *server.Server, tt common.TransportType) *Client {
	t.Helper()
	cc := common.DefaultClientConfig()
	cc.Endpoint = s.Addr().String()
	cc.Transport = tt
	cc.TimeoutSecond = 5

	tr, err := NewTransport(tt, nil)
	require.NoError(t, err)
	c := NewClient(cc, tr)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func nextEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case e := <-c.Events():
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
		return Event{}
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestEvaluate(t *testing.T) {
	s := startServer(t, common.TransportTCP, server.NewCalcHandler(nil))
	c := newClient(t, s, common.TransportTCP)
	require.NoError(t, c.Connect())
	assert.Equal(t, EventConnected, nextEvent(t, c).Kind)

	result, ok, err := c.Evaluate("1+2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", result)

	result, ok, err = c.Evaluate("r = 2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, result)

	result, ok, err = c.Evaluate("pi * r^2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "12.566370614359172", result)

	_, ok, err = c.Evaluate("r / 0")
	assert.ErrorIs(t, err, ErrRemote)
	assert.Contains(t, err.Error(), "division by zero")
	assert.False(t, ok)

	// blank statements never reach the server
	result, ok, err = c.Evaluate("  ")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, result)
}

func TestEvaluateOverKCP(t *testing.T) {
	s := startServer(t, common.TransportKCP, server.NewCalcHandler(nil))
	c := newClient(t, s, common.TransportKCP)
	require.NoError(t, c.Connect())

	result, ok, err := c.Evaluate("max(3, 9, 4)")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "9", result)
}

func TestConcurrentSendsGetTheirOwnReply(t *testing.T) {
	s := startServer(t, common.TransportTCP, server.NewEchoHandler())
	c := newClient(t, s, common.TransportTCP)
	require.NoError(t, c.Connect())

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				msg := fmt.Sprintf("%d/%d", w, i)
				reply, err := c.Send([]byte(msg))
				if assert.NoError(t, err) {
					assert.Equal(t, msg, string(reply))
				}
			}
		}(w)
	}
	wg.Wait()
}

func TestSendBeforeConnect(t *testing.T) {
	s := startServer(t, common.TransportTCP, server.NewEchoHandler())
	c := newClient(t, s, common.TransportTCP)

	_, err := c.Send([]byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, c.Close())
}

func TestConnectIsIdempotent(t *testing.T) {
	s := startServer(t, common.TransportTCP, server.NewEchoHandler())
	c := newClient(t, s, common.TransportTCP)

	require.NoError(t, c.Connect())
	require.NoError(t, c.Connect())
	assert.Equal(t, EventConnected, nextEvent(t, c).Kind)
	require.Eventually(t, func() bool { return s.Connections() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestConcurrentConnectDialsOnce(t *testing.T) {
	s := startServer(t, common.TransportTCP, server.NewEchoHandler())
	c := newClient(t, s, common.TransportTCP)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Connect()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, EventConnected, nextEvent(t, c).Kind)
	require.Eventually(t, func() bool { return s.Connections() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return s.Connections() > 1 }, 200*time.Millisecond, 10*time.Millisecond)
	select {
	case e := <-c.Events():
		t.Fatalf("unexpected event %s", e.Kind)
	default:
	}

	reply, err := c.Send([]byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "ping", string(reply))
}

func TestConnectFailure(t *testing.T) {
	cc := common.DefaultClientConfig()
	cc.Endpoint = "127.0.0.1:1"
	tr, err := NewTransport(cc.Transport, nil)
	require.NoError(t, err)
	c := NewClient(cc, tr)

	require.Error(t, c.Connect())
	e := nextEvent(t, c)
	assert.Equal(t, EventFailed, e.Kind)
	assert.Error(t, e.Err)
	assert.False(t, c.Connected())
}

func TestTimeoutKeepsRepliesMatched(t *testing.T) {
	release := make(chan struct{})
	handler := server.MessageHandlerFunc(func(payload []byte) []byte {
		if string(payload) == "slow" {
			<-release
		}
		return append([]byte(nil), payload...)
	})
	s := startServer(t, common.TransportTCP, handler)
	c := newClient(t, s, common.TransportTCP)
	c.config.TimeoutSecond = 1
	require.NoError(t, c.Connect())

	_, err := c.Send([]byte("slow"))
	assert.ErrorIs(t, err, ErrTimeout)

	close(release)
	reply, err := c.Send([]byte("fast"))
	require.NoError(t, err)
	assert.Equal(t, "fast", string(reply))
}

func TestServerShutdownDisconnects(t *testing.T) {
	s := startServer(t, common.TransportTCP, server.NewEchoHandler())
	c := newClient(t, s, common.TransportTCP)
	require.NoError(t, c.Connect())
	assert.Equal(t, EventConnected, nextEvent(t, c).Kind)

	require.NoError(t, s.Shutdown())
	assert.Equal(t, EventDisconnected, nextEvent(t, c).Kind)
	assert.False(t, c.Connected())

	_, err := c.Send([]byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestCloseFailsWaitingSends(t *testing.T) {
	block := make(chan struct{})
	handler := server.MessageHandlerFunc(func([]byte) []byte {
		<-block
		return nil
	})
	s := startServer(t, common.TransportTCP, handler)
	c := newClient(t, s, common.TransportTCP)
	// runs before the server shutdown, which waits for the handler
	t.Cleanup(func() { close(block) })
	require.NoError(t, c.Connect())

	errs := make(chan error, 1)
	go func() {
		_, err := c.Send([]byte("never answered"))
		errs <- err
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, c.Close())
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, transport.ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("send did not return")
	}
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "connected", EventConnected.String())
	assert.Equal(t, "disconnected", EventDisconnected.String())
	assert.Equal(t, "failed", EventFailed.String())
}
