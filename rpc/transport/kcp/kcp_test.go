package kcp

import (
	"bytes"
	"io"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/ValentinKolb/feval/lib/pool"
	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/ValentinKolb/feval/rpc/transport"
	"github.com/ValentinKolb/feval/rpc/transport/base"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T, idle time.Duration) *Listener {
	t.Helper()
	l, err := Listen("127.0.0.1:0", common.DefaultKCPConv, idle, pool.NewBufferPool(0), pool.NewTransferPool())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

// open dials l, writes hello and returns both ends
func open(t *testing.T, l *Listener) (client *Session, server transport.Conn) {
	t.Helper()
	client, err := Dial(l.Addr().String(), common.DefaultKCPConv)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.Write([]byte("hello"))
	require.NoError(t, err)

	accepted := make(chan transport.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err == nil {
			accepted <- c
		}
	}()
	select {
	case server = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("no session accepted")
	}

	buf := make([]byte, 5)
	require.NoError(t, server.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = io.ReadFull(server, buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
	return client, server
}

func TestDatagramHelpers(t *testing.T) {
	assert.True(t, isDisconnect([]byte{0, 0, 0, 0}))
	assert.False(t, isDisconnect([]byte{0, 0, 0, 1}))
	assert.False(t, isDisconnect([]byte{0, 0, 0, 0, 0}))

	seg := make([]byte, segmentHeaderSize)
	seg[0], seg[1] = 0x66, 0x27 // 10086 little-endian
	seg[4] = cmdPush
	assert.True(t, isOpening(seg, 10086))
	assert.False(t, isOpening(seg, 1))
	seg[12] = 1
	assert.False(t, isOpening(seg, 10086), "not the first segment")
	assert.False(t, isOpening(seg[:10], 10086))
}

func TestSessionStream(t *testing.T) {
	l := listen(t, 0)
	client, server := open(t, l)

	// a payload spanning several kcp messages
	payload := make([]byte, 200*1024)
	rand.New(rand.NewSource(3)).Read(payload)

	go func() {
		_, _ = server.Write(payload)
	}()

	got := make([]byte, len(payload))
	require.NoError(t, client.SetReadDeadline(time.Now().Add(10*time.Second)))
	_, err := io.ReadFull(client, got)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))
	assert.Equal(t, 1, l.Sessions())
}

func TestSessionReadDeadline(t *testing.T) {
	l := listen(t, 0)
	client, _ := open(t, l)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	_, err := client.Read(make([]byte, 8))
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestDisconnectDatagram(t *testing.T) {
	l := listen(t, 0)
	client, server := open(t, l)

	require.NoError(t, client.Close())

	require.NoError(t, server.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err := server.Read(make([]byte, 8))
	assert.ErrorIs(t, err, io.EOF)
	require.Eventually(t, func() bool { return l.Sessions() == 0 }, 5*time.Second, 10*time.Millisecond)

	_, err = client.Write([]byte("late"))
	assert.Error(t, err)
}

func TestIdleSessionsAreSwept(t *testing.T) {
	l := listen(t, 200*time.Millisecond)
	client, _ := open(t, l)
	swept := common.SessionsSwept.Get()

	require.Eventually(t, func() bool { return l.Sessions() == 0 }, 5*time.Second, 20*time.Millisecond)
	assert.Greater(t, common.SessionsSwept.Get(), swept)

	// the sweep announces the close to the client
	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err := client.Read(make([]byte, 8))
	assert.ErrorIs(t, err, io.EOF)
}

func TestListenerCloseStopsAccept(t *testing.T) {
	l := listen(t, 0)
	require.NoError(t, l.Close())
	_, err := l.Accept()
	assert.Error(t, err)
}

func TestTransportEcho(t *testing.T) {
	pools := base.NewPools(0)
	srv := NewKCPServerTransport(pools)
	srv.RegisterHandler(transport.HandlerFuncs{
		Message: func(c transport.IConnection, payload []byte) { _ = c.Send(payload) },
	})

	sc := common.DefaultServerConfig()
	sc.Transport = common.TransportKCP
	sc.Endpoint = "127.0.0.1:0"
	addr, err := srv.Listen(sc)
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	defer srv.Shutdown()

	replies := make(chan []byte, 16)
	cc := common.DefaultClientConfig()
	cc.Transport = common.TransportKCP
	cc.Endpoint = addr.String()
	conn, err := NewKCPClientTransport(pools).Connect(cc, transport.HandlerFuncs{
		Message: func(_ transport.IConnection, payload []byte) { replies <- append([]byte(nil), payload...) },
	})
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 200; i++ {
		payload := bytes.Repeat([]byte{byte(i)}, 1+i*37)
		require.NoError(t, conn.Send(payload))
		select {
		case got := <-replies:
			require.True(t, bytes.Equal(payload, got), "message %d", i)
		case <-time.After(5 * time.Second):
			t.Fatalf("no reply for message %d", i)
		}
	}
}
