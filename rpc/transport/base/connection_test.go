package base

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/feval/rpc/codec"
	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/ValentinKolb/feval/rpc/crypto"
	"github.com/ValentinKolb/feval/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a handler that copies every payload into a channel
type recorder struct {
	messages chan []byte
	closed   chan error
	closes   atomic.Int32
}

func newRecorder() *recorder {
	return &recorder{messages: make(chan []byte, 1024), closed: make(chan error, 4)}
}

func (r *recorder) OnOpen(transport.IConnection) {}

func (r *recorder) OnMessage(_ transport.IConnection, payload []byte) {
	r.messages <- append([]byte(nil), payload...)
}

func (r *recorder) OnClose(_ transport.IConnection, err error) {
	r.closes.Add(1)
	r.closed <- err
}

func (r *recorder) next(t *testing.T) []byte {
	t.Helper()
	select {
	case m := <-r.messages:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a message")
		return nil
	}
}

func (r *recorder) waitClosed(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.closed:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for close")
		return nil
	}
}

func testOptions(shardSize int) options {
	return newOptions(common.DefaultCodecConfig(), common.TransportTCP, shardSize, 1<<20, 64, time.Second)
}

// pair returns two established connections over an in-memory pipe. The raw
// client carrier is returned as well so tests can inject bytes.
func pair(t *testing.T, opts options, server, client transport.IHandler) (*Connection, *Connection, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	pools := NewPools(64)

	sc := newConnection(a, opts, pools, server)
	cc := newConnection(b, opts, pools, client)

	priv, err := crypto.DefaultPrivateKey()
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() { errs <- sc.respond(priv) }()
	require.NoError(t, cc.initiate(&priv.PublicKey))
	require.NoError(t, <-errs)

	assert.Equal(t, transport.StateEstablished, sc.State())
	assert.Equal(t, transport.StateEstablished, cc.State())

	sc.start()
	cc.start()
	t.Cleanup(func() {
		_ = sc.Close()
		_ = cc.Close()
	})
	return sc, cc, b
}

func TestConnectionSequenceWrapsAround(t *testing.T) {
	srv := newRecorder()
	_, cc, _ := pair(t, testOptions(7), srv, newRecorder())

	// 40 messages cross the sequence modulus once
	for i := 0; i < 40; i++ {
		require.NoError(t, cc.Send([]byte(fmt.Sprintf("message-%d", i))))
	}
	for i := 0; i < 40; i++ {
		assert.Equal(t, fmt.Sprintf("message-%d", i), string(srv.next(t)))
	}
	assert.Equal(t, transport.StateEstablished, cc.State())
}

func TestConnectionBothDirections(t *testing.T) {
	srv, cli := newRecorder(), newRecorder()
	sc, cc, _ := pair(t, testOptions(common.DefaultShardSize), srv, cli)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		// mix of small, compressible and incompressible payloads
		var payload []byte
		switch i % 3 {
		case 0:
			payload = []byte(fmt.Sprintf("%d+%d", i, i))
		case 1:
			payload = bytes.Repeat([]byte("abcd"), 1000+i)
		default:
			payload = make([]byte, 2000+rng.Intn(20000))
			rng.Read(payload)
		}

		require.NoError(t, cc.Send(payload))
		require.True(t, bytes.Equal(payload, srv.next(t)), "client to server %d", i)

		require.NoError(t, sc.Send(payload))
		require.True(t, bytes.Equal(payload, cli.next(t)), "server to client %d", i)
	}
}

func TestConnectionConcurrentSends(t *testing.T) {
	srv := newRecorder()
	_, cc, _ := pair(t, testOptions(13), srv, newRecorder())

	const senders, perSender = 8, 50
	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				assert.NoError(t, cc.Send([]byte(fmt.Sprintf("%d:%d", s, i))))
			}
		}(s)
	}

	// per sender order is preserved, all messages arrive
	last := make(map[int]int)
	for n := 0; n < senders*perSender; n++ {
		var s, i int
		_, err := fmt.Sscanf(string(srv.next(t)), "%d:%d", &s, &i)
		require.NoError(t, err)
		if prev, ok := last[s]; ok {
			assert.Greater(t, i, prev)
		}
		last[s] = i
	}
	wg.Wait()
	assert.Len(t, last, senders)
}

func TestConnectionSendAsync(t *testing.T) {
	srv := newRecorder()
	_, cc, _ := pair(t, testOptions(0), srv, newRecorder())

	tr := cc.SendAsync([]byte("async"))
	require.NoError(t, tr.Wait())
	assert.Equal(t, 5, tr.N)
	cc.ReleaseTransfer(tr)

	assert.Equal(t, "async", string(srv.next(t)))
}

func TestConnectionDesyncCloses(t *testing.T) {
	srv := newRecorder()
	sc, _, raw := pair(t, testOptions(0), srv, newRecorder())

	// a frame with sequence index 5 where 0 is expected
	frame, err := codec.New(binary.LittleEndian).Pack(nil, []byte("x"), 0, 5, nil)
	require.NoError(t, err)
	_, err = raw.Write(frame)
	require.NoError(t, err)

	closeErr := srv.waitClosed(t)
	assert.ErrorIs(t, closeErr, codec.ErrDesync)

	<-sc.Done()
	assert.Equal(t, transport.StateClosed, sc.State())
	assert.ErrorIs(t, sc.Send([]byte("late")), transport.ErrClosed)
}

func TestConnectionIntegrityCloses(t *testing.T) {
	srv := newRecorder()
	_, _, raw := pair(t, testOptions(0), srv, newRecorder())

	frame, err := codec.New(binary.LittleEndian).Pack(nil, []byte("payload"), codec.FlagChecksum, 0, nil)
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0xFF
	_, err = raw.Write(frame)
	require.NoError(t, err)

	assert.ErrorIs(t, srv.waitClosed(t), codec.ErrIntegrity)
}

func TestConnectionOversizedFrameCloses(t *testing.T) {
	srv := newRecorder()
	_, _, raw := pair(t, testOptions(0), srv, newRecorder())

	prefix := make([]byte, 4)
	binary.LittleEndian.PutUint32(prefix, 1<<20+1)
	_, err := raw.Write(prefix)
	require.NoError(t, err)

	assert.ErrorIs(t, srv.waitClosed(t), transport.ErrFrameTooLarge)
}

func TestConnectionCloseNotifiesOnce(t *testing.T) {
	srv, cli := newRecorder(), newRecorder()
	sc, cc, _ := pair(t, testOptions(0), srv, cli)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cc.Close()
		}()
	}
	wg.Wait()

	assert.NoError(t, cli.waitClosed(t))
	// the peer sees an orderly close
	assert.NoError(t, srv.waitClosed(t))

	<-cc.Done()
	<-sc.Done()
	assert.Equal(t, int32(1), cli.closes.Load())
	assert.Equal(t, int32(1), srv.closes.Load())
	assert.ErrorIs(t, cc.Send([]byte("x")), transport.ErrClosed)
}

func TestConnectionHandshakeFailure(t *testing.T) {
	a, b := net.Pipe()
	opts := testOptions(0)
	sc := newConnection(a, opts, nil, nil)
	cc := newConnection(b, opts, nil, nil)

	priv, err := crypto.DefaultPrivateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKeyPair(1024)
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() { errs <- sc.respond(priv) }()

	assert.Error(t, cc.initiate(&other.PublicKey))
	assert.Error(t, <-errs)

	<-sc.Done()
	<-cc.Done()
	assert.Equal(t, transport.StateClosed, sc.State())
	assert.Equal(t, transport.StateClosed, cc.State())
}

func TestConnectionCloseDuringHandshake(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	sc := newConnection(a, testOptions(0), nil, nil)

	priv, err := crypto.DefaultPrivateKey()
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() { errs <- sc.respond(priv) }()
	require.Eventually(t, func() bool {
		return sc.State() == transport.StateHandshaking
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, sc.Close())
	assert.Error(t, <-errs)

	select {
	case <-sc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("done not closed after close during handshake")
	}
	assert.Equal(t, transport.StateClosed, sc.State())
}
