package base

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/feval/lib/pool"
	"github.com/ValentinKolb/feval/rpc/codec"
	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/ValentinKolb/feval/rpc/crypto"
	"github.com/ValentinKolb/feval/rpc/handshake"
	"github.com/ValentinKolb/feval/rpc/transport"
	"github.com/armon/circbuf"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport")

var connIDs atomic.Uint64

// -----------------------------------------------------------
// Options
// -----------------------------------------------------------

// options are the per connection settings derived from a server or client config
type options struct {
	codec     codec.Codec
	flags     codec.Flags
	shardSize int
	maxFrame  int
	traceSize int
	timeout   time.Duration
}

func serverOptions(config common.ServerConfig) options {
	return newOptions(config.Codec, config.Transport, config.ShardSize, config.MaxFrameSize,
		config.TraceSize, time.Duration(config.TimeoutSecond)*time.Second)
}

func clientOptions(config common.ClientConfig) options {
	return newOptions(config.Codec, config.Transport, config.ShardSize, config.MaxFrameSize,
		config.TraceSize, time.Duration(config.TimeoutSecond)*time.Second)
}

func newOptions(cc common.CodecConfig, tt common.TransportType, shardSize, maxFrame, traceSize int, timeout time.Duration) options {
	// sessions over udp are already split into kcp segments
	if tt == common.TransportKCP {
		shardSize = 0
	}
	if maxFrame <= 0 {
		maxFrame = common.DefaultMaxFrameSize
	}
	return options{
		codec:     codec.New(cc.ByteOrder()),
		flags:     codec.NewFlags(cc.Compress, cc.Encrypt, cc.Checksum),
		shardSize: shardSize,
		maxFrame:  maxFrame,
		traceSize: traceSize,
		timeout:   timeout,
	}
}

// -----------------------------------------------------------
// Connection
// -----------------------------------------------------------

// Connection is an established message channel over one carrier.
//
// Sends are serialized by sendMu, which also guards the running flag and the
// send sequence index. Receiving happens on a single goroutine started after
// the handshake, which owns the receive sequence index and the trace ring.
type Connection struct {
	id      uint64
	conn    transport.Conn
	opts    options
	pools   *Pools
	handler transport.IHandler
	onClose func(c *Connection)

	cipher codec.Cipher

	sendMu  sync.Mutex
	running bool
	sendSeq uint8

	recvSeq uint8
	trace   *circbuf.Buffer

	state  atomic.Int32
	closed atomic.Bool
	done   chan struct{}
}

func newConnection(conn transport.Conn, opts options, pools *Pools, handler transport.IHandler) *Connection {
	if pools == nil {
		pools = DefaultPools()
	}
	if handler == nil {
		handler = transport.HandlerFuncs{}
	}
	c := &Connection{
		id:      connIDs.Add(1),
		conn:    conn,
		opts:    opts,
		pools:   pools,
		handler: handler,
		done:    make(chan struct{}),
	}
	if opts.traceSize > 0 {
		c.trace, _ = circbuf.NewBuffer(int64(opts.traceSize))
	}
	c.state.Store(int32(transport.StateCreated))
	return c
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConnection)
// --------------------------------------------------------------------------

func (c *Connection) ID() uint64 { return c.id }

func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *Connection) State() transport.State { return transport.State(c.state.Load()) }

func (c *Connection) Done() <-chan struct{} { return c.done }

func (c *Connection) Send(payload []byte) error {
	s := c.pools.Streams.Acquire()
	defer c.pools.Streams.Release(s)

	c.sendMu.Lock()
	if !c.running {
		c.sendMu.Unlock()
		return transport.ErrClosed
	}

	var err error
	s.B, err = c.opts.codec.Pack(s.B[:0], payload, c.opts.flags, c.sendSeq, c.cipher)
	if err != nil {
		c.sendMu.Unlock()
		return err
	}
	c.sendSeq = codec.NextSequence(c.sendSeq)
	err = c.write(s.B)
	c.sendMu.Unlock()

	if err != nil {
		// a partially written frame leaves the peer out of sync
		c.closeWithError(err)
		return fmt.Errorf("%w: %w", transport.ErrClosed, err)
	}

	common.FramesSent.Inc()
	common.BytesSent.Add(len(s.B))
	return nil
}

func (c *Connection) SendAsync(payload []byte) *pool.Transfer {
	t := c.pools.Transfers.Acquire()
	go func() {
		t.N = len(payload)
		t.Complete(c.Send(payload))
	}()
	return t
}

func (c *Connection) ReleaseTransfer(t *pool.Transfer) {
	c.pools.Transfers.Release(t)
}

func (c *Connection) Close() error {
	c.closeWithError(nil)
	return nil
}

// --------------------------------------------------------------------------
// Handshake
// --------------------------------------------------------------------------

// respond runs the responder handshake and installs the session cipher
func (c *Connection) respond(priv *rsa.PrivateKey) error {
	return c.handshake(func(rw io.ReadWriter) ([]byte, error) {
		return handshake.Respond(rw, priv, c.opts.codec.ByteOrder())
	})
}

// initiate runs the initiator handshake and installs the session cipher
func (c *Connection) initiate(pub *rsa.PublicKey) error {
	return c.handshake(func(rw io.ReadWriter) ([]byte, error) {
		return handshake.Initiate(rw, pub, c.opts.codec.ByteOrder())
	})
}

func (c *Connection) handshake(run func(rw io.ReadWriter) ([]byte, error)) error {
	if !c.state.CompareAndSwap(int32(transport.StateCreated), int32(transport.StateHandshaking)) {
		return transport.ErrClosed
	}

	if c.opts.timeout > 0 {
		deadline := time.Now().Add(c.opts.timeout)
		_ = c.conn.SetReadDeadline(deadline)
		_ = c.conn.SetWriteDeadline(deadline)
	}

	key, err := run(c.conn)
	if err == nil {
		var ci *crypto.SessionCipher
		if ci, err = crypto.NewSessionCipher(key); err == nil {
			c.cipher = ci
		}
	}
	if err != nil {
		common.HandshakesFailed.Inc()
		c.abort()
		return err
	}

	_ = c.conn.SetReadDeadline(time.Time{})
	_ = c.conn.SetWriteDeadline(time.Time{})

	// Close may have run while the handshake was in flight
	c.sendMu.Lock()
	if c.closed.Load() || !c.state.CompareAndSwap(int32(transport.StateHandshaking), int32(transport.StateEstablished)) {
		c.sendMu.Unlock()
		return transport.ErrClosed
	}
	c.running = true
	c.sendMu.Unlock()

	common.HandshakesOK.Inc()
	common.ConnsOpened.Inc()
	return nil
}

// abort closes a connection that was never opened to its handler. The
// handler is not notified.
func (c *Connection) abort() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.state.Store(int32(transport.StateClosed))
	_ = c.conn.Close()
	c.sendMu.Lock()
	c.running = false
	c.sendMu.Unlock()
	close(c.done)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// start begins receiving. It must be called once after a successful handshake.
func (c *Connection) start() {
	go c.receive()
}

// write writes b in shards of at most shardSize bytes. Must hold sendMu.
func (c *Connection) write(b []byte) error {
	if c.opts.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.timeout)); err != nil {
			return err
		}
	}
	for len(b) > 0 {
		n := len(b)
		if c.opts.shardSize > 0 && n > c.opts.shardSize {
			n = c.opts.shardSize
		}
		if _, err := c.conn.Write(b[:n]); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// receive is the read loop of the connection
func (c *Connection) receive() {
	out := c.pools.Streams.Acquire()
	r := newReceiver(c.opts.codec, c.opts.maxFrame, c.pools.Buffers, func(frame []byte) error {
		return c.dispatch(out, frame)
	})

	var cause error
	defer func() {
		r.release()
		c.pools.Streams.Release(out)
		c.closeWithError(cause)
		close(c.done)
	}()

	for {
		if c.opts.timeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.timeout))
		}

		buf := r.space()
		n, err := c.conn.Read(buf)
		if n > 0 {
			common.BytesReceived.Add(n)
			if c.trace != nil {
				_, _ = c.trace.Write(buf[:n])
			}
			if perr := r.received(n); perr != nil {
				c.protocolError(perr)
				cause = perr
				return
			}
		}

		switch {
		case err == nil && n == 0:
			// orderly shutdown of the peer
			return
		case err == nil:
		case errors.Is(err, os.ErrDeadlineExceeded):
			// the read deadline only bounds how long a closed connection can go unnoticed
			if c.State() != transport.StateEstablished {
				return
			}
		case errors.Is(err, io.EOF):
			return
		default:
			if c.State() == transport.StateEstablished {
				cause = err
			}
			return
		}
	}
}

// dispatch decodes one frame into out and hands the payload to the handler
func (c *Connection) dispatch(out *pool.Stream, frame []byte) error {
	var err error
	out.B, err = c.opts.codec.Decode(out.B[:0], frame, c.recvSeq, c.cipher)
	if err != nil {
		return err
	}
	c.recvSeq = codec.NextSequence(c.recvSeq)
	common.FramesReceived.Inc()
	c.handler.OnMessage(c, out.B)
	return nil
}

func (c *Connection) protocolError(err error) {
	switch {
	case errors.Is(err, codec.ErrDesync):
		common.DesyncErrors.Inc()
	case errors.Is(err, codec.ErrIntegrity):
		common.IntegrityErrors.Inc()
	}
	Logger.Warningf("Connection %d to %s: %v", c.id, c.RemoteAddr(), err)
	if c.trace != nil {
		Logger.Debugf("Connection %d last %d received bytes: %x", c.id, len(c.trace.Bytes()), c.trace.Bytes())
	}
}

// closeWithError closes the carrier and notifies the owner and the handler
// once. cause is nil for an orderly close.
func (c *Connection) closeWithError(cause error) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	prev := transport.State(c.state.Swap(int32(transport.StateClosed)))

	// closing the carrier first unblocks a send stuck in write
	_ = c.conn.Close()
	c.sendMu.Lock()
	c.running = false
	c.sendMu.Unlock()

	// the receive goroutine closes done for established connections
	if prev != transport.StateEstablished {
		close(c.done)
		return
	}

	common.ConnsClosed.Inc()
	if cause != nil {
		Logger.Infof("Connection %d to %s closed: %v", c.id, c.RemoteAddr(), cause)
	} else {
		Logger.Debugf("Connection %d to %s closed", c.id, c.RemoteAddr())
	}
	if c.onClose != nil {
		c.onClose(c)
	}
	c.handler.OnClose(c, cause)
}
