package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/feval/lib/pool"
	"github.com/ValentinKolb/feval/lib/util"
	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/ValentinKolb/feval/rpc/transport"
	"github.com/ValentinKolb/feval/rpc/transport/base"
	"github.com/ValentinKolb/feval/rpc/transport/kcp"
	"github.com/ValentinKolb/feval/rpc/transport/tcp"
	"github.com/ValentinKolb/feval/rpc/transport/unix"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// NewTransport creates the server transport for the backend named by tt
func NewTransport(tt common.TransportType, pools *base.Pools) (transport.IServerTransport, error) {
	switch tt {
	case common.TransportTCP:
		return tcp.NewTCPServerTransport(pools), nil
	case common.TransportUnix:
		return unix.NewUnixServerTransport(pools), nil
	case common.TransportKCP:
		return kcp.NewKCPServerTransport(pools), nil
	default:
		return nil, fmt.Errorf("invalid transport %q", tt)
	}
}

// job is one message waiting for the serial dispatcher
type job struct {
	conn    transport.IConnection
	payload *pool.Stream
}

// Server ties a transport to a message handler.
//
// Usage:
//
//	t, _ := server.NewTransport(config.Transport, pools)
//	s := server.NewServer(config, t, server.NewCalcHandler(nil), pools)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
type Server struct {
	config    common.ServerConfig
	transport transport.IServerTransport
	handler   IMessageHandler
	pools     *base.Pools

	mu        sync.Mutex
	addr      net.Addr
	queue     *util.MPSC[job]
	drained   chan struct{}
	metrics   *http.Server
	metricsLn net.Listener
	stopped   bool
}

// NewServer creates a server. A nil pools uses base.DefaultPools.
func NewServer(
	config common.ServerConfig,
	transport transport.IServerTransport,
	handler IMessageHandler,
	pools *base.Pools,
) *Server {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}
	if pools == nil {
		pools = base.DefaultPools()
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &Server{
		config:    config,
		transport: transport,
		handler:   handler,
		pools:     pools,
	}
}

// Listen binds the transport (and the metrics endpoint if configured) and
// returns the bound address. Serve calls it when it was not called before.
func (s *Server) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, transport.ErrClosed
	}
	if s.addr != nil {
		return s.addr, nil
	}

	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return nil, err
	}

	if s.config.SerialDispatch {
		s.queue = util.NewMPSC[job]()
		s.drained = make(chan struct{})
		go s.dispatchLoop()
	}
	s.transport.RegisterHandler(transport.HandlerFuncs{
		Open:    s.onOpen,
		Message: s.onMessage,
		Close:   s.onClose,
	})

	addr, err := s.transport.Listen(s.config)
	if err != nil {
		s.stopDispatcher()
		return nil, err
	}

	if s.config.MetricsEndpoint != "" {
		if err := s.serveMetrics(); err != nil {
			_ = s.transport.Shutdown()
			s.stopDispatcher()
			return nil, err
		}
	}

	s.addr = addr
	Logger.Infof("Listening on %s (%s)", addr, s.config.Transport)
	return addr, nil
}

// Serve accepts peers until Shutdown is called
func (s *Server) Serve() error {
	if _, err := s.Listen(); err != nil {
		return err
	}
	return s.transport.Serve()
}

// Shutdown closes every connection, drains the dispatcher and stops the
// metrics endpoint. It is idempotent.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	listening := s.addr != nil
	s.mu.Unlock()

	if !listening {
		return nil
	}

	err := s.transport.Shutdown()
	s.stopDispatcher()
	if s.metrics != nil {
		_ = s.metrics.Close()
	}
	Logger.Infof("Server stopped")
	return err
}

// Addr returns the bound address, nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// MetricsAddr returns the address of the metrics endpoint, nil if disabled
func (s *Server) MetricsAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metricsLn == nil {
		return nil
	}
	return s.metricsLn.Addr()
}

// Connections returns the number of established connections
func (s *Server) Connections() int {
	return s.transport.Connections()
}

// --------------------------------------------------------------------------
// Connection events
// --------------------------------------------------------------------------

func (s *Server) onOpen(c transport.IConnection) {
	Logger.Debugf("connection %d from %s established", c.ID(), c.RemoteAddr())
}

func (s *Server) onClose(c transport.IConnection, err error) {
	if err != nil {
		Logger.Debugf("connection %d from %s closed: %v", c.ID(), c.RemoteAddr(), err)
		return
	}
	Logger.Debugf("connection %d from %s closed", c.ID(), c.RemoteAddr())
}

// onMessage runs on the receive goroutine of c. With serial dispatch the
// payload is copied and queued, otherwise it is handled in place.
func (s *Server) onMessage(c transport.IConnection, payload []byte) {
	if s.queue == nil {
		s.reply(c, s.handler.Handle(payload))
		return
	}

	st := s.pools.Streams.Acquire()
	_, _ = st.Write(payload)
	if !s.queue.Push(&job{conn: c, payload: st}) {
		s.pools.Streams.Release(st)
	}
}

func (s *Server) reply(c transport.IConnection, reply []byte) {
	if reply == nil {
		return
	}
	if err := c.Send(reply); err != nil && !errors.Is(err, transport.ErrClosed) {
		Logger.Warningf("failed to reply on connection %d: %v", c.ID(), err)
	}
}

// --------------------------------------------------------------------------
// Serial dispatcher
// --------------------------------------------------------------------------

// dispatchLoop is the single consumer of the queue. Every connection pushes
// from its own receive goroutine, so per connection order is kept.
func (s *Server) dispatchLoop() {
	defer close(s.drained)
	for j := range s.queue.Recv() {
		s.reply(j.conn, s.handler.Handle(j.payload.Bytes()))
		s.pools.Streams.Release(j.payload)
	}
}

func (s *Server) stopDispatcher() {
	if s.queue == nil {
		return
	}
	s.queue.Close()
	<-s.drained
}

// --------------------------------------------------------------------------
// Metrics endpoint
// --------------------------------------------------------------------------

func (s *Server) serveMetrics() error {
	ln, err := net.Listen("tcp", s.config.MetricsEndpoint)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", s.config.MetricsEndpoint, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", common.MetricsHandler())
	s.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.metricsLn = ln

	go func() {
		if err := s.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics endpoint stopped: %v", err)
		}
	}()
	Logger.Infof("Serving metrics on http://%s/metrics", ln.Addr())
	return nil
}
