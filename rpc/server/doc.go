// Package server is the composition root of the server side. It binds a
// transport backend to an IMessageHandler and answers every decoded message
// with the handler's reply on the same connection.
//
// The package focuses on:
//   - Selecting the transport backend (tcp, unix, kcp) from the configuration
//   - Adapters that turn collaborators into message handlers
//   - Serial dispatch for handlers that must not run concurrently
//   - Serving the transport metrics in the Prometheus text format
//
// Key Components:
//
//   - IMessageHandler: the contract for collaborators. Handle receives the
//     payload of one message and returns the reply, or nil for none.
//
//   - NewCalcHandler: evaluates every message with a lib/calc Calculator.
//     Statements without a value reply with common.NoReturn, failures with
//     common.ErrorPrefix followed by the error message.
//
//   - NewEchoHandler: replies with the message itself (tests, benchmarks).
//
//   - Server: created with NewServer, started with Serve and stopped with
//     Shutdown. With SerialDispatch all messages of all connections are copied
//     into a lock-free MPSC queue and handled by one goroutine; messages of one
//     connection keep their order either way.
//
// Usage Example:
//
//	config := common.DefaultServerConfig()
//	config.Endpoint = "0.0.0.0:7050"
//
//	pools := base.NewPools(0)
//	t, err := server.NewTransport(config.Transport, pools)
//	if err != nil {
//	  log.Fatal(err)
//	}
//
//	s := server.NewServer(config, t, server.NewCalcHandler(nil), pools)
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	Listen, Serve and Shutdown may be called from different goroutines.
//	Shutdown blocks until every queued message was handled.
package server
