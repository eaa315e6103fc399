// Package client implements the evaluation client. It connects to a feval
// server over one of the transport backends, sends statements and returns
// the replies.
//
// The package focuses on:
//   - Request/reply semantics on top of the message transport
//   - Translating the reply conventions (common.NoReturn, common.ErrorPrefix)
//     into Go return values
//   - Reporting connection state changes without reconnecting on its own
//
// Key Components:
//
//   - NewClient: creates a client for a config and a client transport.
//     NewTransport picks the transport from the configured backend.
//
//   - Send: sends raw bytes and waits for the reply. The server answers the
//     messages of a connection in order, so replies are matched to requests
//     with a FIFO queue. A request that times out keeps its place in the
//     queue, its late reply is discarded.
//
//   - Evaluate: sends a statement and returns the result. ok is false for
//     statements without a value, evaluation failures return an error
//     wrapping ErrRemote.
//
//   - Events: EventConnected, EventDisconnected and EventFailed, for callers
//     that implement their own reconnect policy.
//
// Usage Example:
//
//	config := common.DefaultClientConfig()
//	config.Endpoint = "localhost:7050"
//
//	t, _ := client.NewTransport(config.Transport, nil)
//	c := client.NewClient(config, t)
//	if err := c.Connect(); err != nil {
//	  log.Fatal(err)
//	}
//	defer c.Close()
//
//	result, ok, err := c.Evaluate("2^10")
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
package client
