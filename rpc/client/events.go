package client

// eventBuffer is the capacity of the events channel
const eventBuffer = 16

// EventKind names a connection state change
type EventKind int

const (
	// EventConnected follows a successful handshake
	EventConnected EventKind = iota
	// EventDisconnected follows the close of an established connection
	EventDisconnected
	// EventFailed follows a failed Connect
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is a connection state change. Err is set for failures and
// disconnects caused by an error.
type Event struct {
	Kind EventKind
	Err  error
}
