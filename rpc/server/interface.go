package server

// IMessageHandler is the collaborator that answers decoded messages
type IMessageHandler interface {
	// Handle handles one message and returns the reply. A nil reply sends
	// nothing back. payload is only valid for the duration of the call.
	Handle(payload []byte) (reply []byte)
}

// MessageHandlerFunc adapts a function to IMessageHandler
type MessageHandlerFunc func(payload []byte) []byte

func (f MessageHandlerFunc) Handle(payload []byte) []byte { return f(payload) }
