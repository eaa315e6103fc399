package server

// NewEchoHandler answers every message with a copy of itself
func NewEchoHandler() IMessageHandler {
	return MessageHandlerFunc(func(payload []byte) []byte {
		return append([]byte{}, payload...)
	})
}
