package common

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	// DefaultShardSize is the chunk size stream connections write frames in
	DefaultShardSize = 200
	// DefaultMaxFrameSize bounds the declared length of a single frame
	DefaultMaxFrameSize = 16 << 20
	// DefaultTimeoutSecond is the coarse liveness read deadline
	DefaultTimeoutSecond = 30
	// DefaultSessionIdleSecond is the idle time after which datagram sessions are swept
	DefaultSessionIdleSecond = 60
	// DefaultKCPConv is the conversation id used by both datagram peers
	DefaultKCPConv = 10086
	// DefaultTraceSize is the size of the per connection raw byte trace ring
	DefaultTraceSize = 256
)

// TransportType names a transport backend
type TransportType string

const (
	TransportTCP  TransportType = "tcp"
	TransportUnix TransportType = "unix"
	TransportKCP  TransportType = "kcp"
)

// ParseTransportType validates a transport name
func ParseTransportType(name string) (TransportType, error) {
	switch t := TransportType(strings.ToLower(strings.TrimSpace(name))); t {
	case TransportTCP, TransportUnix, TransportKCP:
		return t, nil
	default:
		return "", fmt.Errorf("invalid transport %q (expected one of: tcp, unix, kcp)", name)
	}
}

// --------------------------------------------------------------------------
// Codec configuration
// --------------------------------------------------------------------------

// CodecConfig selects the frame options applied on send and the byte order
// of the length prefix. Both peers must use the same byte order.
type CodecConfig struct {
	Compress  bool
	Encrypt   bool
	Checksum  bool
	BigEndian bool
}

// DefaultCodecConfig enables compression, encryption and checksums with a
// little-endian length prefix
func DefaultCodecConfig() CodecConfig {
	return CodecConfig{Compress: true, Encrypt: true, Checksum: true}
}

// ByteOrder returns the byte order of the length prefix
func (c CodecConfig) ByteOrder() binary.ByteOrder {
	if c.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// --------------------------------------------------------------------------
// Socket configuration
// --------------------------------------------------------------------------

// SocketConf holds generic socket buffer sizes (0 = OS default)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds tcp specific options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	// TCPLingerSec < 0 keeps the OS default
	TCPLingerSec int
}

// --------------------------------------------------------------------------
// Server configuration
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of a server
type ServerConfig struct {
	Endpoint  string
	Transport TransportType

	// PrivateKeyFile is an XML <RSAKeyValue> or PEM file, empty uses the built-in key
	PrivateKeyFile string

	Codec        CodecConfig
	ShardSize    int
	MaxFrameSize int
	TraceSize    int

	// SerialDispatch runs the message handler on a single goroutine for all connections
	SerialDispatch bool

	TimeoutSecond     int64
	SessionIdleSecond int64
	KCPConv           uint32

	// MetricsEndpoint serves prometheus metrics when not empty (e.g. ":9100")
	MetricsEndpoint string

	SocketConf
	TCPConf

	LogLevel string
}

// DefaultServerConfig returns a tcp server configuration listening on localhost
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Endpoint:          "127.0.0.1:7050",
		Transport:         TransportTCP,
		Codec:             DefaultCodecConfig(),
		ShardSize:         DefaultShardSize,
		MaxFrameSize:      DefaultMaxFrameSize,
		TraceSize:         DefaultTraceSize,
		SerialDispatch:    true,
		TimeoutSecond:     DefaultTimeoutSecond,
		SessionIdleSecond: DefaultSessionIdleSecond,
		KCPConv:           DefaultKCPConv,
		TCPConf:           TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
		LogLevel:          "info",
	}
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder
	addSection, addField := printer(&sb)

	addSection("Server")
	addField("Endpoint", c.Endpoint)
	addField("Transport", string(c.Transport))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Serial Dispatch", strconv.FormatBool(c.SerialDispatch))
	addField("Private Key", orDefault(c.PrivateKeyFile, "built-in"))

	addCodec(addSection, addField, c.Codec, c.ShardSize, c.MaxFrameSize)

	if c.Transport == TransportKCP {
		addSection("Datagram Sessions")
		addField("Conversation", strconv.FormatUint(uint64(c.KCPConv), 10))
		addField("Session Idle", fmt.Sprintf("%d sec", c.SessionIdleSecond))
	}

	addSection("Observability")
	addField("Log Level", c.LogLevel)
	addField("Metrics Endpoint", orDefault(c.MetricsEndpoint, "disabled"))
	addField("Trace Size", fmt.Sprintf("%d bytes", c.TraceSize))

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters of a client
type ClientConfig struct {
	Endpoint  string
	Transport TransportType

	// PublicKeyFile is an XML <RSAKeyValue> or PEM file, empty uses the built-in key
	PublicKeyFile string

	Codec        CodecConfig
	ShardSize    int
	MaxFrameSize int
	TraceSize    int

	// TimeoutSecond bounds the wait for a reply, 0 waits forever
	TimeoutSecond int
	KCPConv       uint32

	SocketConf
	TCPConf
}

// DefaultClientConfig returns a tcp client configuration for the default server
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:      "127.0.0.1:7050",
		Transport:     TransportTCP,
		Codec:         DefaultCodecConfig(),
		ShardSize:     DefaultShardSize,
		MaxFrameSize:  DefaultMaxFrameSize,
		TraceSize:     DefaultTraceSize,
		TimeoutSecond: 10,
		KCPConv:       DefaultKCPConv,
		TCPConf:       TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
	}
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder
	addSection, addField := printer(&sb)

	addSection("Client")
	addField("Endpoint", c.Endpoint)
	addField("Transport", string(c.Transport))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Public Key", orDefault(c.PublicKeyFile, "built-in"))

	addCodec(addSection, addField, c.Codec, c.ShardSize, c.MaxFrameSize)

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func printer(sb *strings.Builder) (addSection func(string), addField func(string, string)) {
	addSection = func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField = func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}
	return addSection, addField
}

func addCodec(addSection func(string), addField func(string, string), c CodecConfig, shardSize, maxFrame int) {
	addSection("Codec")
	addField("Compression", strconv.FormatBool(c.Compress))
	addField("Encryption", strconv.FormatBool(c.Encrypt))
	addField("Checksum", strconv.FormatBool(c.Checksum))
	order := "little-endian"
	if c.BigEndian {
		order = "big-endian"
	}
	addField("Length Prefix", order)
	if shardSize > 0 {
		addField("Write Shards", fmt.Sprintf("%d bytes", shardSize))
	} else {
		addField("Write Shards", "disabled")
	}
	addField("Max Frame Size", fmt.Sprintf("%d bytes", maxFrame))
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
