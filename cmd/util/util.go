package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix prefixes the environment variables of all flags (FEVAL_ENDPOINT, ...)
	EnvPrefix = "feval"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and makes viper read FEVAL_ environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Shared flags
// --------------------------------------------------------------------------

// SetupTransportFlags adds the flags both peers must agree on
func SetupTransportFlags(cmd *cobra.Command, defaultEndpoint string) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, defaultEndpoint, WrapString("The address of the server (e.g. localhost:7050 or /tmp/feval.sock for the unix transport)"))

	key = "transport"
	cmd.PersistentFlags().String(key, string(common.TransportTCP), WrapString("Transport to use (tcp, unix, kcp)"))

	key = "compress"
	cmd.PersistentFlags().Bool(key, true, WrapString("Compress payloads of 1 KiB and more with LZ4"))

	key = "encrypt"
	cmd.PersistentFlags().Bool(key, true, WrapString("Encrypt payloads with the session key"))

	key = "checksum"
	cmd.PersistentFlags().Bool(key, true, WrapString("Protect payloads with a CRC-32 checksum"))

	key = "big-endian"
	cmd.PersistentFlags().Bool(key, false, WrapString("Use a big-endian length prefix (both peers must agree)"))

	key = "shard-size"
	cmd.PersistentFlags().Int(key, common.DefaultShardSize, WrapString("Stream transports write frames in chunks of this many bytes (0 writes whole frames)"))

	key = "max-frame-size"
	cmd.PersistentFlags().Int(key, common.DefaultMaxFrameSize, WrapString("The largest frame accepted from the peer (in bytes)"))

	key = "kcp-conv"
	cmd.PersistentFlags().Uint32(key, common.DefaultKCPConv, WrapString("Conversation id of the kcp transport (both peers must agree)"))

	key = "write-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket write buffer (in KB, 0 keeps the OS default)"))

	key = "read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket read buffer (in KB, 0 keeps the OS default)"))

	key = "tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, only for tcp)"))

	key = "tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time (in seconds, only for tcp, -1 keeps the OS default)"))
}

// SetupClientFlags adds the transport flags plus the client specific ones
func SetupClientFlags(cmd *cobra.Command) {
	SetupTransportFlags(cmd, "localhost:7050")

	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("Seconds to wait for a reply (0 waits forever)"))

	key = "public-key"
	cmd.PersistentFlags().String(key, "", WrapString("Path of the server's public key (XML <RSAKeyValue> or PEM). Empty uses the built-in key"))
}

// --------------------------------------------------------------------------
// Config readers
// --------------------------------------------------------------------------

// GetTransportType reads and validates the transport flag
func GetTransportType() (common.TransportType, error) {
	return common.ParseTransportType(viper.GetString("transport"))
}

// GetCodecConfig reads the codec flags
func GetCodecConfig() common.CodecConfig {
	return common.CodecConfig{
		Compress:  viper.GetBool("compress"),
		Encrypt:   viper.GetBool("encrypt"),
		Checksum:  viper.GetBool("checksum"),
		BigEndian: viper.GetBool("big-endian"),
	}
}

// GetSocketConfig reads the socket flags
func GetSocketConfig() (common.SocketConf, common.TCPConf) {
	return common.SocketConf{
			WriteBufferSize: viper.GetInt("write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
		}, common.TCPConf{
			TCPNoDelay:      viper.GetBool("tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("tcp-linger"),
		}
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() (*common.ClientConfig, error) {
	tt, err := GetTransportType()
	if err != nil {
		return nil, err
	}

	conf := common.DefaultClientConfig()
	conf.Endpoint = viper.GetString("endpoint")
	conf.Transport = tt
	conf.PublicKeyFile = viper.GetString("public-key")
	conf.Codec = GetCodecConfig()
	conf.ShardSize = viper.GetInt("shard-size")
	conf.MaxFrameSize = viper.GetInt("max-frame-size")
	conf.TimeoutSecond = viper.GetInt("timeout")
	conf.KCPConv = viper.GetUint32("kcp-conv")
	conf.SocketConf, conf.TCPConf = GetSocketConfig()

	if conf.Endpoint == "" {
		return nil, fmt.Errorf("no endpoint provided")
	}
	return &conf, nil
}
