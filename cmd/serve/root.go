package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/feval/cmd/util"
	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/ValentinKolb/feval/rpc/server"
	"github.com/ValentinKolb/feval/rpc/transport/base"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	serveHandler   = "calc"
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the feval server",
		Long:    `Start the feval evaluation server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is FEVAL_<flag> (e.g. FEVAL_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	cmdUtil.SetupTransportFlags(ServeCmd, "0.0.0.0:7050")

	key := "private-key"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Path of the private key (XML <RSAKeyValue> or PEM). Empty uses the built-in key"))

	key = "handler"
	ServeCmd.PersistentFlags().String(key, "calc", cmdUtil.WrapString("How messages are answered (calc evaluates them, echo sends them back)"))

	key = "serial-dispatch"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Handle the messages of all connections on a single goroutine"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, common.DefaultTimeoutSecond, cmdUtil.WrapString("Interval of the liveness check of idle connections (in seconds)"))

	key = "session-idle"
	ServeCmd.PersistentFlags().Int64(key, common.DefaultSessionIdleSecond, cmdUtil.WrapString("Seconds after which silent kcp sessions are closed (0 disables the sweep)"))

	key = "trace-size"
	ServeCmd.PersistentFlags().Int(key, common.DefaultTraceSize, cmdUtil.WrapString("Bytes of raw traffic kept per connection and logged on protocol errors (0 disables the trace)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Serve prometheus metrics on this address (e.g. :9100). Empty disables the endpoint"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	tt, err := cmdUtil.GetTransportType()
	if err != nil {
		return err
	}

	*serveCmdConfig = common.DefaultServerConfig()
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Transport = tt
	serveCmdConfig.PrivateKeyFile = viper.GetString("private-key")
	serveCmdConfig.Codec = cmdUtil.GetCodecConfig()
	serveCmdConfig.ShardSize = viper.GetInt("shard-size")
	serveCmdConfig.MaxFrameSize = viper.GetInt("max-frame-size")
	serveCmdConfig.TraceSize = viper.GetInt("trace-size")
	serveCmdConfig.SerialDispatch = viper.GetBool("serial-dispatch")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.SessionIdleSecond = viper.GetInt64("session-idle")
	serveCmdConfig.KCPConv = viper.GetUint32("kcp-conv")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.SocketConf, serveCmdConfig.TCPConf = cmdUtil.GetSocketConfig()

	if serveCmdConfig.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}
	if _, err := common.ParseLogLevel(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	serveHandler = viper.GetString("handler")
	if serveHandler != "calc" && serveHandler != "echo" {
		return fmt.Errorf("invalid handler %s (expected one of: calc, echo)", serveHandler)
	}
	return nil
}

// run starts the feval server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	var handler server.IMessageHandler
	switch serveHandler {
	case "echo":
		handler = server.NewEchoHandler()
	default:
		handler = server.NewCalcHandler(nil)
	}

	pools := base.NewPools(0)
	t, err := server.NewTransport(serveCmdConfig.Transport, pools)
	if err != nil {
		return err
	}

	serv := server.NewServer(*serveCmdConfig, t, handler, pools)
	if _, err := serv.Listen(); err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		_ = serv.Shutdown()
	}()

	return serv.Serve()
}
