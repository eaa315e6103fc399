package eval

import (
	"testing"

	"github.com/ValentinKolb/feval/lib/calc"
	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/ValentinKolb/feval/rpc/server"
	"github.com/ValentinKolb/feval/rpc/transport/base"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalLocalOneShot(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, EvalCmd.ParseFlags([]string{"--local"}))
	require.NoError(t, EvalCmd.PreRunE(EvalCmd, []string{"1", "+", "2"}))
	assert.True(t, viper.GetBool("local"))

	assert.NoError(t, run(EvalCmd, []string{"1", "+", "2"}))
	assert.ErrorIs(t, run(EvalCmd, []string{"1", "/", "0"}), calc.ErrDivisionByZero)
}

func TestBenchBindsFlags(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, benchCmd.ParseFlags([]string{"--workers", "3", "--statement", "2*2"}))
	require.NoError(t, benchCmd.PreRunE(benchCmd, nil))
	assert.Equal(t, 3, viper.GetInt("workers"))
	assert.Equal(t, "2*2", viper.GetString("statement"))
	assert.Equal(t, 1000, viper.GetInt("messages"))
}

func TestConnectUsesGivenPools(t *testing.T) {
	t.Cleanup(viper.Reset)

	sc := common.DefaultServerConfig()
	sc.Endpoint = "127.0.0.1:0"
	sc.LogLevel = "warn"
	serverPools := base.NewPools(0)
	tr, err := server.NewTransport(sc.Transport, serverPools)
	require.NoError(t, err)
	s := server.NewServer(sc, tr, server.NewCalcHandler(nil), serverPools)
	addr, err := s.Listen()
	require.NoError(t, err)
	go func() { _ = s.Serve() }()
	t.Cleanup(func() { _ = s.Shutdown() })

	require.NoError(t, EvalCmd.ParseFlags([]string{"--endpoint", addr.String(), "--transport", "tcp"}))
	require.NoError(t, EvalCmd.PreRunE(EvalCmd, nil))

	pools := base.NewPools(0)
	c, err := connect(pools)
	require.NoError(t, err)
	defer c.Close()

	result, ok, err := c.Evaluate("6*7")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", result)
	assert.Positive(t, pools.Buffers.Allocated())
}
