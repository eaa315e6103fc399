package util

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
	assert.Empty(t, WrapString(""))
}

func TestGetClientConfigFromFlags(t *testing.T) {
	t.Cleanup(viper.Reset)

	cmd := &cobra.Command{Use: "test"}
	SetupClientFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--transport", "kcp",
		"--endpoint", "10.0.0.1:7000",
		"--compress=false",
		"--big-endian",
		"--read-buffer", "64",
		"--timeout", "3",
	}))
	require.NoError(t, viper.BindPFlags(cmd.Flags()))

	config, err := GetClientConfig()
	require.NoError(t, err)
	assert.Equal(t, common.TransportKCP, config.Transport)
	assert.Equal(t, "10.0.0.1:7000", config.Endpoint)
	assert.False(t, config.Codec.Compress)
	assert.True(t, config.Codec.Encrypt)
	assert.True(t, config.Codec.BigEndian)
	assert.Equal(t, 64*1024, config.ReadBufferSize)
	assert.Equal(t, 3, config.TimeoutSecond)
	assert.Equal(t, uint32(common.DefaultKCPConv), config.KCPConv)
	assert.Equal(t, -1, config.TCPLingerSec)
}

func TestGetClientConfigRejectsUnknownTransport(t *testing.T) {
	t.Cleanup(viper.Reset)

	cmd := &cobra.Command{Use: "test"}
	SetupClientFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--transport", "smoke-signals"}))
	require.NoError(t, viper.BindPFlags(cmd.Flags()))

	_, err := GetClientConfig()
	assert.Error(t, err)
}
