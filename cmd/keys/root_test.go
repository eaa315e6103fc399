package keys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/feval/rpc/crypto"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generate(t *testing.T, dir string, flags ...string) error {
	t.Helper()
	t.Cleanup(viper.Reset)
	require.NoError(t, genCmd.Flags().Parse(flags))
	require.NoError(t, genCmd.PreRunE(genCmd, []string{dir}))
	return runGen(genCmd, []string{dir})
}

func TestGenerateLoadableKeys(t *testing.T) {
	for _, format := range []string{"xml", "pem"} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, generate(t, dir, "--format", format, "--bits", "1024", "--force=false"))

			priv, err := crypto.LoadPrivateKey(filepath.Join(dir, "feval."+format))
			require.NoError(t, err)
			pub, err := crypto.LoadPublicKey(filepath.Join(dir, "feval.pub."+format))
			require.NoError(t, err)
			assert.Equal(t, 0, priv.PublicKey.N.Cmp(pub.N))
			assert.Equal(t, priv.PublicKey.E, pub.E)

			info, err := os.Stat(filepath.Join(dir, "feval."+format))
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
		})
	}
}

func TestGenerateKeepsExistingKeys(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generate(t, dir, "--format", "pem", "--force=false"))
	assert.Error(t, generate(t, dir, "--format", "pem", "--force=false"))
	assert.NoError(t, generate(t, dir, "--format", "pem", "--force"))
}

func TestGenerateRejectsUnknownFormat(t *testing.T) {
	assert.Error(t, generate(t, t.TempDir(), "--format", "der"))
}
