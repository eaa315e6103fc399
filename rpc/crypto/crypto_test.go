package crypto

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	a, err := GenerateKey()
	require.NoError(t, err)
	b, err := GenerateKey()
	require.NoError(t, err)

	assert.Len(t, a, KeySize)
	assert.NotEqual(t, a, b)
}

func TestSessionCipherRunningKeystream(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	sender, err := NewSessionCipher(key)
	require.NoError(t, err)
	receiver, err := NewSessionCipher(key)
	require.NoError(t, err)

	messages := [][]byte{[]byte("1+2"), bytes.Repeat([]byte("x"), 100), []byte("3")}
	var sealed [][]byte
	for _, m := range messages {
		sealed = append(sealed, sender.Encrypt(nil, m))
	}

	// identical plaintexts at different stream offsets must differ
	again := sender.Encrypt(nil, messages[0])
	assert.NotEqual(t, sealed[0], again)

	for i, c := range sealed {
		assert.Equal(t, messages[i], receiver.Decrypt(nil, c))
	}
}

func TestSessionCipherAppends(t *testing.T) {
	key := bytes.Repeat([]byte{7}, KeySize)
	c, err := NewSessionCipher(key)
	require.NoError(t, err)

	out := c.Encrypt([]byte("head"), []byte("body"))
	assert.Equal(t, "head", string(out[:4]))
	assert.Len(t, out, 8)
}

func TestSessionCipherKeySize(t *testing.T) {
	_, err := NewSessionCipher(make([]byte, 8))
	assert.ErrorIs(t, err, ErrKeySize)
}

func TestWrapUnwrap(t *testing.T) {
	priv, err := GenerateKeyPair(1024)
	require.NoError(t, err)

	key, err := GenerateKey()
	require.NoError(t, err)

	wrapped, err := WrapWithPublicKey(&priv.PublicKey, key)
	require.NoError(t, err)
	assert.Len(t, wrapped, 128)

	unwrapped, err := UnwrapWithPrivateKey(priv, wrapped)
	require.NoError(t, err)
	assert.Equal(t, key, unwrapped)

	wrapped[10] ^= 0xFF
	_, err = UnwrapWithPrivateKey(priv, wrapped)
	assert.Error(t, err)
}

func TestDefaultKey(t *testing.T) {
	priv, err := DefaultPrivateKey()
	require.NoError(t, err)
	assert.Equal(t, 1024, priv.N.BitLen())
	assert.Equal(t, 65537, priv.E)

	pub, err := LoadPublicKey("")
	require.NoError(t, err)
	assert.Equal(t, 0, pub.N.Cmp(priv.N))

	wrapped, err := WrapWithPublicKey(pub, []byte("bootstrap"))
	require.NoError(t, err)
	out, err := UnwrapWithPrivateKey(priv, wrapped)
	require.NoError(t, err)
	assert.Equal(t, "bootstrap", string(out))
}

func TestXMLRoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair(1024)
	require.NoError(t, err)

	parsed, err := ParseXMLPrivateKey(MarshalXMLPrivateKey(priv))
	require.NoError(t, err)
	assert.True(t, priv.Equal(parsed))

	pub, err := ParseXMLPublicKey(MarshalXMLPublicKey(&priv.PublicKey))
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(pub))

	_, err = ParseXMLPrivateKey(MarshalXMLPublicKey(&priv.PublicKey))
	assert.Error(t, err, "public documents have no private part")
}

func TestParseKeyFiles(t *testing.T) {
	priv, err := GenerateKeyPair(1024)
	require.NoError(t, err)
	dir := t.TempDir()

	files := map[string][]byte{
		"key.xml":     MarshalXMLPrivateKey(priv),
		"key.pem":     MarshalPEMPrivateKey(priv),
		"pub.xml":     MarshalXMLPublicKey(&priv.PublicKey),
		"pub.pem":     MarshalPEMPublicKey(&priv.PublicKey),
		"garbage.txt": []byte("nothing to see"),
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
	}

	for _, name := range []string{"key.xml", "key.pem"} {
		loaded, err := LoadPrivateKey(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.True(t, priv.Equal(loaded), name)
	}

	for _, name := range []string{"key.xml", "key.pem", "pub.xml", "pub.pem"} {
		loaded, err := LoadPublicKey(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.True(t, priv.PublicKey.Equal(loaded), name)
	}

	_, err = LoadPrivateKey(filepath.Join(dir, "garbage.txt"))
	assert.ErrorIs(t, err, ErrNoKey)
	_, err = LoadPrivateKey(filepath.Join(dir, "missing.pem"))
	assert.Error(t, err)
}
