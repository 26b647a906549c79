package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/voicediary/internal/crypto"
)

func TestGenKeyCommand_WritesUsableKey(t *testing.T) {
	t.Setenv(crypto.EnvEncryptionKey, "")
	path := filepath.Join(t.TempDir(), "keys", "diary.key")

	cmd := NewGenKeyCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-o", path}))
	require.NoError(t, cmd.Run())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	enc, err := crypto.LoadEncryptor("", path)
	require.NoError(t, err)
	sealed, err := enc.Seal("hello")
	require.NoError(t, err)
	opened, err := enc.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hello", opened)
}

func TestGenKeyCommand_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diary.key")
	require.NoError(t, os.WriteFile(path, []byte("existing"), 0o600))

	cmd := NewGenKeyCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-o", path}))
	assert.Error(t, cmd.Run())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "existing", string(data))

	cmd = NewGenKeyCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-o", path, "-force"}))
	require.NoError(t, cmd.Run())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, "existing", string(data))
}
