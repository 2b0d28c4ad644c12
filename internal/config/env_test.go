package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("COLDSIGNER_DB_PATH", "/tmp/cold")
	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/cold", c.DBPath)
	require.Equal(t, "/tmp/cold.vault", c.VaultPath)
	require.Equal(t, "info", c.LogLevel)
	require.Equal(t, "text", c.LogFormat)
	require.Equal(t, 256, c.QRSize)
	require.Equal(t, "signature.png", c.QRFile)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("COLDSIGNER_DB_PATH", "/tmp/cold")
	t.Setenv("COLDSIGNER_VAULT_PATH", "/secure/seeds")
	t.Setenv("COLDSIGNER_LOG_FORMAT", "json")
	t.Setenv("COLDSIGNER_QR_SIZE", "512")
	require.NoError(t, Init())
	require.Equal(t, "/secure/seeds", GetVaultPath())
	require.Equal(t, "/tmp/cold", GetDBPath())
	require.Equal(t, "json", Get().LogFormat)
	require.Equal(t, 512, Get().QRSize)
}

func TestLoadRequiresDBPath(t *testing.T) {
	t.Setenv("COLDSIGNER_DB_PATH", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("COLDSIGNER_DB_PATH", "/tmp/cold")
	t.Setenv("COLDSIGNER_QR_SIZE", "0")
	_, err = Load()
	require.Error(t, err)
}
