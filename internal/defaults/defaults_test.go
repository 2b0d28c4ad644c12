package defaults

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/cold-signer/internal/model"
)

func TestLoadEmbedded(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)
	require.Len(t, d.Networks, 3)

	names := make([]string, 0, len(d.Networks))
	for _, n := range d.Networks {
		names = append(names, n.Name)
		require.Equal(t, model.Sr25519, n.Encryption)
		require.NotEqual(t, model.H256{}, n.GenesisHash)
	}
	require.Equal(t, []string{"polkadot", "kusama", "westend"}, names)
	require.Equal(t, uint8(10), d.Networks[0].Decimals)
	require.Equal(t, uint16(42), d.Networks[2].Base58Prefix)

	require.NotNil(t, d.GeneralVerifier)
	require.Equal(t, model.Sr25519, d.GeneralVerifier.Encryption)
	require.Len(t, d.GeneralVerifier.PublicKey, 32)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.toml")
	content := `version = 1

[[network]]
name = "rococo"
base58prefix = 42
decimals = 12
unit = "ROC"
encryption = "ed25519"
genesis_hash = "0x6408de7737c59c238890533af25896a2c20608d8b380bb01029acb392781063e"
path_id = "//rococo"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	d, err := LoadFile(path)
	require.NoError(t, err)
	require.Nil(t, d.GeneralVerifier)
	require.Len(t, d.Networks, 1)
	require.Equal(t, model.Ed25519, d.Networks[0].Encryption)
	require.Equal(t, "ROC", d.Networks[0].Unit)
}

func TestParseRejectsBadDefaults(t *testing.T) {
	for _, content := range []string{
		`version = 2`,
		"version = 1\n[[network]]\nname = \"\"\n",
		"version = 1\n[general_verifier]\nencryption = \"ecdsa\"\npublic_key = \"0x00\"\n",
		"version = 1\n[[network]]\nname = \"a\"\n[[network]]\nname = \"a\"\n",
		"version = 1\n[[network]]\nname = \"a\"\nencryption = \"rsa\"\n",
	} {
		_, err := Parse(content)
		require.Error(t, err, content)
	}
}
