package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const phrase = "bottom drive obey lake curtain smoke basket hold race lonely fit walk"

func init() {
	// keep tests fast; production uses 2^18
	scryptN = 1 << 10
}

func TestCreateAddOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.vault")
	v, err := Create(path, []byte("pw"))
	require.NoError(t, err)
	require.NoError(t, v.Add("alice", phrase))
	require.ErrorIs(t, v.Add("alice", phrase), ErrSeedExists)
	v.Close()

	names, err := SeedNames(path)
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, names)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "bottom drive")

	v, err = Open(path, []byte("pw"))
	require.NoError(t, err)
	got, err := v.Phrase("alice")
	require.NoError(t, err)
	require.Equal(t, phrase, got)
	_, err = v.Phrase("bob")
	require.ErrorIs(t, err, ErrUnknownSeed)
}

func TestOpenWrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.vault")
	v, err := Create(path, []byte("pw"))
	require.NoError(t, err)
	v.Close()

	_, err = Open(path, []byte("nope"))
	require.ErrorIs(t, err, ErrWrongPassword)
}

func TestCreateRefusesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.vault")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	_, err := Create(path, []byte("pw"))
	require.ErrorIs(t, err, ErrFileExists)
}

func TestRemoveAndRekey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.vault")
	v, err := Create(path, []byte("old"))
	require.NoError(t, err)
	require.NoError(t, v.Add("alice", phrase))
	require.NoError(t, v.Add("bob", phrase))
	require.NoError(t, v.Remove("alice"))
	require.ErrorIs(t, v.Remove("alice"), ErrUnknownSeed)
	require.NoError(t, v.Rekey([]byte("new")))
	v.Close()

	_, err = Open(path, []byte("old"))
	require.ErrorIs(t, err, ErrWrongPassword)
	v, err = Open(path, []byte("new"))
	require.NoError(t, err)
	require.Equal(t, []string{"bob"}, v.Seeds())
}

func TestMissingVault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.vault")
	_, err := SeedNames(path)
	require.ErrorIs(t, err, os.ErrNotExist)
	_, err = Open(path, []byte("pw"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
