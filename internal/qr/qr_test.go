package qr

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestPNG(t *testing.T) {
	png, err := PNG("01deadbeef", 0)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(png, pngMagic))

	_, err = PNG("", 128)
	require.Error(t, err)
}

func TestBase64AndFile(t *testing.T) {
	s, err := Base64("01deadbeef", 128)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(s)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, pngMagic))

	path := filepath.Join(t.TempDir(), "sig.png")
	require.NoError(t, WriteFile(path, "01deadbeef", 128))
	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(onDisk, pngMagic))
}
