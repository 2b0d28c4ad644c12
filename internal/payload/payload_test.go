package payload

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/cold-signer/internal/model"
)

var author = model.MultiSigner{Encryption: model.Sr25519, PublicKey: bytes.Repeat([]byte{0xd4}, 32)}

func westendSpecs() model.NetworkSpecs {
	return model.NetworkSpecs{
		Base58Prefix: 42,
		Color:        "#660D35",
		Decimals:     12,
		Encryption:   model.Sr25519,
		GenesisHash:  model.H256{0xe1},
		Logo:         "westend",
		Name:         "westend",
		PathID:       "//westend",
		Title:        "Westend",
		Unit:         "WND",
	}
}

func TestParseTransaction(t *testing.T) {
	tx := Transaction{Author: author, Method: []byte{0, 0, 4, 'h'}, Extensions: []byte{0, 1, 2}, Genesis: model.H256{7}}
	raw := tx.Encode()
	require.Equal(t, []byte{0x53, 0x00, 0x01}, raw[:3])

	p, err := ParseHex("0x" + hex.EncodeToString(raw))
	require.NoError(t, err)
	got, ok := p.(Transaction)
	require.True(t, ok)
	require.Equal(t, tx, got)
	require.Equal(t, []byte{0, 0, 4, 'h', 0, 1, 2}, got.SigningContent())
}

func TestParseTransactionTooShort(t *testing.T) {
	tx := Transaction{Author: author, Method: []byte{1}, Genesis: model.H256{7}}
	raw := tx.Encode()
	_, err := Parse(raw[:len(raw)-1])
	require.True(t, model.IsKind(err, model.KindInput))
}

func TestParseBulk(t *testing.T) {
	b := Bulk{Transactions: []Transaction{
		{Author: author, Method: []byte{1}, Extensions: []byte{2}, Genesis: model.H256{1}},
		{Author: author, Method: []byte{3}, Extensions: []byte{4}, Genesis: model.H256{1}},
	}}
	p, err := Parse(b.Encode())
	require.NoError(t, err)
	require.Equal(t, b, p)

	_, err = Parse([]byte{0x53, 0x04, 0x00})
	require.Error(t, err)
}

func TestParseMessage(t *testing.T) {
	m := Message{Author: author, Message: []byte("<Bytes>hello</Bytes>"), Genesis: model.H256{2}}
	p, err := Parse(m.Encode())
	require.NoError(t, err)
	require.Equal(t, m, p)
}

func TestParseSignedAddSpecs(t *testing.T) {
	verifier := model.MultiSigner{Encryption: model.Ed25519, PublicKey: bytes.Repeat([]byte{1}, 32)}
	content := AddSpecsContent(westendSpecs())
	in := AddSpecs{Signed: Signed{Verifier: &verifier, Content: content, Signature: bytes.Repeat([]byte{9}, 64)}}
	p, err := Parse(in.Encode())
	require.NoError(t, err)
	got := p.(AddSpecs)
	require.True(t, got.IsSigned())
	require.Equal(t, verifier, *got.Verifier)
	require.Equal(t, content, got.Content)
	require.Equal(t, westendSpecs(), got.Specs)
}

func TestParseUnsignedLoadMetadata(t *testing.T) {
	in := LoadMetadata{Signed: Signed{Content: LoadMetadataContent([]byte("meta\x0e"), model.H256{3})}}
	p, err := Parse(in.Encode())
	require.NoError(t, err)
	got := p.(LoadMetadata)
	require.False(t, got.IsSigned())
	require.Equal(t, []byte("meta\x0e"), got.Meta)
	require.Equal(t, model.H256{3}, got.Genesis)
}

func TestParseDerivations(t *testing.T) {
	in := Derivations{Encryption: model.Sr25519, Genesis: model.H256{4}, Paths: []string{"//1", "//2///pw"}}
	p, err := Parse(in.Encode())
	require.NoError(t, err)
	require.Equal(t, in, p)
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, raw := range [][]byte{
		nil,
		{0x53},
		{0x52, 0x00, 0x01},
		{0x53, 0x77, 0x01},
		{0x53, 0xc1, 0x05, 0x00},
	} {
		_, err := Parse(raw)
		require.True(t, model.IsKind(err, model.KindInput), "%x", raw)
	}
	_, err := ParseHex("zz")
	require.True(t, model.IsKind(err, model.KindInput))
}
