package decoder

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/cold-signer/internal/cards"
	"github.com/AlexZinkM/cold-signer/internal/crypto"
	"github.com/AlexZinkM/cold-signer/internal/metadata"
	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/scale"
	"github.com/AlexZinkM/cold-signer/internal/testutil"
)

var (
	genesis   = model.H256{0xe1, 0x43}
	blockHash = [32]byte{0xbb}
	dest      = bytes.Repeat([]byte{0x8e}, 32)
)

func westend() model.NetworkSpecs {
	return model.NetworkSpecs{
		Base58Prefix: 42,
		Decimals:     12,
		Encryption:   model.Sr25519,
		GenesisHash:  genesis,
		Name:         "westend",
		Unit:         "WND",
	}
}

func parse(t *testing.T, raw []byte) *metadata.Metadata {
	t.Helper()
	m, err := metadata.Parse(raw)
	require.NoError(t, err)
	return m
}

func v14Context(t *testing.T, version uint32) Context {
	return Context{Specs: westend(), Meta: parse(t, testutil.MetadataV14("westend", version))}
}

func TestMethodTransferV14(t *testing.T) {
	var set cards.Set
	amount := big.NewInt(1_500_000_000_000)
	err := Method(testutil.TransferKeepAlive(dest, amount), v14Context(t, 9430), &set)
	require.NoError(t, err)

	got := set.Cards()
	require.Equal(t, cards.Pallet{Name: "Balances"}, got[0])
	require.Equal(t, "transfer_keep_alive", got[1].(cards.Call).Name)
	require.Equal(t, cards.Field{Name: "dest"}, got[2])
	require.Equal(t, cards.EnumVariant{Name: "Id"}, got[3])
	id := got[4].(cards.ID)
	require.Equal(t, crypto.SS58Encode(dest, 42), id.Address)
	require.Equal(t, cards.Field{Name: "value"}, got[5])
	require.Equal(t, cards.Balance{Amount: "1.500000000000", Units: "WND"}, got[6])

	require.Equal(t, 0, set.Entries[0].Indent)
	require.Equal(t, 1, set.Entries[1].Indent)
	require.Equal(t, 2, set.Entries[2].Indent)
	require.Equal(t, 3, set.Entries[3].Indent)
	// an unnamed single field sits directly under its variant
	require.Equal(t, 4, set.Entries[4].Indent)
	require.Equal(t, 2, set.Entries[5].Indent)
}

func TestMethodNestedBatch(t *testing.T) {
	var set cards.Set
	call := testutil.Batch(
		testutil.Remark([]byte("hello")),
		testutil.TransferKeepAlive(dest, big.NewInt(1)),
	)
	require.NoError(t, Method(call, v14Context(t, 9430), &set))

	var pallets []string
	for _, c := range set.Cards() {
		if p, ok := c.(cards.Pallet); ok {
			pallets = append(pallets, p.Name)
		}
	}
	require.Equal(t, []string{"Utility", "System", "Balances"}, pallets)
	require.Contains(t, set.Cards(), cards.Card(cards.Text{Value: "hello"}))
}

func TestMethodRejectsTrailingBytes(t *testing.T) {
	var set cards.Set
	call := append(testutil.Remark([]byte("x")), 0)
	err := Method(call, v14Context(t, 9430), &set)
	var trailing *scale.TrailingDataError
	require.ErrorAs(t, err, &trailing)
}

func TestMethodKeepsCardsBeforeFailure(t *testing.T) {
	var set cards.Set
	call := testutil.TransferKeepAlive(dest, big.NewInt(5))
	err := Method(call[:10], v14Context(t, 9430), &set)
	require.Error(t, err)
	require.GreaterOrEqual(t, set.Len(), 3)
	require.Equal(t, cards.Pallet{Name: "Balances"}, set.Cards()[0])
}

func TestMethodUnknownPallet(t *testing.T) {
	var set cards.Set
	err := Method([]byte{99, 0}, v14Context(t, 9430), &set)
	require.ErrorIs(t, err, ErrUnknownPallet)
	require.Zero(t, set.Len())
}

func TestDepthIsBounded(t *testing.T) {
	call := testutil.Remark([]byte("x"))
	for i := 0; i < maxDepth; i++ {
		call = testutil.Batch(call)
	}
	var set cards.Set
	err := Method(call, v14Context(t, 9430), &set)
	require.ErrorIs(t, err, ErrTooDeep)
}

func TestMethodLegacy(t *testing.T) {
	ctx := Context{
		Specs: westend(),
		Meta:  parse(t, testutil.MetadataV13("westend", 9000)),
		Types: metadata.NewRegistry(testutil.LegacyTypes()),
	}
	var set cards.Set
	require.NoError(t, Method(testutil.LegacyTransfer(dest, big.NewInt(2_000_000_000_000)), ctx, &set))
	got := set.Cards()
	require.Equal(t, cards.Pallet{Name: "Balances"}, got[0])
	require.Equal(t, "transfer", got[1].(cards.Call).Name)
	require.Equal(t, cards.EnumVariant{Name: "Id"}, got[3])
	require.IsType(t, cards.ID{}, got[4])
	require.Equal(t, cards.Balance{Amount: "2.000000000000", Units: "WND"}, got[6])
	require.Equal(t, set.Entries[3].Indent+1, set.Entries[4].Indent)

	ctx.Types = nil
	set = cards.Set{}
	require.ErrorIs(t, Method(testutil.LegacyTransfer(dest, big.NewInt(1)), ctx, &set), ErrNoTypes)
}

func TestEra(t *testing.T) {
	era, err := Era(scale.NewReader([]byte{0}))
	require.NoError(t, err)
	require.True(t, era.Immortal)

	// period 64, phase 52
	era, err = Era(scale.NewReader([]byte{0x45, 0x03}))
	require.NoError(t, err)
	require.Equal(t, cards.Era{Period: 64, Phase: 52}, era)

	_, err = Era(scale.NewReader([]byte{0x01}))
	require.Error(t, err)
}

func TestTransactionPicksMatchingVersion(t *testing.T) {
	ext := testutil.Extensions([]byte{0x45, 0x03}, 7, 10, 9420, 3, genesis, blockHash)
	in := TransactionInput{
		Method:     testutil.Remark([]byte("hi")),
		Extensions: ext,
		Genesis:    genesis,
		Specs:      westend(),
		Candidates: []Candidate{
			{Version: 9430, Meta: parse(t, testutil.MetadataV14("westend", 9430))},
			{Version: 9420, Meta: parse(t, testutil.MetadataV14("westend", 9420))},
		},
	}
	out, err := Transaction(in)
	require.NoError(t, err)
	require.Equal(t, uint32(9420), out.Version)

	ec := out.Extensions.Cards()
	require.Equal(t, cards.Era{Period: 64, Phase: 52}, ec[0])
	require.Equal(t, cards.Nonce{Value: "7"}, ec[1])
	require.Equal(t, cards.Tip{Amount: "0.000000000010", Units: "WND"}, ec[2])
	require.Equal(t, cards.TxSpec{Network: "westend", Version: 9420, TxVersion: 3}, ec[3])
	require.Equal(t, cards.BlockHash{Hash: blockHash}, ec[4])
}

func TestTransactionListsEveryVersionTried(t *testing.T) {
	ext := testutil.Extensions(testutil.Immortal, 0, 0, 9999, 3, genesis, blockHash)
	in := TransactionInput{
		Method:     testutil.Remark([]byte("hi")),
		Extensions: ext,
		Genesis:    genesis,
		Specs:      westend(),
		Candidates: []Candidate{
			{Version: 9430, Meta: parse(t, testutil.MetadataV14("westend", 9430))},
			{Version: 9420, Meta: parse(t, testutil.MetadataV14("westend", 9420))},
		},
	}
	_, err := Transaction(in)
	require.True(t, model.IsKind(err, model.KindDecode))
	require.Contains(t, err.Error(), "westend9430")
	require.Contains(t, err.Error(), "westend9420")
}

func TestTransactionGenesisMismatch(t *testing.T) {
	ext := testutil.Extensions(testutil.Immortal, 0, 0, 9430, 3, model.H256{9}, blockHash)
	_, err := Transaction(TransactionInput{
		Method:     testutil.Remark(nil),
		Extensions: ext,
		Genesis:    genesis,
		Specs:      westend(),
		Candidates: []Candidate{{Version: 9430, Meta: parse(t, testutil.MetadataV14("westend", 9430))}},
	})
	require.True(t, model.IsKind(err, model.KindDecode))
	require.Contains(t, err.Error(), "genesis")
}

func TestTransactionLegacyExtensions(t *testing.T) {
	ext := testutil.Extensions(testutil.Immortal, 1, 0, 9000, 5, genesis, blockHash)
	out, err := Transaction(TransactionInput{
		Method:     testutil.LegacyTransfer(dest, big.NewInt(1)),
		Extensions: ext,
		Genesis:    genesis,
		Specs:      westend(),
		Candidates: []Candidate{{Version: 9000, Meta: parse(t, testutil.MetadataV13("westend", 9000))}},
		Types:      metadata.NewRegistry(testutil.LegacyTypes()),
	})
	require.NoError(t, err)
	require.Equal(t, cards.Era{Immortal: true}, out.Extensions.Cards()[0])
	require.Equal(t, uint32(5), out.Ext.TxVersion)
}

func TestCleanType(t *testing.T) {
	require.Equal(t, "LookupSource", cleanType("<T::Lookup as StaticLookup>::Source"))
	require.Equal(t, "Compact<Balance>", cleanType("Compact<T::Balance>"))
	require.Equal(t, "Call", cleanType("<T as Trait>::Call"))
	require.Equal(t, "BalanceOf", cleanType("BalanceOf<T, I>"))
	require.Equal(t, "Vec<AccountId>", cleanType("Vec<T::AccountId>"))
}

const (
	tyU8 uint32 = iota
	tyU16
	tyLsb0
	tyMsb0
	tyBitsU8Lsb
	tyBitsU8Msb
	tyBitsU16Msb
	tyUnit
	tyHugeUnitArray
	tySmallUnitArray
	tyUnitArrayArray
	tyInnerUnitArray
	tyUnitWrapper
)

func registryContext() Context {
	types := []*metadata.Type{
		{ID: tyU8, Kind: metadata.DefPrimitive, Primitive: metadata.PrimU8},
		{ID: tyU16, Kind: metadata.DefPrimitive, Primitive: metadata.PrimU16},
		{ID: tyLsb0, Path: []string{"bitvec", "order", "Lsb0"}, Kind: metadata.DefComposite},
		{ID: tyMsb0, Path: []string{"bitvec", "order", "Msb0"}, Kind: metadata.DefComposite},
		{ID: tyBitsU8Lsb, Kind: metadata.DefBitSequence, BitStore: tyU8, BitOrder: tyLsb0},
		{ID: tyBitsU8Msb, Kind: metadata.DefBitSequence, BitStore: tyU8, BitOrder: tyMsb0},
		{ID: tyBitsU16Msb, Kind: metadata.DefBitSequence, BitStore: tyU16, BitOrder: tyMsb0},
		{ID: tyUnit, Kind: metadata.DefTuple},
		{ID: tyHugeUnitArray, Kind: metadata.DefArray, Len: 1<<32 - 1, Elem: tyUnit},
		{ID: tySmallUnitArray, Kind: metadata.DefArray, Len: 4, Elem: tyUnit},
		{ID: tyUnitArrayArray, Kind: metadata.DefArray, Len: 1 << 16, Elem: tyInnerUnitArray},
		{ID: tyInnerUnitArray, Kind: metadata.DefArray, Len: 1 << 16, Elem: tyUnitWrapper},
		{ID: tyUnitWrapper, Kind: metadata.DefComposite, Fields: []metadata.TypeField{{Type: tyUnit}}},
	}
	m := &metadata.V14{Types: make(map[uint32]*metadata.Type)}
	for _, t := range types {
		m.Types[t.ID] = t
	}
	return Context{Specs: westend(), Meta: &metadata.Metadata{Version: 14, V14: m}}
}

func decodeType(t *testing.T, id uint32, data []byte) (cards.Set, error) {
	t.Helper()
	var set cards.Set
	d := newDecoder(registryContext(), data, &set)
	return set, d.typeV14(id, "")
}

func TestBitSequence(t *testing.T) {
	tests := []struct {
		name string
		ty   uint32
		data []byte
		want string
	}{
		{"lsb0 u8", tyBitsU8Lsb, []byte{10 << 2, 0b00000101, 0b00000010}, "1010000001"},
		{"msb0 u8", tyBitsU8Msb, []byte{4 << 2, 0b10100000}, "1010"},
		{"msb0 u16", tyBitsU16Msb, []byte{16 << 2, 0x01, 0x80}, "1000000000000001"},
		{"empty", tyBitsU8Lsb, []byte{0}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := decodeType(t, tt.ty, tt.data)
			require.NoError(t, err)
			require.Equal(t, []cards.Card{cards.Default{Value: tt.want}}, set.Cards())
		})
	}
}

func TestBitSequenceRejectsBadLength(t *testing.T) {
	_, err := decodeType(t, tyBitsU8Lsb, []byte{16 << 2, 0xff})
	require.ErrorIs(t, err, scale.ErrLengthTooLarge)

	// a bit count close to 2^64 must not wrap around
	huge := append([]byte{0x13}, bytes.Repeat([]byte{0xff}, 8)...)
	set, err := decodeType(t, tyBitsU8Lsb, huge)
	require.ErrorIs(t, err, scale.ErrLengthTooLarge)
	require.Zero(t, set.Len())

	var calls cards.Set
	err = Method(append([]byte{0, 0}, huge...), v14Context(t, 9430), &calls)
	require.Error(t, err)
}

func TestZeroSizedArrays(t *testing.T) {
	set, err := decodeType(t, tySmallUnitArray, nil)
	require.NoError(t, err)
	require.Zero(t, set.Len())

	_, err = decodeType(t, tyHugeUnitArray, nil)
	require.ErrorIs(t, err, scale.ErrLengthTooLarge)

	_, err = decodeType(t, tyUnitArrayArray, nil)
	require.ErrorIs(t, err, ErrTooComplex)
}
