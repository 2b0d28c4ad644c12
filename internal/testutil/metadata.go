// Package testutil builds runtime metadata, types and payload fixtures for
// tests. Fixtures are assembled with the scale writer so tests do not depend
// on captured chain data.
package testutil

import (
	"math/big"

	"github.com/AlexZinkM/cold-signer/internal/metadata"
	"github.com/AlexZinkM/cold-signer/internal/scale"
)

// Registry ids of the v14 fixture.
const (
	TyU8 uint32 = iota
	TyBytes32
	TyAccountID
	TyU128
	TyCompactU128
	TyBytes
	TyMultiAddress
	TyBalancesCall
	TySystemCall
	TyRuntimeCall
	TyCallVec
	TyUtilityCall
	TyU32
	TyCompactU32
	TyEra
	TyH256
	TyUnit
	TyCheckNonce
	TyChargePayment
	TyExtrinsic
	TyBool
	TyOptionU32
)

// Pallet and call indices of the v14 fixture.
const (
	PalletSystem   byte = 0
	PalletBalances byte = 4
	PalletUtility  byte = 16

	CallRemark            byte = 0
	CallTransferAllow     byte = 0
	CallTransferKeepAlive byte = 3
	CallBatch             byte = 0
)

type field struct {
	name     string
	ty       uint32
	typeName string
	docs     []string
}

type variant struct {
	name   string
	fields []field
	index  uint8
	docs   []string
}

func str(s string) *string { return &s }

func writeFields(w *scale.Writer, fields []field) {
	w.Compact(uint64(len(fields)))
	for _, f := range fields {
		if f.name == "" {
			w.OptionStr(nil)
		} else {
			w.OptionStr(str(f.name))
		}
		w.Compact(uint64(f.ty))
		if f.typeName == "" {
			w.OptionStr(nil)
		} else {
			w.OptionStr(str(f.typeName))
		}
		w.StrVec(f.docs)
	}
}

type typeWriter struct {
	count uint64
	body  *scale.Writer
}

func (tw *typeWriter) header(id uint32, path []string, params map[string]uint32, order ...string) {
	tw.count++
	tw.body.Compact(uint64(id)).StrVec(path)
	tw.body.Compact(uint64(len(order)))
	for _, name := range order {
		tw.body.Str(name)
		if ty, ok := params[name]; ok {
			tw.body.U8(1).Compact(uint64(ty))
		} else {
			tw.body.U8(0)
		}
	}
}

func (tw *typeWriter) composite(id uint32, path []string, fields ...field) {
	tw.header(id, path, nil)
	tw.body.U8(uint8(metadata.DefComposite))
	writeFields(tw.body, fields)
	tw.body.StrVec(nil)
}

func (tw *typeWriter) variant(id uint32, path []string, variants ...variant) {
	tw.header(id, path, nil)
	tw.body.U8(uint8(metadata.DefVariant))
	tw.body.Compact(uint64(len(variants)))
	for _, v := range variants {
		tw.body.Str(v.name)
		writeFields(tw.body, v.fields)
		tw.body.U8(v.index)
		tw.body.StrVec(v.docs)
	}
	tw.body.StrVec(nil)
}

func (tw *typeWriter) primitive(id uint32, p metadata.Primitive) {
	tw.header(id, nil, nil)
	tw.body.U8(uint8(metadata.DefPrimitive)).U8(uint8(p))
	tw.body.StrVec(nil)
}

func (tw *typeWriter) sequence(id, elem uint32) {
	tw.header(id, nil, nil)
	tw.body.U8(uint8(metadata.DefSequence)).Compact(uint64(elem))
	tw.body.StrVec(nil)
}

func (tw *typeWriter) array(id uint32, n uint32, elem uint32) {
	tw.header(id, nil, nil)
	tw.body.U8(uint8(metadata.DefArray)).U32(n).Compact(uint64(elem))
	tw.body.StrVec(nil)
}

func (tw *typeWriter) compact(id, elem uint32) {
	tw.header(id, nil, nil)
	tw.body.U8(uint8(metadata.DefCompact)).Compact(uint64(elem))
	tw.body.StrVec(nil)
}

func (tw *typeWriter) tuple(id uint32, elems ...uint32) {
	tw.header(id, nil, nil)
	tw.body.U8(uint8(metadata.DefTuple)).Compact(uint64(len(elems)))
	for _, e := range elems {
		tw.body.Compact(uint64(e))
	}
	tw.body.StrVec(nil)
}

// RuntimeVersion encodes a RuntimeVersion constant value.
func RuntimeVersion(specName string, specVersion uint32) []byte {
	return scale.NewWriter().
		Str(specName).
		Str(specName).
		U32(1).
		U32(specVersion).
		U32(0).
		Compact(0).
		U32(1).
		Bytes()
}

// MetadataV14 builds v14 metadata with System (remark), Balances (transfers)
// and Utility (batch) pallets and the usual signed extensions.
func MetadataV14(specName string, specVersion uint32) []byte {
	tw := &typeWriter{body: scale.NewWriter()}
	tw.primitive(TyU8, metadata.PrimU8)
	tw.array(TyBytes32, 32, TyU8)
	tw.composite(TyAccountID, []string{"sp_core", "crypto", "AccountId32"}, field{ty: TyBytes32, typeName: "[u8; 32]"})
	tw.primitive(TyU128, metadata.PrimU128)
	tw.compact(TyCompactU128, TyU128)
	tw.sequence(TyBytes, TyU8)
	tw.variant(TyMultiAddress, []string{"sp_runtime", "multiaddress", "MultiAddress"},
		variant{name: "Id", fields: []field{{ty: TyAccountID, typeName: "AccountId"}}, index: 0},
		variant{name: "Raw", fields: []field{{ty: TyBytes, typeName: "Vec<u8>"}}, index: 2},
	)
	tw.variant(TyBalancesCall, []string{"pallet_balances", "pallet", "Call"},
		variant{name: "transfer_allow_death", index: CallTransferAllow, fields: []field{
			{name: "dest", ty: TyMultiAddress, typeName: "AccountIdLookupOf<T>"},
			{name: "value", ty: TyCompactU128, typeName: "T::Balance"},
		}, docs: []string{"Transfer some liquid free balance to another account."}},
		variant{name: "transfer_keep_alive", index: CallTransferKeepAlive, fields: []field{
			{name: "dest", ty: TyMultiAddress, typeName: "AccountIdLookupOf<T>"},
			{name: "value", ty: TyCompactU128, typeName: "T::Balance"},
		}},
	)
	tw.variant(TySystemCall, []string{"frame_system", "pallet", "Call"},
		variant{name: "remark", index: CallRemark, fields: []field{{name: "remark", ty: TyBytes, typeName: "Vec<u8>"}}},
	)
	tw.variant(TyRuntimeCall, []string{"test_runtime", "RuntimeCall"},
		variant{name: "System", index: PalletSystem, fields: []field{{ty: TySystemCall}}},
		variant{name: "Balances", index: PalletBalances, fields: []field{{ty: TyBalancesCall}}},
		variant{name: "Utility", index: PalletUtility, fields: []field{{ty: TyUtilityCall}}},
	)
	tw.sequence(TyCallVec, TyRuntimeCall)
	tw.variant(TyUtilityCall, []string{"pallet_utility", "pallet", "Call"},
		variant{name: "batch", index: CallBatch, fields: []field{
			{name: "calls", ty: TyCallVec, typeName: "Vec<<T as Config>::RuntimeCall>"},
		}},
	)
	tw.primitive(TyU32, metadata.PrimU32)
	tw.compact(TyCompactU32, TyU32)
	tw.composite(TyEra, []string{"sp_runtime", "generic", "era", "Era"})
	tw.composite(TyH256, []string{"primitive_types", "H256"}, field{ty: TyBytes32, typeName: "[u8; 32]"})
	tw.tuple(TyUnit)
	tw.composite(TyCheckNonce, []string{"frame_system", "extensions", "check_nonce", "CheckNonce"},
		field{ty: TyCompactU32, typeName: "T::Nonce"})
	tw.composite(TyChargePayment, []string{"pallet_transaction_payment", "ChargeTransactionPayment"},
		field{ty: TyCompactU128, typeName: "BalanceOf<T>"})

	tw.header(TyExtrinsic, []string{"sp_runtime", "generic", "unchecked_extrinsic", "UncheckedExtrinsic"},
		map[string]uint32{"Address": TyMultiAddress, "Call": TyRuntimeCall}, "Address", "Call", "Signature", "Extra")
	tw.body.U8(uint8(metadata.DefComposite))
	writeFields(tw.body, []field{{ty: TyBytes}})
	tw.body.StrVec(nil)

	tw.primitive(TyBool, metadata.PrimBool)
	tw.variant(TyOptionU32, []string{"Option"},
		variant{name: "None", index: 0},
		variant{name: "Some", index: 1, fields: []field{{ty: TyU32}}},
	)

	w := scale.NewWriter().Raw([]byte("meta")).U8(14)
	w.Compact(tw.count).Raw(tw.body.Bytes())

	// pallets
	w.Compact(3)
	writePallet(w, "System", PalletSystem, TySystemCall, RuntimeVersion(specName, specVersion))
	writePallet(w, "Balances", PalletBalances, TyBalancesCall, nil)
	writePallet(w, "Utility", PalletUtility, TyUtilityCall, nil)

	// extrinsic
	w.Compact(uint64(TyExtrinsic)).U8(4)
	exts := []struct {
		id         string
		ty, signed uint32
	}{
		{"CheckSpecVersion", TyUnit, TyU32},
		{"CheckTxVersion", TyUnit, TyU32},
		{"CheckGenesis", TyUnit, TyH256},
		{"CheckMortality", TyEra, TyH256},
		{"CheckNonce", TyCheckNonce, TyUnit},
		{"CheckWeight", TyUnit, TyUnit},
		{"ChargeTransactionPayment", TyChargePayment, TyUnit},
	}
	w.Compact(uint64(len(exts)))
	for _, e := range exts {
		w.Str(e.id).Compact(uint64(e.ty)).Compact(uint64(e.signed))
	}
	w.Compact(uint64(TyUnit))
	return w.Bytes()
}

func writePallet(w *scale.Writer, name string, index byte, calls uint32, version []byte) {
	w.Str(name)
	// storage: one plain entry so skipping is exercised
	w.U8(1).Str(name).Compact(1).Str("Number").U8(1).U8(0).Compact(uint64(TyU32)).ByteVec([]byte{0, 0, 0, 0}).StrVec(nil)
	w.U8(1).Compact(uint64(calls))
	w.U8(0)
	if version != nil {
		w.Compact(1).Str("Version").Compact(uint64(TyUnit)).ByteVec(version).StrVec([]string{"runtime version"})
	} else {
		w.Compact(0)
	}
	w.U8(0)
	w.U8(index)
}

// MetadataV13 builds v13 metadata with System (remark) and Balances
// (transfer) modules. Its types resolve against LegacyTypes.
func MetadataV13(specName string, specVersion uint32) []byte {
	w := scale.NewWriter().Raw([]byte("meta")).U8(13)
	w.Compact(2)

	// System
	w.Str("System")
	w.U8(1).Str("System").Compact(1).
		Str("Account").U8(1).U8(1).U8(0).Str("AccountId").Str("AccountInfo").Bool(false).
		ByteVec(nil).StrVec(nil)
	w.U8(1).Compact(1).Str("remark").Compact(1).Str("_remark").Str("Vec<u8>").StrVec([]string{"Make some on-chain remark."})
	w.U8(1).Compact(1).Str("ExtrinsicSuccess").StrVec([]string{"DispatchInfo"}).StrVec(nil)
	w.Compact(1).Str("Version").Str("RuntimeVersion").ByteVec(RuntimeVersion(specName, specVersion)).StrVec(nil)
	w.Compact(0)
	w.U8(PalletSystem)

	// Balances
	w.Str("Balances")
	w.U8(0)
	w.U8(1).Compact(1).Str("transfer").Compact(2).
		Str("dest").Str("<T::Lookup as StaticLookup>::Source").
		Str("value").Str("Compact<T::Balance>").
		StrVec([]string{"Transfer some liquid free balance to another account."})
	w.U8(0)
	w.Compact(0)
	w.Compact(1).Str("InsufficientBalance").StrVec(nil)
	w.U8(PalletBalances)

	w.U8(4).StrVec([]string{"CheckSpecVersion", "CheckTxVersion", "CheckGenesis", "CheckMortality", "CheckNonce", "CheckWeight", "ChargeTransactionPayment"})
	return w.Bytes()
}

// LegacyTypes is a types registry covering MetadataV13.
func LegacyTypes() []metadata.TypeEntry {
	return []metadata.TypeEntry{
		{Name: "Balance", Kind: metadata.DescType, Alias: "u128"},
		{Name: "AccountIndex", Kind: metadata.DescType, Alias: "u32"},
		{Name: "LookupSource", Kind: metadata.DescType, Alias: "MultiAddress"},
		{Name: "MultiAddress", Kind: metadata.DescEnum, Variants: []metadata.LegacyVariant{
			{Name: "Id", Type: "AccountId"},
			{Name: "Index", Type: "Compact<AccountIndex>"},
			{Name: "Raw", Type: "Bytes"},
			{Name: "Address32", Type: "H256"},
			{Name: "Address20", Type: "H160"},
		}},
	}
}

// Extensions encodes extension bytes for both fixtures: era, nonce, tip,
// spec version, transaction version, genesis hash, block hash.
func Extensions(era []byte, nonce uint64, tip uint64, specVersion, txVersion uint32, genesis, blockHash [32]byte) []byte {
	return scale.NewWriter().
		Raw(era).
		Compact(nonce).
		Compact(tip).
		U32(specVersion).
		U32(txVersion).
		Raw(genesis[:]).
		Raw(blockHash[:]).
		Bytes()
}

// Immortal is the encoded immortal era.
var Immortal = []byte{0}

// Remark encodes System.remark.
func Remark(msg []byte) []byte {
	return scale.NewWriter().U8(PalletSystem).U8(CallRemark).ByteVec(msg).Bytes()
}

// TransferKeepAlive encodes Balances.transfer_keep_alive to an account id.
func TransferKeepAlive(dest []byte, amount *big.Int) []byte {
	return scale.NewWriter().
		U8(PalletBalances).U8(CallTransferKeepAlive).
		U8(0).Raw(dest).
		CompactBig(amount).
		Bytes()
}

// LegacyTransfer encodes the v13 fixture's Balances.transfer.
func LegacyTransfer(dest []byte, amount *big.Int) []byte {
	return scale.NewWriter().
		U8(PalletBalances).U8(0).
		U8(0).Raw(dest).
		CompactBig(amount).
		Bytes()
}

// Batch encodes Utility.batch over already encoded calls.
func Batch(calls ...[]byte) []byte {
	w := scale.NewWriter().U8(PalletUtility).U8(CallBatch).Compact(uint64(len(calls)))
	for _, c := range calls {
		w.Raw(c)
	}
	return w.Bytes()
}
