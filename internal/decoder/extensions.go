package decoder

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/AlexZinkM/cold-signer/internal/cards"
	"github.com/AlexZinkM/cold-signer/internal/common"
	"github.com/AlexZinkM/cold-signer/internal/model"
)

var (
	ErrNoSpecVersion = errors.New("transaction extensions carry no spec version")
	ErrNoGenesis     = errors.New("transaction extensions carry no genesis hash")
)

// Extensions holds the values the signer checks in a transaction's signed
// extensions.
type Extensions struct {
	Era         cards.Era
	Nonce       *big.Int
	Tip         *big.Int
	SpecVersion uint32
	TxVersion   uint32
	GenesisHash model.H256
	BlockHash   *model.H256
}

// DecodeExtensions decodes the extension bytes of a transaction. Cards are
// ordered era, nonce, tip, any other extension values, network and version,
// block hash. Every byte must be consumed.
func DecodeExtensions(data []byte, ctx Context) (Extensions, cards.Set, error) {
	var set cards.Set
	d := newDecoder(ctx, data, &set)
	var ext Extensions
	var err error
	switch {
	case ctx.Meta == nil:
		return ext, set, errors.New("no metadata to decode with")
	case ctx.Meta.V14 != nil:
		ext, err = d.extensionsV14()
	default:
		ext, err = d.extensionsLegacy()
	}
	if err != nil {
		return ext, set, err
	}
	if err := d.r.Done(); err != nil {
		return ext, set, err
	}

	var out cards.Set
	out.Add(ext.Era)
	if ext.Nonce != nil {
		out.Add(cards.Nonce{Value: ext.Nonce.String()})
	}
	if ext.Tip != nil {
		out.Add(cards.Tip{Amount: common.FormatBalance(ext.Tip, ctx.Specs.Decimals), Units: ctx.Specs.Unit})
	}
	out.Append(set)
	out.Add(cards.TxSpec{Network: ctx.Specs.Name, Version: ext.SpecVersion, TxVersion: ext.TxVersion})
	if ext.BlockHash != nil {
		out.Add(cards.BlockHash{Hash: *ext.BlockHash})
	}
	return ext, out, nil
}

// extensionsV14 walks the extension list twice: once for the values carried
// in the transaction, once for the implicitly signed values.
func (d *decoder) extensionsV14() (Extensions, error) {
	ext := Extensions{Era: cards.Era{Immortal: true}}
	m := d.ctx.Meta.V14
	haveSpec, haveGenesis := false, false

	for _, e := range m.Extensions {
		var err error
		switch e.Identifier {
		case "CheckMortality", "CheckEra":
			ext.Era, err = Era(d.r)
		case "CheckNonce":
			ext.Nonce, err = d.r.Compact()
		case "ChargeTransactionPayment":
			ext.Tip, err = d.r.Compact()
		default:
			err = d.typeV14(e.Type, "")
		}
		if err != nil {
			return ext, fmt.Errorf("extension %s: %w", e.Identifier, err)
		}
	}

	for _, e := range m.Extensions {
		var err error
		switch e.Identifier {
		case "CheckSpecVersion":
			ext.SpecVersion, err = d.r.U32()
			haveSpec = true
		case "CheckTxVersion":
			ext.TxVersion, err = d.r.U32()
		case "CheckGenesis":
			ext.GenesisHash, err = d.r.Array32()
			haveGenesis = true
		case "CheckMortality", "CheckEra":
			var h model.H256
			h, err = d.r.Array32()
			ext.BlockHash = &h
		default:
			err = d.typeV14(e.AdditionalSigned, "")
		}
		if err != nil {
			return ext, fmt.Errorf("signed value of %s: %w", e.Identifier, err)
		}
	}

	if !haveSpec {
		return ext, ErrNoSpecVersion
	}
	if !haveGenesis {
		return ext, ErrNoGenesis
	}
	return ext, nil
}

// extensionsLegacy reads the fixed layout used by v12/v13 runtimes: era,
// nonce, tip, spec version, transaction version, genesis hash, block hash.
func (d *decoder) extensionsLegacy() (Extensions, error) {
	var ext Extensions
	var err error
	if ext.Era, err = Era(d.r); err != nil {
		return ext, fmt.Errorf("era: %w", err)
	}
	if ext.Nonce, err = d.r.Compact(); err != nil {
		return ext, fmt.Errorf("nonce: %w", err)
	}
	if ext.Tip, err = d.r.Compact(); err != nil {
		return ext, fmt.Errorf("tip: %w", err)
	}
	if ext.SpecVersion, err = d.r.U32(); err != nil {
		return ext, fmt.Errorf("spec version: %w", err)
	}
	if ext.TxVersion, err = d.r.U32(); err != nil {
		return ext, fmt.Errorf("tx version: %w", err)
	}
	if ext.GenesisHash, err = d.r.Array32(); err != nil {
		return ext, fmt.Errorf("genesis hash: %w", err)
	}
	h, err := d.r.Array32()
	if err != nil {
		return ext, fmt.Errorf("block hash: %w", err)
	}
	ext.BlockHash = (*model.H256)(&h)
	return ext, nil
}
