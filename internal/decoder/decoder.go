// Package decoder renders SCALE-encoded calls and transaction extensions
// into display cards, driven by runtime metadata. v14 metadata is walked
// through its type registry; v12/v13 metadata through type names resolved
// against the loaded types registry.
package decoder

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/AlexZinkM/cold-signer/internal/cards"
	"github.com/AlexZinkM/cold-signer/internal/common"
	"github.com/AlexZinkM/cold-signer/internal/crypto"
	"github.com/AlexZinkM/cold-signer/internal/metadata"
	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/scale"
)

// maxDepth bounds nesting of types and calls.
const maxDepth = 128

// maxSteps bounds the number of values decoded from one call.
const maxSteps = 1 << 20

var (
	ErrTooDeep       = errors.New("type nesting exceeds decoder depth limit")
	ErrTooComplex    = errors.New("call holds more values than the decoder accepts")
	ErrNoTypes       = errors.New("types registry is not loaded, it is required for v12 and v13 metadata")
	ErrUnknownPallet = errors.New("pallet not found in metadata")
	ErrUnknownCall   = errors.New("call not found in pallet")
	ErrUnknownType   = errors.New("type not found")
	ErrBadEra        = errors.New("invalid mortal era")
)

// Context is what decoding needs besides the bytes.
type Context struct {
	Specs model.NetworkSpecs
	Meta  *metadata.Metadata
	// Types is required for v12/v13 metadata only.
	Types metadata.Registry
}

type decoder struct {
	ctx   Context
	r     *scale.Reader
	set   *cards.Set
	depth int
	steps int
}

func newDecoder(ctx Context, data []byte, set *cards.Set) *decoder {
	return &decoder{ctx: ctx, r: scale.NewReader(data), set: set}
}

func (d *decoder) enter() error {
	d.depth++
	if d.depth > maxDepth {
		return ErrTooDeep
	}
	d.steps++
	if d.steps > maxSteps {
		return ErrTooComplex
	}
	return nil
}

func (d *decoder) leave() { d.depth-- }

func (d *decoder) nest(fn func() error) error {
	return d.set.Nest(fn)
}

// Method decodes one call. Cards are appended to set as they are produced,
// so on error set keeps everything decoded before the failure. Every byte of
// data must be consumed.
func Method(data []byte, ctx Context, set *cards.Set) error {
	d := newDecoder(ctx, data, set)
	var err error
	switch {
	case ctx.Meta == nil:
		return errors.New("no metadata to decode with")
	case ctx.Meta.V14 != nil:
		err = d.callV14()
	case ctx.Types == nil:
		return ErrNoTypes
	default:
		err = d.callLegacy()
	}
	if err != nil {
		return err
	}
	return d.r.Done()
}

func (d *decoder) balance(v *big.Int) cards.Card {
	return cards.Balance{Amount: common.FormatBalance(v, d.ctx.Specs.Decimals), Units: d.ctx.Specs.Unit}
}

func (d *decoder) accountID(pub []byte) cards.Card {
	return cards.ID{
		Address:    crypto.SS58Encode(pub, d.ctx.Specs.Base58Prefix),
		PublicKey:  append([]byte{}, pub...),
		Encryption: d.ctx.Specs.Encryption,
	}
}

// BytesCard shows readable text as text and everything else as hex.
func BytesCard(b []byte) cards.Card {
	if len(b) > 0 && utf8.Valid(b) && printable(string(b)) {
		return cards.Text{Value: string(b)}
	}
	return cards.Default{Value: "0x" + hex.EncodeToString(b)}
}

func printable(s string) bool {
	for _, r := range s {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func isBalanceName(typeName string) bool {
	return strings.Contains(typeName, "Balance")
}

func decodeErr(err error, format string, args ...any) error {
	return model.DecodeError(err, format, args...)
}

// Era decodes a mortality era: a zero byte is immortal, otherwise two
// little-endian bytes encode period and phase.
func Era(r *scale.Reader) (cards.Era, error) {
	first, err := r.U8()
	if err != nil {
		return cards.Era{}, err
	}
	if first == 0 {
		return cards.Era{Immortal: true}, nil
	}
	second, err := r.U8()
	if err != nil {
		return cards.Era{}, err
	}
	e := uint64(first) | uint64(second)<<8
	period := uint64(2) << (e % 16)
	quantize := period >> 12
	if quantize < 1 {
		quantize = 1
	}
	phase := (e >> 4) * quantize
	if period < 4 || phase >= period {
		return cards.Era{}, fmt.Errorf("%w: period %d phase %d", ErrBadEra, period, phase)
	}
	return cards.Era{Phase: phase, Period: period}, nil
}
