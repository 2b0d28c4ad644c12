package decoder

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/AlexZinkM/cold-signer/internal/cards"
	"github.com/AlexZinkM/cold-signer/internal/metadata"
	"github.com/AlexZinkM/cold-signer/internal/scale"
)

// callV14 decodes pallet index, call index and call arguments.
func (d *decoder) callV14() error {
	if err := d.enter(); err != nil {
		return err
	}
	defer d.leave()

	m := d.ctx.Meta.V14
	idx, err := d.r.U8()
	if err != nil {
		return fmt.Errorf("failed to read pallet index: %w", err)
	}
	pallet, ok := m.PalletByIndex(idx)
	if !ok || pallet.Calls == nil {
		return fmt.Errorf("%w: index %d", ErrUnknownPallet, idx)
	}
	calls, err := m.Type(*pallet.Calls)
	if err != nil {
		return err
	}
	d.set.Add(cards.Pallet{Name: pallet.Name})

	return d.nest(func() error {
		callIdx, err := d.r.U8()
		if err != nil {
			return fmt.Errorf("failed to read call index: %w", err)
		}
		variant, ok := calls.Variant(callIdx)
		if !ok {
			return fmt.Errorf("%w: %s call %d", ErrUnknownCall, pallet.Name, callIdx)
		}
		d.set.Add(cards.Call{Name: variant.Name, Docs: variant.Docs})
		return d.nest(func() error { return d.fieldsV14(variant.Fields) })
	})
}

func (d *decoder) fieldsV14(fields []metadata.TypeField) error {
	for i, f := range fields {
		labelled := true
		switch {
		case f.Name != "":
			d.set.Add(cards.Field{Name: f.Name, Docs: f.Docs})
		case len(fields) > 1:
			d.set.Add(cards.FieldNumber{Index: i, Docs: f.Docs})
		default:
			labelled = false
		}
		decode := func() error { return d.typeV14(f.Type, f.TypeName) }
		var err error
		if labelled {
			err = d.nest(decode)
		} else {
			err = decode()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// typeV14 decodes one value of registry type id. typeName is the field's
// declared type name, used to recognize balances.
func (d *decoder) typeV14(id uint32, typeName string) error {
	if err := d.enter(); err != nil {
		return err
	}
	defer d.leave()

	m := d.ctx.Meta.V14
	if m.CallType != nil && id == *m.CallType {
		return d.callV14()
	}
	t, err := m.Type(id)
	if err != nil {
		return err
	}

	switch t.PathEnd() {
	case "AccountId32":
		pub, err := d.r.Bytes(32)
		if err != nil {
			return err
		}
		d.set.Add(d.accountID(pub))
		return nil
	case "Era":
		era, err := Era(d.r)
		if err != nil {
			return err
		}
		d.set.Add(era)
		return nil
	case "Option":
		if t.Kind == metadata.DefVariant && len(t.Path) == 1 {
			return d.optionV14(t, typeName)
		}
	}

	switch t.Kind {
	case metadata.DefComposite:
		if len(t.Fields) == 1 && t.Fields[0].Name == "" {
			name := t.Fields[0].TypeName
			if name == "" {
				name = typeName
			}
			return d.typeV14(t.Fields[0].Type, name)
		}
		return d.fieldsV14(t.Fields)

	case metadata.DefVariant:
		idx, err := d.r.U8()
		if err != nil {
			return err
		}
		v, ok := t.Variant(idx)
		if !ok {
			return fmt.Errorf("%w: variant %d of %s", ErrUnknownType, idx, strings.Join(t.Path, "::"))
		}
		d.set.Add(cards.EnumVariant{Name: v.Name, Docs: v.Docs})
		return d.nest(func() error { return d.fieldsV14(v.Fields) })

	case metadata.DefSequence:
		if d.isU8(t.Elem) {
			b, err := d.r.ByteVec()
			if err != nil {
				return err
			}
			d.set.Add(BytesCard(b))
			return nil
		}
		n, err := d.r.CompactLen(d.minSize(t.Elem))
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := d.typeV14(t.Elem, ""); err != nil {
				return err
			}
		}
		return nil

	case metadata.DefArray:
		if d.isU8(t.Elem) {
			b, err := d.r.Bytes(int(t.Len))
			if err != nil {
				return err
			}
			d.set.Add(cards.Default{Value: "0x" + hex.EncodeToString(b)})
			return nil
		}
		if t.Len > scale.MaxZeroSizedElems && d.minSize(t.Elem) == 0 {
			return fmt.Errorf("array of %d zero-sized elements: %w", t.Len, scale.ErrLengthTooLarge)
		}
		for i := uint32(0); i < t.Len; i++ {
			if err := d.typeV14(t.Elem, ""); err != nil {
				return err
			}
		}
		return nil

	case metadata.DefTuple:
		for _, elem := range t.Tuple {
			if err := d.typeV14(elem, ""); err != nil {
				return err
			}
		}
		return nil

	case metadata.DefPrimitive:
		return d.primitive(t.Primitive, typeName)

	case metadata.DefCompact:
		v, err := d.r.Compact()
		if err != nil {
			return err
		}
		d.addNumber(v, typeName)
		return nil

	case metadata.DefBitSequence:
		return d.bitSequence(t)
	}
	return fmt.Errorf("%w: unsupported definition %d", ErrUnknownType, t.Kind)
}

func (d *decoder) optionV14(t *metadata.Type, typeName string) error {
	tag, err := d.r.U8()
	if err != nil {
		return err
	}
	v, ok := t.Variant(tag)
	if !ok {
		return fmt.Errorf("%w: option tag %d", ErrUnknownType, tag)
	}
	if len(v.Fields) == 0 {
		d.set.Add(cards.None{})
		return nil
	}
	name := v.Fields[0].TypeName
	if name == "" {
		name = typeName
	}
	return d.typeV14(v.Fields[0].Type, name)
}

func (d *decoder) isU8(id uint32) bool {
	t, err := d.ctx.Meta.V14.Type(id)
	return err == nil && t.Kind == metadata.DefPrimitive && t.Primitive == metadata.PrimU8
}

// minSize is a lower bound on the bytes one value of type id occupies, used
// to bound declared lengths. It is 0 only for types that may encode to
// nothing: empty tuples and composites, and collections of those.
func (d *decoder) minSize(id uint32) int {
	return d.minSizeAt(id, 0)
}

func (d *decoder) minSizeAt(id uint32, depth int) int {
	t, err := d.ctx.Meta.V14.Type(id)
	if err != nil || depth > maxDepth {
		return 1
	}
	switch t.PathEnd() {
	case "AccountId32", "Era":
		return 1
	}
	switch t.Kind {
	case metadata.DefTuple:
		for _, elem := range t.Tuple {
			if d.minSizeAt(elem, depth+1) > 0 {
				return 1
			}
		}
		return 0
	case metadata.DefComposite:
		for _, f := range t.Fields {
			if d.minSizeAt(f.Type, depth+1) > 0 {
				return 1
			}
		}
		return 0
	case metadata.DefArray:
		if t.Len == 0 {
			return 0
		}
		return d.minSizeAt(t.Elem, depth+1)
	}
	return 1
}

func (d *decoder) primitive(p metadata.Primitive, typeName string) error {
	switch p {
	case metadata.PrimBool:
		v, err := d.r.Bool()
		if err != nil {
			return err
		}
		d.set.Add(cards.Default{Value: strconv.FormatBool(v)})
	case metadata.PrimChar:
		v, err := d.r.U32()
		if err != nil {
			return err
		}
		d.set.Add(cards.Text{Value: string(rune(v))})
	case metadata.PrimStr:
		s, err := d.r.Str()
		if err != nil {
			return err
		}
		d.set.Add(cards.Text{Value: s})
	default:
		var v *big.Int
		var err error
		if p.Signed() {
			v, err = d.r.Int(p.Size())
		} else {
			v, err = d.r.Uint(p.Size())
		}
		if err != nil {
			return err
		}
		d.addNumber(v, typeName)
	}
	return nil
}

func (d *decoder) addNumber(v *big.Int, typeName string) {
	if isBalanceName(typeName) {
		d.set.Add(d.balance(v))
		return
	}
	d.set.Add(cards.Default{Value: v.String()})
}

func (d *decoder) bitSequence(t *metadata.Type) error {
	store, err := d.ctx.Meta.V14.Type(t.BitStore)
	if err != nil {
		return err
	}
	width := store.Primitive.Size()
	if store.Kind != metadata.DefPrimitive || width == 0 || width > 8 {
		return fmt.Errorf("%w: bit sequence store type", ErrUnknownType)
	}
	bits, err := d.r.CompactUint64()
	if err != nil {
		return err
	}
	if bits > uint64(d.r.Remaining())*8 {
		return fmt.Errorf("bit sequence of %d bits: %w", bits, scale.ErrLengthTooLarge)
	}
	wordBits := uint64(width) * 8
	words := bits / wordBits
	if bits%wordBits != 0 {
		words++
	}
	raw, err := d.r.Bytes(int(words) * width)
	if err != nil {
		return err
	}
	msb := false
	if order, err := d.ctx.Meta.V14.Type(t.BitOrder); err == nil {
		msb = order.PathEnd() == "Msb0"
	}
	var sb strings.Builder
	sb.Grow(int(bits))
	for i := uint64(0); i < bits; i++ {
		// store words are little endian; Msb0 counts from the top bit of each word
		pos := i % wordBits
		if msb {
			pos = wordBits - 1 - pos
		}
		b := raw[(i/wordBits)*uint64(width)+pos/8]
		if b>>(pos%8)&1 == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	d.set.Add(cards.Default{Value: sb.String()})
	return nil
}
