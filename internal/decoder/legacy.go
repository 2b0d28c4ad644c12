package decoder

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AlexZinkM/cold-signer/internal/cards"
	"github.com/AlexZinkM/cold-signer/internal/metadata"
)

var (
	reLookup    = regexp.MustCompile(`<T::Lookup as StaticLookup>::Source`)
	reQualified = regexp.MustCompile(`<[A-Za-z0-9_:]+ as [A-Za-z0-9_:<>]+>::`)
	reGeneric   = regexp.MustCompile(`^([A-Za-z0-9_]+)<T(,I)?>$`)
	reArray     = regexp.MustCompile(`^\[(.+);(\d+)\]$`)
)

// cleanType normalizes a v12/v13 type name: whitespace, trait-qualified
// paths and runtime generics are removed.
func cleanType(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = reLookup.ReplaceAllString(s, "LookupSource")
	s = reQualified.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "T::", "")
	if m := reGeneric.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return s
}

func unwrap(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix+"<") && strings.HasSuffix(s, ">") {
		return s[len(prefix)+1 : len(s)-1], true
	}
	return "", false
}

// splitTopLevel splits a comma separated list, ignoring commas nested
// inside brackets.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, c := range s {
		switch c {
		case '<', '(', '[':
			depth++
		case '>', ')', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func (d *decoder) callLegacy() error {
	if err := d.enter(); err != nil {
		return err
	}
	defer d.leave()

	m := d.ctx.Meta.Legacy
	idx, err := d.r.U8()
	if err != nil {
		return fmt.Errorf("failed to read pallet index: %w", err)
	}
	mod, ok := m.ModuleByIndex(idx)
	if !ok {
		return fmt.Errorf("%w: index %d", ErrUnknownPallet, idx)
	}
	d.set.Add(cards.Pallet{Name: mod.Name})

	return d.nest(func() error {
		callIdx, err := d.r.U8()
		if err != nil {
			return fmt.Errorf("failed to read call index: %w", err)
		}
		if int(callIdx) >= len(mod.Calls) {
			return fmt.Errorf("%w: %s call %d", ErrUnknownCall, mod.Name, callIdx)
		}
		call := mod.Calls[callIdx]
		d.set.Add(cards.Call{Name: call.Name, Docs: call.Docs})
		return d.nest(func() error {
			for _, a := range call.Args {
				d.set.Add(cards.Field{Name: a.Name})
				if err := d.nest(func() error { return d.typeLegacy(a.Type) }); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func (d *decoder) typeLegacy(raw string) error {
	if err := d.enter(); err != nil {
		return err
	}
	defer d.leave()

	t := cleanType(raw)

	if inner, ok := unwrap(t, "Box"); ok {
		return d.typeLegacy(inner)
	}
	if inner, ok := unwrap(t, "Compact"); ok {
		v, err := d.r.Compact()
		if err != nil {
			return err
		}
		d.addNumber(v, d.resolveAliasName(inner))
		return nil
	}
	if inner, ok := unwrap(t, "Vec"); ok {
		return d.vecLegacy(cleanType(inner))
	}
	if inner, ok := unwrap(t, "Option"); ok {
		some, err := d.r.OptionTag()
		if err != nil {
			return err
		}
		if !some {
			d.set.Add(cards.None{})
			return nil
		}
		return d.typeLegacy(inner)
	}
	if strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")") {
		for _, elem := range splitTopLevel(t[1 : len(t)-1]) {
			if err := d.typeLegacy(elem); err != nil {
				return err
			}
		}
		return nil
	}
	if m := reArray.FindStringSubmatch(t); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return fmt.Errorf("invalid array length in %s: %w", t, err)
		}
		elem := cleanType(m[1])
		if elem == "u8" {
			b, err := d.r.Bytes(n)
			if err != nil {
				return err
			}
			d.set.Add(cards.Default{Value: "0x" + hex.EncodeToString(b)})
			return nil
		}
		for i := 0; i < n; i++ {
			if err := d.typeLegacy(elem); err != nil {
				return err
			}
		}
		return nil
	}

	switch t {
	case "Call", "CallOf", "RuntimeCall":
		return d.callLegacy()
	case "bool":
		return d.primitive(metadata.PrimBool, t)
	case "u8", "u16", "u32", "u64", "u128", "u256", "i8", "i16", "i32", "i64", "i128", "i256":
		return d.primitive(primitiveByName[t], t)
	case "Bytes":
		return d.vecLegacy("u8")
	case "Text", "String", "str":
		return d.primitive(metadata.PrimStr, t)
	case "AccountId", "AccountId32":
		pub, err := d.r.Bytes(32)
		if err != nil {
			return err
		}
		d.set.Add(d.accountID(pub))
		return nil
	case "H160":
		return d.fixedHex(20)
	case "H256", "Hash":
		if _, ok := d.ctx.Types[t]; !ok {
			return d.fixedHex(32)
		}
	case "H512":
		return d.fixedHex(64)
	case "Era":
		era, err := Era(d.r)
		if err != nil {
			return err
		}
		d.set.Add(era)
		return nil
	}

	entry, ok := d.ctx.Types[t]
	if !ok {
		if isBalanceName(t) {
			v, err := d.r.Uint(16)
			if err != nil {
				return err
			}
			d.set.Add(d.balance(v))
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnknownType, raw)
	}
	return d.entryLegacy(t, entry)
}

func (d *decoder) entryLegacy(name string, entry metadata.TypeEntry) error {
	switch entry.Kind {
	case metadata.DescType:
		alias := cleanType(entry.Alias)
		if isBalanceName(name) && isUnsigned(alias) {
			v, err := d.r.Uint(primitiveByName[alias].Size())
			if err != nil {
				return err
			}
			d.set.Add(d.balance(v))
			return nil
		}
		return d.typeLegacy(alias)

	case metadata.DescEnum:
		idx, err := d.r.U8()
		if err != nil {
			return err
		}
		if int(idx) >= len(entry.Variants) {
			return fmt.Errorf("%w: variant %d of %s", ErrUnknownType, idx, name)
		}
		v := entry.Variants[idx]
		d.set.Add(cards.EnumVariant{Name: v.Name})
		return d.nest(func() error {
			if v.Type != "" {
				return d.typeLegacy(v.Type)
			}
			return d.fieldsLegacy(v.Fields)
		})

	case metadata.DescStruct:
		return d.fieldsLegacy(entry.Fields)
	}
	return fmt.Errorf("%w: %s", ErrUnknownType, name)
}

func (d *decoder) fieldsLegacy(fields []metadata.LegacyField) error {
	for i, f := range fields {
		labelled := true
		switch {
		case f.Name != "":
			d.set.Add(cards.Field{Name: f.Name})
		case len(fields) > 1:
			d.set.Add(cards.FieldNumber{Index: i})
		default:
			labelled = false
		}
		decode := func() error { return d.typeLegacy(f.Type) }
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

func (d *decoder) vecLegacy(elem string) error {
	if elem == "u8" {
		b, err := d.r.ByteVec()
		if err != nil {
			return err
		}
		d.set.Add(BytesCard(b))
		return nil
	}
	n, err := d.r.CompactLen(1)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := d.typeLegacy(elem); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) fixedHex(n int) error {
	b, err := d.r.Bytes(n)
	if err != nil {
		return err
	}
	d.set.Add(cards.Default{Value: "0x" + hex.EncodeToString(b)})
	return nil
}

// resolveAliasName follows type aliases so Compact<Balance> style wrappers
// keep the balance name that identifies them.
func (d *decoder) resolveAliasName(name string) string {
	name = cleanType(name)
	if isBalanceName(name) {
		return name
	}
	for i := 0; i < maxDepth; i++ {
		e, ok := d.ctx.Types[name]
		if !ok || e.Kind != metadata.DescType {
			return name
		}
		next := cleanType(e.Alias)
		if isBalanceName(next) {
			return next
		}
		name = next
	}
	return name
}

var primitiveByName = map[string]metadata.Primitive{
	"u8": metadata.PrimU8, "u16": metadata.PrimU16, "u32": metadata.PrimU32,
	"u64": metadata.PrimU64, "u128": metadata.PrimU128, "u256": metadata.PrimU256,
	"i8": metadata.PrimI8, "i16": metadata.PrimI16, "i32": metadata.PrimI32,
	"i64": metadata.PrimI64, "i128": metadata.PrimI128, "i256": metadata.PrimI256,
}

func isUnsigned(name string) bool {
	p, ok := primitiveByName[name]
	return ok && !p.Signed()
}
