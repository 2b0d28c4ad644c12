package metadata

import (
	"fmt"

	"github.com/AlexZinkM/cold-signer/internal/scale"
)

// DefKind is the shape of a registry type.
type DefKind uint8

const (
	DefComposite DefKind = iota
	DefVariant
	DefSequence
	DefArray
	DefTuple
	DefPrimitive
	DefCompact
	DefBitSequence
)

// Primitive is a registry primitive type.
type Primitive uint8

const (
	PrimBool Primitive = iota
	PrimChar
	PrimStr
	PrimU8
	PrimU16
	PrimU32
	PrimU64
	PrimU128
	PrimU256
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimI128
	PrimI256
)

// Size is the encoded width of an integer primitive, 0 for the rest.
func (p Primitive) Size() int {
	switch p {
	case PrimU8, PrimI8:
		return 1
	case PrimU16, PrimI16:
		return 2
	case PrimU32, PrimI32:
		return 4
	case PrimU64, PrimI64:
		return 8
	case PrimU128, PrimI128:
		return 16
	case PrimU256, PrimI256:
		return 32
	}
	return 0
}

// Signed reports whether p is a signed integer.
func (p Primitive) Signed() bool { return p >= PrimI8 }

// TypeField is a named or positional field of a composite or variant.
type TypeField struct {
	Name     string
	Type     uint32
	TypeName string
	Docs     string
}

// TypeVariant is one variant of an enum type.
type TypeVariant struct {
	Name   string
	Fields []TypeField
	Index  uint8
	Docs   string
}

// TypeParam is a generic parameter of a registry type.
type TypeParam struct {
	Name string
	Type *uint32
}

// Type is one entry of the portable registry.
type Type struct {
	ID     uint32
	Path   []string
	Params []TypeParam
	Kind   DefKind
	Docs   string

	Fields    []TypeField   // composite
	Variants  []TypeVariant // variant
	Elem      uint32        // sequence, array, compact
	Len       uint32        // array
	Tuple     []uint32      // tuple
	Primitive Primitive     // primitive
	BitStore  uint32        // bit sequence
	BitOrder  uint32        // bit sequence
}

// PathEnd is the last path segment, or "" for unnamed types.
func (t *Type) PathEnd() string {
	if len(t.Path) == 0 {
		return ""
	}
	return t.Path[len(t.Path)-1]
}

// Variant finds a variant by its index byte.
func (t *Type) Variant(index uint8) (*TypeVariant, bool) {
	for i := range t.Variants {
		if t.Variants[i].Index == index {
			return &t.Variants[i], true
		}
	}
	return nil, false
}

// Constant is a pallet constant with its encoded value.
type Constant struct {
	Name  string
	Type  uint32
	Value []byte
	Docs  string
}

// Pallet is the part of v14 pallet metadata the decoder uses.
type Pallet struct {
	Name      string
	Index     uint8
	Calls     *uint32
	Constants []Constant
}

// SignedExtension describes one transaction extension.
type SignedExtension struct {
	Identifier       string
	Type             uint32
	AdditionalSigned uint32
}

// V14 is metadata built around the portable type registry.
type V14 struct {
	Types            map[uint32]*Type
	Pallets          []Pallet
	ExtrinsicType    uint32
	ExtrinsicVersion uint8
	Extensions       []SignedExtension
	RuntimeType      uint32
	// CallType is the outer RuntimeCall enum, when it could be located.
	CallType *uint32
}

// Type resolves a registry id.
func (m *V14) Type(id uint32) (*Type, error) {
	t, ok := m.Types[id]
	if !ok {
		return nil, fmt.Errorf("type %d is not in the registry", id)
	}
	return t, nil
}

// PalletByIndex finds a pallet by its call index byte.
func (m *V14) PalletByIndex(index uint8) (*Pallet, bool) {
	for i := range m.Pallets {
		if m.Pallets[i].Index == index {
			return &m.Pallets[i], true
		}
	}
	return nil, false
}

func (m *V14) constant(pallet, name string) []byte {
	for _, p := range m.Pallets {
		if p.Name != pallet {
			continue
		}
		for _, c := range p.Constants {
			if c.Name == name {
				return c.Value
			}
		}
	}
	return nil
}

func parseV14(r *scale.Reader) (*V14, error) {
	m := &V14{Types: make(map[uint32]*Type)}

	n, err := r.CompactLen(2)
	if err != nil {
		return nil, fmt.Errorf("registry length: %w", err)
	}
	for i := 0; i < n; i++ {
		t, err := parseType(r)
		if err != nil {
			return nil, fmt.Errorf("registry entry %d: %w", i, err)
		}
		m.Types[t.ID] = t
	}

	n, err = r.CompactLen(2)
	if err != nil {
		return nil, fmt.Errorf("pallets length: %w", err)
	}
	for i := 0; i < n; i++ {
		p, err := parsePallet(r)
		if err != nil {
			return nil, fmt.Errorf("pallet %d: %w", i, err)
		}
		m.Pallets = append(m.Pallets, p)
	}

	if m.ExtrinsicType, err = compactU32(r); err != nil {
		return nil, fmt.Errorf("extrinsic type: %w", err)
	}
	if m.ExtrinsicVersion, err = r.U8(); err != nil {
		return nil, fmt.Errorf("extrinsic version: %w", err)
	}
	n, err = r.CompactLen(3)
	if err != nil {
		return nil, fmt.Errorf("signed extensions length: %w", err)
	}
	for i := 0; i < n; i++ {
		var ext SignedExtension
		if ext.Identifier, err = r.Str(); err != nil {
			return nil, fmt.Errorf("signed extension %d: %w", i, err)
		}
		if ext.Type, err = compactU32(r); err != nil {
			return nil, fmt.Errorf("signed extension %s: %w", ext.Identifier, err)
		}
		if ext.AdditionalSigned, err = compactU32(r); err != nil {
			return nil, fmt.Errorf("signed extension %s: %w", ext.Identifier, err)
		}
		m.Extensions = append(m.Extensions, ext)
	}
	if m.RuntimeType, err = compactU32(r); err != nil {
		return nil, fmt.Errorf("runtime type: %w", err)
	}

	m.CallType = m.findCallType()
	return m, nil
}

// findCallType locates RuntimeCall through the "Call" parameter of the
// extrinsic type, falling back to a registry search by path.
func (m *V14) findCallType() *uint32 {
	if ext, ok := m.Types[m.ExtrinsicType]; ok {
		for _, p := range ext.Params {
			if p.Name == "Call" && p.Type != nil {
				id := *p.Type
				return &id
			}
		}
	}
	var found *uint32
	for id, t := range m.Types {
		if t.Kind != DefVariant {
			continue
		}
		if t.PathEnd() == "RuntimeCall" || (t.PathEnd() == "Call" && len(t.Path) == 2) {
			if found == nil || id < *found {
				id := id
				found = &id
			}
		}
	}
	return found
}

func compactU32(r *scale.Reader) (uint32, error) {
	v, err := r.CompactUint64()
	if err != nil {
		return 0, err
	}
	if v > 1<<32-1 {
		return 0, fmt.Errorf("compact %d does not fit u32", v)
	}
	return uint32(v), nil
}

func parseType(r *scale.Reader) (*Type, error) {
	t := &Type{}
	var err error
	if t.ID, err = compactU32(r); err != nil {
		return nil, err
	}
	if t.Path, err = r.StrVec(); err != nil {
		return nil, err
	}
	n, err := r.CompactLen(2)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		var p TypeParam
		if p.Name, err = r.Str(); err != nil {
			return nil, err
		}
		some, err := r.OptionTag()
		if err != nil {
			return nil, err
		}
		if some {
			id, err := compactU32(r)
			if err != nil {
				return nil, err
			}
			p.Type = &id
		}
		t.Params = append(t.Params, p)
	}

	kind, err := r.U8()
	if err != nil {
		return nil, err
	}
	t.Kind = DefKind(kind)
	switch t.Kind {
	case DefComposite:
		t.Fields, err = parseFields(r)
	case DefVariant:
		t.Variants, err = parseVariants(r)
	case DefSequence, DefCompact:
		t.Elem, err = compactU32(r)
	case DefArray:
		if t.Len, err = r.U32(); err == nil {
			t.Elem, err = compactU32(r)
		}
	case DefTuple:
		var m int
		if m, err = r.CompactLen(1); err == nil {
			for i := 0; i < m && err == nil; i++ {
				var id uint32
				id, err = compactU32(r)
				t.Tuple = append(t.Tuple, id)
			}
		}
	case DefPrimitive:
		var p uint8
		if p, err = r.U8(); err == nil {
			if p > uint8(PrimI256) {
				err = fmt.Errorf("unknown primitive %d", p)
			}
			t.Primitive = Primitive(p)
		}
	case DefBitSequence:
		if t.BitStore, err = compactU32(r); err == nil {
			t.BitOrder, err = compactU32(r)
		}
	default:
		return nil, fmt.Errorf("unknown type definition %d", kind)
	}
	if err != nil {
		return nil, err
	}
	if t.Docs, err = readDocs(r); err != nil {
		return nil, err
	}
	return t, nil
}

func parseFields(r *scale.Reader) ([]TypeField, error) {
	n, err := r.CompactLen(3)
	if err != nil {
		return nil, err
	}
	out := make([]TypeField, 0, n)
	for i := 0; i < n; i++ {
		var f TypeField
		name, err := r.OptionStr()
		if err != nil {
			return nil, err
		}
		if name != nil {
			f.Name = *name
		}
		if f.Type, err = compactU32(r); err != nil {
			return nil, err
		}
		typeName, err := r.OptionStr()
		if err != nil {
			return nil, err
		}
		if typeName != nil {
			f.TypeName = *typeName
		}
		if f.Docs, err = readDocs(r); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func parseVariants(r *scale.Reader) ([]TypeVariant, error) {
	n, err := r.CompactLen(3)
	if err != nil {
		return nil, err
	}
	out := make([]TypeVariant, 0, n)
	for i := 0; i < n; i++ {
		var v TypeVariant
		if v.Name, err = r.Str(); err != nil {
			return nil, err
		}
		if v.Fields, err = parseFields(r); err != nil {
			return nil, err
		}
		if v.Index, err = r.U8(); err != nil {
			return nil, err
		}
		if v.Docs, err = readDocs(r); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parsePallet(r *scale.Reader) (Pallet, error) {
	var p Pallet
	var err error
	if p.Name, err = r.Str(); err != nil {
		return p, err
	}

	// storage
	some, err := r.OptionTag()
	if err != nil {
		return p, err
	}
	if some {
		if err := skipV14Storage(r); err != nil {
			return p, fmt.Errorf("storage of %s: %w", p.Name, err)
		}
	}

	// calls
	if some, err = r.OptionTag(); err != nil {
		return p, err
	}
	if some {
		id, err := compactU32(r)
		if err != nil {
			return p, err
		}
		p.Calls = &id
	}

	// event
	if err := skipOptionalType(r); err != nil {
		return p, err
	}

	n, err := r.CompactLen(4)
	if err != nil {
		return p, err
	}
	for i := 0; i < n; i++ {
		var c Constant
		if c.Name, err = r.Str(); err != nil {
			return p, err
		}
		if c.Type, err = compactU32(r); err != nil {
			return p, err
		}
		if c.Value, err = r.ByteVec(); err != nil {
			return p, err
		}
		if c.Docs, err = readDocs(r); err != nil {
			return p, err
		}
		p.Constants = append(p.Constants, c)
	}

	// error
	if err := skipOptionalType(r); err != nil {
		return p, err
	}
	p.Index, err = r.U8()
	return p, err
}

func skipOptionalType(r *scale.Reader) error {
	some, err := r.OptionTag()
	if err != nil || !some {
		return err
	}
	_, err = compactU32(r)
	return err
}

func skipV14Storage(r *scale.Reader) error {
	if _, err := r.Str(); err != nil {
		return err
	}
	n, err := r.CompactLen(5)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if _, err := r.Str(); err != nil {
			return err
		}
		if _, err := r.U8(); err != nil {
			return err
		}
		kind, err := r.U8()
		if err != nil {
			return err
		}
		switch kind {
		case 0:
			if _, err := compactU32(r); err != nil {
				return err
			}
		case 1:
			hashers, err := r.CompactLen(1)
			if err != nil {
				return err
			}
			if _, err := r.Bytes(hashers); err != nil {
				return err
			}
			if _, err := compactU32(r); err != nil {
				return err
			}
			if _, err := compactU32(r); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown storage entry type %d", kind)
		}
		if _, err := r.ByteVec(); err != nil {
			return err
		}
		if _, err := r.StrVec(); err != nil {
			return err
		}
	}
	return nil
}
