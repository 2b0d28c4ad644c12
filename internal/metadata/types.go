package metadata

import (
	"fmt"

	"github.com/AlexZinkM/cold-signer/internal/scale"
)

// DescriptionKind is the shape of a legacy type entry.
type DescriptionKind uint8

const (
	DescType DescriptionKind = iota
	DescEnum
	DescStruct
)

// LegacyField is a struct field; Name is empty for tuple-like structs.
type LegacyField struct {
	Name string
	Type string
}

// LegacyVariant is an enum variant. Type is set for single-value variants,
// Fields for struct variants; neither for unit variants.
type LegacyVariant struct {
	Name   string
	Type   string
	Fields []LegacyField
}

// TypeEntry is one named entry of the types registry used with v12/v13
// metadata.
type TypeEntry struct {
	Name     string
	Kind     DescriptionKind
	Alias    string
	Variants []LegacyVariant
	Fields   []LegacyField
}

// Registry indexes type entries by name.
type Registry map[string]TypeEntry

// ParseTypes decodes load_types content.
func ParseTypes(content []byte) ([]TypeEntry, error) {
	r := scale.NewReader(content)
	n, err := r.CompactLen(2)
	if err != nil {
		return nil, fmt.Errorf("failed to read types count: %w", err)
	}
	out := make([]TypeEntry, 0, n)
	for i := 0; i < n; i++ {
		e, err := parseTypeEntry(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read type entry %d: %w", i, err)
		}
		out = append(out, e)
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return out, nil
}

// NewRegistry indexes entries by name. Later entries win.
func NewRegistry(entries []TypeEntry) Registry {
	reg := make(Registry, len(entries))
	for _, e := range entries {
		reg[e.Name] = e
	}
	return reg
}

// EncodeTypes is the inverse of ParseTypes.
func EncodeTypes(entries []TypeEntry) []byte {
	w := scale.NewWriter().Compact(uint64(len(entries)))
	for _, e := range entries {
		w.Str(e.Name).U8(uint8(e.Kind))
		switch e.Kind {
		case DescType:
			w.Str(e.Alias)
		case DescEnum:
			w.Compact(uint64(len(e.Variants)))
			for _, v := range e.Variants {
				w.Str(v.Name)
				switch {
				case len(v.Fields) > 0:
					w.U8(2)
					encodeLegacyFields(w, v.Fields)
				case v.Type != "":
					w.U8(1).Str(v.Type)
				default:
					w.U8(0)
				}
			}
		case DescStruct:
			encodeLegacyFields(w, e.Fields)
		}
	}
	return w.Bytes()
}

func encodeLegacyFields(w *scale.Writer, fields []LegacyField) {
	w.Compact(uint64(len(fields)))
	for _, f := range fields {
		if f.Name == "" {
			w.OptionStr(nil)
		} else {
			name := f.Name
			w.OptionStr(&name)
		}
		w.Str(f.Type)
	}
}

func parseTypeEntry(r *scale.Reader) (TypeEntry, error) {
	var e TypeEntry
	var err error
	if e.Name, err = r.Str(); err != nil {
		return e, err
	}
	kind, err := r.U8()
	if err != nil {
		return e, err
	}
	e.Kind = DescriptionKind(kind)
	switch e.Kind {
	case DescType:
		e.Alias, err = r.Str()
	case DescEnum:
		var n int
		if n, err = r.CompactLen(2); err != nil {
			return e, err
		}
		for i := 0; i < n; i++ {
			v, err := parseLegacyVariant(r)
			if err != nil {
				return e, err
			}
			e.Variants = append(e.Variants, v)
		}
	case DescStruct:
		e.Fields, err = parseLegacyFields(r)
	default:
		err = fmt.Errorf("unknown description kind %d for %s", kind, e.Name)
	}
	return e, err
}

func parseLegacyVariant(r *scale.Reader) (LegacyVariant, error) {
	var v LegacyVariant
	var err error
	if v.Name, err = r.Str(); err != nil {
		return v, err
	}
	kind, err := r.U8()
	if err != nil {
		return v, err
	}
	switch kind {
	case 0:
	case 1:
		v.Type, err = r.Str()
	case 2:
		v.Fields, err = parseLegacyFields(r)
	default:
		err = fmt.Errorf("unknown variant kind %d for %s", kind, v.Name)
	}
	return v, err
}

func parseLegacyFields(r *scale.Reader) ([]LegacyField, error) {
	n, err := r.CompactLen(2)
	if err != nil {
		return nil, err
	}
	out := make([]LegacyField, 0, n)
	for i := 0; i < n; i++ {
		var f LegacyField
		name, err := r.OptionStr()
		if err != nil {
			return nil, err
		}
		if name != nil {
			f.Name = *name
		}
		if f.Type, err = r.Str(); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
