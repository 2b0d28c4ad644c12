package metadata

import (
	"fmt"

	"github.com/AlexZinkM/cold-signer/internal/scale"
)

// Arg is a call argument described by a type name.
type Arg struct {
	Name string
	Type string
}

// Function is a v12/v13 call.
type Function struct {
	Name string
	Args []Arg
	Docs string
}

// Module is a v12/v13 pallet.
type Module struct {
	Name      string
	Index     uint8
	Calls     []Function
	HasCalls  bool
	Constants []Constant
}

// Legacy is v12 or v13 metadata, where types are plain strings resolved
// against a separately loaded types registry.
type Legacy struct {
	Modules          []Module
	ExtrinsicVersion uint8
	Extensions       []string
}

// ModuleByIndex finds a module by its call index byte.
func (m *Legacy) ModuleByIndex(index uint8) (*Module, bool) {
	for i := range m.Modules {
		if m.Modules[i].HasCalls && m.Modules[i].Index == index {
			return &m.Modules[i], true
		}
	}
	return nil, false
}

func (m *Legacy) constant(module, name string) []byte {
	for _, mod := range m.Modules {
		if mod.Name != module {
			continue
		}
		for _, c := range mod.Constants {
			if c.Name == name {
				return c.Value
			}
		}
	}
	return nil
}

func parseLegacy(r *scale.Reader, version uint8) (*Legacy, error) {
	m := &Legacy{}
	n, err := r.CompactLen(7)
	if err != nil {
		return nil, fmt.Errorf("modules length: %w", err)
	}
	for i := 0; i < n; i++ {
		mod, err := parseModule(r, version)
		if err != nil {
			return nil, fmt.Errorf("module %d: %w", i, err)
		}
		m.Modules = append(m.Modules, mod)
	}
	if m.ExtrinsicVersion, err = r.U8(); err != nil {
		return nil, fmt.Errorf("extrinsic version: %w", err)
	}
	if m.Extensions, err = r.StrVec(); err != nil {
		return nil, fmt.Errorf("signed extensions: %w", err)
	}
	return m, nil
}

func parseModule(r *scale.Reader, version uint8) (Module, error) {
	var mod Module
	var err error
	if mod.Name, err = r.Str(); err != nil {
		return mod, err
	}

	some, err := r.OptionTag()
	if err != nil {
		return mod, err
	}
	if some {
		if err := skipLegacyStorage(r, version); err != nil {
			return mod, fmt.Errorf("storage of %s: %w", mod.Name, err)
		}
	}

	if mod.HasCalls, err = r.OptionTag(); err != nil {
		return mod, err
	}
	if mod.HasCalls {
		n, err := r.CompactLen(3)
		if err != nil {
			return mod, err
		}
		for i := 0; i < n; i++ {
			f, err := parseFunction(r)
			if err != nil {
				return mod, fmt.Errorf("call %d of %s: %w", i, mod.Name, err)
			}
			mod.Calls = append(mod.Calls, f)
		}
	}

	if some, err = r.OptionTag(); err != nil {
		return mod, err
	}
	if some {
		n, err := r.CompactLen(3)
		if err != nil {
			return mod, err
		}
		for i := 0; i < n; i++ {
			if _, err := r.Str(); err != nil {
				return mod, err
			}
			if _, err := r.StrVec(); err != nil {
				return mod, err
			}
			if _, err := r.StrVec(); err != nil {
				return mod, err
			}
		}
	}

	n, err := r.CompactLen(4)
	if err != nil {
		return mod, err
	}
	for i := 0; i < n; i++ {
		var c Constant
		if c.Name, err = r.Str(); err != nil {
			return mod, err
		}
		if _, err = r.Str(); err != nil {
			return mod, err
		}
		if c.Value, err = r.ByteVec(); err != nil {
			return mod, err
		}
		if c.Docs, err = readDocs(r); err != nil {
			return mod, err
		}
		mod.Constants = append(mod.Constants, c)
	}

	n, err = r.CompactLen(2)
	if err != nil {
		return mod, err
	}
	for i := 0; i < n; i++ {
		if _, err := r.Str(); err != nil {
			return mod, err
		}
		if _, err := r.StrVec(); err != nil {
			return mod, err
		}
	}

	mod.Index, err = r.U8()
	return mod, err
}

func parseFunction(r *scale.Reader) (Function, error) {
	var f Function
	var err error
	if f.Name, err = r.Str(); err != nil {
		return f, err
	}
	n, err := r.CompactLen(2)
	if err != nil {
		return f, err
	}
	for i := 0; i < n; i++ {
		var a Arg
		if a.Name, err = r.Str(); err != nil {
			return f, err
		}
		if a.Type, err = r.Str(); err != nil {
			return f, err
		}
		f.Args = append(f.Args, a)
	}
	f.Docs, err = readDocs(r)
	return f, err
}

func skipLegacyStorage(r *scale.Reader, version uint8) error {
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
		switch {
		case kind == 0:
			_, err = r.Str()
		case kind == 1:
			err = skipSeq(r, skipU8, skipStr, skipStr, skipBool)
		case kind == 2:
			err = skipSeq(r, skipU8, skipStr, skipStr, skipStr, skipU8)
		case kind == 3 && version >= 13:
			err = skipSeq(r, skipStrVec, skipBytes, skipStr)
		default:
			err = fmt.Errorf("unknown storage entry type %d", kind)
		}
		if err != nil {
			return err
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

type skipFn func(*scale.Reader) error

func skipSeq(r *scale.Reader, fns ...skipFn) error {
	for _, fn := range fns {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func skipU8(r *scale.Reader) error     { _, err := r.U8(); return err }
func skipStr(r *scale.Reader) error    { _, err := r.Str(); return err }
func skipBool(r *scale.Reader) error   { _, err := r.Bool(); return err }
func skipStrVec(r *scale.Reader) error { _, err := r.StrVec(); return err }
func skipBytes(r *scale.Reader) error  { _, err := r.ByteVec(); return err }
