// Package metadata parses Substrate runtime metadata (v12, v13 and v14) into
// the structures the decoder walks, and reads the runtime version from it.
package metadata

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/AlexZinkM/cold-signer/internal/scale"
)

var magic = []byte("meta")

var (
	ErrNoMagic            = errors.New("metadata does not start with the meta prefix")
	ErrUnsupportedVersion = errors.New("unsupported metadata version")
	ErrNoRuntimeVersion   = errors.New("metadata has no System Version constant")
)

// RuntimeVersion is the decoded System::Version constant.
type RuntimeVersion struct {
	SpecName           string
	ImplName           string
	AuthoringVersion   uint32
	SpecVersion        uint32
	ImplVersion        uint32
	TransactionVersion uint32
}

// Metadata is one parsed runtime metadata blob. Exactly one of V14 and
// Legacy is set, according to Version.
type Metadata struct {
	Version uint8
	Runtime RuntimeVersion
	V14     *V14
	Legacy  *Legacy
}

// Parse checks the prefix, dispatches on the metadata version and extracts
// the runtime version.
func Parse(raw []byte) (*Metadata, error) {
	if !bytes.HasPrefix(raw, magic) {
		return nil, ErrNoMagic
	}
	r := scale.NewReader(raw[len(magic):])
	v, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata version: %w", err)
	}

	m := &Metadata{Version: v}
	var versionConst []byte
	switch v {
	case 12, 13:
		m.Legacy, err = parseLegacy(r, v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse v%d metadata: %w", v, err)
		}
		versionConst = m.Legacy.constant("System", "Version")
	case 14:
		m.V14, err = parseV14(r)
		if err != nil {
			return nil, fmt.Errorf("failed to parse v14 metadata: %w", err)
		}
		versionConst = m.V14.constant("System", "Version")
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("failed to parse v%d metadata: %w", v, err)
	}
	if versionConst == nil {
		return nil, ErrNoRuntimeVersion
	}
	m.Runtime, err = ParseRuntimeVersion(versionConst)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ParseRuntimeVersion decodes the leading fields of an encoded RuntimeVersion.
// The apis list is skipped; trailing fields added by newer runtimes are
// tolerated.
func ParseRuntimeVersion(b []byte) (RuntimeVersion, error) {
	r := scale.NewReader(b)
	var rv RuntimeVersion
	var err error
	fail := func(err error) (RuntimeVersion, error) {
		return RuntimeVersion{}, fmt.Errorf("failed to decode runtime version: %w", err)
	}
	if rv.SpecName, err = r.Str(); err != nil {
		return fail(err)
	}
	if rv.ImplName, err = r.Str(); err != nil {
		return fail(err)
	}
	if rv.AuthoringVersion, err = r.U32(); err != nil {
		return fail(err)
	}
	if rv.SpecVersion, err = r.U32(); err != nil {
		return fail(err)
	}
	if rv.ImplVersion, err = r.U32(); err != nil {
		return fail(err)
	}
	n, err := r.CompactLen(12)
	if err != nil {
		return fail(err)
	}
	if _, err = r.Bytes(n * 12); err != nil {
		return fail(err)
	}
	if r.Remaining() >= 4 {
		if rv.TransactionVersion, err = r.U32(); err != nil {
			return fail(err)
		}
	}
	return rv, nil
}

// readDocs reads a Vec<String> and joins it.
func readDocs(r *scale.Reader) (string, error) {
	lines, err := r.StrVec()
	if err != nil {
		return "", err
	}
	var b bytes.Buffer
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l)
	}
	return b.String(), nil
}
