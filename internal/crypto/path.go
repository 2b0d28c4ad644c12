package crypto

import (
	"errors"
	"strconv"
	"strings"

	"github.com/AlexZinkM/cold-signer/internal/scale"
)

var (
	ErrInvalidDerivation = errors.New("invalid derivation path")
	ErrEmptyPassword     = errors.New("derivation path has a password marker with no password")
)

// Junction is one segment of a derivation path.
type Junction struct {
	Hard  bool
	Value string
}

// ChainCode is the 32-byte code fed to key derivation for this junction.
// Numeric segments encode as u64, everything else as a SCALE string; the
// result is zero-padded to 32 bytes or hashed when longer.
func (j Junction) ChainCode() [32]byte {
	var enc []byte
	if n, err := strconv.ParseUint(j.Value, 10, 64); err == nil {
		enc = scale.NewWriter().U64(n).Bytes()
	} else {
		enc = scale.NewWriter().Str(j.Value).Bytes()
	}
	if len(enc) > 32 {
		return Blake2b256(enc)
	}
	var cc [32]byte
	copy(cc[:], enc)
	return cc
}

// Derivation is a parsed derivation path.
type Derivation struct {
	Junctions []Junction
	// Password is nil when the path carries no "///" section.
	Password *string
}

// Path renders the junctions without the password section.
func (d Derivation) Path() string {
	var sb strings.Builder
	for _, j := range d.Junctions {
		if j.Hard {
			sb.WriteString("//")
		} else {
			sb.WriteString("/")
		}
		sb.WriteString(j.Value)
	}
	return sb.String()
}

// HasSoft reports whether any junction is soft.
func (d Derivation) HasSoft() bool {
	for _, j := range d.Junctions {
		if !j.Hard {
			return true
		}
	}
	return false
}

// ParseDerivation parses a derivation string. "/" opens a soft segment,
// "//" a hard one, and the first "///" starts a password that runs verbatim
// to the end of the string. The empty string is the root key.
func ParseDerivation(s string) (Derivation, error) {
	var d Derivation
	path := s
	if i := strings.Index(s, "///"); i >= 0 {
		pwd := s[i+3:]
		if pwd == "" {
			return Derivation{}, ErrEmptyPassword
		}
		d.Password = &pwd
		path = s[:i]
	}

	for len(path) > 0 {
		if path[0] != '/' {
			return Derivation{}, ErrInvalidDerivation
		}
		hard := len(path) > 1 && path[1] == '/'
		if hard {
			path = path[2:]
		} else {
			path = path[1:]
		}
		end := strings.IndexByte(path, '/')
		if end < 0 {
			end = len(path)
		}
		if end == 0 {
			return Derivation{}, ErrInvalidDerivation
		}
		d.Junctions = append(d.Junctions, Junction{Hard: hard, Value: path[:end]})
		path = path[end:]
	}
	return d, nil
}

// IsPassworded reports whether a derivation string carries a password.
func IsPassworded(s string) (bool, error) {
	d, err := ParseDerivation(s)
	if err != nil {
		return false, err
	}
	return d.Password != nil, nil
}

// CutPassword splits a derivation string into its public path and whether
// it has a password. The password itself is dropped.
func CutPassword(s string) (string, bool, error) {
	d, err := ParseDerivation(s)
	if err != nil {
		return "", false, err
	}
	return d.Path(), d.Password != nil, nil
}
