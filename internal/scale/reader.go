// Package scale implements the subset of the SCALE codec the signer needs:
// fixed-width little-endian integers, compact integers, booleans, options,
// length-prefixed byte vectors and strings.
//
// Reader never panics on malformed input; every method reports truncation
// or invalid encodings as an error.
package scale

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"
)

var (
	ErrDataTooShort   = errors.New("data too short for expected content")
	ErrBadCompact     = errors.New("invalid compact encoding")
	ErrBadBool        = errors.New("invalid boolean encoding")
	ErrBadOption      = errors.New("invalid option encoding")
	ErrBadUTF8        = errors.New("string is not valid utf-8")
	ErrLengthTooLarge = errors.New("declared length exceeds remaining data")
)

// TrailingDataError reports bytes left over after a value was decoded.
type TrailingDataError struct {
	Remaining int
}

func (e *TrailingDataError) Error() string {
	return fmt.Sprintf("%d byte(s) of data left unused after decoding", e.Remaining)
}

// MaxZeroSizedElems caps collections whose elements may encode to zero bytes.
const MaxZeroSizedElems = 1 << 16

// Reader is a cursor over SCALE-encoded bytes.
type Reader struct {
	data []byte
	pos  int
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos returns the number of bytes consumed so far.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// Rest returns the unread bytes without consuming them.
func (r *Reader) Rest() []byte { return r.data[r.pos:] }

// Done returns an error when unread bytes remain.
func (r *Reader) Done() error {
	if n := r.Remaining(); n > 0 {
		return &TrailingDataError{Remaining: n}
	}
	return nil
}

// Bytes consumes exactly n bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, ErrDataTooShort
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// Array32 consumes a fixed 32-byte array.
func (r *Reader) Array32() ([32]byte, error) {
	var out [32]byte
	b, err := r.Bytes(32)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) U64() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Uint reads an unsigned little-endian integer of size bytes (up to 32).
func (r *Reader) Uint(size int) (*big.Int, error) {
	b, err := r.Bytes(size)
	if err != nil {
		return nil, err
	}
	return leToBig(b), nil
}

// Int reads a two's complement little-endian integer of size bytes.
func (r *Reader) Int(size int) (*big.Int, error) {
	b, err := r.Bytes(size)
	if err != nil {
		return nil, err
	}
	v := leToBig(b)
	if size > 0 && b[size-1]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(size*8)))
	}
	return v, nil
}

// Bool reads a single-byte boolean.
func (r *Reader) Bool() (bool, error) {
	b, err := r.U8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrBadBool
	}
}

// OptionTag reads the Option discriminant: false for None, true for Some.
func (r *Reader) OptionTag() (bool, error) {
	b, err := r.U8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrBadOption
	}
}

// Compact reads a compact-encoded unsigned integer.
func (r *Reader) Compact() (*big.Int, error) {
	first, err := r.U8()
	if err != nil {
		return nil, err
	}
	switch first & 0b11 {
	case 0b00:
		return big.NewInt(int64(first >> 2)), nil
	case 0b01:
		second, err := r.U8()
		if err != nil {
			return nil, err
		}
		v := (uint64(first) | uint64(second)<<8) >> 2
		return new(big.Int).SetUint64(v), nil
	case 0b10:
		rest, err := r.Bytes(3)
		if err != nil {
			return nil, err
		}
		v := (uint64(first) | uint64(rest[0])<<8 | uint64(rest[1])<<16 | uint64(rest[2])<<24) >> 2
		return new(big.Int).SetUint64(v), nil
	default:
		n := int(first>>2) + 4
		if n > 67 {
			return nil, ErrBadCompact
		}
		b, err := r.Bytes(n)
		if err != nil {
			return nil, err
		}
		return leToBig(b), nil
	}
}

// CompactUint64 reads a compact integer that must fit in 64 bits.
func (r *Reader) CompactUint64() (uint64, error) {
	v, err := r.Compact()
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, ErrBadCompact
	}
	return v.Uint64(), nil
}

// CompactLen reads a compact length prefix. Each element takes at least
// minElem bytes, so lengths that cannot fit in the remaining data are
// rejected before any allocation happens.
func (r *Reader) CompactLen(minElem int) (int, error) {
	v, err := r.CompactUint64()
	if err != nil {
		return 0, err
	}
	limit := uint64(MaxZeroSizedElems)
	if minElem > 0 {
		limit = uint64(r.Remaining() / minElem)
	}
	if v > limit {
		return 0, ErrLengthTooLarge
	}
	return int(v), nil
}

// ByteVec reads a compact-length-prefixed byte vector.
func (r *Reader) ByteVec() ([]byte, error) {
	n, err := r.CompactLen(1)
	if err != nil {
		return nil, err
	}
	return r.Bytes(n)
}

// Str reads a compact-length-prefixed UTF-8 string.
func (r *Reader) Str() (string, error) {
	b, err := r.ByteVec()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrBadUTF8
	}
	return string(b), nil
}

// OptionStr reads Option<String>.
func (r *Reader) OptionStr() (*string, error) {
	some, err := r.OptionTag()
	if err != nil || !some {
		return nil, err
	}
	s, err := r.Str()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// StrVec reads Vec<String>.
func (r *Reader) StrVec() ([]string, error) {
	n, err := r.CompactLen(1)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, err := r.Str()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func leToBig(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	return new(big.Int).SetBytes(be)
}
