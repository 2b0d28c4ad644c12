package scale

import (
	"encoding/binary"
	"math/big"
)

// Writer accumulates SCALE-encoded bytes.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the encoded output.
func (w *Writer) Bytes() []byte { return w.buf }

// Raw appends bytes verbatim.
func (w *Writer) Raw(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

func (w *Writer) U8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *Writer) U16(v uint16) *Writer {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	return w
}

func (w *Writer) U32(v uint32) *Writer {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

func (w *Writer) U64(v uint64) *Writer {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	return w
}

// Uint appends v as an unsigned little-endian integer of size bytes.
func (w *Writer) Uint(v *big.Int, size int) *Writer {
	be := v.Bytes()
	out := make([]byte, size)
	for i := 0; i < len(be) && i < size; i++ {
		out[i] = be[len(be)-1-i]
	}
	w.buf = append(w.buf, out...)
	return w
}

func (w *Writer) Bool(v bool) *Writer {
	if v {
		return w.U8(1)
	}
	return w.U8(0)
}

// Compact appends v in compact encoding.
func (w *Writer) Compact(v uint64) *Writer {
	switch {
	case v < 1<<6:
		w.buf = append(w.buf, byte(v<<2))
	case v < 1<<14:
		w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(v<<2|0b01))
	case v < 1<<30:
		w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v<<2|0b10))
	default:
		return w.CompactBig(new(big.Int).SetUint64(v))
	}
	return w
}

// CompactBig appends an arbitrary-size unsigned integer in compact encoding.
func (w *Writer) CompactBig(v *big.Int) *Writer {
	if v.IsUint64() && v.Uint64() < 1<<30 {
		return w.Compact(v.Uint64())
	}
	be := v.Bytes()
	n := len(be)
	if n < 4 {
		n = 4
	}
	w.buf = append(w.buf, byte((n-4)<<2|0b11))
	return w.Uint(v, n)
}

// ByteVec appends a compact-length-prefixed byte vector.
func (w *Writer) ByteVec(b []byte) *Writer {
	w.Compact(uint64(len(b)))
	return w.Raw(b)
}

// Str appends a compact-length-prefixed string.
func (w *Writer) Str(s string) *Writer {
	return w.ByteVec([]byte(s))
}

// OptionStr appends Option<String>.
func (w *Writer) OptionStr(s *string) *Writer {
	if s == nil {
		return w.U8(0)
	}
	w.U8(1)
	return w.Str(*s)
}

// StrVec appends Vec<String>.
func (w *Writer) StrVec(items []string) *Writer {
	w.Compact(uint64(len(items)))
	for _, s := range items {
		w.Str(s)
	}
	return w
}
