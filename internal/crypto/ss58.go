package crypto

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

var ss58Prefix = []byte("SS58PRE")

var ErrBadAddress = errors.New("invalid ss58 address")

// SS58Encode renders a public key as a base58 address for the network prefix.
func SS58Encode(pub []byte, prefix uint16) string {
	var ident []byte
	if prefix < 64 {
		ident = []byte{byte(prefix)}
	} else {
		ident = []byte{
			byte((prefix&0b1111_1100)>>2) | 0b0100_0000,
			byte(prefix>>8) | byte((prefix&0b11)<<6),
		}
	}
	body := append(append([]byte{}, ident...), pub...)
	sum := ss58Checksum(body)
	return base58.Encode(append(body, sum[:2]...))
}

// SS58Decode parses an address back into its key and prefix.
func SS58Decode(addr string) ([]byte, uint16, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrBadAddress, err)
	}
	if len(raw) < 3 {
		return nil, 0, ErrBadAddress
	}
	var prefix uint16
	identLen := 1
	switch {
	case raw[0] < 64:
		prefix = uint16(raw[0])
	case raw[0] < 128:
		identLen = 2
		lower := (raw[0] << 2) | (raw[1] >> 6)
		upper := raw[1] & 0b0011_1111
		prefix = uint16(lower) | uint16(upper)<<8
	default:
		return nil, 0, ErrBadAddress
	}
	if len(raw) < identLen+2 {
		return nil, 0, ErrBadAddress
	}
	body := raw[:len(raw)-2]
	sum := ss58Checksum(body)
	if !bytes.Equal(sum[:2], raw[len(raw)-2:]) {
		return nil, 0, fmt.Errorf("%w: checksum mismatch", ErrBadAddress)
	}
	return body[identLen:], prefix, nil
}

func ss58Checksum(body []byte) [64]byte {
	return Blake2b512(append(append([]byte{}, ss58Prefix...), body...))
}
