// Package payload parses the QR-transported payloads the signer accepts. A
// payload starts with the 0x53 marker and a kind byte; the rest depends on
// the kind.
package payload

import (
	"encoding/hex"
	"strings"

	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/scale"
)

// Marker is the first byte of every payload.
const Marker byte = 0x53

// Kind selects the payload layout.
type Kind byte

const (
	KindTransaction  Kind = 0x00
	KindMessage      Kind = 0x03
	KindBulk         Kind = 0x04
	KindLoadMetadata Kind = 0x80
	KindLoadTypes    Kind = 0x81
	KindAddSpecs     Kind = 0xc1
	KindDerivations  Kind = 0xde
)

func (k Kind) String() string {
	switch k {
	case KindTransaction:
		return "transaction"
	case KindMessage:
		return "message"
	case KindBulk:
		return "bulk"
	case KindLoadMetadata:
		return "load_metadata"
	case KindLoadTypes:
		return "load_types"
	case KindAddSpecs:
		return "add_specs"
	case KindDerivations:
		return "derivations"
	}
	return "unknown"
}

// Payload is one of Transaction, Message, Bulk, LoadMetadata, LoadTypes,
// AddSpecs or Derivations.
type Payload interface {
	Kind() Kind
	// Encode renders the payload in wire form.
	Encode() []byte
	isPayload()
}

// ParseHex parses a hex payload as read from a QR code.
func ParseHex(s string) (Payload, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, model.InputError("payload is not valid hex: %v", err)
	}
	return Parse(data)
}

// Parse dispatches on the prelude.
func Parse(data []byte) (Payload, error) {
	if len(data) < 3 {
		return nil, model.InputError("payload is too short")
	}
	if data[0] != Marker {
		return nil, model.InputError("payload does not start with %02x", Marker)
	}
	kind := Kind(data[1])
	var (
		p   Payload
		err error
	)
	switch kind {
	case KindTransaction:
		p, err = parseTransaction(data)
	case KindMessage:
		p, err = parseMessage(data)
	case KindBulk:
		p, err = parseBulk(data)
	case KindLoadMetadata:
		p, err = parseLoadMetadata(data)
	case KindLoadTypes:
		p, err = parseLoadTypes(data)
	case KindAddSpecs:
		p, err = parseAddSpecs(data)
	case KindDerivations:
		p, err = parseDerivations(data)
	default:
		return nil, model.InputError("unknown payload kind %02x", data[1])
	}
	if err != nil {
		return nil, model.NewError(model.KindInput, err, "failed to parse %s payload", kind)
	}
	return p, nil
}

func prelude(kind Kind, tag byte) *scale.Writer {
	return scale.NewWriter().U8(Marker).U8(byte(kind)).U8(tag)
}

// readSigner reads the scheme tag and public key following the prelude.
func readSigner(r *scale.Reader) (model.MultiSigner, error) {
	tag, err := r.U8()
	if err != nil {
		return model.MultiSigner{}, err
	}
	enc, err := model.ParseEncryption(tag)
	if err != nil {
		return model.MultiSigner{}, err
	}
	pub, err := r.Bytes(enc.PublicKeyLen())
	if err != nil {
		return model.MultiSigner{}, err
	}
	return model.MultiSigner{Encryption: enc, PublicKey: append([]byte{}, pub...)}, nil
}
