package model

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Encryption identifies a signature scheme supported by the signer.
type Encryption uint8

const (
	Ed25519 Encryption = 0x00
	Sr25519 Encryption = 0x01
	Ecdsa   Encryption = 0x02
)

// UnsignedTag marks an update payload that carries no verifier.
const UnsignedTag byte = 0xff

// ParseEncryption maps a wire tag to an Encryption.
func ParseEncryption(tag byte) (Encryption, error) {
	switch Encryption(tag) {
	case Ed25519, Sr25519, Ecdsa:
		return Encryption(tag), nil
	default:
		return 0, fmt.Errorf("unknown encryption tag %02x", tag)
	}
}

func (e Encryption) String() string {
	switch e {
	case Ed25519:
		return "ed25519"
	case Sr25519:
		return "sr25519"
	case Ecdsa:
		return "ecdsa"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

// PublicKeyLen is the encoded public key size for the scheme.
func (e Encryption) PublicKeyLen() int {
	if e == Ecdsa {
		return 33
	}
	return 32
}

// SignatureLen is the encoded signature size for the scheme.
func (e Encryption) SignatureLen() int {
	if e == Ecdsa {
		return 65
	}
	return 64
}

func (e Encryption) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *Encryption) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "ed25519":
		*e = Ed25519
	case "sr25519":
		*e = Sr25519
	case "ecdsa":
		*e = Ecdsa
	default:
		return fmt.Errorf("unknown encryption %q", string(text))
	}
	return nil
}

// H256 is a 32-byte hash rendered as 0x-prefixed hex.
type H256 [32]byte

func (h H256) String() string { return "0x" + hex.EncodeToString(h[:]) }

func (h H256) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *H256) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(strings.TrimPrefix(string(text), "0x"))
	if err != nil {
		return fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(b) != 32 {
		return fmt.Errorf("hash must be 32 bytes, got %d", len(b))
	}
	copy(h[:], b)
	return nil
}

// MultiSigner is a public key tagged with its scheme.
type MultiSigner struct {
	Encryption Encryption `json:"encryption"`
	PublicKey  []byte     `json:"public_key"`
}

// Key is the byte form used as a store key: scheme tag followed by the key.
func (m MultiSigner) Key() []byte {
	out := make([]byte, 0, 1+len(m.PublicKey))
	out = append(out, byte(m.Encryption))
	return append(out, m.PublicKey...)
}

// Equal reports whether both signers have the same scheme and key.
func (m MultiSigner) Equal(o MultiSigner) bool {
	return m.Encryption == o.Encryption && string(m.PublicKey) == string(o.PublicKey)
}

func (m MultiSigner) String() string {
	return fmt.Sprintf("%s:0x%s", m.Encryption, hex.EncodeToString(m.PublicKey))
}

// Signature is scheme-tagged signature bytes paired with the signer and network.
type Signature struct {
	Encryption Encryption `json:"encryption"`
	Bytes      []byte     `json:"bytes"`
	Signer     []byte     `json:"signer"`
	Network    string     `json:"network"`
}

// Encoded returns the tag-prefixed signature (00 ed25519, 01 sr25519, 02 ecdsa).
func (s Signature) Encoded() []byte {
	out := make([]byte, 0, 1+len(s.Bytes))
	out = append(out, byte(s.Encryption))
	return append(out, s.Bytes...)
}

// Hex returns Encoded as lowercase hex.
func (s Signature) Hex() string { return hex.EncodeToString(s.Encoded()) }
