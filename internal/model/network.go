package model

import (
	"encoding/hex"
	"fmt"
)

// NetworkSpecs describes a network as the signer displays and derives for it.
type NetworkSpecs struct {
	Base58Prefix   uint16     `json:"base58prefix" toml:"base58prefix"`
	Color          string     `json:"color" toml:"color"`
	Decimals       uint8      `json:"decimals" toml:"decimals"`
	Encryption     Encryption `json:"encryption" toml:"encryption"`
	GenesisHash    H256       `json:"genesis_hash" toml:"genesis_hash"`
	Logo           string     `json:"logo" toml:"logo"`
	Name           string     `json:"name" toml:"name"`
	PathID         string     `json:"path_id" toml:"path_id"`
	SecondaryColor string     `json:"secondary_color" toml:"secondary_color"`
	Title          string     `json:"title" toml:"title"`
	Unit           string     `json:"unit" toml:"unit"`
}

// Key returns the (genesis hash, encryption) identity of the specs.
func (s NetworkSpecs) Key() NetworkSpecsKey {
	return NetworkSpecsKey{GenesisHash: s.GenesisHash, Encryption: s.Encryption}
}

// ImportantChanged reports whether o differs from s in fields that may not
// change for an already known network.
func (s NetworkSpecs) ImportantChanged(o NetworkSpecs) []string {
	var changed []string
	if s.Base58Prefix != o.Base58Prefix {
		changed = append(changed, "base58prefix")
	}
	if s.Decimals != o.Decimals {
		changed = append(changed, "decimals")
	}
	if s.Name != o.Name {
		changed = append(changed, "name")
	}
	if s.Unit != o.Unit {
		changed = append(changed, "unit")
	}
	return changed
}

// NetworkSpecsKey identifies a network+scheme combination.
type NetworkSpecsKey struct {
	GenesisHash H256       `json:"genesis_hash"`
	Encryption  Encryption `json:"encryption"`
}

// Bytes is the store key form: scheme tag then genesis hash.
func (k NetworkSpecsKey) Bytes() []byte {
	out := make([]byte, 0, 33)
	out = append(out, byte(k.Encryption))
	return append(out, k.GenesisHash[:]...)
}

func (k NetworkSpecsKey) String() string {
	return hex.EncodeToString(k.Bytes())
}

// NetworkSpecsKeyFromBytes parses the store key form.
func NetworkSpecsKeyFromBytes(b []byte) (NetworkSpecsKey, error) {
	if len(b) != 33 {
		return NetworkSpecsKey{}, fmt.Errorf("network specs key must be 33 bytes, got %d", len(b))
	}
	enc, err := ParseEncryption(b[0])
	if err != nil {
		return NetworkSpecsKey{}, err
	}
	var k NetworkSpecsKey
	k.Encryption = enc
	copy(k.GenesisHash[:], b[1:])
	return k, nil
}

// NetworkSpecsKeyFromHex parses the hex form produced by String.
func NetworkSpecsKeyFromHex(s string) (NetworkSpecsKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return NetworkSpecsKey{}, fmt.Errorf("invalid network key hex: %w", err)
	}
	return NetworkSpecsKeyFromBytes(b)
}

// MetadataRecord is a stored runtime metadata version.
type MetadataRecord struct {
	Name    string `json:"name"`
	Version uint32 `json:"version"`
	Meta    []byte `json:"meta"`
	Hash    H256   `json:"hash"`
}

// MetaKey identifies a metadata record.
type MetaKey struct {
	Name    string `json:"name"`
	Version uint32 `json:"version"`
}

func (k MetaKey) String() string { return fmt.Sprintf("%s%d", k.Name, k.Version) }

// TypesRecord is the legacy type registry used with v12/v13 metadata.
type TypesRecord struct {
	Content []byte `json:"content"`
	Hash    H256   `json:"hash"`
}
