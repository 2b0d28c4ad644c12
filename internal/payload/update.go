package payload

import (
	"errors"
	"fmt"

	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/scale"
)

// Signed is the verifier envelope of an update payload. Verifier is nil for
// unsigned payloads; otherwise Signature covers Content.
type Signed struct {
	Verifier  *model.MultiSigner
	Signature []byte
	Content   []byte
}

// IsSigned reports whether a verifier signed the payload.
func (s Signed) IsSigned() bool { return s.Verifier != nil }

// LoadMetadata offers a runtime metadata version for a network.
type LoadMetadata struct {
	Signed
	Meta    []byte
	Genesis model.H256
}

// LoadTypes offers the types registry used with v12/v13 metadata.
type LoadTypes struct {
	Signed
	Types []byte
}

// AddSpecs offers network specs.
type AddSpecs struct {
	Signed
	Specs model.NetworkSpecs
}

// Derivations offers derivation paths to create for a network.
type Derivations struct {
	Encryption model.Encryption
	Genesis    model.H256
	Paths      []string
}

func (LoadMetadata) Kind() Kind { return KindLoadMetadata }
func (LoadTypes) Kind() Kind    { return KindLoadTypes }
func (AddSpecs) Kind() Kind     { return KindAddSpecs }
func (Derivations) Kind() Kind  { return KindDerivations }

func (LoadMetadata) isPayload() {}
func (LoadTypes) isPayload()    {}
func (AddSpecs) isPayload()     {}
func (Derivations) isPayload()  {}

// LoadMetadataContent encodes the signed part of a load_metadata payload.
func LoadMetadataContent(meta []byte, genesis model.H256) []byte {
	return scale.NewWriter().ByteVec(meta).Raw(genesis[:]).Bytes()
}

// AddSpecsContent encodes the signed part of an add_specs payload.
func AddSpecsContent(specs model.NetworkSpecs) []byte {
	return scale.NewWriter().ByteVec(EncodeSpecs(specs)).Bytes()
}

// EncodeSpecs encodes network specs in wire field order.
func EncodeSpecs(s model.NetworkSpecs) []byte {
	return scale.NewWriter().
		U16(s.Base58Prefix).
		Str(s.Color).
		U8(s.Decimals).
		U8(byte(s.Encryption)).
		Raw(s.GenesisHash[:]).
		Str(s.Logo).
		Str(s.Name).
		Str(s.PathID).
		Str(s.SecondaryColor).
		Str(s.Title).
		Str(s.Unit).
		Bytes()
}

// DecodeSpecs is the inverse of EncodeSpecs.
func DecodeSpecs(b []byte) (model.NetworkSpecs, error) {
	var s model.NetworkSpecs
	r := scale.NewReader(b)
	var err error
	fail := func(field string, err error) (model.NetworkSpecs, error) {
		return model.NetworkSpecs{}, fmt.Errorf("network specs %s: %w", field, err)
	}
	if s.Base58Prefix, err = r.U16(); err != nil {
		return fail("base58prefix", err)
	}
	if s.Color, err = r.Str(); err != nil {
		return fail("color", err)
	}
	if s.Decimals, err = r.U8(); err != nil {
		return fail("decimals", err)
	}
	tag, err := r.U8()
	if err != nil {
		return fail("encryption", err)
	}
	if s.Encryption, err = model.ParseEncryption(tag); err != nil {
		return fail("encryption", err)
	}
	if s.GenesisHash, err = r.Array32(); err != nil {
		return fail("genesis hash", err)
	}
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"logo", &s.Logo},
		{"name", &s.Name},
		{"path_id", &s.PathID},
		{"secondary_color", &s.SecondaryColor},
		{"title", &s.Title},
		{"unit", &s.Unit},
	} {
		if *f.dst, err = r.Str(); err != nil {
			return fail(f.name, err)
		}
	}
	if s.Name == "" {
		return fail("name", errors.New("empty"))
	}
	return s, r.Done()
}

func (s Signed) encode(kind Kind) []byte {
	if s.Verifier == nil {
		return prelude(kind, model.UnsignedTag).Raw(s.Content).Bytes()
	}
	return prelude(kind, byte(s.Verifier.Encryption)).
		Raw(s.Verifier.PublicKey).
		Raw(s.Content).
		Raw(s.Signature).
		Bytes()
}

func (p LoadMetadata) Encode() []byte { return p.Signed.encode(KindLoadMetadata) }
func (p LoadTypes) Encode() []byte    { return p.Signed.encode(KindLoadTypes) }
func (p AddSpecs) Encode() []byte     { return p.Signed.encode(KindAddSpecs) }

func (p Derivations) Encode() []byte {
	return prelude(KindDerivations, model.UnsignedTag).
		U8(byte(p.Encryption)).
		Raw(p.Genesis[:]).
		StrVec(p.Paths).
		Bytes()
}

// splitSigned separates verifier key, content and signature.
func splitSigned(data []byte) (Signed, error) {
	var s Signed
	tag := data[2]
	if tag == model.UnsignedTag {
		s.Content = append([]byte{}, data[3:]...)
		return s, nil
	}
	enc, err := model.ParseEncryption(tag)
	if err != nil {
		return s, err
	}
	rest := data[3:]
	keyLen, sigLen := enc.PublicKeyLen(), enc.SignatureLen()
	if len(rest) < keyLen+sigLen {
		return s, errors.New("too short for verifier key and signature")
	}
	s.Verifier = &model.MultiSigner{Encryption: enc, PublicKey: append([]byte{}, rest[:keyLen]...)}
	s.Content = append([]byte{}, rest[keyLen:len(rest)-sigLen]...)
	s.Signature = append([]byte{}, rest[len(rest)-sigLen:]...)
	return s, nil
}

func parseLoadMetadata(data []byte) (LoadMetadata, error) {
	var p LoadMetadata
	var err error
	if p.Signed, err = splitSigned(data); err != nil {
		return p, err
	}
	r := scale.NewReader(p.Content)
	meta, err := r.ByteVec()
	if err != nil {
		return p, fmt.Errorf("metadata: %w", err)
	}
	p.Meta = meta
	if p.Genesis, err = r.Array32(); err != nil {
		return p, fmt.Errorf("genesis hash: %w", err)
	}
	return p, r.Done()
}

func parseLoadTypes(data []byte) (LoadTypes, error) {
	var p LoadTypes
	var err error
	if p.Signed, err = splitSigned(data); err != nil {
		return p, err
	}
	p.Types = p.Content
	return p, nil
}

func parseAddSpecs(data []byte) (AddSpecs, error) {
	var p AddSpecs
	var err error
	if p.Signed, err = splitSigned(data); err != nil {
		return p, err
	}
	r := scale.NewReader(p.Content)
	raw, err := r.ByteVec()
	if err != nil {
		return p, fmt.Errorf("network specs: %w", err)
	}
	if err := r.Done(); err != nil {
		return p, err
	}
	p.Specs, err = DecodeSpecs(raw)
	return p, err
}

func parseDerivations(data []byte) (Derivations, error) {
	var p Derivations
	if data[2] != model.UnsignedTag {
		return p, errors.New("derivations payload must be unsigned")
	}
	r := scale.NewReader(data[3:])
	tag, err := r.U8()
	if err != nil {
		return p, err
	}
	if p.Encryption, err = model.ParseEncryption(tag); err != nil {
		return p, err
	}
	if p.Genesis, err = r.Array32(); err != nil {
		return p, fmt.Errorf("genesis hash: %w", err)
	}
	if p.Paths, err = r.StrVec(); err != nil {
		return p, fmt.Errorf("derivations: %w", err)
	}
	return p, r.Done()
}
