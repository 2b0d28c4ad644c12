package crypto

import (
	"errors"
	"fmt"

	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/scale"
)

var (
	ErrSoftDerivation = errors.New("soft derivation is not supported for this encryption")
	ErrBadSignature   = errors.New("signature does not verify")
)

// Pair is a derived key pair. It lives only as long as one signing
// operation; private material is never persisted.
type Pair interface {
	Encryption() model.Encryption
	Public() []byte
	Sign(msg []byte) ([]byte, error)
	// Wipe zeroes the private key material.
	Wipe()
}

// DerivePair re-derives the key pair for phrase and a full derivation
// string (including any "///password" section).
func DerivePair(enc model.Encryption, phrase, derivation string) (Pair, error) {
	d, err := ParseDerivation(derivation)
	if err != nil {
		return nil, err
	}
	password := ""
	if d.Password != nil {
		password = *d.Password
	}
	seed, err := MiniSecret(phrase, password)
	if err != nil {
		return nil, err
	}
	defer clear(seed[:])

	switch enc {
	case model.Ed25519:
		return deriveEd25519(seed, d.Junctions)
	case model.Sr25519:
		return deriveSr25519(seed, d.Junctions)
	case model.Ecdsa:
		return deriveEcdsa(seed, d.Junctions)
	default:
		return nil, fmt.Errorf("unsupported encryption %s", enc)
	}
}

// PublicKey derives only the public key.
func PublicKey(enc model.Encryption, phrase, derivation string) ([]byte, error) {
	pair, err := DerivePair(enc, phrase, derivation)
	if err != nil {
		return nil, err
	}
	defer pair.Wipe()
	return pair.Public(), nil
}

// Verify checks sig over msg for the scheme-tagged public key.
func Verify(signer model.MultiSigner, msg, sig []byte) error {
	if len(signer.PublicKey) != signer.Encryption.PublicKeyLen() {
		return fmt.Errorf("public key length %d does not match %s", len(signer.PublicKey), signer.Encryption)
	}
	if len(sig) != signer.Encryption.SignatureLen() {
		return fmt.Errorf("signature length %d does not match %s", len(sig), signer.Encryption)
	}
	var ok bool
	switch signer.Encryption {
	case model.Ed25519:
		ok = verifyEd25519(signer.PublicKey, msg, sig)
	case model.Sr25519:
		ok = verifySr25519(signer.PublicKey, msg, sig)
	case model.Ecdsa:
		ok = verifyEcdsa(signer.PublicKey, msg, sig)
	default:
		return fmt.Errorf("unsupported encryption %s", signer.Encryption)
	}
	if !ok {
		return ErrBadSignature
	}
	return nil
}

// hdkd is the hard derivation used by ed25519 and ecdsa:
// Blake2-256 over the SCALE tuple (tag, seed, chain code).
func hdkd(tag string, seed, cc [32]byte) [32]byte {
	w := scale.NewWriter().Str(tag).Raw(seed[:]).Raw(cc[:])
	return Blake2b256(w.Bytes())
}
