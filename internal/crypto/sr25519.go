package crypto

import (
	"fmt"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"

	"github.com/AlexZinkM/cold-signer/internal/model"
)

// signingContext is the schnorrkel context used by Substrate.
var signingContext = []byte("substrate")

type sr25519Pair struct {
	secret *schnorrkel.SecretKey
	public [32]byte
}

func deriveSr25519(seed [32]byte, junctions []Junction) (Pair, error) {
	mini, err := schnorrkel.NewMiniSecretKeyFromRaw(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to build mini secret: %w", err)
	}
	secret := mini.ExpandEd25519()

	for _, j := range junctions {
		var ext *schnorrkel.ExtendedKey
		if j.Hard {
			ext, err = schnorrkel.DeriveKeyHard(secret, []byte{}, j.ChainCode())
		} else {
			ext, err = schnorrkel.DeriveKeySoft(secret, []byte{}, j.ChainCode())
		}
		if err != nil {
			return nil, fmt.Errorf("failed to derive junction %q: %w", j.Value, err)
		}
		secret, err = ext.Secret()
		if err != nil {
			return nil, fmt.Errorf("failed to read derived secret: %w", err)
		}
	}

	pub, err := secret.Public()
	if err != nil {
		return nil, fmt.Errorf("failed to compute public key: %w", err)
	}
	return &sr25519Pair{secret: secret, public: pub.Encode()}, nil
}

func (p *sr25519Pair) Encryption() model.Encryption { return model.Sr25519 }

func (p *sr25519Pair) Public() []byte {
	out := p.public
	return out[:]
}

func (p *sr25519Pair) Sign(msg []byte) ([]byte, error) {
	t := schnorrkel.NewSigningContext(signingContext, msg)
	sig, err := p.secret.Sign(t)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	enc := sig.Encode()
	return enc[:], nil
}

func (p *sr25519Pair) Wipe() { p.secret = nil }

func verifySr25519(pub, msg, sig []byte) bool {
	var pk [32]byte
	copy(pk[:], pub)
	publicKey := new(schnorrkel.PublicKey)
	if err := publicKey.Decode(pk); err != nil {
		return false
	}

	var sb [64]byte
	copy(sb[:], sig)
	signature := new(schnorrkel.Signature)
	if err := signature.Decode(sb); err != nil {
		return false
	}

	t := schnorrkel.NewSigningContext(signingContext, msg)
	ok, err := publicKey.Verify(signature, t)
	return err == nil && ok
}
