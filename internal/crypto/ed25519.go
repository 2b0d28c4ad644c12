package crypto

import (
	"crypto/ed25519"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/AlexZinkM/cold-signer/internal/model"
)

type ed25519Pair struct {
	key solana.PrivateKey
}

func deriveEd25519(seed [32]byte, junctions []Junction) (Pair, error) {
	for _, j := range junctions {
		if !j.Hard {
			return nil, ErrSoftDerivation
		}
		next := hdkd("Ed25519HDKD", seed, j.ChainCode())
		clear(seed[:])
		seed = next
	}
	key := solana.PrivateKey(ed25519.NewKeyFromSeed(seed[:]))
	clear(seed[:])
	return &ed25519Pair{key: key}, nil
}

func (p *ed25519Pair) Encryption() model.Encryption { return model.Ed25519 }

func (p *ed25519Pair) Public() []byte {
	pub := p.key.PublicKey()
	return pub[:]
}

func (p *ed25519Pair) Sign(msg []byte) ([]byte, error) {
	sig, err := p.key.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return sig[:], nil
}

func (p *ed25519Pair) Wipe() { clear(p.key) }

func verifyEd25519(pub, msg, sig []byte) bool {
	var pk solana.PublicKey
	copy(pk[:], pub)
	var s solana.Signature
	copy(s[:], sig)
	return s.Verify(pk, msg)
}
