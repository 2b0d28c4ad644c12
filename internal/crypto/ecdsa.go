package crypto

import (
	"bytes"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/AlexZinkM/cold-signer/internal/model"
)

// compactRecoveryOffset is added to the recovery id in decred's compact
// signature header for compressed keys (27 + 4).
const compactRecoveryOffset = 31

type ecdsaPair struct {
	key *secp256k1.PrivateKey
}

func deriveEcdsa(seed [32]byte, junctions []Junction) (Pair, error) {
	for _, j := range junctions {
		if !j.Hard {
			return nil, ErrSoftDerivation
		}
		next := hdkd("Secp256k1HDKD", seed, j.ChainCode())
		clear(seed[:])
		seed = next
	}
	key := secp256k1.PrivKeyFromBytes(seed[:])
	clear(seed[:])
	return &ecdsaPair{key: key}, nil
}

func (p *ecdsaPair) Encryption() model.Encryption { return model.Ecdsa }

func (p *ecdsaPair) Public() []byte {
	return p.key.PubKey().SerializeCompressed()
}

// Sign produces a 65-byte r||s||v signature over Blake2-256(msg).
func (p *ecdsaPair) Sign(msg []byte) ([]byte, error) {
	hash := Blake2b256(msg)
	compact := ecdsa.SignCompact(p.key, hash[:], true)
	out := make([]byte, 0, 65)
	out = append(out, compact[1:]...)
	return append(out, compact[0]-compactRecoveryOffset), nil
}

func (p *ecdsaPair) Wipe() { p.key.Zero() }

func verifyEcdsa(pub, msg, sig []byte) bool {
	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 3 {
		return false
	}
	compact := make([]byte, 0, 65)
	compact = append(compact, v+compactRecoveryOffset)
	compact = append(compact, sig[:64]...)

	hash := Blake2b256(msg)
	recovered, _, err := ecdsa.RecoverCompact(compact, hash[:])
	if err != nil {
		return false
	}
	return bytes.Equal(recovered.SerializeCompressed(), pub)
}
