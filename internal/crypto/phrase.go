package crypto

import (
	"crypto/sha512"
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"
)

var ErrInvalidPhrase = errors.New("invalid seed phrase")

// entropyBits maps supported phrase lengths to BIP39 entropy sizes.
var entropyBits = map[int]int{
	12: 128,
	15: 160,
	18: 192,
	21: 224,
	24: 256,
}

// GenerateRandomPhrase returns a fresh BIP39 phrase of the given word count.
func GenerateRandomPhrase(words int) (string, error) {
	bits, ok := entropyBits[words]
	if !ok {
		return "", fmt.Errorf("unsupported phrase length %d: use 12, 15, 18, 21 or 24 words", words)
	}
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	defer clear(entropy)

	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to build phrase: %w", err)
	}
	return phrase, nil
}

// ValidatePhrase checks that phrase is a BIP39 mnemonic with a valid checksum.
func ValidatePhrase(phrase string) error {
	if !bip39.IsMnemonicValid(normalizePhrase(phrase)) {
		return ErrInvalidPhrase
	}
	return nil
}

// MiniSecret derives the 32-byte root seed the way Substrate does: PBKDF2
// over the phrase entropy (not the phrase text), salted with the password.
func MiniSecret(phrase, password string) ([32]byte, error) {
	var out [32]byte
	entropy, err := bip39.EntropyFromMnemonic(normalizePhrase(phrase))
	if err != nil {
		return out, ErrInvalidPhrase
	}
	defer clear(entropy)

	key := pbkdf2.Key(entropy, []byte("mnemonic"+password), 2048, 64, sha512.New)
	defer clear(key)
	copy(out[:], key[:32])
	return out, nil
}

func normalizePhrase(phrase string) string {
	return strings.Join(strings.Fields(phrase), " ")
}
