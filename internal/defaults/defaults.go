// Package defaults holds the networks a freshly initialized device knows.
package defaults

import (
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/AlexZinkM/cold-signer/internal/model"
)

//go:embed networks.toml
var embedded string

type verifierFile struct {
	Encryption model.Encryption `toml:"encryption"`
	PublicKey  string           `toml:"public_key"`
}

type file struct {
	Version         int                  `toml:"version"`
	GeneralVerifier *verifierFile        `toml:"general_verifier"`
	Networks        []model.NetworkSpecs `toml:"network"`
}

// Defaults is what Init writes into an empty database.
type Defaults struct {
	Networks []model.NetworkSpecs
	// GeneralVerifier is nil when the device starts without one.
	GeneralVerifier *model.MultiSigner
}

// Load returns the embedded defaults.
func Load() (Defaults, error) {
	return Parse(embedded)
}

// LoadFile returns the defaults stored at path.
func LoadFile(path string) (Defaults, error) {
	var f file
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return Defaults{}, fmt.Errorf("parse %s: %w", path, err)
	}
	d, err := f.defaults()
	if err != nil {
		return Defaults{}, fmt.Errorf("validate %s: %w", path, err)
	}
	return d, nil
}

// Parse reads defaults from TOML text.
func Parse(data string) (Defaults, error) {
	var f file
	if _, err := toml.Decode(data, &f); err != nil {
		return Defaults{}, fmt.Errorf("parse defaults: %w", err)
	}
	return f.defaults()
}

func (f file) defaults() (Defaults, error) {
	if f.Version != 1 {
		return Defaults{}, fmt.Errorf("unsupported defaults version %d", f.Version)
	}
	var d Defaults
	seen := make(map[model.NetworkSpecsKey]bool)
	for _, n := range f.Networks {
		if strings.TrimSpace(n.Name) == "" {
			return Defaults{}, errors.New("network without name")
		}
		if seen[n.Key()] {
			return Defaults{}, fmt.Errorf("network %s listed twice", n.Name)
		}
		seen[n.Key()] = true
		d.Networks = append(d.Networks, n)
	}
	if v := f.GeneralVerifier; v != nil {
		pub, err := hex.DecodeString(strings.TrimPrefix(v.PublicKey, "0x"))
		if err != nil {
			return Defaults{}, fmt.Errorf("general verifier key: %w", err)
		}
		if len(pub) != v.Encryption.PublicKeyLen() {
			return Defaults{}, fmt.Errorf("general verifier key has %d bytes, %s needs %d", len(pub), v.Encryption, v.Encryption.PublicKeyLen())
		}
		d.GeneralVerifier = &model.MultiSigner{Encryption: v.Encryption, PublicKey: pub}
	}
	return d, nil
}
