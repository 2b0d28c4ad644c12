// Package cards holds the closed set of display cards produced while decoding
// payloads. Every card kind the wire protocol can yield is a type here; Card
// is sealed so a type switch over it is exhaustive.
package cards

import (
	"fmt"
	"strings"

	"github.com/AlexZinkM/cold-signer/internal/model"
)

// Card is one unit of decoded output.
type Card interface {
	// Text is a one-line rendering of the card.
	Text() string
	isCard()
}

type Pallet struct{ Name string }

type Call struct {
	Name string
	Docs string
}

type Field struct {
	Name string
	Docs string
}

type FieldNumber struct {
	Index int
	Docs  string
}

type EnumVariant struct {
	Name string
	Docs string
}

// ID is an account rendered as SS58 for the network it is shown in.
type ID struct {
	Address    string
	PublicKey  []byte
	Encryption model.Encryption
}

type Balance struct {
	Amount string
	Units  string
}

type Era struct {
	Immortal bool
	Phase    uint64
	Period   uint64
}

type Nonce struct{ Value string }

type Tip struct {
	Amount string
	Units  string
}

type BlockHash struct{ Hash model.H256 }

type TxSpec struct {
	Network   string
	Version   uint32
	TxVersion uint32
}

type NetworkInfo struct {
	Name        string
	GenesisHash model.H256
}

// Author is the identity that will sign a transaction or message.
type Author struct {
	Address  string
	SeedName string
	Path     string
	Signer   model.MultiSigner
	Password bool
}

// Verifier is the key that signed an update payload.
type Verifier struct {
	Signer  model.MultiSigner
	Address string
}

type Meta struct {
	Name    string
	Version uint32
	Hash    model.H256
}

type NewSpecs struct{ Specs model.NetworkSpecs }

type Types struct {
	Hash  model.H256
	Count int
}

type Derivations struct {
	Network     string
	Derivations []string
}

type Text struct{ Value string }

// Default renders a value that has no dedicated card.
type Default struct{ Value string }

type None struct{}

type Warning struct{ Message string }

type Error struct{ Message string }

func (Pallet) isCard()      {}
func (Call) isCard()        {}
func (Field) isCard()       {}
func (FieldNumber) isCard() {}
func (EnumVariant) isCard() {}
func (ID) isCard()          {}
func (Balance) isCard()     {}
func (Era) isCard()         {}
func (Nonce) isCard()       {}
func (Tip) isCard()         {}
func (BlockHash) isCard()   {}
func (TxSpec) isCard()      {}
func (NetworkInfo) isCard() {}
func (Author) isCard()      {}
func (Verifier) isCard()    {}
func (Meta) isCard()        {}
func (NewSpecs) isCard()    {}
func (Types) isCard()       {}
func (Derivations) isCard() {}
func (Text) isCard()        {}
func (Default) isCard()     {}
func (None) isCard()        {}
func (Warning) isCard()     {}
func (Error) isCard()       {}

func (c Pallet) Text() string      { return "pallet: " + c.Name }
func (c Call) Text() string        { return "call: " + c.Name }
func (c Field) Text() string       { return c.Name + ":" }
func (c FieldNumber) Text() string { return fmt.Sprintf("field %d:", c.Index) }
func (c EnumVariant) Text() string { return c.Name }
func (c ID) Text() string          { return c.Address }
func (c Balance) Text() string     { return c.Amount + " " + c.Units }
func (c Nonce) Text() string       { return "nonce: " + c.Value }
func (c Tip) Text() string         { return "tip: " + c.Amount + " " + c.Units }
func (c BlockHash) Text() string   { return "block hash: " + c.Hash.String() }
func (c Text) Text() string        { return c.Value }
func (c Default) Text() string     { return c.Value }
func (None) Text() string          { return "None" }
func (c Warning) Text() string     { return "warning: " + c.Message }
func (c Error) Text() string       { return "error: " + c.Message }

func (c Era) Text() string {
	if c.Immortal {
		return "era: Immortal"
	}
	return fmt.Sprintf("era: Mortal{phase: %d, period: %d}", c.Phase, c.Period)
}

func (c TxSpec) Text() string {
	return fmt.Sprintf("network: %s, version: %d, tx version: %d", c.Network, c.Version, c.TxVersion)
}

func (c NetworkInfo) Text() string {
	return fmt.Sprintf("network: %s (%s)", c.Name, c.GenesisHash)
}

func (c Author) Text() string {
	s := fmt.Sprintf("from: %s (%s), seed %q path %q", c.Address, c.Signer.Encryption, c.SeedName, c.Path)
	if c.Password {
		s += " ///<password>"
	}
	return s
}

func (c Verifier) Text() string {
	return fmt.Sprintf("verifier: %s (%s)", c.Address, c.Signer.Encryption)
}

func (c Meta) Text() string {
	return fmt.Sprintf("metadata: %s%d (hash %s)", c.Name, c.Version, c.Hash)
}

func (c NewSpecs) Text() string {
	s := c.Specs
	return fmt.Sprintf("new network: %s (%s), %s, unit %s, decimals %d, prefix %d, genesis %s",
		s.Title, s.Name, s.Encryption, s.Unit, s.Decimals, s.Base58Prefix, s.GenesisHash)
}

func (c Types) Text() string {
	return fmt.Sprintf("types: %d entries (hash %s)", c.Count, c.Hash)
}

func (c Derivations) Text() string {
	return fmt.Sprintf("derivations for %s: %s", c.Network, strings.Join(c.Derivations, ", "))
}
