// Package ledger keeps the pending action of the device. An action is
// written into its slot and the checksum of the whole store is handed out as
// a single-use token; committing recomputes it against the live store.
package ledger

import (
	"errors"

	"github.com/AlexZinkM/cold-signer/internal/history"
	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/payload"
	"github.com/AlexZinkM/cold-signer/internal/store"
	"github.com/AlexZinkM/cold-signer/internal/trust"
)

// NetworkVerifierChange sets the verifier record of one network.
type NetworkVerifierChange struct {
	Genesis  model.H256            `json:"genesis"`
	Verifier model.CurrentVerifier `json:"verifier"`
}

// Derivations are the derivation paths a stub offers to import.
type Derivations struct {
	Network model.NetworkSpecsKey `json:"network"`
	Paths   []string              `json:"paths"`
}

// Stub is a staged update. Removals are applied before additions.
type Stub struct {
	Kind            payload.Kind           `json:"kind"`
	AddSpecs        *model.NetworkSpecs    `json:"add_specs,omitempty"`
	AddMetadata     *model.MetadataRecord  `json:"add_metadata,omitempty"`
	AddTypes        *model.TypesRecord     `json:"add_types,omitempty"`
	GeneralVerifier *model.MultiSigner     `json:"general_verifier,omitempty"`
	NetworkVerifier *NetworkVerifierChange `json:"network_verifier,omitempty"`
	RemoveSpecs     []model.NetworkSpecsKey `json:"remove_specs,omitempty"`
	RemoveMetadata  []model.MetaKey        `json:"remove_metadata,omitempty"`
	RemoveTypes     bool                   `json:"remove_types,omitempty"`
	Derivations     *Derivations           `json:"derivations,omitempty"`
	Events          []model.Event          `json:"events,omitempty"`
}

// SignTarget is one piece of content awaiting a signature.
type SignTarget struct {
	Kind        payload.Kind          `json:"kind"`
	Content     []byte                `json:"content"`
	Author      model.MultiSigner     `json:"author"`
	SeedName    string                `json:"seed_name"`
	Path        string                `json:"path"`
	HasPassword bool                  `json:"has_pwd"`
	Network     model.NetworkSpecsKey `json:"network"`
	NetworkName string                `json:"network_name"`
}

// SignAction is a staged signing request; bulk payloads carry several targets.
type SignAction struct {
	Targets []SignTarget `json:"targets"`
}

// Ledger stages and commits pending actions.
type Ledger struct {
	store *store.Store
	log   *history.Log
}

func New(s *store.Store, log *history.Log) *Ledger {
	return &Ledger{store: s, log: log}
}

// Checksum is the current token of the store.
func (l *Ledger) Checksum() (model.H256, error) {
	return l.store.Checksum()
}

// StageStub writes stub into the stub slot, superseding any pending action,
// and returns the token that commits it.
func (l *Ledger) StageStub(stub Stub) (model.H256, error) {
	return l.stage(store.KeyStub, store.KeySign, stub)
}

// StageSign writes action into the sign slot, superseding any pending action.
func (l *Ledger) StageSign(action SignAction) (model.H256, error) {
	if len(action.Targets) == 0 {
		return model.H256{}, errors.New("sign action has no targets")
	}
	return l.stage(store.KeySign, store.KeyStub, action)
}

func (l *Ledger) stage(slot, other []byte, v any) (model.H256, error) {
	b := store.NewBatch()
	if err := b.PutJSON(slot, v); err != nil {
		return model.H256{}, err
	}
	b.Delete(other)
	if err := l.store.Apply(b); err != nil {
		return model.H256{}, err
	}
	return l.store.Checksum()
}

// Verify fails with model.ErrChecksumMismatch unless checksum matches the
// live store.
func (l *Ledger) Verify(checksum model.H256) error {
	live, err := l.store.Checksum()
	if err != nil {
		return err
	}
	if live != checksum {
		return model.ErrChecksumMismatch
	}
	return nil
}

// PendingStub verifies checksum and reads the staged stub without changing
// anything.
func (l *Ledger) PendingStub(checksum model.H256) (Stub, error) {
	var stub Stub
	if err := l.Verify(checksum); err != nil {
		return stub, err
	}
	err := l.store.GetJSON(store.KeyStub, &stub)
	if errors.Is(err, model.ErrNotFound) {
		return stub, model.NewError(model.KindDatabase, model.ErrNoPendingAction, "no update awaiting commit")
	}
	return stub, err
}

// PendingSign verifies checksum and reads the staged signing action.
func (l *Ledger) PendingSign(checksum model.H256) (SignAction, error) {
	var action SignAction
	if err := l.Verify(checksum); err != nil {
		return action, err
	}
	err := l.store.GetJSON(store.KeySign, &action)
	if errors.Is(err, model.ErrNotFound) {
		return action, model.NewError(model.KindDatabase, model.ErrNoPendingAction, "no signing action pending")
	}
	return action, err
}

// Extra adds writes of its own to a stub commit and returns the events
// describing them.
type Extra func(b *store.Batch, stub Stub) ([]model.Event, error)

// CommitStub verifies checksum and applies the staged stub atomically,
// together with whatever extra adds. The stub slot is cleared, so the
// checksum cannot be used twice.
func (l *Ledger) CommitStub(checksum model.H256, extra Extra) (Stub, error) {
	stub, err := l.PendingStub(checksum)
	if err != nil {
		return stub, err
	}
	b := store.NewBatch()
	if err := l.stageStub(b, stub); err != nil {
		return stub, err
	}
	events := stub.Events
	if extra != nil {
		more, err := extra(b, stub)
		if err != nil {
			return stub, err
		}
		events = append(events, more...)
	}
	b.Delete(store.KeyStub)
	if err := l.log.Stage(b, events...); err != nil {
		return stub, err
	}
	return stub, l.store.Apply(b)
}

// FinishSign clears the sign slot within b and applies it with events.
func (l *Ledger) FinishSign(b *store.Batch, events ...model.Event) error {
	b.Delete(store.KeySign)
	if err := l.log.Stage(b, events...); err != nil {
		return err
	}
	return l.store.Apply(b)
}

// Record appends events without touching the pending action and returns
// the new token.
func (l *Ledger) Record(events ...model.Event) (model.H256, error) {
	if err := l.log.Append(events...); err != nil {
		return model.H256{}, err
	}
	return l.store.Checksum()
}

type put struct {
	key []byte
	v   any
}

func (l *Ledger) stageStub(b *store.Batch, stub Stub) error {
	if len(stub.RemoveSpecs) > 0 {
		if err := l.store.StageUnregister(b, stub.RemoveSpecs); err != nil {
			return err
		}
	}
	for _, key := range stub.RemoveSpecs {
		b.Delete(store.SpecsKey(key))
	}
	for _, key := range stub.RemoveMetadata {
		b.Delete(store.MetaKey(key.Name, key.Version))
	}
	if stub.RemoveTypes {
		b.Delete(store.TypesKey())
	}

	if stub.GeneralVerifier != nil {
		if err := trust.StageGeneralVerifier(b, stub.GeneralVerifier); err != nil {
			return err
		}
	}
	var puts []put
	if nv := stub.NetworkVerifier; nv != nil {
		puts = append(puts, put{store.VerifierKey(nv.Genesis), nv.Verifier})
	}
	if s := stub.AddSpecs; s != nil {
		puts = append(puts, put{store.SpecsKey(s.Key()), s})
	}
	if m := stub.AddMetadata; m != nil {
		puts = append(puts, put{store.MetaKey(m.Name, m.Version), m})
	}
	if t := stub.AddTypes; t != nil {
		puts = append(puts, put{store.TypesKey(), t})
	}
	for _, p := range puts {
		if err := b.PutJSON(p.key, p.v); err != nil {
			return err
		}
	}
	return nil
}
