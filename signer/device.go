// Package signer is the offline signing device: it turns payloads into
// actions, commits staged updates, signs, and manages identities, networks
// and the audit log on top of the cold database.
package signer

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/AlexZinkM/cold-signer/internal/defaults"
	"github.com/AlexZinkM/cold-signer/internal/history"
	"github.com/AlexZinkM/cold-signer/internal/ledger"
	"github.com/AlexZinkM/cold-signer/internal/logger"
	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/store"
	"github.com/AlexZinkM/cold-signer/internal/trust"
)

// SeedProvider hands out seed phrases by seed name.
type SeedProvider interface {
	Phrase(seedName string) (string, error)
}

// Options tune a Device. Zero values use the system clock and discard logs.
type Options struct {
	Clock  history.Clock
	Logger *logrus.Logger
}

// Device is one opened signer. It is not safe for concurrent use; the
// checksum guards against the database changing between calls.
type Device struct {
	store  *store.Store
	ledger *ledger.Ledger
	log    *history.Log
	logger *logrus.Logger

	// attempts counts wrong passwords against the pending sign action.
	attempts int
}

// New builds a device over an opened store.
func New(s *store.Store, opts Options) *Device {
	log := history.New(s, opts.Clock)
	l := opts.Logger
	if l == nil {
		l = logger.Discard()
	}
	return &Device{store: s, ledger: ledger.New(s, log), log: log, logger: l}
}

// Open opens the database at path. A database locked by another process is
// reported as a database error.
func Open(path string, opts Options) (*Device, error) {
	s, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return New(s, opts), nil
}

func (d *Device) Close() error {
	return d.store.Close()
}

// Initialized reports whether the database holds anything.
func (d *Device) Initialized() (bool, error) {
	keys, err := d.store.AllKeys()
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

// Init writes the defaults into an empty database.
func (d *Device) Init(def defaults.Defaults) error {
	ok, err := d.Initialized()
	if err != nil {
		return err
	}
	if ok {
		return model.InputError("database is already initialized")
	}
	b := store.NewBatch()
	events, err := stageDefaults(b, def)
	if err != nil {
		return err
	}
	if err := d.log.Stage(b, events...); err != nil {
		return err
	}
	if err := d.store.Apply(b); err != nil {
		return err
	}
	d.logger.WithField("networks", len(def.Networks)).Info("database initialized")
	return nil
}

// Wipe drops every record, including the general verifier and all network
// verifiers, and writes the defaults again. It is the only way to change an
// established verifier.
func (d *Device) Wipe(def defaults.Defaults) error {
	keys, err := d.store.AllKeys()
	if err != nil {
		return err
	}
	b := store.NewBatch()
	for _, k := range keys {
		b.Delete(k)
	}
	events, err := stageDefaults(b, def)
	if err != nil {
		return err
	}
	events = append([]model.Event{{Kind: model.EventDeviceWiped}}, events...)
	if err := d.log.StageFirst(b, events...); err != nil {
		return err
	}
	if err := d.store.Apply(b); err != nil {
		return err
	}
	d.attempts = 0
	d.logger.Warn("device wiped")
	return nil
}

func stageDefaults(b *store.Batch, def defaults.Defaults) ([]model.Event, error) {
	events := []model.Event{{Kind: model.EventDatabaseInitiated}}
	verifier := model.NoVerifier()
	if g := def.GeneralVerifier; g != nil {
		if err := trust.StageGeneralVerifier(b, g); err != nil {
			return nil, err
		}
		verifier = model.GeneralVerifier()
		events = append(events, model.Event{
			Kind:     model.EventGeneralVerifierSet,
			Verifier: &model.VerifierEvent{Verifier: g.String()},
		})
	}
	for _, specs := range def.Networks {
		if err := b.PutJSON(store.SpecsKey(specs.Key()), specs); err != nil {
			return nil, err
		}
		if err := b.PutJSON(store.VerifierKey(specs.GenesisHash), verifier); err != nil {
			return nil, err
		}
		events = append(events, model.Event{Kind: model.EventNetworkSpecsAdded, Network: networkEvent(specs, verifier)})
	}
	return events, nil
}

// apply writes b together with one history entry holding events.
func (d *Device) apply(b *store.Batch, events ...model.Event) error {
	if err := d.log.Stage(b, events...); err != nil {
		return err
	}
	return d.store.Apply(b)
}

func networkEvent(specs model.NetworkSpecs, v model.CurrentVerifier) *model.NetworkEvent {
	return &model.NetworkEvent{
		Name:        specs.Name,
		GenesisHash: specs.GenesisHash,
		Encryption:  specs.Encryption,
		Verifier:    v.String(),
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
