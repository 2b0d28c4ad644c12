package signer

import (
	"bytes"
	"errors"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/AlexZinkM/cold-signer/internal/crypto"
	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/store"
)

// GenerateRandomPhrase returns a new BIP39 phrase of 12, 15, 18, 21 or 24
// words.
func GenerateRandomPhrase(words int) (string, error) {
	phrase, err := crypto.GenerateRandomPhrase(words)
	if err != nil {
		return "", model.NewError(model.KindInput, err, "failed to generate seed phrase")
	}
	return phrase, nil
}

// CreateSeed records the identities of a new seed: a root key for every
// encryption in use and the default derivation of every network. An empty
// networks list means every known network.
func (d *Device) CreateSeed(seedName, phrase string, networks []model.NetworkSpecsKey) error {
	if seedName == "" {
		return model.InputError("seed name cannot be empty")
	}
	if err := crypto.ValidatePhrase(phrase); err != nil {
		return model.NewError(model.KindInput, err, "seed %s", seedName)
	}
	seeds, err := d.Seeds()
	if err != nil {
		return err
	}
	if slices.Contains(seeds, seedName) {
		return model.InputError("seed %s already exists", seedName)
	}
	specs, err := d.specsFor(networks)
	if err != nil {
		return err
	}

	ab := newAddressBatch(d.store)
	roots := make(map[model.Encryption]bool)
	for _, s := range specs {
		if !roots[s.Encryption] {
			roots[s.Encryption] = true
			if err := ab.derive(s.Encryption, seedName, phrase, "", nil); err != nil {
				return err
			}
		}
		key := s.Key()
		if err := ab.derive(s.Encryption, seedName, phrase, "//"+s.PathID, &key); err != nil {
			return err
		}
	}
	b := store.NewBatch()
	if err := ab.stage(b); err != nil {
		return err
	}
	events := append([]model.Event{{Kind: model.EventSeedCreated, Identity: &model.IdentityEvent{SeedName: seedName}}}, ab.events...)
	if err := d.apply(b, events...); err != nil {
		return err
	}
	d.logger.WithFields(logrus.Fields{"seed": seedName, "identities": len(ab.events)}).Info("seed created")
	return nil
}

func (d *Device) specsFor(keys []model.NetworkSpecsKey) ([]model.NetworkSpecs, error) {
	if len(keys) == 0 {
		return d.store.AllNetworkSpecs()
	}
	out := make([]model.NetworkSpecs, 0, len(keys))
	for _, k := range keys {
		s, err := d.store.NetworkSpecs(k)
		if isNotFound(err) {
			return nil, model.InputError("network %s is not in the database", k)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// CreateAddress derives path for seedName and registers it for network.
// A path may carry a "///password" section; only the fact that it has one is
// stored.
func (d *Device) CreateAddress(seedName, phrase, path string, network model.NetworkSpecsKey) error {
	if err := d.checkPhrase(seedName, phrase); err != nil {
		return err
	}
	if _, err := d.specsFor([]model.NetworkSpecsKey{network}); err != nil {
		return err
	}
	der, err := crypto.ParseDerivation(path)
	if err != nil {
		return model.NewError(model.KindInput, err, "invalid derivation path")
	}
	if der.HasSoft() && network.Encryption != model.Sr25519 {
		return model.NewError(model.KindInput, crypto.ErrSoftDerivation, "derivation %q with %s", der.Path(), network.Encryption)
	}

	pub, err := crypto.PublicKey(network.Encryption, phrase, path)
	if err != nil {
		return model.NewError(model.KindInput, err, "failed to derive %q", der.Path())
	}
	ab := newAddressBatch(d.store)
	signer := model.MultiSigner{Encryption: network.Encryption, PublicKey: pub}
	added, err := ab.add(seedName, der.Path(), der.Password != nil, signer, &network)
	if err != nil {
		return err
	}
	if !added {
		return model.NewError(model.KindInput, model.ErrAlreadyInDatabase, "identity %s%s", seedName, der.Path())
	}
	b := store.NewBatch()
	if err := ab.stage(b); err != nil {
		return err
	}
	if err := d.apply(b, ab.events...); err != nil {
		return err
	}
	d.logger.WithFields(logrus.Fields{"seed": seedName, "path": der.Path(), "network": network}).Info("identity added")
	return nil
}

// RemoveAddress unregisters an identity from network. Derived keys left
// without networks are forgotten; root keys stay while the seed exists.
func (d *Device) RemoveAddress(signer model.MultiSigner, network model.NetworkSpecsKey) error {
	a, err := d.store.Address(signer)
	if isNotFound(err) {
		return model.InputError("identity %s is not in the database", signer)
	}
	if err != nil {
		return err
	}
	if !a.RemoveNetwork(network) {
		return model.InputError("identity %s is not registered for network %s", signer, network)
	}
	b := store.NewBatch()
	if len(a.Networks) == 0 && a.Path != "" {
		b.Delete(store.AddressKey(signer))
	} else if err := b.PutJSON(store.AddressKey(signer), a); err != nil {
		return err
	}
	genesis := network.GenesisHash
	return d.apply(b, model.Event{Kind: model.EventIdentityRemoved, Identity: &model.IdentityEvent{
		SeedName:   a.SeedName,
		Path:       a.Path,
		PublicKey:  a.PublicKey,
		Encryption: a.Encryption,
		Network:    &genesis,
	}})
}

// RemoveSeed forgets every identity of seedName.
func (d *Device) RemoveSeed(seedName string) error {
	ids, err := d.Identities(seedName)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return model.InputError("seed %s is not in the database", seedName)
	}
	b := store.NewBatch()
	for _, a := range ids {
		b.Delete(store.AddressKey(a.Signer()))
	}
	if err := d.apply(b, model.Event{Kind: model.EventSeedRemoved, Identity: &model.IdentityEvent{SeedName: seedName}}); err != nil {
		return err
	}
	d.logger.WithField("seed", seedName).Info("seed removed")
	return nil
}

// Identities lists the identities of seedName.
func (d *Device) Identities(seedName string) ([]model.AddressDetails, error) {
	all, err := d.store.Addresses()
	if err != nil {
		return nil, err
	}
	var out []model.AddressDetails
	for _, a := range all {
		if a.SeedName == seedName {
			out = append(out, a)
		}
	}
	return out, nil
}

// Seeds lists seed names with at least one identity, sorted.
func (d *Device) Seeds() ([]string, error) {
	all, err := d.store.Addresses()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, a := range all {
		if !slices.Contains(names, a.SeedName) {
			names = append(names, a.SeedName)
		}
	}
	slices.Sort(names)
	return names, nil
}

// checkPhrase makes sure phrase is the one seedName was created with, by
// re-deriving one of its passwordless keys.
func (d *Device) checkPhrase(seedName, phrase string) error {
	ids, err := d.Identities(seedName)
	if err != nil {
		return err
	}
	for _, a := range ids {
		if a.HasPassword {
			continue
		}
		pub, err := crypto.PublicKey(a.Encryption, phrase, a.Path)
		if err != nil {
			return model.NewError(model.KindInput, err, "seed %s", seedName)
		}
		if !bytes.Equal(pub, a.PublicKey) {
			return model.InputError("phrase does not belong to seed %s", seedName)
		}
		return nil
	}
	return model.InputError("seed %s is not in the database", seedName)
}

// addressBatch collects identity changes before they are staged, so that
// keys derived in one operation are checked against each other too.
type addressBatch struct {
	store   *store.Store
	pending map[string]*model.AddressDetails
	order   []string
	events  []model.Event
}

func newAddressBatch(s *store.Store) *addressBatch {
	return &addressBatch{store: s, pending: make(map[string]*model.AddressDetails)}
}

// derive adds a passwordless path.
func (ab *addressBatch) derive(enc model.Encryption, seedName, phrase, path string, network *model.NetworkSpecsKey) error {
	pub, err := crypto.PublicKey(enc, phrase, path)
	if err != nil {
		return model.NewError(model.KindInput, err, "failed to derive %q", path)
	}
	_, err = ab.add(seedName, path, false, model.MultiSigner{Encryption: enc, PublicKey: pub}, network)
	return err
}

// add records signer as seedName/path, registered for network when it is
// set. It reports whether anything changed. A key already held by another
// seed or path is a collision.
func (ab *addressBatch) add(seedName, path string, hasPwd bool, signer model.MultiSigner, network *model.NetworkSpecsKey) (bool, error) {
	key := string(signer.Key())
	a, ok := ab.pending[key]
	if !ok {
		stored, err := ab.store.Address(signer)
		switch {
		case err == nil:
			a = &stored
		case errors.Is(err, model.ErrNotFound):
		default:
			return false, err
		}
	}
	isNew := a == nil
	if isNew {
		a = &model.AddressDetails{
			SeedName:    seedName,
			Path:        path,
			HasPassword: hasPwd,
			Encryption:  signer.Encryption,
			PublicKey:   signer.PublicKey,
		}
	} else if a.SeedName != seedName || a.Path != path || a.HasPassword != hasPwd {
		return false, model.InputError("key %s is already used by seed %s with path %q", signer, a.SeedName, a.Path)
	}

	registered := network != nil && a.AddNetwork(*network)
	if !isNew && !registered {
		return false, nil
	}
	if !ok {
		ab.pending[key] = a
		ab.order = append(ab.order, key)
	}
	ev := &model.IdentityEvent{SeedName: seedName, Path: path, PublicKey: signer.PublicKey, Encryption: signer.Encryption}
	if network != nil {
		g := network.GenesisHash
		ev.Network = &g
	}
	ab.events = append(ab.events, model.Event{Kind: model.EventIdentityAdded, Identity: ev})
	return true, nil
}

func (ab *addressBatch) stage(b *store.Batch) error {
	for _, key := range ab.order {
		a := ab.pending[key]
		if err := b.PutJSON(store.AddressKey(a.Signer()), a); err != nil {
			return err
		}
	}
	return nil
}
