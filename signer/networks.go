package signer

import (
	"github.com/sirupsen/logrus"

	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/store"
	"github.com/AlexZinkM/cold-signer/internal/trust"
)

// NetworkDetails is everything the device holds about one network+scheme.
type NetworkDetails struct {
	Specs    model.NetworkSpecs
	Verifier model.CurrentVerifier
	// General is the general verifier, relevant when Verifier is General.
	General  model.Verifier
	Metadata []model.MetadataRecord
}

// Networks lists the stored network specs.
func (d *Device) Networks() ([]model.NetworkSpecs, error) {
	return d.store.AllNetworkSpecs()
}

// Network returns the details of one network.
func (d *Device) Network(key model.NetworkSpecsKey) (NetworkDetails, error) {
	var nd NetworkDetails
	specs, err := d.store.NetworkSpecs(key)
	if isNotFound(err) {
		return nd, model.InputError("network %s is not in the database", key)
	}
	if err != nil {
		return nd, err
	}
	nd.Specs = specs
	if nd.Verifier, _, err = d.store.NetworkVerifier(key.GenesisHash); err != nil {
		return nd, err
	}
	if nd.General, err = trust.GeneralVerifier(d.store); err != nil {
		return nd, err
	}
	if nd.Metadata, err = d.store.MetadataVersions(specs.Name); err != nil {
		return nd, err
	}
	return nd, nil
}

// RemoveNetwork drops the specs of key and unregisters identities from it.
// Metadata goes too unless another encryption of the network still uses it.
// The verifier record stays, so trust in the network survives until a wipe.
func (d *Device) RemoveNetwork(key model.NetworkSpecsKey) error {
	specs, err := d.store.NetworkSpecs(key)
	if isNotFound(err) {
		return model.InputError("network %s is not in the database", key)
	}
	if err != nil {
		return err
	}
	siblings, err := d.store.NetworkSpecsByGenesis(key.GenesisHash)
	if err != nil {
		return err
	}

	b := store.NewBatch()
	events := []model.Event{{
		Kind:    model.EventNetworkSpecsRemoved,
		Network: &model.NetworkEvent{Name: specs.Name, GenesisHash: specs.GenesisHash, Encryption: specs.Encryption},
	}}
	if len(siblings) == 1 {
		metas, err := d.store.MetadataVersions(specs.Name)
		if err != nil {
			return err
		}
		for _, m := range metas {
			b.Delete(store.MetaKey(m.Name, m.Version))
			events = append(events, model.Event{
				Kind:     model.EventMetadataRemoved,
				Metadata: &model.MetadataEvent{Name: m.Name, Version: m.Version, Hash: m.Hash},
			})
		}
	}
	if err := d.store.StageUnregister(b, []model.NetworkSpecsKey{key}); err != nil {
		return err
	}
	b.Delete(store.SpecsKey(key))
	if err := d.apply(b, events...); err != nil {
		return err
	}
	d.logger.WithFields(logrus.Fields{"network": specs.Name, "encryption": specs.Encryption}).Info("network removed")
	return nil
}

// RemoveMetadata drops one metadata version.
func (d *Device) RemoveMetadata(name string, version uint32) error {
	rec, err := d.store.Metadata(name, version)
	if isNotFound(err) {
		return model.InputError("metadata %s%d is not in the database", name, version)
	}
	if err != nil {
		return err
	}
	b := store.NewBatch()
	b.Delete(store.MetaKey(name, version))
	return d.apply(b, model.Event{
		Kind:     model.EventMetadataRemoved,
		Metadata: &model.MetadataEvent{Name: name, Version: version, Hash: rec.Hash},
	})
}
