package signer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/AlexZinkM/cold-signer/internal/cards"
	"github.com/AlexZinkM/cold-signer/internal/crypto"
	"github.com/AlexZinkM/cold-signer/internal/ledger"
	"github.com/AlexZinkM/cold-signer/internal/metadata"
	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/payload"
	"github.com/AlexZinkM/cold-signer/internal/store"
	"github.com/AlexZinkM/cold-signer/internal/trust"
)

// genericPrefix renders verifier keys, which are not bound to one network.
const genericPrefix = 42

func (d *Device) handleAddSpecs(p payload.AddSpecs, set *cards.Set) (Action, error) {
	specs := p.Specs
	addVerifierCard(p.Signed, set)
	out, err := trust.Evaluate(d.store, trust.Request{
		Kind:    payload.KindAddSpecs,
		Signed:  p.Signed,
		Genesis: specs.GenesisHash,
		Scope:   trust.ScopeNetwork,
	})
	if err != nil {
		return nil, err
	}

	all, err := d.store.AllNetworkSpecs()
	if err != nil {
		return nil, err
	}
	purged := purgedSpecs(out.Purge)
	var existing *model.NetworkSpecs
	for i, s := range all {
		if purged[s.Key()] {
			continue
		}
		switch {
		case s.Key() == specs.Key():
			existing = &all[i]
		case s.GenesisHash == specs.GenesisHash && s.Name != specs.Name:
			return nil, model.InputError("network %s is already known as %s; names of one network must match across encryptions",
				specs.GenesisHash, s.Name)
		case s.GenesisHash != specs.GenesisHash && s.Name == specs.Name:
			return nil, model.InputError("network name %s is already used by genesis hash %s", specs.Name, s.GenesisHash)
		}
	}
	if existing != nil {
		if changed := existing.ImportantChanged(specs); len(changed) > 0 {
			return nil, model.InputError("network specs %s (%s) are already in the database with different %s; remove the network first",
				specs.Name, specs.Encryption, strings.Join(changed, ", "))
		}
		if *existing == specs && !trustChanged(out) {
			return nil, model.NewError(model.KindInput, model.ErrAlreadyInDatabase, "network specs %s (%s)", specs.Name, specs.Encryption)
		}
	}

	stub := stubFromOutcome(payload.KindAddSpecs, specs.GenesisHash, out)
	stub.AddSpecs = &specs
	verifier, err := d.effectiveVerifier(specs.GenesisHash, out)
	if err != nil {
		return nil, err
	}
	stub.Events = append(stub.Events, model.Event{Kind: model.EventNetworkSpecsAdded, Network: networkEvent(specs, verifier)})

	addWarnings(out, set)
	set.Add(cards.NewSpecs{Specs: specs})
	return d.stageStub(stub, set)
}

func (d *Device) handleLoadMetadata(p payload.LoadMetadata, set *cards.Set) (Action, error) {
	meta, err := metadata.Parse(p.Meta)
	if err != nil {
		return nil, model.NewError(model.KindInput, err, "failed to parse metadata")
	}
	networks, err := d.store.NetworkSpecsByGenesis(p.Genesis)
	if err != nil {
		return nil, err
	}
	if len(networks) == 0 {
		return nil, model.InputError("network with genesis hash %s is not in the database, add its specs first", p.Genesis)
	}
	name, version := networks[0].Name, meta.Runtime.SpecVersion
	if meta.Runtime.SpecName != name {
		return nil, model.InputError("metadata is for %s, network %s is %s", meta.Runtime.SpecName, p.Genesis, name)
	}

	addVerifierCard(p.Signed, set)
	out, err := trust.Evaluate(d.store, trust.Request{
		Kind:    payload.KindLoadMetadata,
		Signed:  p.Signed,
		Genesis: p.Genesis,
		Scope:   trust.ScopeNetwork,
	})
	if err != nil {
		return nil, err
	}

	rec := model.MetadataRecord{Name: name, Version: version, Meta: p.Meta, Hash: crypto.Blake2b256(p.Meta)}
	stored, err := d.store.Metadata(name, version)
	switch {
	case isNotFound(err):
	case err != nil:
		return nil, err
	case purgedMetadata(out.Purge, rec.Name, rec.Version):
	case stored.Hash != rec.Hash:
		return nil, model.InputError("metadata %s%d is already in the database with different content (hash %s, offered %s)",
			name, version, stored.Hash, rec.Hash)
	case !trustChanged(out):
		return nil, model.NewError(model.KindInput, model.ErrAlreadyInDatabase, "metadata %s%d", name, version)
	}

	stub := stubFromOutcome(payload.KindLoadMetadata, p.Genesis, out)
	stub.AddMetadata = &rec
	stub.Events = append(stub.Events, model.Event{
		Kind:     model.EventMetadataAdded,
		Metadata: &model.MetadataEvent{Name: name, Version: version, Hash: rec.Hash},
	})

	addWarnings(out, set)
	set.Add(cards.Meta{Name: name, Version: version, Hash: rec.Hash})
	return d.stageStub(stub, set)
}

func (d *Device) handleLoadTypes(p payload.LoadTypes, set *cards.Set) (Action, error) {
	entries, err := metadata.ParseTypes(p.Types)
	if err != nil {
		return nil, model.NewError(model.KindInput, err, "failed to parse types information")
	}
	addVerifierCard(p.Signed, set)
	out, err := trust.Evaluate(d.store, trust.Request{
		Kind:   payload.KindLoadTypes,
		Signed: p.Signed,
		Scope:  trust.ScopeGeneral,
	})
	if err != nil {
		return nil, err
	}

	rec := model.TypesRecord{Content: p.Types, Hash: crypto.Blake2b256(p.Types)}
	stored, err := d.store.Types()
	if err != nil {
		return nil, err
	}
	if stored != nil && stored.Hash == rec.Hash && !trustChanged(out) {
		return nil, model.NewError(model.KindInput, model.ErrAlreadyInDatabase, "types information")
	}
	if stored != nil && stored.Hash != rec.Hash {
		set.Add(cards.Warning{Message: fmt.Sprintf("types information %s on file will be replaced", stored.Hash)})
	}

	stub := stubFromOutcome(payload.KindLoadTypes, model.H256{}, out)
	stub.AddTypes = &rec
	stub.Events = append(stub.Events, model.Event{Kind: model.EventTypesAdded, Message: rec.Hash.String()})

	addWarnings(out, set)
	set.Add(cards.Types{Hash: rec.Hash, Count: len(entries)})
	return d.stageStub(stub, set)
}

func (d *Device) handleDerivations(p payload.Derivations, set *cards.Set) (Action, error) {
	key := model.NetworkSpecsKey{GenesisHash: p.Genesis, Encryption: p.Encryption}
	specs, err := d.store.NetworkSpecs(key)
	if isNotFound(err) {
		return nil, model.InputError("network with genesis hash %s and %s encryption is not in the database", p.Genesis, p.Encryption)
	}
	if err != nil {
		return nil, err
	}

	valid, invalid := splitDerivations(p.Paths, p.Encryption)
	if len(valid) == 0 {
		return nil, model.InputError("no importable derivations for %s: %s", specs.Name, strings.Join(invalid, ", "))
	}
	set.Add(cards.Derivations{Network: specs.Name, Derivations: valid})
	if len(invalid) > 0 {
		set.Add(cards.Warning{Message: "skipped derivations: " + strings.Join(invalid, ", ")})
	}

	stub := ledger.Stub{
		Kind:        payload.KindDerivations,
		Derivations: &ledger.Derivations{Network: key, Paths: valid},
	}
	checksum, err := d.ledger.StageStub(stub)
	if err != nil {
		return nil, err
	}
	d.logger.WithFields(logrus.Fields{"network": specs.Name, "derivations": len(valid)}).Debug("derivations staged")
	return DerivationsPreview{Checksum: checksum, Network: specs, Valid: valid, Invalid: invalid, Cards: *set}, nil
}

// splitDerivations keeps derivations that can be imported without operator
// input. Passworded ones need the password and soft ones need sr25519.
func splitDerivations(paths []string, enc model.Encryption) (valid, invalid []string) {
	seen := make(map[string]bool)
	for _, path := range paths {
		if seen[path] {
			continue
		}
		seen[path] = true
		der, err := crypto.ParseDerivation(path)
		switch {
		case err != nil:
			invalid = append(invalid, fmt.Sprintf("%q (%v)", path, err))
		case der.Password != nil:
			invalid = append(invalid, fmt.Sprintf("%q (passworded)", der.Path()+"///"))
		case der.HasSoft() && enc != model.Sr25519:
			invalid = append(invalid, fmt.Sprintf("%q (soft derivation with %s)", path, enc))
		default:
			valid = append(valid, path)
		}
	}
	return valid, invalid
}

func (d *Device) stageStub(stub ledger.Stub, set *cards.Set) (Action, error) {
	checksum, err := d.ledger.StageStub(stub)
	if err != nil {
		return nil, err
	}
	d.logger.WithFields(logrus.Fields{"kind": stub.Kind, "checksum": checksum}).Debug("update staged")
	return Stub{Checksum: checksum, Kind: stub.Kind, Cards: *set}, nil
}

// stubFromOutcome turns an accepted trust evaluation into the verifier
// changes and purges of a stub, with their events.
func stubFromOutcome(kind payload.Kind, genesis model.H256, out trust.Outcome) ledger.Stub {
	stub := ledger.Stub{Kind: kind}
	for _, w := range out.Warnings {
		stub.Events = append(stub.Events, model.Event{Kind: model.EventWarning, Message: w})
	}
	if g := out.NewGeneral; g != nil {
		stub.GeneralVerifier = g
		stub.Events = append(stub.Events, model.Event{
			Kind:     model.EventGeneralVerifierSet,
			Verifier: &model.VerifierEvent{Verifier: g.String()},
		})
	}
	if v := out.NetworkVerifier; v != nil {
		stub.NetworkVerifier = &ledger.NetworkVerifierChange{Genesis: genesis, Verifier: *v}
		if v.Kind != model.VerifierNone {
			g := genesis
			stub.Events = append(stub.Events, model.Event{
				Kind:     model.EventNetworkVerifierSet,
				Verifier: &model.VerifierEvent{GenesisHash: &g, Verifier: v.String()},
			})
		}
	}
	for _, s := range out.Purge.Specs {
		stub.RemoveSpecs = append(stub.RemoveSpecs, s.Key())
		stub.Events = append(stub.Events, model.Event{
			Kind:    model.EventNetworkSpecsRemoved,
			Network: &model.NetworkEvent{Name: s.Name, GenesisHash: s.GenesisHash, Encryption: s.Encryption},
		})
	}
	for _, m := range out.Purge.Metadata {
		stub.RemoveMetadata = append(stub.RemoveMetadata, m)
		stub.Events = append(stub.Events, model.Event{
			Kind:     model.EventMetadataRemoved,
			Metadata: &model.MetadataEvent{Name: m.Name, Version: m.Version},
		})
	}
	if out.Purge.Types {
		stub.RemoveTypes = true
		stub.Events = append(stub.Events, model.Event{Kind: model.EventTypesRemoved})
	}
	return stub
}

// effectiveVerifier is the verifier of genesis once out is committed.
func (d *Device) effectiveVerifier(genesis model.H256, out trust.Outcome) (model.CurrentVerifier, error) {
	if out.NetworkVerifier != nil {
		return *out.NetworkVerifier, nil
	}
	v, _, err := d.store.NetworkVerifier(genesis)
	return v, err
}

func trustChanged(out trust.Outcome) bool {
	return out.NewGeneral != nil || !out.Purge.Empty() ||
		(out.NetworkVerifier != nil && out.NetworkVerifier.Kind != model.VerifierNone)
}

func purgedSpecs(p trust.Purge) map[model.NetworkSpecsKey]bool {
	out := make(map[model.NetworkSpecsKey]bool, len(p.Specs))
	for _, s := range p.Specs {
		out[s.Key()] = true
	}
	return out
}

func purgedMetadata(p trust.Purge, name string, version uint32) bool {
	for _, m := range p.Metadata {
		if m.Name == name && m.Version == version {
			return true
		}
	}
	return false
}

func addVerifierCard(s payload.Signed, set *cards.Set) {
	if !s.IsSigned() {
		return
	}
	set.Add(cards.Verifier{Signer: *s.Verifier, Address: crypto.SS58Encode(s.Verifier.PublicKey, genericPrefix)})
}

func addWarnings(out trust.Outcome, set *cards.Set) {
	for _, w := range out.Warnings {
		set.Add(cards.Warning{Message: w})
	}
}

// Commit applies the update staged under checksum.
func (d *Device) Commit(checksum model.H256) error {
	stub, err := d.ledger.CommitStub(checksum, func(_ *store.Batch, stub ledger.Stub) ([]model.Event, error) {
		if stub.Derivations != nil {
			return nil, model.InputError("derivations are imported with ImportDerivations")
		}
		return nil, nil
	})
	if errors.Is(err, model.ErrChecksumMismatch) {
		d.logger.WithField("checksum", checksum).Warn("commit refused: checksum mismatch")
	}
	if err != nil {
		return err
	}
	d.logger.WithFields(logrus.Fields{"kind": stub.Kind, "events": len(stub.Events)}).Info("update committed")
	return nil
}

// ImportDerivations commits a staged derivations stub for seedName,
// deriving every path from phrase. It returns the number of identities
// added or registered for the network.
func (d *Device) ImportDerivations(checksum model.H256, seedName, phrase string) (int, error) {
	if err := d.checkPhrase(seedName, phrase); err != nil {
		return 0, err
	}
	var added int
	stub, err := d.ledger.CommitStub(checksum, func(b *store.Batch, stub ledger.Stub) ([]model.Event, error) {
		if stub.Derivations == nil {
			return nil, model.InputError("no derivations are staged")
		}
		network := stub.Derivations.Network
		ab := newAddressBatch(d.store)
		for _, path := range stub.Derivations.Paths {
			pub, err := crypto.PublicKey(network.Encryption, phrase, path)
			if err != nil {
				return nil, model.NewError(model.KindInput, err, "failed to derive %q", path)
			}
			signer := model.MultiSigner{Encryption: network.Encryption, PublicKey: pub}
			if _, err := ab.add(seedName, path, false, signer, &network); err != nil {
				return nil, err
			}
		}
		if err := ab.stage(b); err != nil {
			return nil, err
		}
		added = len(ab.events)
		return append([]model.Event{{
			Kind:    model.EventDerivationsImported,
			Message: fmt.Sprintf("%d derivations for seed %s", len(stub.Derivations.Paths), seedName),
		}}, ab.events...), nil
	})
	if errors.Is(err, model.ErrChecksumMismatch) {
		d.logger.WithField("checksum", checksum).Warn("import refused: checksum mismatch")
	}
	if err != nil {
		return 0, err
	}
	d.logger.WithFields(logrus.Fields{"seed": seedName, "network": stub.Derivations.Network, "added": added}).Info("derivations imported")
	return added, nil
}
