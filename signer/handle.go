package signer

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/AlexZinkM/cold-signer/internal/cards"
	"github.com/AlexZinkM/cold-signer/internal/crypto"
	"github.com/AlexZinkM/cold-signer/internal/decoder"
	"github.com/AlexZinkM/cold-signer/internal/ledger"
	"github.com/AlexZinkM/cold-signer/internal/metadata"
	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/payload"
)

// HandlePayload decodes a hex payload as read from a QR code and evaluates
// it. Malformed, untrusted or undecodable payloads come back as ReadOnly
// with an error card; only database failures are returned as errors.
func (d *Device) HandlePayload(hexPayload string) (Action, error) {
	p, err := payload.ParseHex(hexPayload)
	if err != nil {
		return d.rejected(cards.Set{}, err)
	}
	return d.Handle(p)
}

// Handle evaluates a parsed payload. Anything mutating is staged in the
// ledger and the returned action carries its checksum.
func (d *Device) Handle(p payload.Payload) (Action, error) {
	var (
		set cards.Set
		act Action
		err error
	)
	switch p := p.(type) {
	case payload.Transaction:
		act, err = d.handleTransaction(p, &set)
	case payload.Message:
		act, err = d.handleMessage(p, &set)
	case payload.Bulk:
		act, err = d.handleBulk(p, &set)
	case payload.AddSpecs:
		act, err = d.handleAddSpecs(p, &set)
	case payload.LoadMetadata:
		act, err = d.handleLoadMetadata(p, &set)
	case payload.LoadTypes:
		act, err = d.handleLoadTypes(p, &set)
	case payload.Derivations:
		act, err = d.handleDerivations(p, &set)
	default:
		return nil, fmt.Errorf("unhandled payload %T", p)
	}
	if err != nil {
		return d.rejected(set, err)
	}
	d.logger.WithField("kind", p.Kind()).Debug("payload handled")
	return act, nil
}

func (d *Device) rejected(set cards.Set, err error) (Action, error) {
	if model.IsKind(err, model.KindDatabase) {
		return nil, err
	}
	set.Add(cards.Error{Message: err.Error()})
	d.logger.WithError(err).Info("payload rejected")
	return ReadOnly{Cards: set, Err: err}, nil
}

// prepared is a transaction ready to be staged.
type prepared struct {
	target  ledger.SignTarget
	author  model.AddressDetails
	network model.NetworkSpecs
	// known is false when the author is not an identity of this device.
	known bool
}

func (d *Device) handleTransaction(p payload.Transaction, set *cards.Set) (Action, error) {
	prep, err := d.prepareTransaction(p, set)
	if err != nil {
		return nil, err
	}
	if !prep.known {
		return ReadOnly{Cards: *set}, nil
	}
	return d.stageSign(prep, set)
}

func (d *Device) handleMessage(p payload.Message, set *cards.Set) (Action, error) {
	specs, err := d.networkFor(p.Author, p.Genesis, set)
	if err != nil {
		return nil, err
	}
	prep, err := d.resolveAuthor(p.Author, specs, set)
	if err != nil {
		return nil, err
	}
	set.Add(decoder.BytesCard(p.Message))
	if !prep.known {
		return ReadOnly{Cards: *set}, nil
	}
	prep.target.Kind = payload.KindMessage
	prep.target.Content = append([]byte{}, p.Message...)
	return d.stageSign(prep, set)
}

func (d *Device) handleBulk(p payload.Bulk, set *cards.Set) (Action, error) {
	var (
		targets []ledger.SignTarget
		sets    []cards.Set
	)
	for i, tx := range p.Transactions {
		var txSet cards.Set
		prep, err := d.prepareTransaction(tx, &txSet)
		set.Add(cards.Text{Value: fmt.Sprintf("transaction %d", i+1)})
		_ = set.Nest(func() error {
			set.Append(txSet)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i+1, err)
		}
		if !prep.known {
			return nil, model.InputError("transaction %d: author %s is not an identity of this device", i+1, tx.Author)
		}
		targets = append(targets, prep.target)
		sets = append(sets, txSet)
	}
	checksum, err := d.ledger.StageSign(ledger.SignAction{Targets: targets})
	if err != nil {
		return nil, err
	}
	d.attempts = 0
	d.logger.WithFields(logrus.Fields{"transactions": len(targets), "checksum": checksum}).Debug("bulk signing staged")
	return BulkSign{Checksum: checksum, Transactions: sets}, nil
}

// prepareTransaction renders the author and the decoded transaction into
// set. On a decoding error set keeps everything decoded so far.
func (d *Device) prepareTransaction(p payload.Transaction, set *cards.Set) (prepared, error) {
	specs, err := d.networkFor(p.Author, p.Genesis, set)
	if err != nil {
		return prepared{}, err
	}
	prep, err := d.resolveAuthor(p.Author, specs, set)
	if err != nil {
		return prep, err
	}

	candidates, err := d.candidates(specs.Name)
	if err != nil {
		return prep, err
	}
	types, err := d.typesRegistry()
	if err != nil {
		return prep, err
	}
	out, err := decoder.Transaction(decoder.TransactionInput{
		Method:     p.Method,
		Extensions: p.Extensions,
		Genesis:    p.Genesis,
		Specs:      specs,
		Candidates: candidates,
		Types:      types,
	})
	set.Append(out.Method)
	if err != nil {
		return prep, err
	}
	set.Append(out.Extensions)

	prep.target.Kind = payload.KindTransaction
	prep.target.Content = p.SigningContent()
	return prep, nil
}

// networkFor finds the specs the author signs for.
func (d *Device) networkFor(author model.MultiSigner, genesis model.H256, set *cards.Set) (model.NetworkSpecs, error) {
	key := model.NetworkSpecsKey{GenesisHash: genesis, Encryption: author.Encryption}
	specs, err := d.store.NetworkSpecs(key)
	if isNotFound(err) {
		set.Add(cards.ID{Address: crypto.SS58Encode(author.PublicKey, 42), PublicKey: author.PublicKey, Encryption: author.Encryption})
		return specs, model.InputError("network with genesis hash %s and %s encryption is not in the database, add its specs first",
			genesis, author.Encryption)
	}
	return specs, err
}

// resolveAuthor adds the author card. An author that is not a device
// identity registered for the network yields a warning instead.
func (d *Device) resolveAuthor(author model.MultiSigner, specs model.NetworkSpecs, set *cards.Set) (prepared, error) {
	prep := prepared{network: specs}
	address := crypto.SS58Encode(author.PublicKey, specs.Base58Prefix)
	details, err := d.store.Address(author)
	switch {
	case isNotFound(err):
	case err != nil:
		return prep, err
	case details.InNetwork(specs.Key()):
		prep.known = true
	}
	if !prep.known {
		set.Add(cards.ID{Address: address, PublicKey: author.PublicKey, Encryption: author.Encryption})
		set.Add(cards.Warning{Message: fmt.Sprintf("%s is not an identity of this device for %s; the payload can only be displayed", address, specs.Name)})
		return prep, nil
	}
	set.Add(cards.Author{
		Address:  address,
		SeedName: details.SeedName,
		Path:     details.Path,
		Signer:   author,
		Password: details.HasPassword,
	})
	prep.author = details
	prep.target = ledger.SignTarget{
		Author:      author,
		SeedName:    details.SeedName,
		Path:        details.Path,
		HasPassword: details.HasPassword,
		Network:     specs.Key(),
		NetworkName: specs.Name,
	}
	return prep, nil
}

func (d *Device) stageSign(prep prepared, set *cards.Set) (Action, error) {
	checksum, err := d.ledger.StageSign(ledger.SignAction{Targets: []ledger.SignTarget{prep.target}})
	if err != nil {
		return nil, err
	}
	d.attempts = 0
	d.logger.WithFields(logrus.Fields{
		"kind":     prep.target.Kind,
		"network":  prep.network.Name,
		"checksum": checksum,
	}).Debug("signing staged")
	return SignPending{
		Checksum: checksum,
		Kind:     prep.target.Kind,
		Author:   prep.author,
		Network:  prep.network,
		Cards:    *set,
	}, nil
}

// candidates parses every stored metadata version of a network, newest first.
func (d *Device) candidates(name string) ([]decoder.Candidate, error) {
	records, err := d.store.MetadataVersions(name)
	if err != nil {
		return nil, err
	}
	out := make([]decoder.Candidate, 0, len(records))
	for _, rec := range records {
		meta, err := metadata.Parse(rec.Meta)
		if err != nil {
			return nil, model.DatabaseError(err, "stored metadata %s%d is corrupted", rec.Name, rec.Version)
		}
		out = append(out, decoder.Candidate{Version: rec.Version, Meta: meta})
	}
	return out, nil
}

func (d *Device) typesRegistry() (metadata.Registry, error) {
	rec, err := d.store.Types()
	if err != nil || rec == nil {
		return nil, err
	}
	entries, err := metadata.ParseTypes(rec.Content)
	if err != nil {
		return nil, model.DatabaseError(err, "stored types information is corrupted")
	}
	return metadata.NewRegistry(entries), nil
}
