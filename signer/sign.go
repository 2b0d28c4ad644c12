package signer

import (
	"bytes"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/AlexZinkM/cold-signer/internal/crypto"
	"github.com/AlexZinkM/cold-signer/internal/ledger"
	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/payload"
	"github.com/AlexZinkM/cold-signer/internal/store"
)

// errPasswordMismatch is the internal outcome of a wrong password; callers
// turn it into a WrongPasswordError carrying a fresh checksum.
var errPasswordMismatch = errors.New("re-derived key does not match")

// Sign signs the transaction or message staged under checksum with the key
// of its author, re-derived from phrase and password. A wrong password is
// logged and returned as a *model.WrongPasswordError whose Checksum must be
// used for the next attempt.
func (d *Device) Sign(checksum model.H256, phrase, password, comment string) (model.Signature, error) {
	action, err := d.ledger.PendingSign(checksum)
	if errors.Is(err, model.ErrChecksumMismatch) {
		d.logger.WithField("checksum", checksum).Warn("signing refused: checksum mismatch")
	}
	if err != nil {
		return model.Signature{}, err
	}
	if len(action.Targets) != 1 {
		return model.Signature{}, model.InputError("pending action holds %d transactions, sign it with StartBulk", len(action.Targets))
	}
	target := action.Targets[0]

	sig, err := signTarget(target, phrase, password)
	if errors.Is(err, errPasswordMismatch) {
		return model.Signature{}, d.wrongPassword(target, comment)
	}
	if err != nil {
		return model.Signature{}, err
	}
	if err := d.ledger.FinishSign(store.NewBatch(), signedEvent(target, comment)); err != nil {
		return model.Signature{}, err
	}
	d.attempts = 0
	d.logger.WithFields(logrus.Fields{"kind": target.Kind, "network": target.NetworkName}).Info("signed")
	return sig, nil
}

// wrongPassword logs a failed attempt. The log entry changes the store, so
// the returned error carries the checksum for the next attempt.
func (d *Device) wrongPassword(target ledger.SignTarget, comment string) error {
	next, err := d.ledger.Record(signErrorEvent(target, comment))
	if err != nil {
		return err
	}
	d.attempts++
	d.logger.WithFields(logrus.Fields{"network": target.NetworkName, "attempts": d.attempts}).Warn("wrong password")
	return &model.WrongPasswordError{Checksum: next, Counter: d.attempts + 1}
}

// signTarget re-derives the author key and signs the target content. The
// derived public key must match the one on file; with a password that is
// errPasswordMismatch.
func signTarget(t ledger.SignTarget, phrase, password string) (model.Signature, error) {
	derivation := t.Path
	if t.HasPassword {
		if password == "" {
			return model.Signature{}, errPasswordMismatch
		}
		derivation += "///" + password
	}
	pair, err := crypto.DerivePair(t.Author.Encryption, phrase, derivation)
	if err != nil {
		return model.Signature{}, model.NewError(model.KindInput, err, "failed to derive key for %s", t.Path)
	}
	defer pair.Wipe()

	if !bytes.Equal(pair.Public(), t.Author.PublicKey) {
		if t.HasPassword {
			return model.Signature{}, errPasswordMismatch
		}
		return model.Signature{}, model.InputError("phrase does not belong to seed %s", t.SeedName)
	}
	raw, err := pair.Sign(crypto.SigningPayload(t.Content))
	if err != nil {
		return model.Signature{}, err
	}
	return model.Signature{
		Encryption: t.Author.Encryption,
		Bytes:      raw,
		Signer:     t.Author.PublicKey,
		Network:    t.NetworkName,
	}, nil
}

func signEvent(t ledger.SignTarget, comment string) *model.SignEvent {
	return &model.SignEvent{
		Transaction: t.Content,
		NetworkName: t.NetworkName,
		SignedBy:    t.Author.String(),
		UserComment: comment,
	}
}

func signedEvent(t ledger.SignTarget, comment string) model.Event {
	kind := model.EventTransactionSigned
	if t.Kind == payload.KindMessage {
		kind = model.EventMessageSigned
	}
	return model.Event{Kind: kind, Sign: signEvent(t, comment)}
}

func signErrorEvent(t ledger.SignTarget, comment string) model.Event {
	kind := model.EventTransactionSignError
	if t.Kind == payload.KindMessage {
		kind = model.EventMessageSignError
	}
	return model.Event{Kind: kind, Sign: signEvent(t, comment)}
}
