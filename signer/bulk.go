package signer

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/AlexZinkM/cold-signer/internal/ledger"
	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/store"
)

// BulkState is where a bulk signing stands: Ready or RequestPassword.
type BulkState interface {
	isBulkState()
}

// Ready holds one signature per transaction, in payload order.
type Ready struct {
	Signatures []model.Signature
}

// RequestPassword pauses at transaction Index until the password of its
// author is submitted. Counter is the number of the attempt being asked
// for: it starts at 1 for every key and grows with each wrong password.
type RequestPassword struct {
	Index   int
	Counter int
}

func (Ready) isBulkState()           {}
func (RequestPassword) isBulkState() {}

// BulkSigner signs the transactions of a bulk payload, asking for each
// distinct passworded key once. Pausing needs no cleanup: abandoning a
// BulkSigner leaves only what was already signed and logged.
type BulkSigner struct {
	device  *Device
	seeds   SeedProvider
	comment string

	checksum model.H256
	targets  []ledger.SignTarget
	// groups index targets by author key, in order of first occurrence.
	groups  [][]int
	group   int
	counter int
	sigs    []model.Signature
	state   BulkState
}

// StartBulk starts signing the bulk action staged under checksum and signs
// right away everything that needs no password.
func (d *Device) StartBulk(checksum model.H256, seeds SeedProvider, comment string) (*BulkSigner, BulkState, error) {
	action, err := d.ledger.PendingSign(checksum)
	if errors.Is(err, model.ErrChecksumMismatch) {
		d.logger.WithField("checksum", checksum).Warn("bulk signing refused: checksum mismatch")
	}
	if err != nil {
		return nil, nil, err
	}
	bs := &BulkSigner{
		device:   d,
		seeds:    seeds,
		comment:  comment,
		checksum: checksum,
		targets:  action.Targets,
		groups:   groupByAuthor(action.Targets),
		counter:  1,
		sigs:     make([]model.Signature, len(action.Targets)),
	}
	state, err := bs.advance()
	if err != nil {
		return nil, nil, err
	}
	return bs, state, nil
}

func groupByAuthor(targets []ledger.SignTarget) [][]int {
	var groups [][]int
	pos := make(map[string]int)
	for i, t := range targets {
		key := string(t.Author.Key())
		g, ok := pos[key]
		if !ok {
			g = len(groups)
			pos[key] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

// State is the current state.
func (bs *BulkSigner) State() BulkState { return bs.state }

// Checksum is the token the signer currently holds. It changes with every
// log entry the signer writes.
func (bs *BulkSigner) Checksum() model.H256 { return bs.checksum }

// SubmitPassword answers a RequestPassword. A wrong password is logged and
// asked for again with the counter increased; a correct one signs every
// transaction of the key and moves on.
func (bs *BulkSigner) SubmitPassword(password string) (BulkState, error) {
	req, ok := bs.state.(RequestPassword)
	if !ok {
		return bs.state, errors.New("bulk signing is not waiting for a password")
	}
	signed, err := bs.signGroup(password)
	if err != nil {
		return bs.state, err
	}
	if !signed {
		t := bs.targets[req.Index]
		if err := bs.write(false, signErrorEvent(t, bs.comment)); err != nil {
			return bs.state, err
		}
		bs.counter++
		bs.device.logger.WithFields(logrus.Fields{"index": req.Index, "attempt": bs.counter}).Warn("wrong password in bulk signing")
		bs.state = RequestPassword{Index: req.Index, Counter: bs.counter}
		return bs.state, nil
	}
	bs.group++
	bs.counter = 1
	return bs.advance()
}

func (bs *BulkSigner) advance() (BulkState, error) {
	for bs.group < len(bs.groups) {
		first := bs.groups[bs.group][0]
		if bs.targets[first].HasPassword {
			bs.state = RequestPassword{Index: first, Counter: bs.counter}
			return bs.state, nil
		}
		if _, err := bs.signGroup(""); err != nil {
			return nil, err
		}
		bs.group++
	}
	bs.state = Ready{Signatures: bs.sigs}
	bs.device.attempts = 0
	bs.device.logger.WithField("transactions", len(bs.sigs)).Info("bulk signed")
	return bs.state, nil
}

// signGroup signs every transaction of the current group. It reports false
// when the password is wrong; nothing is written then.
func (bs *BulkSigner) signGroup(password string) (bool, error) {
	idx := bs.groups[bs.group]
	seed := bs.targets[idx[0]].SeedName
	phrase, err := bs.seeds.Phrase(seed)
	if err != nil {
		return false, fmt.Errorf("failed to get phrase of seed %s: %w", seed, err)
	}
	sigs := make([]model.Signature, len(idx))
	events := make([]model.Event, len(idx))
	for n, i := range idx {
		sig, err := signTarget(bs.targets[i], phrase, password)
		if errors.Is(err, errPasswordMismatch) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		sigs[n] = sig
		events[n] = signedEvent(bs.targets[i], bs.comment)
	}
	if err := bs.write(bs.group == len(bs.groups)-1, events...); err != nil {
		return false, err
	}
	for n, i := range idx {
		bs.sigs[i] = sigs[n]
	}
	return true, nil
}

// write checks the held checksum and logs events. The final write also
// clears the pending action.
func (bs *BulkSigner) write(final bool, events ...model.Event) error {
	l := bs.device.ledger
	if err := l.Verify(bs.checksum); err != nil {
		return err
	}
	if final {
		return l.FinishSign(store.NewBatch(), events...)
	}
	next, err := l.Record(events...)
	if err != nil {
		return err
	}
	bs.checksum = next
	return nil
}
