package signer

import (
	"strconv"

	"github.com/AlexZinkM/cold-signer/internal/cards"
	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/payload"
)

// Action is the outcome of handling a payload. It is one of ReadOnly,
// SignPending, Stub, DerivationsPreview or BulkSign.
type Action interface {
	// Display is the card set to show the operator.
	Display() cards.Set
	isAction()
}

// ReadOnly can only be shown. Err is set when the payload was rejected; its
// message is also the last card.
type ReadOnly struct {
	Cards cards.Set
	Err   error
}

// SignPending awaits Sign with Checksum.
type SignPending struct {
	Checksum model.H256
	Kind     payload.Kind
	Author   model.AddressDetails
	Network  model.NetworkSpecs
	Cards    cards.Set
}

// Stub is an update awaiting Commit with Checksum.
type Stub struct {
	Checksum model.H256
	Kind     payload.Kind
	Cards    cards.Set
}

// DerivationsPreview awaits ImportDerivations with Checksum.
type DerivationsPreview struct {
	Checksum model.H256
	Network  model.NetworkSpecs
	Valid    []string
	Invalid  []string
	Cards    cards.Set
}

// BulkSign awaits StartBulk with Checksum. Transactions hold one card set per
// transaction, in payload order.
type BulkSign struct {
	Checksum     model.H256
	Transactions []cards.Set
}

func (a ReadOnly) Display() cards.Set           { return a.Cards }
func (a SignPending) Display() cards.Set        { return a.Cards }
func (a Stub) Display() cards.Set               { return a.Cards }
func (a DerivationsPreview) Display() cards.Set { return a.Cards }

func (a BulkSign) Display() cards.Set {
	var out cards.Set
	for i, tx := range a.Transactions {
		out.Add(cards.Text{Value: "transaction " + strconv.Itoa(i+1)})
		_ = out.Nest(func() error {
			out.Append(tx)
			return nil
		})
	}
	return out
}

func (ReadOnly) isAction()           {}
func (SignPending) isAction()        {}
func (Stub) isAction()               {}
func (DerivationsPreview) isAction() {}
func (BulkSign) isAction()           {}
