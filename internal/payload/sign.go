package payload

import (
	"errors"
	"fmt"

	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/scale"
)

// Transaction asks the signer to sign a call with its extensions.
type Transaction struct {
	Author     model.MultiSigner
	Method     []byte
	Extensions []byte
	Genesis    model.H256
}

// Message asks the signer to sign arbitrary bytes.
type Message struct {
	Author  model.MultiSigner
	Message []byte
	Genesis model.H256
}

// Bulk carries several transactions to sign in one pass.
type Bulk struct {
	Transactions []Transaction
}

func (Transaction) Kind() Kind { return KindTransaction }
func (Message) Kind() Kind     { return KindMessage }
func (Bulk) Kind() Kind        { return KindBulk }

func (Transaction) isPayload() {}
func (Message) isPayload()     {}
func (Bulk) isPayload()        {}

// SigningContent is what gets signed: the method without its length prefix
// followed by the extensions.
func (t Transaction) SigningContent() []byte {
	out := make([]byte, 0, len(t.Method)+len(t.Extensions))
	out = append(out, t.Method...)
	return append(out, t.Extensions...)
}

func (t Transaction) Encode() []byte {
	return prelude(KindTransaction, byte(t.Author.Encryption)).
		Raw(t.Author.PublicKey).
		ByteVec(t.Method).
		Raw(t.Extensions).
		Raw(t.Genesis[:]).
		Bytes()
}

func (m Message) Encode() []byte {
	return prelude(KindMessage, byte(m.Author.Encryption)).
		Raw(m.Author.PublicKey).
		ByteVec(m.Message).
		Raw(m.Genesis[:]).
		Bytes()
}

func (b Bulk) Encode() []byte {
	w := scale.NewWriter().U8(Marker).U8(byte(KindBulk)).Compact(uint64(len(b.Transactions)))
	for _, t := range b.Transactions {
		w.ByteVec(t.Encode())
	}
	return w.Bytes()
}

func parseTransaction(data []byte) (Transaction, error) {
	var t Transaction
	r := scale.NewReader(data[2:])
	var err error
	if t.Author, err = readSigner(r); err != nil {
		return t, fmt.Errorf("author: %w", err)
	}
	method, err := r.ByteVec()
	if err != nil {
		return t, fmt.Errorf("method: %w", err)
	}
	rest := r.Rest()
	if len(rest) < 32 {
		return t, errors.New("missing genesis hash")
	}
	t.Method = append([]byte{}, method...)
	t.Extensions = append([]byte{}, rest[:len(rest)-32]...)
	copy(t.Genesis[:], rest[len(rest)-32:])
	return t, nil
}

func parseMessage(data []byte) (Message, error) {
	var m Message
	r := scale.NewReader(data[2:])
	var err error
	if m.Author, err = readSigner(r); err != nil {
		return m, fmt.Errorf("author: %w", err)
	}
	msg, err := r.ByteVec()
	if err != nil {
		return m, fmt.Errorf("message: %w", err)
	}
	m.Message = append([]byte{}, msg...)
	g, err := r.Array32()
	if err != nil {
		return m, fmt.Errorf("genesis hash: %w", err)
	}
	m.Genesis = g
	return m, r.Done()
}

func parseBulk(data []byte) (Bulk, error) {
	var b Bulk
	r := scale.NewReader(data[2:])
	n, err := r.CompactLen(3)
	if err != nil {
		return b, fmt.Errorf("transaction count: %w", err)
	}
	if n == 0 {
		return b, errors.New("bulk payload holds no transactions")
	}
	for i := 0; i < n; i++ {
		raw, err := r.ByteVec()
		if err != nil {
			return b, fmt.Errorf("transaction %d: %w", i, err)
		}
		if len(raw) < 3 || raw[0] != Marker || Kind(raw[1]) != KindTransaction {
			return b, fmt.Errorf("transaction %d is not a transaction payload", i)
		}
		t, err := parseTransaction(raw)
		if err != nil {
			return b, fmt.Errorf("transaction %d: %w", i, err)
		}
		b.Transactions = append(b.Transactions, t)
	}
	return b, r.Done()
}
