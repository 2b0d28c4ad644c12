package signer

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/cold-signer/internal/cards"
	"github.com/AlexZinkM/cold-signer/internal/crypto"
	"github.com/AlexZinkM/cold-signer/internal/defaults"
	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/payload"
	"github.com/AlexZinkM/cold-signer/internal/store"
	"github.com/AlexZinkM/cold-signer/internal/testutil"
)

const phrase = "bottom drive obey lake curtain smoke basket hold race lonely fit walk"

var (
	genesis   = model.H256{0xe1, 0x43}
	blockHash = [32]byte{0xbb}
	dest      = bytes.Repeat([]byte{0x8e}, 32)
)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

type seedMap map[string]string

func (m seedMap) Phrase(name string) (string, error) {
	p, ok := m[name]
	if !ok {
		return "", errors.New("no such seed")
	}
	return p, nil
}

func westend() model.NetworkSpecs {
	return model.NetworkSpecs{
		Base58Prefix: 42,
		Decimals:     12,
		Encryption:   model.Sr25519,
		GenesisHash:  genesis,
		Name:         "westend",
		PathID:       "westend",
		Title:        "Westend",
		Unit:         "WND",
	}
}

// newDevice is an initialized device knowing westend, with no general
// verifier so unsigned updates are accepted.
func newDevice(t *testing.T) *Device {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	d := New(s, Options{Clock: fixedClock{}})
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, d.Init(defaults.Defaults{Networks: []model.NetworkSpecs{westend()}}))
	return d
}

func commitMetadata(t *testing.T, d *Device, version uint32) {
	t.Helper()
	act, err := d.Handle(payload.LoadMetadata{Meta: testutil.MetadataV14("westend", version), Genesis: genesis})
	require.NoError(t, err)
	stub, ok := act.(Stub)
	require.True(t, ok, "got %T: %s", act, act.Display())
	require.NoError(t, d.Commit(stub.Checksum))
}

// readyDevice also has westend9430 metadata and the seed Alice.
func readyDevice(t *testing.T) *Device {
	t.Helper()
	d := newDevice(t)
	commitMetadata(t, d, 9430)
	require.NoError(t, d.CreateSeed("Alice", phrase, nil))
	return d
}

func signerAt(t *testing.T, derivation string) model.MultiSigner {
	t.Helper()
	pub, err := crypto.PublicKey(model.Sr25519, phrase, derivation)
	require.NoError(t, err)
	return model.MultiSigner{Encryption: model.Sr25519, PublicKey: pub}
}

func transfer(author model.MultiSigner, nonce uint64) payload.Transaction {
	return payload.Transaction{
		Author:     author,
		Method:     testutil.TransferKeepAlive(dest, big.NewInt(1_000_000_000_000)),
		Extensions: testutil.Extensions(testutil.Immortal, nonce, 0, 9430, 1, genesis, blockHash),
		Genesis:    genesis,
	}
}

func verifySignature(t *testing.T, sig model.Signature, content []byte) {
	t.Helper()
	signer := model.MultiSigner{Encryption: sig.Encryption, PublicKey: sig.Signer}
	require.NoError(t, crypto.Verify(signer, crypto.SigningPayload(content), sig.Bytes))
}

func lastEvents(t *testing.T, d *Device) []model.Event {
	t.Helper()
	entries, err := d.History()
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	return entries[len(entries)-1].Events
}

func TestInitTwiceFails(t *testing.T) {
	d := newDevice(t)
	err := d.Init(defaults.Defaults{})
	require.True(t, model.IsKind(err, model.KindInput))

	entries, err := d.History()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, model.EventDatabaseInitiated, entries[0].Events[0].Kind)
}

func TestTransactionSignFlow(t *testing.T) {
	d := readyDevice(t)
	author := signerAt(t, "//westend")
	tx := transfer(author, 1)

	act, err := d.Handle(tx)
	require.NoError(t, err)
	pending, ok := act.(SignPending)
	require.True(t, ok, "got %T: %s", act, act.Display())
	require.Equal(t, "//westend", pending.Author.Path)
	require.Equal(t, "westend", pending.Network.Name)

	got := pending.Cards.Cards()
	require.Equal(t, cards.Author{
		Address:  crypto.SS58Encode(author.PublicKey, 42),
		SeedName: "Alice",
		Path:     "//westend",
		Signer:   author,
	}, got[0])
	require.Equal(t, cards.Pallet{Name: "Balances"}, got[1])
	require.False(t, pending.Cards.HasError())

	sig, err := d.Sign(pending.Checksum, phrase, "", "rent")
	require.NoError(t, err)
	require.Equal(t, model.Sr25519, sig.Encryption)
	require.Equal(t, "westend", sig.Network)
	verifySignature(t, sig, tx.SigningContent())

	events := lastEvents(t, d)
	require.Equal(t, model.EventTransactionSigned, events[0].Kind)
	require.Equal(t, "rent", events[0].Sign.UserComment)
	require.Equal(t, tx.SigningContent(), events[0].Sign.Transaction)

	_, err = d.Sign(pending.Checksum, phrase, "", "again")
	require.ErrorIs(t, err, model.ErrChecksumMismatch)
}

func TestDecodingTwiceGivesSameChecksum(t *testing.T) {
	d := readyDevice(t)
	raw := hex.EncodeToString(transfer(signerAt(t, "//westend"), 1).Encode())

	first, err := d.HandlePayload(raw)
	require.NoError(t, err)
	second, err := d.HandlePayload(raw)
	require.NoError(t, err)
	require.Equal(t, first.(SignPending).Checksum, second.(SignPending).Checksum)
}

func TestMessageSign(t *testing.T) {
	d := readyDevice(t)
	msg := payload.Message{Author: signerAt(t, "//westend"), Message: []byte("<Bytes>proof of ownership</Bytes>"), Genesis: genesis}

	act, err := d.Handle(msg)
	require.NoError(t, err)
	pending := act.(SignPending)
	require.Equal(t, payload.KindMessage, pending.Kind)

	sig, err := d.Sign(pending.Checksum, phrase, "", "")
	require.NoError(t, err)
	verifySignature(t, sig, msg.Message)
	require.Equal(t, model.EventMessageSigned, lastEvents(t, d)[0].Kind)
}

func TestTruncatedMethodKeepsAuthorCard(t *testing.T) {
	d := readyDevice(t)
	tx := transfer(signerAt(t, "//westend"), 1)
	tx.Method = tx.Method[:10]

	act, err := d.Handle(tx)
	require.NoError(t, err)
	ro, ok := act.(ReadOnly)
	require.True(t, ok)
	require.True(t, model.IsKind(ro.Err, model.KindDecode))

	got := ro.Cards.Cards()
	require.IsType(t, cards.Author{}, got[0])
	errCards := 0
	for _, c := range got {
		if _, ok := c.(cards.Error); ok {
			errCards++
		}
	}
	require.Equal(t, 1, errCards)
	require.IsType(t, cards.Error{}, got[len(got)-1])
}

func TestUnknownAuthorIsReadOnly(t *testing.T) {
	d := readyDevice(t)
	stranger := signerAt(t, "//stranger")

	act, err := d.Handle(transfer(stranger, 1))
	require.NoError(t, err)
	ro, ok := act.(ReadOnly)
	require.True(t, ok)
	require.NoError(t, ro.Err)
	got := ro.Cards.Cards()
	require.Equal(t, crypto.SS58Encode(stranger.PublicKey, 42), got[0].(cards.ID).Address)
	require.IsType(t, cards.Warning{}, got[1])
	require.IsType(t, cards.Pallet{}, got[2])
}

func TestUnknownNetworkIsRejected(t *testing.T) {
	d := readyDevice(t)
	tx := transfer(signerAt(t, "//westend"), 1)
	tx.Genesis = model.H256{0x99}

	act, err := d.Handle(tx)
	require.NoError(t, err)
	ro := act.(ReadOnly)
	require.True(t, model.IsKind(ro.Err, model.KindInput))
	require.Contains(t, ro.Err.Error(), "add its specs first")
}

func TestMalformedHexIsReadOnly(t *testing.T) {
	d := newDevice(t)
	act, err := d.HandlePayload("53zz")
	require.NoError(t, err)
	ro := act.(ReadOnly)
	require.True(t, model.IsKind(ro.Err, model.KindInput))
	require.Equal(t, 1, ro.Cards.Len())
}

func TestSignWrongPasswordThenRetry(t *testing.T) {
	d := readyDevice(t)
	network := westend().Key()
	require.NoError(t, d.CreateAddress("Alice", phrase, "//vault///secret", network))
	author := signerAt(t, "//vault///secret")
	tx := transfer(author, 2)

	act, err := d.Handle(tx)
	require.NoError(t, err)
	pending := act.(SignPending)
	require.True(t, pending.Author.HasPassword)
	require.Equal(t, "//vault", pending.Author.Path)

	_, err = d.Sign(pending.Checksum, phrase, "guess", "")
	var wp *model.WrongPasswordError
	require.ErrorAs(t, err, &wp)
	require.Equal(t, 2, wp.Counter)
	require.NotEqual(t, pending.Checksum, wp.Checksum)
	require.Equal(t, model.EventTransactionSignError, lastEvents(t, d)[0].Kind)

	_, err = d.Sign(pending.Checksum, phrase, "secret", "")
	require.ErrorIs(t, err, model.ErrChecksumMismatch)

	sig, err := d.Sign(wp.Checksum, phrase, "secret", "")
	require.NoError(t, err)
	verifySignature(t, sig, tx.SigningContent())
}

func TestSignWithWrongPhrase(t *testing.T) {
	d := readyDevice(t)
	act, err := d.Handle(transfer(signerAt(t, "//westend"), 1))
	require.NoError(t, err)

	other, err := GenerateRandomPhrase(12)
	require.NoError(t, err)
	_, err = d.Sign(act.(SignPending).Checksum, other, "", "")
	require.True(t, model.IsKind(err, model.KindInput))
}

func TestGenerateRandomPhrase(t *testing.T) {
	first, err := GenerateRandomPhrase(24)
	require.NoError(t, err)
	require.Len(t, bytes.Fields([]byte(first)), 24)
	require.NoError(t, crypto.ValidatePhrase(first))

	second, err := GenerateRandomPhrase(24)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = GenerateRandomPhrase(1)
	require.True(t, model.IsKind(err, model.KindInput))
}
