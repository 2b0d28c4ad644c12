package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/cold-signer/internal/history"
	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/payload"
	"github.com/AlexZinkM/cold-signer/internal/store"
)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

func newLedger(t *testing.T) (*Ledger, *store.Store) {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return New(s, history.New(s, fixedClock{})), s
}

var westend = model.NetworkSpecs{
	Base58Prefix: 42,
	Decimals:     12,
	Encryption:   model.Sr25519,
	GenesisHash:  model.H256{0xe1},
	Name:         "westend",
	Unit:         "WND",
}

func specsStub() Stub {
	s := westend
	return Stub{
		Kind:            payload.KindAddSpecs,
		AddSpecs:        &s,
		NetworkVerifier: &NetworkVerifierChange{Genesis: s.GenesisHash, Verifier: model.NoVerifier()},
		Events:          []model.Event{{Kind: model.EventNetworkSpecsAdded, Network: &model.NetworkEvent{Name: s.Name}}},
	}
}

func TestStageIsDeterministic(t *testing.T) {
	l, _ := newLedger(t)
	first, err := l.StageStub(specsStub())
	require.NoError(t, err)
	second, err := l.StageStub(specsStub())
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestCommitIsSingleUse(t *testing.T) {
	l, s := newLedger(t)
	checksum, err := l.StageStub(specsStub())
	require.NoError(t, err)

	stub, err := l.CommitStub(checksum, nil)
	require.NoError(t, err)
	require.Equal(t, "westend", stub.AddSpecs.Name)

	got, err := s.NetworkSpecs(westend.Key())
	require.NoError(t, err)
	require.Equal(t, westend, got)
	v, known, err := s.NetworkVerifier(westend.GenesisHash)
	require.NoError(t, err)
	require.True(t, known)
	require.Equal(t, model.NoVerifier(), v)

	before, err := s.Checksum()
	require.NoError(t, err)
	_, err = l.CommitStub(checksum, nil)
	require.ErrorIs(t, err, model.ErrChecksumMismatch)
	require.True(t, model.IsKind(err, model.KindDatabase))
	after, err := s.Checksum()
	require.NoError(t, err)
	require.Equal(t, before, after)

	entries, err := s.HistoryEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, model.EventNetworkSpecsAdded, entries[0].Events[0].Kind)
}

func TestCommitRejectsStaleChecksum(t *testing.T) {
	l, s := newLedger(t)
	checksum, err := l.StageStub(specsStub())
	require.NoError(t, err)
	require.NoError(t, s.Apply(store.NewBatch().Put([]byte("unrelated"), []byte{1})))

	_, err = l.CommitStub(checksum, nil)
	require.ErrorIs(t, err, model.ErrChecksumMismatch)
	_, err = s.NetworkSpecs(westend.Key())
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestStagingSupersedesOtherSlot(t *testing.T) {
	l, s := newLedger(t)
	stubSum, err := l.StageStub(specsStub())
	require.NoError(t, err)

	signSum, err := l.StageSign(SignAction{Targets: []SignTarget{{Kind: payload.KindMessage, Content: []byte("hi")}}})
	require.NoError(t, err)
	require.NotEqual(t, stubSum, signSum)

	ok, err := s.Has(store.KeyStub)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = l.PendingStub(signSum)
	require.ErrorIs(t, err, model.ErrNoPendingAction)

	action, err := l.PendingSign(signSum)
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), action.Targets[0].Content)

	_, err = l.StageSign(SignAction{})
	require.Error(t, err)
}

func TestCommitAppliesPurgeAndUnregisters(t *testing.T) {
	l, s := newLedger(t)
	addr := model.AddressDetails{
		SeedName:   "alice",
		Path:       "//westend",
		Encryption: model.Sr25519,
		PublicKey:  []byte{1, 2, 3},
		Networks:   []model.NetworkSpecsKey{westend.Key()},
	}
	b := store.NewBatch()
	require.NoError(t, b.PutJSON(store.SpecsKey(westend.Key()), westend))
	require.NoError(t, b.PutJSON(store.MetaKey("westend", 9000), model.MetadataRecord{Name: "westend", Version: 9000}))
	require.NoError(t, b.PutJSON(store.TypesKey(), model.TypesRecord{Content: []byte{0}}))
	require.NoError(t, b.PutJSON(store.AddressKey(addr.Signer()), addr))
	require.NoError(t, s.Apply(b))

	general := model.MultiSigner{Encryption: model.Sr25519, PublicKey: make([]byte, 32)}
	checksum, err := l.StageStub(Stub{
		Kind:            payload.KindLoadTypes,
		AddTypes:        &model.TypesRecord{Content: []byte{1}},
		GeneralVerifier: &general,
		RemoveSpecs:     []model.NetworkSpecsKey{westend.Key()},
		RemoveMetadata:  []model.MetaKey{{Name: "westend", Version: 9000}},
		RemoveTypes:     true,
	})
	require.NoError(t, err)
	_, err = l.CommitStub(checksum, nil)
	require.NoError(t, err)

	_, err = s.NetworkSpecs(westend.Key())
	require.ErrorIs(t, err, model.ErrNotFound)
	_, err = s.Metadata("westend", 9000)
	require.ErrorIs(t, err, model.ErrNotFound)
	types, err := s.Types()
	require.NoError(t, err)
	require.Equal(t, []byte{1}, types.Content)
	gv, err := s.GeneralVerifier()
	require.NoError(t, err)
	require.True(t, gv.Is(general))
	got, err := s.Address(addr.Signer())
	require.NoError(t, err)
	require.Empty(t, got.Networks)
}

func TestCommitExtraFailureLeavesStore(t *testing.T) {
	l, s := newLedger(t)
	checksum, err := l.StageStub(specsStub())
	require.NoError(t, err)

	_, err = l.CommitStub(checksum, func(b *store.Batch, _ Stub) ([]model.Event, error) {
		b.Put([]byte("extra"), []byte{1})
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	after, err := s.Checksum()
	require.NoError(t, err)
	require.Equal(t, checksum, after)

	_, err = l.CommitStub(checksum, func(b *store.Batch, _ Stub) ([]model.Event, error) {
		b.Put([]byte("extra"), []byte{1})
		return []model.Event{{Kind: model.EventDerivationsImported}}, nil
	})
	require.NoError(t, err)
	ok, err := s.Has([]byte("extra"))
	require.NoError(t, err)
	require.True(t, ok)
	entries, err := s.HistoryEntries()
	require.NoError(t, err)
	require.Len(t, entries[0].Events, 2)
}

func TestRecordRefreshesChecksum(t *testing.T) {
	l, _ := newLedger(t)
	checksum, err := l.StageSign(SignAction{Targets: []SignTarget{{Kind: payload.KindMessage}}})
	require.NoError(t, err)

	next, err := l.Record(model.Event{Kind: model.EventMessageSignError})
	require.NoError(t, err)
	require.NotEqual(t, checksum, next)

	_, err = l.PendingSign(checksum)
	require.ErrorIs(t, err, model.ErrChecksumMismatch)
	_, err = l.PendingSign(next)
	require.NoError(t, err)

	require.NoError(t, l.FinishSign(store.NewBatch(), model.Event{Kind: model.EventMessageSigned}))
	_, err = l.PendingSign(next)
	require.ErrorIs(t, err, model.ErrChecksumMismatch)
}
