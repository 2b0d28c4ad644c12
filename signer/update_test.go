package signer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/cold-signer/internal/cards"
	"github.com/AlexZinkM/cold-signer/internal/crypto"
	"github.com/AlexZinkM/cold-signer/internal/metadata"
	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/payload"
	"github.com/AlexZinkM/cold-signer/internal/testutil"
)

var rococoGenesis = model.H256{0x6a}

func rococo() model.NetworkSpecs {
	return model.NetworkSpecs{
		Base58Prefix: 42,
		Decimals:     12,
		Encryption:   model.Sr25519,
		GenesisHash:  rococoGenesis,
		Name:         "rococo",
		PathID:       "rococo",
		Title:        "Rococo",
		Unit:         "ROC",
	}
}

type verifierKey struct {
	signer model.MultiSigner
	pair   crypto.Pair
}

func newVerifier(t *testing.T, path string) verifierKey {
	t.Helper()
	pair, err := crypto.DerivePair(model.Sr25519, phrase, path)
	require.NoError(t, err)
	return verifierKey{signer: model.MultiSigner{Encryption: model.Sr25519, PublicKey: pair.Public()}, pair: pair}
}

func (k verifierKey) sign(t *testing.T, content []byte) payload.Signed {
	t.Helper()
	sig, err := k.pair.Sign(content)
	require.NoError(t, err)
	signer := k.signer
	return payload.Signed{Verifier: &signer, Content: content, Signature: sig}
}

func loadMetadata(meta []byte, signed payload.Signed) payload.LoadMetadata {
	return payload.LoadMetadata{Signed: signed, Meta: meta, Genesis: genesis}
}

func addSpecs(specs model.NetworkSpecs) payload.AddSpecs {
	return payload.AddSpecs{Signed: payload.Signed{Content: payload.AddSpecsContent(specs)}, Specs: specs}
}

func readOnlyErr(t *testing.T, act Action) error {
	t.Helper()
	ro, ok := act.(ReadOnly)
	require.True(t, ok, "got %T: %s", act, act.Display())
	require.Error(t, ro.Err)
	require.True(t, ro.Cards.HasError())
	return ro.Err
}

func TestCommitIsSingleUse(t *testing.T) {
	d := newDevice(t)
	act, err := d.Handle(loadMetadata(testutil.MetadataV14("westend", 9430), payload.Signed{}))
	require.NoError(t, err)
	stub := act.(Stub)
	require.Equal(t, cards.Meta{
		Name:    "westend",
		Version: 9430,
		Hash:    crypto.Blake2b256(testutil.MetadataV14("westend", 9430)),
	}, stub.Cards.Cards()[0])

	require.NoError(t, d.Commit(stub.Checksum))
	before, err := d.History()
	require.NoError(t, err)

	err = d.Commit(stub.Checksum)
	require.ErrorIs(t, err, model.ErrChecksumMismatch)
	require.True(t, model.IsKind(err, model.KindDatabase))
	after, err := d.History()
	require.NoError(t, err)
	require.Equal(t, before, after)

	versions, err := d.store.MetadataVersions("westend")
	require.NoError(t, err)
	require.Len(t, versions, 1)
}

func TestMetadataAlreadyInDatabaseOrMismatched(t *testing.T) {
	d := newDevice(t)
	meta := testutil.MetadataV14("westend", 9430)
	commitMetadata(t, d, 9430)

	act, err := d.Handle(loadMetadata(meta, payload.Signed{}))
	require.NoError(t, err)
	require.ErrorIs(t, readOnlyErr(t, act), model.ErrAlreadyInDatabase)

	act, err = d.Handle(loadMetadata(testutil.MetadataV13("westend", 9430), payload.Signed{}))
	require.NoError(t, err)
	err = readOnlyErr(t, act)
	require.True(t, model.IsKind(err, model.KindInput))
	require.Contains(t, err.Error(), "different content")

	stored, err := d.store.Metadata("westend", 9430)
	require.NoError(t, err)
	require.Equal(t, model.H256(crypto.Blake2b256(meta)), stored.Hash)
}

func TestMetadataForWrongNetwork(t *testing.T) {
	d := newDevice(t)
	act, err := d.Handle(loadMetadata(testutil.MetadataV14("kusama", 9430), payload.Signed{}))
	require.NoError(t, err)
	require.Contains(t, readOnlyErr(t, act).Error(), "metadata is for kusama")

	act, err = d.Handle(loadMetadata([]byte("junk"), payload.Signed{}))
	require.NoError(t, err)
	require.True(t, model.IsKind(readOnlyErr(t, act), model.KindInput))
}

func TestAddSpecsUnsigned(t *testing.T) {
	d := newDevice(t)
	act, err := d.Handle(addSpecs(rococo()))
	require.NoError(t, err)
	stub := act.(Stub)
	require.Equal(t, cards.NewSpecs{Specs: rococo()}, stub.Cards.Cards()[0])
	require.NoError(t, d.Commit(stub.Checksum))

	networks, err := d.Networks()
	require.NoError(t, err)
	require.Len(t, networks, 2)
	details, err := d.Network(rococo().Key())
	require.NoError(t, err)
	require.Equal(t, model.VerifierNone, details.Verifier.Kind)

	act, err = d.Handle(addSpecs(rococo()))
	require.NoError(t, err)
	require.ErrorIs(t, readOnlyErr(t, act), model.ErrAlreadyInDatabase)

	changed := rococo()
	changed.Decimals = 10
	act, err = d.Handle(addSpecs(changed))
	require.NoError(t, err)
	require.Contains(t, readOnlyErr(t, act).Error(), "different decimals")

	renamed := rococo()
	renamed.GenesisHash = model.H256{0x77}
	act, err = d.Handle(addSpecs(renamed))
	require.NoError(t, err)
	require.Contains(t, readOnlyErr(t, act).Error(), "already used")
}

func TestSignedAddSpecsAdoptsGeneralVerifier(t *testing.T) {
	d := newDevice(t)
	general := newVerifier(t, "//general")
	specs := rococo()
	p := payload.AddSpecs{Signed: general.sign(t, payload.AddSpecsContent(specs)), Specs: specs}

	act, err := d.Handle(p)
	require.NoError(t, err)
	stub := act.(Stub)
	got := stub.Cards.Cards()
	require.Equal(t, general.signer, got[0].(cards.Verifier).Signer)
	require.Contains(t, got[1].(cards.Warning).Message, "becomes the general verifier")
	require.IsType(t, cards.NewSpecs{}, got[2])
	require.NoError(t, d.Commit(stub.Checksum))

	g, err := d.store.GeneralVerifier()
	require.NoError(t, err)
	require.True(t, g.Is(general.signer))
	details, err := d.Network(specs.Key())
	require.NoError(t, err)
	require.Equal(t, model.VerifierGeneral, details.Verifier.Kind)

	var kinds []model.EventKind
	for _, e := range lastEvents(t, d) {
		kinds = append(kinds, e.Kind)
	}
	require.Contains(t, kinds, model.EventGeneralVerifierSet)
	require.Contains(t, kinds, model.EventNetworkSpecsAdded)

	// types are general: unsigned ones are refused from now on
	types := metadata.EncodeTypes(testutil.LegacyTypes())
	act, err = d.Handle(payload.LoadTypes{Signed: payload.Signed{Content: types}, Types: types})
	require.NoError(t, err)
	require.True(t, model.IsKind(readOnlyErr(t, act), model.KindTrust))
}

func TestCustomVerifierCannotChange(t *testing.T) {
	d := newDevice(t)
	a := newVerifier(t, "//a")
	b := newVerifier(t, "//b")
	commitMetadata(t, d, 9420)

	meta := testutil.MetadataV14("westend", 9430)
	content := payload.LoadMetadataContent(meta, genesis)
	act, err := d.Handle(loadMetadata(meta, a.sign(t, content)))
	require.NoError(t, err)
	stub := act.(Stub)
	warning := stub.Cards.Cards()[1].(cards.Warning)
	require.Contains(t, warning.Message, "metadata westend9420")
	require.NoError(t, d.Commit(stub.Checksum))

	details, err := d.Network(westend().Key())
	require.NoError(t, err)
	require.Equal(t, model.CustomVerifier(a.signer), details.Verifier)
	require.Len(t, details.Metadata, 1)
	require.Equal(t, uint32(9430), details.Metadata[0].Version)

	next := testutil.MetadataV14("westend", 9431)
	nextContent := payload.LoadMetadataContent(next, genesis)
	for _, signed := range []payload.Signed{b.sign(t, nextContent), {Content: nextContent}} {
		act, err = d.Handle(loadMetadata(next, signed))
		require.NoError(t, err)
		err = readOnlyErr(t, act)
		require.True(t, model.IsKind(err, model.KindTrust))
		require.Contains(t, err.Error(), a.signer.String())
	}

	act, err = d.Handle(loadMetadata(next, a.sign(t, nextContent)))
	require.NoError(t, err)
	require.IsType(t, Stub{}, act)
}

func TestBadSignatureIsTrustError(t *testing.T) {
	d := newDevice(t)
	a := newVerifier(t, "//a")
	meta := testutil.MetadataV14("westend", 9430)
	signed := a.sign(t, payload.LoadMetadataContent(meta, genesis))
	signed.Signature[0] ^= 0xff

	act, err := d.Handle(loadMetadata(meta, signed))
	require.NoError(t, err)
	got := act.Display().Cards()
	require.IsType(t, cards.Verifier{}, got[0])
	require.True(t, model.IsKind(readOnlyErr(t, act), model.KindTrust))
}

func TestLoadTypes(t *testing.T) {
	d := newDevice(t)
	types := metadata.EncodeTypes(testutil.LegacyTypes())
	p := payload.LoadTypes{Signed: payload.Signed{Content: types}, Types: types}

	act, err := d.Handle(p)
	require.NoError(t, err)
	stub := act.(Stub)
	require.Equal(t, cards.Types{Hash: crypto.Blake2b256(types), Count: len(testutil.LegacyTypes())}, stub.Cards.Cards()[0])
	require.NoError(t, d.Commit(stub.Checksum))

	act, err = d.Handle(p)
	require.NoError(t, err)
	require.ErrorIs(t, readOnlyErr(t, act), model.ErrAlreadyInDatabase)
}

func TestImportDerivations(t *testing.T) {
	d := readyDevice(t)
	p := payload.Derivations{
		Encryption: model.Sr25519,
		Genesis:    genesis,
		Paths:      []string{"//1", "/soft", "//pw///x", "bad", "//1"},
	}
	act, err := d.Handle(p)
	require.NoError(t, err)
	preview, ok := act.(DerivationsPreview)
	require.True(t, ok)
	require.Equal(t, []string{"//1", "/soft"}, preview.Valid)
	require.Len(t, preview.Invalid, 2)
	require.NotContains(t, preview.Cards.String(), "///x")

	err = d.Commit(preview.Checksum)
	require.True(t, model.IsKind(err, model.KindInput))

	other, err := GenerateRandomPhrase(12)
	require.NoError(t, err)
	_, err = d.ImportDerivations(preview.Checksum, "Alice", other)
	require.True(t, model.IsKind(err, model.KindInput))

	added, err := d.ImportDerivations(preview.Checksum, "Alice", phrase)
	require.NoError(t, err)
	require.Equal(t, 2, added)

	ids, err := d.Identities("Alice")
	require.NoError(t, err)
	paths := make(map[string]model.AddressDetails)
	for _, a := range ids {
		paths[a.Path] = a
	}
	require.True(t, paths["//1"].InNetwork(westend().Key()))
	require.True(t, paths["/soft"].InNetwork(westend().Key()))
	require.Equal(t, model.EventDerivationsImported, lastEvents(t, d)[0].Kind)

	_, err = d.ImportDerivations(preview.Checksum, "Alice", phrase)
	require.ErrorIs(t, err, model.ErrChecksumMismatch)
}

func TestDerivationsWithoutValidPaths(t *testing.T) {
	d := readyDevice(t)
	act, err := d.Handle(payload.Derivations{Encryption: model.Sr25519, Genesis: genesis, Paths: []string{"bad"}})
	require.NoError(t, err)
	require.True(t, model.IsKind(readOnlyErr(t, act), model.KindInput))
}
