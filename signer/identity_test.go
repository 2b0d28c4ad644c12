package signer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/cold-signer/internal/defaults"
	"github.com/AlexZinkM/cold-signer/internal/model"
)

func TestCreateSeed(t *testing.T) {
	d := newDevice(t)
	require.NoError(t, d.CreateSeed("Alice", phrase, nil))

	ids, err := d.Identities("Alice")
	require.NoError(t, err)
	require.Len(t, ids, 2)
	paths := map[string]model.AddressDetails{}
	for _, a := range ids {
		paths[a.Path] = a
	}
	require.Empty(t, paths[""].Networks)
	require.Equal(t, []model.NetworkSpecsKey{westend().Key()}, paths["//westend"].Networks)
	require.Equal(t, signerAt(t, "//westend").PublicKey, paths["//westend"].PublicKey)

	seeds, err := d.Seeds()
	require.NoError(t, err)
	require.Equal(t, []string{"Alice"}, seeds)

	events := lastEvents(t, d)
	require.Equal(t, model.EventSeedCreated, events[0].Kind)
	require.Len(t, events, 3)

	require.True(t, model.IsKind(d.CreateSeed("Alice", phrase, nil), model.KindInput))
	require.True(t, model.IsKind(d.CreateSeed("Bob", "not a phrase", nil), model.KindInput))
	// the same phrase under another name collides on every key
	require.True(t, model.IsKind(d.CreateSeed("Bob", phrase, nil), model.KindInput))
}

func TestCreateAddress(t *testing.T) {
	d := readyDevice(t)
	network := westend().Key()

	require.NoError(t, d.CreateAddress("Alice", phrase, "//staking/0", network))
	err := d.CreateAddress("Alice", phrase, "//staking/0", network)
	require.ErrorIs(t, err, model.ErrAlreadyInDatabase)

	require.True(t, model.IsKind(d.CreateAddress("Alice", phrase, "staking", network), model.KindInput))
	require.True(t, model.IsKind(d.CreateAddress("Nobody", phrase, "//x", network), model.KindInput))

	unknown := model.NetworkSpecsKey{GenesisHash: model.H256{0x01}, Encryption: model.Sr25519}
	require.True(t, model.IsKind(d.CreateAddress("Alice", phrase, "//x", unknown), model.KindInput))

	ed := model.NetworkSpecsKey{GenesisHash: genesis, Encryption: model.Ed25519}
	require.True(t, model.IsKind(d.CreateAddress("Alice", phrase, "//x", ed), model.KindInput))
}

func TestRemoveAddressAndSeed(t *testing.T) {
	d := readyDevice(t)
	network := westend().Key()
	author := signerAt(t, "//westend")

	require.NoError(t, d.RemoveAddress(author, network))
	ids, err := d.Identities("Alice")
	require.NoError(t, err)
	require.Len(t, ids, 1)
	require.Equal(t, "", ids[0].Path)
	require.True(t, model.IsKind(d.RemoveAddress(author, network), model.KindInput))

	require.NoError(t, d.RemoveSeed("Alice"))
	seeds, err := d.Seeds()
	require.NoError(t, err)
	require.Empty(t, seeds)
	require.Equal(t, model.EventSeedRemoved, lastEvents(t, d)[0].Kind)
	require.True(t, model.IsKind(d.RemoveSeed("Alice"), model.KindInput))
}

func TestRemoveNetworkKeepsVerifier(t *testing.T) {
	d := readyDevice(t)
	key := westend().Key()
	require.NoError(t, d.RemoveNetwork(key))

	networks, err := d.Networks()
	require.NoError(t, err)
	require.Empty(t, networks)
	versions, err := d.store.MetadataVersions("westend")
	require.NoError(t, err)
	require.Empty(t, versions)

	ids, err := d.Identities("Alice")
	require.NoError(t, err)
	for _, a := range ids {
		require.False(t, a.InNetwork(key))
	}
	_, known, err := d.store.NetworkVerifier(genesis)
	require.NoError(t, err)
	require.True(t, known)

	_, err = d.Network(key)
	require.True(t, model.IsKind(err, model.KindInput))
	require.True(t, model.IsKind(d.RemoveNetwork(key), model.KindInput))
}

func TestRemoveMetadata(t *testing.T) {
	d := readyDevice(t)
	require.NoError(t, d.RemoveMetadata("westend", 9430))
	details, err := d.Network(westend().Key())
	require.NoError(t, err)
	require.Empty(t, details.Metadata)
	require.True(t, model.IsKind(d.RemoveMetadata("westend", 9430), model.KindInput))
}

func TestWipe(t *testing.T) {
	d := readyDevice(t)
	require.NoError(t, d.Wipe(defaults.Defaults{Networks: []model.NetworkSpecs{westend()}}))

	seeds, err := d.Seeds()
	require.NoError(t, err)
	require.Empty(t, seeds)
	details, err := d.Network(westend().Key())
	require.NoError(t, err)
	require.Empty(t, details.Metadata)

	entries, err := d.History()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, model.EventDeviceWiped, entries[0].Events[0].Kind)
	require.Equal(t, model.EventDatabaseInitiated, entries[0].Events[1].Kind)
}

func TestHistoryQueries(t *testing.T) {
	d := readyDevice(t)
	entries, err := d.History()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	e, err := d.HistoryEntry(1)
	require.NoError(t, err)
	require.Equal(t, model.EventMetadataAdded, e.Events[0].Kind)
	_, err = d.HistoryEntry(99)
	require.True(t, model.IsKind(err, model.KindInput))

	require.NoError(t, d.ClearHistory())
	entries, err = d.History()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, model.EventHistoryCleared, entries[0].Events[0].Kind)
}
