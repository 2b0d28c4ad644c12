package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/AlexZinkM/cold-signer/internal/model"
)

// Key prefixes. Every record of the cold database lives under one of these.
var (
	prefixSpecs    = []byte("specs/")
	prefixMeta     = []byte("meta/")
	prefixVerifier = []byte("verifier/")
	prefixAddress  = []byte("addr/")
	prefixHistory  = []byte("history/")

	keyGeneralVerifier = []byte("general_verifier")
	keyTypes           = []byte("types")

	// KeyStub holds the staged update (specs, metadata, types, derivations).
	KeyStub = []byte("tx/stub")
	// KeySign holds the staged signing action.
	KeySign = []byte("tx/sign")
)

func join(prefix []byte, parts ...[]byte) []byte {
	out := append([]byte{}, prefix...)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func SpecsKey(k model.NetworkSpecsKey) []byte { return join(prefixSpecs, k.Bytes()) }

func metaNamePrefix(name string) []byte {
	return join(prefixMeta, []byte(name), []byte{'/'})
}

func MetaKey(name string, version uint32) []byte {
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], version)
	return join(metaNamePrefix(name), v[:])
}

func VerifierKey(genesis model.H256) []byte { return join(prefixVerifier, genesis[:]) }

func AddressKey(signer model.MultiSigner) []byte { return join(prefixAddress, signer.Key()) }

func HistoryKey(order uint32) []byte {
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], order)
	return join(prefixHistory, v[:])
}

// HistoryOrder extracts the order from a history key.
func HistoryOrder(key []byte) (uint32, error) {
	if !bytes.HasPrefix(key, prefixHistory) || len(key) != len(prefixHistory)+4 {
		return 0, fmt.Errorf("malformed history key %x", key)
	}
	return binary.BigEndian.Uint32(key[len(prefixHistory):]), nil
}

func GeneralVerifierKey() []byte { return keyGeneralVerifier }

func TypesKey() []byte { return keyTypes }

// GetJSON decodes the record at key into v.
func (s *Store) GetJSON(key []byte, v any) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return model.DatabaseError(err, "record %q is corrupted", key)
	}
	return nil
}

// NetworkSpecs returns the specs stored for key.
func (s *Store) NetworkSpecs(key model.NetworkSpecsKey) (model.NetworkSpecs, error) {
	var specs model.NetworkSpecs
	err := s.GetJSON(SpecsKey(key), &specs)
	return specs, err
}

// AllNetworkSpecs lists every stored network in key order.
func (s *Store) AllNetworkSpecs() ([]model.NetworkSpecs, error) {
	var out []model.NetworkSpecs
	err := s.Scan(prefixSpecs, func(k, v []byte) error {
		var specs model.NetworkSpecs
		if err := json.Unmarshal(v, &specs); err != nil {
			return model.DatabaseError(err, "network specs %x are corrupted", k)
		}
		out = append(out, specs)
		return nil
	})
	return out, err
}

// NetworkSpecsByGenesis lists every scheme variant stored for a genesis hash.
func (s *Store) NetworkSpecsByGenesis(genesis model.H256) ([]model.NetworkSpecs, error) {
	all, err := s.AllNetworkSpecs()
	if err != nil {
		return nil, err
	}
	var out []model.NetworkSpecs
	for _, specs := range all {
		if specs.GenesisHash == genesis {
			out = append(out, specs)
		}
	}
	return out, nil
}

// Metadata returns one stored metadata version.
func (s *Store) Metadata(name string, version uint32) (model.MetadataRecord, error) {
	var rec model.MetadataRecord
	err := s.GetJSON(MetaKey(name, version), &rec)
	return rec, err
}

// MetadataVersions lists stored versions for a network name, newest first.
func (s *Store) MetadataVersions(name string) ([]model.MetadataRecord, error) {
	var out []model.MetadataRecord
	err := s.Scan(metaNamePrefix(name), func(k, v []byte) error {
		var rec model.MetadataRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return model.DatabaseError(err, "metadata %q is corrupted", k)
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

// AllMetadata lists every stored metadata record.
func (s *Store) AllMetadata() ([]model.MetadataRecord, error) {
	var out []model.MetadataRecord
	err := s.Scan(prefixMeta, func(k, v []byte) error {
		var rec model.MetadataRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return model.DatabaseError(err, "metadata %q is corrupted", k)
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// NetworkVerifier returns the verifier record of a network. Networks never
// seen before have no verifier.
func (s *Store) NetworkVerifier(genesis model.H256) (model.CurrentVerifier, bool, error) {
	var v model.CurrentVerifier
	err := s.GetJSON(VerifierKey(genesis), &v)
	if errors.Is(err, model.ErrNotFound) {
		return model.NoVerifier(), false, nil
	}
	if err != nil {
		return model.CurrentVerifier{}, false, err
	}
	return v, true, nil
}

// AllNetworkVerifiers maps every genesis hash with a verifier record to it.
func (s *Store) AllNetworkVerifiers() (map[model.H256]model.CurrentVerifier, error) {
	out := make(map[model.H256]model.CurrentVerifier)
	err := s.Scan(prefixVerifier, func(k, v []byte) error {
		var genesis model.H256
		if len(k) != len(prefixVerifier)+32 {
			return model.DatabaseError(nil, "malformed verifier key %x", k)
		}
		copy(genesis[:], k[len(prefixVerifier):])
		var cv model.CurrentVerifier
		if err := json.Unmarshal(v, &cv); err != nil {
			return model.DatabaseError(err, "verifier %x is corrupted", k)
		}
		out[genesis] = cv
		return nil
	})
	return out, err
}

// GeneralVerifier returns the device-wide general verifier.
func (s *Store) GeneralVerifier() (model.Verifier, error) {
	var v model.Verifier
	err := s.GetJSON(keyGeneralVerifier, &v)
	if errors.Is(err, model.ErrNotFound) {
		return model.Verifier{}, nil
	}
	return v, err
}

// Types returns the legacy types registry, or nil when none is stored.
func (s *Store) Types() (*model.TypesRecord, error) {
	var t model.TypesRecord
	err := s.GetJSON(keyTypes, &t)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Address returns the identity record for a public key.
func (s *Store) Address(signer model.MultiSigner) (model.AddressDetails, error) {
	var a model.AddressDetails
	err := s.GetJSON(AddressKey(signer), &a)
	return a, err
}

// Addresses lists every stored identity.
func (s *Store) Addresses() ([]model.AddressDetails, error) {
	var out []model.AddressDetails
	err := s.Scan(prefixAddress, func(k, v []byte) error {
		var a model.AddressDetails
		if err := json.Unmarshal(v, &a); err != nil {
			return model.DatabaseError(err, "address %x is corrupted", k)
		}
		out = append(out, a)
		return nil
	})
	return out, err
}

// NextHistoryOrder returns the order the next history entry gets.
func (s *Store) NextHistoryOrder() (uint32, error) {
	var next uint32
	err := s.Scan(prefixHistory, func(k, _ []byte) error {
		order, err := HistoryOrder(k)
		if err != nil {
			return model.DatabaseError(err, "history is corrupted")
		}
		next = order + 1
		return nil
	})
	return next, err
}

// HistoryEntries lists the audit log in order.
func (s *Store) HistoryEntries() ([]model.Entry, error) {
	var out []model.Entry
	err := s.Scan(prefixHistory, func(k, v []byte) error {
		var e model.Entry
		if err := json.Unmarshal(v, &e); err != nil {
			return model.DatabaseError(err, "history entry %x is corrupted", k)
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

// HistoryKeys lists every audit log key.
func (s *Store) HistoryKeys() ([][]byte, error) {
	var out [][]byte
	err := s.Scan(prefixHistory, func(k, _ []byte) error {
		out = append(out, k)
		return nil
	})
	return out, err
}

// AllKeys lists every key in the database.
func (s *Store) AllKeys() ([][]byte, error) {
	var out [][]byte
	err := s.Scan(nil, func(k, _ []byte) error {
		out = append(out, k)
		return nil
	})
	return out, err
}

// StageUnregister queues into b the removal of keys from every identity
// registered for them.
func (s *Store) StageUnregister(b *Batch, keys []model.NetworkSpecsKey) error {
	addrs, err := s.Addresses()
	if err != nil {
		return err
	}
	for _, a := range addrs {
		changed := false
		for _, k := range keys {
			if a.RemoveNetwork(k) {
				changed = true
			}
		}
		if !changed {
			continue
		}
		if err := b.PutJSON(AddressKey(a.Signer()), a); err != nil {
			return fmt.Errorf("failed to update address %s: %w", a.Signer(), err)
		}
	}
	return nil
}
