// Package store is the signer's cold database: a single goleveldb instance
// holding network specs, metadata, verifiers, identities, the audit log and
// pending actions under fixed key prefixes.
package store

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	leveldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"golang.org/x/crypto/blake2b"

	"github.com/AlexZinkM/cold-signer/internal/model"
)

// Store wraps the embedded key-value database.
type Store struct {
	db *leveldb.DB
}

// Open opens (or creates) the database at path. The directory is locked for
// the lifetime of the Store; a second Open of the same path fails with a
// database error carrying the OS detail instead of blocking.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		if leveldberrors.IsCorrupted(err) {
			return nil, model.DatabaseError(err, "database at %s is corrupted", path)
		}
		return nil, model.DatabaseError(err, "failed to open database at %s", path)
	}
	return &Store{db: db}, nil
}

// OpenMemory opens a database backed by memory only.
func OpenMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, model.DatabaseError(err, "failed to open in-memory database")
	}
	return &Store{db: db}, nil
}

// Close releases the database and its file lock.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return model.DatabaseError(err, "failed to close database")
	}
	return nil
}

// Get returns the value at key or model.ErrNotFound.
func (s *Store) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, model.DatabaseError(err, "failed to read key %x", key)
	}
	return v, nil
}

// Has reports whether key exists.
func (s *Store) Has(key []byte) (bool, error) {
	ok, err := s.db.Has(key, nil)
	if err != nil {
		return false, model.DatabaseError(err, "failed to read key %x", key)
	}
	return ok, nil
}

// Scan calls fn for every entry under prefix in key order. Key and value
// slices are copies and may be retained.
func (s *Store) Scan(prefix []byte, fn func(key, value []byte) error) error {
	var rng *util.Range
	if len(prefix) > 0 {
		rng = util.BytesPrefix(prefix)
	}
	it := s.db.NewIterator(rng, nil)
	defer it.Release()
	for it.Next() {
		k := append([]byte{}, it.Key()...)
		v := append([]byte{}, it.Value()...)
		if err := fn(k, v); err != nil {
			return err
		}
	}
	if err := it.Error(); err != nil {
		return model.DatabaseError(err, "failed to iterate database")
	}
	return nil
}

// Apply writes a batch atomically. Either every operation lands or none does.
func (s *Store) Apply(b *Batch) error {
	if b == nil || b.Len() == 0 {
		return nil
	}
	if err := s.db.Write(b.b, &optSync); err != nil {
		return model.DatabaseError(err, "failed to commit changes")
	}
	return nil
}

// Checksum hashes every entry of the database in key order. Any change to
// any record, including the pending action slots, changes the result.
func (s *Store) Checksum() (model.H256, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return model.H256{}, fmt.Errorf("failed to init hasher: %w", err)
	}
	var lenBuf [4]byte
	write := func(b []byte) {
		n := len(b)
		lenBuf[0], lenBuf[1], lenBuf[2], lenBuf[3] = byte(n), byte(n>>8), byte(n>>16), byte(n>>24)
		h.Write(lenBuf[:])
		h.Write(b)
	}
	err = s.Scan(nil, func(k, v []byte) error {
		write(k)
		write(v)
		return nil
	})
	if err != nil {
		return model.H256{}, err
	}
	var out model.H256
	copy(out[:], h.Sum(nil))
	return out, nil
}
