package store

import (
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var optSync = opt.WriteOptions{Sync: true}

// Batch collects writes that are committed together by Store.Apply.
type Batch struct {
	b *leveldb.Batch
}

func NewBatch() *Batch {
	return &Batch{b: new(leveldb.Batch)}
}

// Put stores raw bytes at key.
func (b *Batch) Put(key, value []byte) *Batch {
	b.b.Put(key, value)
	return b
}

// PutJSON stores v encoded as JSON at key.
func (b *Batch) PutJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode record %q: %w", key, err)
	}
	b.b.Put(key, data)
	return nil
}

// Delete removes key.
func (b *Batch) Delete(key []byte) *Batch {
	b.b.Delete(key)
	return b
}

// Len is the number of queued operations.
func (b *Batch) Len() int { return b.b.Len() }
