// Package history is the append-only audit log kept in the cold database.
package history

import (
	"errors"
	"time"

	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/store"
)

// Clock supplies entry timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock is the wall clock in UTC.
var SystemClock Clock = systemClock{}

// Log appends entries to the audit log.
type Log struct {
	store *store.Store
	clock Clock
}

func New(s *store.Store, clock Clock) *Log {
	if clock == nil {
		clock = SystemClock
	}
	return &Log{store: s, clock: clock}
}

// Stage queues one entry holding events into b. The entry becomes visible
// when the batch is applied, together with whatever else b carries.
func (l *Log) Stage(b *store.Batch, events ...model.Event) error {
	if len(events) == 0 {
		return nil
	}
	order, err := l.store.NextHistoryOrder()
	if err != nil {
		return err
	}
	entry := model.Entry{Order: order, Timestamp: l.clock.Now(), Events: events}
	return b.PutJSON(store.HistoryKey(order), entry)
}

// Append writes one entry holding events.
func (l *Log) Append(events ...model.Event) error {
	b := store.NewBatch()
	if err := l.Stage(b, events...); err != nil {
		return err
	}
	return l.store.Apply(b)
}

// Entries returns the whole log in order.
func (l *Log) Entries() ([]model.Entry, error) {
	return l.store.HistoryEntries()
}

// Entry returns the entry with the given order.
func (l *Log) Entry(order uint32) (model.Entry, error) {
	var e model.Entry
	err := l.store.GetJSON(store.HistoryKey(order), &e)
	if errors.Is(err, model.ErrNotFound) {
		return e, model.InputError("no history entry with order %d", order)
	}
	return e, err
}

// Clear truncates the log to a single HistoryCleared marker.
func (l *Log) Clear() error {
	b := store.NewBatch()
	if err := l.StageClear(b); err != nil {
		return err
	}
	return l.store.Apply(b)
}

// StageClear queues deletion of every entry plus the marker into b.
func (l *Log) StageClear(b *store.Batch) error {
	return l.StageFirst(b, model.Event{Kind: model.EventHistoryCleared})
}

// StageFirst queues deletion of every entry and a new first entry holding
// events into b.
func (l *Log) StageFirst(b *store.Batch, events ...model.Event) error {
	keys, err := l.store.HistoryKeys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		b.Delete(k)
	}
	entry := model.Entry{
		Order:     0,
		Timestamp: l.clock.Now(),
		Events:    events,
	}
	return b.PutJSON(store.HistoryKey(0), entry)
}
