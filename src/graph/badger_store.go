package graph

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger"
	cm "github.com/evergraph/evergraph/src/common"
)

const (
	eventPrefix = "event"
	layerPrefix = "layer"
)

// BadgerStore is a write-through Store backed by a Badger database, with an
// InmemStore front. Events are durable once SetEvent returns.
type BadgerStore struct {
	inmemStore    *InmemStore
	db            *badger.DB
	path          string
	needBootstrap bool
}

// NewBadgerStore creates a brand new Store with a new database.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore: NewInmemStore(),
		db:         handle,
		path:       path,
	}

	return store, nil
}

// LoadBadgerStore creates a Store from an existing database, reloading all
// events into the in-memory front.
func LoadBadgerStore(path string) (*BadgerStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore:    NewInmemStore(),
		db:            handle,
		path:          path,
		needBootstrap: true,
	}

	if err := store.dbLoadEvents(); err != nil {
		store.db.Close()
		return nil, err
	}

	return store, nil
}

// LoadOrCreateBadgerStore loads an existing database, or creates a fresh one
// if none is found.
func LoadOrCreateBadgerStore(path string) (*BadgerStore, error) {
	store, err := LoadBadgerStore(path)

	if err != nil {
		store, err = NewBadgerStore(path)

		if err != nil {
			return nil, err
		}
	}

	return store, nil
}

//==============================================================================
//Keys

func eventKey(id string) []byte {
	return []byte(fmt.Sprintf("%s_%s", eventPrefix, id))
}

func layerKey(layer int, id string) []byte {
	return []byte(fmt.Sprintf("%s_%09d_%s", layerPrefix, layer, id))
}

//==============================================================================
//Implement the Store interface

// ContainsEvent implements the Store interface.
func (s *BadgerStore) ContainsEvent(id string) bool {
	return s.inmemStore.ContainsEvent(id)
}

// GetEvent implements the Store interface.
func (s *BadgerStore) GetEvent(id string) (*Event, error) {
	event, err := s.inmemStore.GetEvent(id)
	if err != nil {
		event, err = s.dbGetEvent(id)
	}
	return event, mapError(err, "Event", id)
}

// SetEvent implements the Store interface.
func (s *BadgerStore) SetEvent(event *Event) error {
	if err := s.inmemStore.SetEvent(event); err != nil {
		return err
	}
	return s.dbSetEvents([]*Event{event})
}

// DeleteEvents implements the Store interface.
func (s *BadgerStore) DeleteEvents(ids []string) error {
	events := make([]*Event, 0, len(ids))
	for _, id := range ids {
		if event, err := s.inmemStore.GetEvent(id); err == nil {
			events = append(events, event)
		}
	}

	if err := s.inmemStore.DeleteEvents(ids); err != nil {
		return err
	}

	return s.dbDeleteEvents(events)
}

// IterateEvents implements the Store interface.
func (s *BadgerStore) IterateEvents(fn func(id string, event *Event) bool) error {
	return s.inmemStore.IterateEvents(fn)
}

// LayerEvents implements the Store interface.
func (s *BadgerStore) LayerEvents(layer int) []string {
	return s.inmemStore.LayerEvents(layer)
}

// FirstLayer implements the Store interface.
func (s *BadgerStore) FirstLayer() (int, bool) {
	return s.inmemStore.FirstLayer()
}

// LastLayer implements the Store interface.
func (s *BadgerStore) LastLayer() (int, bool) {
	return s.inmemStore.LastLayer()
}

// LastEvent implements the Store interface.
func (s *BadgerStore) LastEvent() (*Event, error) {
	return s.inmemStore.LastEvent()
}

// EventCount implements the Store interface.
func (s *BadgerStore) EventCount() int {
	return s.inmemStore.EventCount()
}

// NeedBootstrap implements the Store interface.
func (s *BadgerStore) NeedBootstrap() bool {
	return s.needBootstrap
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	if err := s.inmemStore.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++
//DB Methods

func (s *BadgerStore) dbGetEvent(id string) (*Event, error) {
	var eventBytes []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(eventKey(id))
		if err != nil {
			return err
		}
		eventBytes, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, err
	}

	event := new(Event)
	if err := event.UnmarshalDB(eventBytes); err != nil {
		return nil, err
	}

	return event, nil
}

func (s *BadgerStore) dbSetEvents(events []*Event) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	for _, event := range events {
		eventHex := event.Hex()
		val, err := event.MarshalDB()
		if err != nil {
			return err
		}
		//insert [event id] => [event bytes]
		if err := tx.Set(eventKey(eventHex), val); err != nil {
			return err
		}
		//insert [layer_index] => [event id]
		if err := tx.Set(layerKey(event.layer, eventHex), []byte(eventHex)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *BadgerStore) dbDeleteEvents(events []*Event) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	for _, event := range events {
		eventHex := event.Hex()
		if err := tx.Delete(eventKey(eventHex)); err != nil {
			return err
		}
		if err := tx.Delete(layerKey(event.layer, eventHex)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// dbLoadEvents replays every persisted event into the in-memory front,
// ascending layer order so parents precede children.
func (s *BadgerStore) dbLoadEvents() error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(layerPrefix)

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			item, err := txn.Get(eventKey(string(id)))
			if err != nil {
				return err
			}
			eventBytes, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			event := new(Event)
			if err := event.UnmarshalDB(eventBytes); err != nil {
				return err
			}

			if err := s.inmemStore.SetEvent(event); err != nil {
				return err
			}
		}

		return nil
	})
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++

func isDBKeyNotFound(err error) bool {
	return err.Error() == badger.ErrKeyNotFound.Error()
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}
