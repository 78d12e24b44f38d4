package graph

import (
	"sort"
	"sync"

	cm "github.com/evergraph/evergraph/src/common"
)

// InmemStore keeps the whole event graph in memory. It is also embedded in
// BadgerStore as its write-through cache.
type InmemStore struct {
	lock sync.RWMutex

	events map[string]*Event
	layers map[int]map[string]struct{}

	// order records insertion order, for LastEvent and store-order iteration.
	// Pruned ids are skipped rather than compacted.
	order []string
}

// NewInmemStore creates an empty InmemStore.
func NewInmemStore() *InmemStore {
	return &InmemStore{
		events: make(map[string]*Event),
		layers: make(map[int]map[string]struct{}),
	}
}

// ContainsEvent implements the Store interface.
func (s *InmemStore) ContainsEvent(id string) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	_, ok := s.events[id]
	return ok
}

// GetEvent implements the Store interface.
func (s *InmemStore) GetEvent(id string) (*Event, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return nil, cm.NewStoreErr("Event", cm.KeyNotFound, id)
	}

	return event, nil
}

// SetEvent implements the Store interface.
func (s *InmemStore) SetEvent(event *Event) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	id := event.Hex()
	if _, ok := s.events[id]; ok {
		return nil
	}

	s.events[id] = event

	bucket, ok := s.layers[event.layer]
	if !ok {
		bucket = make(map[string]struct{})
		s.layers[event.layer] = bucket
	}
	bucket[id] = struct{}{}

	s.order = append(s.order, id)

	return nil
}

// DeleteEvents implements the Store interface.
func (s *InmemStore) DeleteEvents(ids []string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, id := range ids {
		event, ok := s.events[id]
		if !ok {
			continue
		}

		delete(s.events, id)

		if bucket, ok := s.layers[event.layer]; ok {
			delete(bucket, id)
			if len(bucket) == 0 {
				delete(s.layers, event.layer)
			}
		}
	}

	return nil
}

// IterateEvents implements the Store interface.
func (s *InmemStore) IterateEvents(fn func(id string, event *Event) bool) error {
	s.lock.RLock()
	defer s.lock.RUnlock()

	for _, id := range s.order {
		event, ok := s.events[id]
		if !ok {
			continue
		}
		if !fn(id, event) {
			return nil
		}
	}

	return nil
}

// LayerEvents implements the Store interface.
func (s *InmemStore) LayerEvents(layer int) []string {
	s.lock.RLock()
	defer s.lock.RUnlock()

	bucket, ok := s.layers[layer]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// FirstLayer implements the Store interface.
func (s *InmemStore) FirstLayer() (int, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.boundaryLayer(true)
}

// LastLayer implements the Store interface.
func (s *InmemStore) LastLayer() (int, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.boundaryLayer(false)
}

func (s *InmemStore) boundaryLayer(first bool) (int, bool) {
	if len(s.layers) == 0 {
		return 0, false
	}

	res := 0
	init := false
	for layer := range s.layers {
		if !init || (first && layer < res) || (!first && layer > res) {
			res = layer
			init = true
		}
	}

	return res, true
}

// LastEvent implements the Store interface.
func (s *InmemStore) LastEvent() (*Event, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	for i := len(s.order) - 1; i >= 0; i-- {
		if event, ok := s.events[s.order[i]]; ok {
			return event, nil
		}
	}

	return nil, cm.NewStoreErr("Event", cm.Empty, "")
}

// EventCount implements the Store interface.
func (s *InmemStore) EventCount() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.events)
}

// NeedBootstrap implements the Store interface.
func (s *InmemStore) NeedBootstrap() bool {
	return false
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}
