package graph

// Store is the interface for event persistence backends. It is exclusively
// owned by the Graph; no other component writes to it directly.
type Store interface {
	// ContainsEvent reports whether an event with the given id is stored.
	ContainsEvent(id string) bool
	// GetEvent returns an event by id.
	GetEvent(id string) (*Event, error)
	// SetEvent inserts an event. Inserting an already-present id is a no-op.
	SetEvent(event *Event) error
	// DeleteEvents removes events by id. Only the pruning task uses it.
	DeleteEvents(ids []string) error
	// IterateEvents calls fn for every stored (id, event) pair, in store
	// order, until fn returns false. Each call starts a fresh iteration.
	IterateEvents(fn func(id string, event *Event) bool) error
	// LayerEvents returns the ids of the events cached at the given layer, in
	// lexical order.
	LayerEvents(layer int) []string
	// FirstLayer returns the lowest populated layer.
	FirstLayer() (int, bool)
	// LastLayer returns the highest populated layer.
	LastLayer() (int, bool)
	// LastEvent returns the most recently stored event.
	LastEvent() (*Event, error)
	// EventCount returns the number of stored events.
	EventCount() int
	// NeedBootstrap reports whether the store was loaded from an existing
	// database and the graph's frontier must be rebuilt from it.
	NeedBootstrap() bool
	// Close closes the underlying database.
	Close() error
	// StorePath returns the filepath of the underlying database.
	StorePath() string
}
