package graph

import (
	"bytes"
	"sort"
	"time"

	"github.com/evergraph/evergraph/src/common"
	"github.com/evergraph/evergraph/src/crypto"
	"github.com/ugorji/go/codec"
)

// genesisContent is the payload of the well-known genesis event. Because
// events are content-addressed, every node derives the same genesis id from
// it.
var genesisContent = []byte("evergraph:genesis")

// Event is the fundamental unit of the event graph. It is immutable and
// content-addressed: its identity is the hash of its serialized Timestamp,
// Content, and Parents. An event can only reference parents that existed when
// it was created, which makes cycles structurally impossible.
type Event struct {
	// Timestamp is the creation time in milliseconds since the unix epoch. It
	// is informative only and not trusted across peers.
	Timestamp int64

	// Content is an opaque application payload. The graph never interprets it.
	Content []byte

	// Parents holds the hex ids of the events this event causally follows,
	// in lexical order. It is empty only for the genesis event.
	Parents []string

	// These fields are local caches and are not part of the hashed form.
	layer int
	hash  []byte
	hex   string
}

// NewEvent creates an Event on top of the graph's current frontier, stamped
// with the current time. This is the only way to author a local event; callers
// cannot pick parents.
func NewEvent(content []byte, g *Graph) *Event {
	return NewEventAt(time.Now().UnixMilli(), content, g)
}

// NewEventAt is like NewEvent but with an explicit timestamp. It is used when
// a client supplies the creation time of the content it submits.
func NewEventAt(timestamp int64, content []byte, g *Graph) *Event {
	parents := g.Tips()
	sort.Strings(parents)

	return &Event{
		Timestamp: timestamp,
		Content:   content,
		Parents:   parents,
	}
}

// NewGenesisEvent returns the well-known parentless root of the graph.
func NewGenesisEvent() *Event {
	return &Event{
		Timestamp: 0,
		Content:   genesisContent,
	}
}

// Marshal returns the canonical encoding of the Event. The encoding is
// deterministic and self-describing, so it is suitable both for the wire and
// for hashing.
func (e *Event) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(e); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal decodes an Event from its canonical encoding.
func (e *Event) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(e)
}

// Hash returns the SHA256 hash of the canonical encoding. It is cached after
// the first call and never mutates the hashed fields.
func (e *Event) Hash() ([]byte, error) {
	if len(e.hash) == 0 {
		data, err := e.Marshal()
		if err != nil {
			return nil, err
		}
		e.hash = crypto.SHA256(data)
	}

	return e.hash, nil
}

// Hex returns the string id of the Event.
func (e *Event) Hex() string {
	if e.hex == "" {
		hash, _ := e.Hash()
		e.hex = common.EncodeToString(hash)
	}

	return e.hex
}

// Layer returns the cached topological layer of the Event: 0 for a parentless
// event, otherwise 1 + the maximum layer of its parents. It is only meaningful
// after the event has been inserted into a Graph or loaded from a store.
func (e *Event) Layer() int {
	return e.layer
}

// ScaledCopy returns a copy of the Event with its timestamp divided by
// divisor. It is used to relay authored content to peers on an older timestamp
// convention; the copy has its own identity.
func (e *Event) ScaledCopy(divisor int64) *Event {
	if divisor <= 1 {
		divisor = 1
	}
	return &Event{
		Timestamp: e.Timestamp / divisor,
		Content:   e.Content,
		Parents:   e.Parents,
	}
}

type eventWrapper struct {
	Timestamp int64
	Content   []byte
	Parents   []string
	Layer     int
}

// MarshalDB returns the database encoding of the Event, which carries the
// cached layer on top of the hashed fields. Without it the layer would be lost
// after a write/read cycle on the database.
func (e *Event) MarshalDB() ([]byte, error) {
	wrapper := eventWrapper{
		Timestamp: e.Timestamp,
		Content:   e.Content,
		Parents:   e.Parents,
		Layer:     e.layer,
	}

	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(wrapper); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// UnmarshalDB decodes the database encoding of an Event.
func (e *Event) UnmarshalDB(data []byte) error {
	var wrapper eventWrapper

	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	if err := dec.Decode(&wrapper); err != nil {
		return err
	}

	e.Timestamp = wrapper.Timestamp
	e.Content = wrapper.Content
	e.Parents = wrapper.Parents
	e.layer = wrapper.Layer
	e.hash = nil
	e.hex = ""

	return nil
}
