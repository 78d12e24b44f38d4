package net

import (
	"github.com/evergraph/evergraph/src/graph"
)

// HandshakeRequest carries both version numbers of the caller. It is the
// first exchange on contact with a peer. A version mismatch never refuses the
// connection; it only selects compatibility adjustments such as the timestamp
// scale.
type HandshakeRequest struct {
	FromID          uint32
	ProtocolVersion int
	AppVersion      int
}

// HandshakeResponse mirrors the responder's versions back.
type HandshakeResponse struct {
	FromID          uint32
	ProtocolVersion int
	AppVersion      int
}

// PushEventsRequest is the live-gossip push: events the sender believes the
// receiver has not seen yet.
type PushEventsRequest struct {
	FromID uint32
	Events []*graph.Event
}

// PushEventsResponse indicates the success or failure of a PushEventsRequest.
type PushEventsResponse struct {
	FromID  uint32
	Success bool
}

// FetchEventsRequest is the anti-entropy pull: the Frontier map represents
// the requester's current unreferenced tips, bucketed by layer.
type FetchEventsRequest struct {
	FromID   uint32
	Frontier map[int][]string
}

// FetchEventsResponse returns every event in the responder's graph that is
// not in the causal past of the requested frontier, parents before children.
type FetchEventsResponse struct {
	FromID uint32
	Events []*graph.Event
}

// SendEventRequest is used by a client to author raw content through a node.
// The node builds the event against its own frontier and relays it.
type SendEventRequest struct {
	Timestamp int64
	Content   []byte
}

// SendEventResponse returns the id of the newly created event.
type SendEventResponse struct {
	FromID uint32
	ID     string
}
